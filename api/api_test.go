package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/confidential-jury/api"
	"github.com/vocdoni/confidential-jury/api/client"
	"github.com/vocdoni/confidential-jury/crypto/ethereum"
	"github.com/vocdoni/confidential-jury/disclosure"
	"github.com/vocdoni/confidential-jury/fhe"
	"github.com/vocdoni/confidential-jury/fhe/backends"
	"github.com/vocdoni/confidential-jury/ledger"
	"github.com/vocdoni/confidential-jury/storage"
	"github.com/vocdoni/confidential-jury/types"
)

type testServer struct {
	srv    *httptest.Server
	owner  *ethereum.SignKeys
	ledger common.Address
}

func newKey(c *qt.C) *ethereum.SignKeys {
	k := ethereum.NewSignKeys()
	c.Assert(k.Generate(), qt.IsNil)
	return k
}

func newTestServer(c *qt.C, backendType string) *testServer {
	owner := newKey(c)
	backend, err := backends.New(memdb.New(), backends.Config{
		Type:    backendType,
		Options: fhe.Options{Domain: fhe.DefaultDomain(31337, common.HexToAddress("0xd0"))},
	})
	c.Assert(err, qt.IsNil)
	l, err := ledger.New(storage.New(memdb.New()), backend, ledger.Options{Owner: owner.Address()})
	c.Assert(err, qt.IsNil)
	a, err := api.New(&api.APIConfig{Ledger: l})
	c.Assert(err, qt.IsNil)
	srv := httptest.NewServer(a)
	c.Cleanup(srv.Close)
	return &testServer{srv: srv, owner: owner, ledger: l.Address()}
}

func (s *testServer) client(c *qt.C, keys *ethereum.SignKeys) *client.HTTPclient {
	cli, err := client.New(s.srv.URL, keys)
	c.Assert(err, qt.IsNil)
	return cli
}

func score(c *qt.C, in *fhe.EncryptedInput, workID uint64) *types.ScoreInput {
	c.Assert(in.Handles, qt.HasLen, types.Dimensions)
	s := &types.ScoreInput{WorkID: workID, InputProof: in.Proof}
	copy(s.Dimensions[:], in.Handles)
	return s
}

func TestJuryFlow(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	s := newTestServer(c, fhe.BackendMock)
	owner := s.client(c, s.owner)

	ids, err := owner.AddWorks(ctx,
		&types.WorkInput{Title: "Stalker", Director: "Tarkovsky"},
		&types.WorkInput{Title: "Ran", Director: "Kurosawa"})
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.DeepEquals, []uint64{0, 1})

	r1, r2 := newKey(c), newKey(c)
	c.Assert(owner.AddReviewers(ctx, r1.Address(), r2.Address()), qt.IsNil)
	reviewers, err := owner.Reviewers(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(reviewers, qt.HasLen, 2)

	for _, tc := range []struct {
		keys *ethereum.SignKeys
		dims [4]uint16
	}{
		{r1, [4]uint16{80, 90, 70, 100}},
		{r2, [4]uint16{70, 81, 60, 90}},
	} {
		rc := s.client(c, tc.keys)
		in, err := rc.EncryptInputs(ctx, tc.dims[:]...)
		c.Assert(err, qt.IsNil)
		c.Assert(rc.SubmitScore(ctx, score(c, in, 0)), qt.IsNil)

		// second submission for the same work
		in, err = rc.EncryptInputs(ctx, tc.dims[:]...)
		c.Assert(err, qt.IsNil)
		c.Assert(rc.SubmitScore(ctx, score(c, in, 0)), qt.ErrorIs, ledger.ErrDuplicate)
	}
	scores, err := owner.Scores(ctx, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(scores, qt.HasLen, 2)
	c.Assert(scores[0].Reviewer, qt.Equals, r1.Address())

	// only the owner aggregates
	c.Assert(s.client(c, r1).Aggregate(ctx, 0), qt.ErrorIs, ledger.ErrUnauthorized)
	c.Assert(owner.Aggregate(ctx, 1), qt.ErrorIs, ledger.ErrState)
	c.Assert(owner.Aggregate(ctx, 0), qt.IsNil)
	agg, err := owner.AggregatedScore(ctx, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(agg.Aggregated, qt.IsTrue)
	c.Assert(agg.ReviewerCount, qt.Equals, uint32(2))

	// not disclosed yet
	orch := disclosure.New(&disclosure.KeySigner{Keys: s.owner}, owner, owner, disclosure.Options{MaxRetryTime: time.Second})
	_, err = orch.Run(ctx, 0)
	c.Assert(err, qt.ErrorIs, fhe.ErrUnauthorized)

	c.Assert(owner.AllowDisclosure(ctx, common.Address{}, 0), qt.IsNil)
	allowed, err := owner.IsDisclosureAllowed(ctx, 0, s.owner.Address())
	c.Assert(err, qt.IsNil)
	c.Assert(allowed, qt.IsTrue)

	out, err := orch.Run(ctx, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(out.Status, qt.Equals, disclosure.StatusPublished)
	c.Assert(out.Averages, qt.Equals, [4]uint16{75, 86, 65, 95})

	results, err := owner.Results(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(results, qt.HasLen, 1)
	c.Assert(results[0].Title, qt.Equals, "Stalker")
	res, err := owner.ResultAt(ctx, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Averages, qt.Equals, [4]uint16{75, 86, 65, 95})
	_, err = owner.ResultAt(ctx, 1)
	c.Assert(err, qt.ErrorIs, ledger.ErrNotFound)

	c.Assert(owner.Publish(ctx, 0, out.Averages), qt.ErrorIs, ledger.ErrDuplicate)
	_, err = owner.Work(ctx, 7)
	c.Assert(err, qt.ErrorIs, ledger.ErrNotFound)

	events, err := owner.Events(ctx, 0, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(events[0].Kind, qt.Equals, types.EventWorkAdded)
	c.Assert(events[len(events)-1].Kind, qt.Equals, types.EventResultsPublished)
	info, err := owner.LedgerInfo(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(info.Results, qt.Equals, uint64(1))
	c.Assert(info.Events, qt.Equals, uint64(len(events)))
}

func TestClientSideInputs(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	s := newTestServer(c, fhe.BackendKMS)
	owner := s.client(c, s.owner)
	_, err := owner.AddWorks(ctx, &types.WorkInput{Title: "Playtime"})
	c.Assert(err, qt.IsNil)
	r := newKey(c)
	c.Assert(owner.AddReviewers(ctx, r.Address()), qt.IsNil)

	info, err := owner.Info(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(info.Backend, qt.Equals, fhe.BackendKMS)
	enc, ok, err := backends.Encryptor(info)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	rc := s.client(c, r)
	in, err := enc.EncryptInputs(fhe.InputContext{Contract: rc.Address(), User: r.Address()}, 60, 70, 80, 90)
	c.Assert(err, qt.IsNil)

	// inputs are bound to the submitter
	c.Assert(owner.AddReviewers(ctx, s.owner.Address()), qt.IsNil)
	c.Assert(owner.SubmitScore(ctx, score(c, in, 0)), qt.ErrorIs, ledger.ErrProofVerification)
	c.Assert(rc.SubmitScore(ctx, score(c, in, 0)), qt.IsNil)
	c.Assert(owner.Aggregate(ctx, 0), qt.IsNil)

	th, err := enc.EncryptInputs(fhe.InputContext{Contract: owner.Address(), User: s.owner.Address()}, 75)
	c.Assert(err, qt.IsNil)
	c.Assert(owner.SetThreshold(ctx, th.Handles[0], th.Proof), qt.IsNil)
	flags, err := owner.CheckQualification(ctx, 0)
	c.Assert(err, qt.IsNil)

	key, err := fhe.NewEphemeralKey()
	c.Assert(err, qt.IsNil)
	auth := fhe.Authorization{
		PublicKey:         key.PublicKeyBytes(),
		ContractAddresses: []common.Address{owner.Address()},
		StartTimestamp:    uint64(time.Now().Unix()),
		DurationDays:      1,
	}
	sig, err := s.owner.SignTypedData(auth.TypedData(info.Domain))
	c.Assert(err, qt.IsNil)
	req := &fhe.UserDecryptRequest{
		Handles:         flags[:],
		ContractAddress: owner.Address(),
		UserAddress:     s.owner.Address(),
		Authorization:   auth,
		Signature:       sig,
	}
	resp, err := owner.UserDecrypt(ctx, req)
	c.Assert(err, qt.IsNil)
	values, err := fhe.Open(key, resp)
	c.Assert(err, qt.IsNil)
	c.Assert([]uint64{values[flags[0]], values[flags[1]], values[flags[2]], values[flags[3]]},
		qt.DeepEquals, []uint64{0, 0, 1, 1})

	// the reviewer was never granted the flags
	req.UserAddress = r.Address()
	req.Signature, err = r.SignTypedData(auth.TypedData(info.Domain))
	c.Assert(err, qt.IsNil)
	_, err = rc.UserDecrypt(ctx, req)
	c.Assert(err, qt.ErrorIs, fhe.ErrUnauthorized)
}

// postSigned signs req with keys and posts it to urlPath, returning the API
// error or nil on success.
func (s *testServer) postSigned(c *qt.C, urlPath string, req *types.Request, keys *ethereum.SignKeys) *client.APIError {
	payload, err := json.Marshal(req)
	c.Assert(err, qt.IsNil)
	sig, err := keys.SignEthereum(payload)
	c.Assert(err, qt.IsNil)
	body, err := json.Marshal(&types.SignedRequest{Payload: payload, Signature: sig})
	c.Assert(err, qt.IsNil)
	resp, err := http.Post(s.srv.URL+urlPath, "application/json", bytes.NewReader(body))
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	apiErr := &client.APIError{Status: resp.StatusCode}
	c.Assert(json.NewDecoder(resp.Body).Decode(apiErr), qt.IsNil)
	return apiErr
}

func TestSignedRequestChecks(t *testing.T) {
	c := qt.New(t)
	s := newTestServer(c, fhe.BackendMock)

	post := func(req *types.Request, keys *ethereum.SignKeys) *client.APIError {
		return s.postSigned(c, api.ReviewersEndpoint, req, keys)
	}
	data := &api.Reviewers{Addresses: []common.Address{newKey(c).Address()}}

	req, err := types.NewRequest(api.ActionAddWorks, s.ledger, api.ReviewersEndpoint, data, time.Now())
	c.Assert(err, qt.IsNil)
	c.Assert(post(req, s.owner).Code, qt.Equals, api.ErrActionMismatch.Code)

	req, err = types.NewRequest(api.ActionAddReviewers, s.ledger, api.ReviewersEndpoint, data, time.Now().Add(-time.Hour))
	c.Assert(err, qt.IsNil)
	c.Assert(post(req, s.owner).Code, qt.Equals, api.ErrStaleRequest.Code)

	req, err = types.NewRequest(api.ActionAddReviewers, s.ledger, api.ReviewersEndpoint, nil, time.Now())
	c.Assert(err, qt.IsNil)
	c.Assert(post(req, s.owner).Code, qt.Equals, api.ErrMalformedBody.Code)

	// a valid request signed by someone else is attributed to them
	req, err = types.NewRequest(api.ActionAddReviewers, s.ledger, api.ReviewersEndpoint, data, time.Now())
	c.Assert(err, qt.IsNil)
	apiErr := post(req, newKey(c))
	c.Assert(apiErr.Code, qt.Equals, api.ErrUnauthorized.Code)
	c.Assert(apiErr.Status, qt.Equals, http.StatusForbidden)
	c.Assert(apiErr, qt.ErrorIs, ledger.ErrUnauthorized)

	c.Assert(post(req, s.owner), qt.Equals, (*client.APIError)(nil))

	resp, err := http.Post(s.srv.URL+api.ReviewersEndpoint, "application/json", bytes.NewReader([]byte("{")))
	c.Assert(err, qt.IsNil)
	c.Assert(resp.Body.Close(), qt.IsNil)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusBadRequest)

	resp, err = http.Get(s.srv.URL + api.WorksEndpoint + "/abc")
	c.Assert(err, qt.IsNil)
	c.Assert(resp.Body.Close(), qt.IsNil)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusBadRequest)
}

func TestSignedRequestReplay(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	s := newTestServer(c, fhe.BackendMock)
	ids, err := s.client(c, s.owner).AddWorks(ctx,
		&types.WorkInput{Title: "Stalker", Director: "Tarkovsky"},
		&types.WorkInput{Title: "Ran", Director: "Kurosawa"})
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.HasLen, 2)

	// an aggregate request for work 0 cannot be replayed against work 1
	req, err := types.NewRequest(api.ActionAggregate, s.ledger, "/works/0/aggregate", nil, time.Now())
	c.Assert(err, qt.IsNil)
	apiErr := s.postSigned(c, "/works/1/aggregate", req, s.owner)
	c.Assert(apiErr, qt.IsNotNil)
	c.Assert(apiErr.Code, qt.Equals, api.ErrPathMismatch.Code)

	req, err = types.NewRequest(api.ActionCheckQualify, s.ledger, "/works/0/qualification", nil, time.Now())
	c.Assert(err, qt.IsNil)
	apiErr = s.postSigned(c, "/works/1/qualification", req, s.owner)
	c.Assert(apiErr, qt.IsNotNil)
	c.Assert(apiErr.Code, qt.Equals, api.ErrPathMismatch.Code)

	// the same request reaches the ledger when sent to the path it names
	req, err = types.NewRequest(api.ActionAggregate, s.ledger, "/works/1/aggregate", nil, time.Now())
	c.Assert(err, qt.IsNil)
	apiErr = s.postSigned(c, "/works/1/aggregate", req, s.owner)
	c.Assert(apiErr, qt.IsNotNil)
	c.Assert(apiErr.Code, qt.Equals, api.ErrInvalidState.Code)

	// a request signed for another ledger is rejected
	req, err = types.NewRequest(api.ActionAggregate, common.HexToAddress("0x01"), "/works/1/aggregate", nil, time.Now())
	c.Assert(err, qt.IsNil)
	apiErr = s.postSigned(c, "/works/1/aggregate", req, s.owner)
	c.Assert(apiErr, qt.IsNotNil)
	c.Assert(apiErr.Code, qt.Equals, api.ErrLedgerMismatch.Code)
}
