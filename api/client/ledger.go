package client

import (
	"context"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-jury/api"
	"github.com/vocdoni/confidential-jury/fhe"
	"github.com/vocdoni/confidential-jury/types"
)

func workPath(id uint64, sub ...string) []string {
	return append([]string{api.WorksEndpoint, strconv.FormatUint(id, 10)}, sub...)
}

// Owner returns the ledger owner.
func (c *HTTPclient) Owner(ctx context.Context) (common.Address, error) {
	o := &api.Owner{}
	err := c.call(ctx, HTTPGET, nil, o, nil, api.OwnerEndpoint)
	return o.Owner, err
}

// TransferOwnership hands the ledger to newOwner.
func (c *HTTPclient) TransferOwnership(ctx context.Context, newOwner common.Address) error {
	return c.signed(ctx, HTTPPOST, api.ActionTransferOwnership, &api.TransferOwnership{NewOwner: newOwner},
		nil, api.OwnerEndpoint)
}

// AddReviewers registers reviewers atomically.
func (c *HTTPclient) AddReviewers(ctx context.Context, addrs ...common.Address) error {
	return c.signed(ctx, HTTPPOST, api.ActionAddReviewers, &api.Reviewers{Addresses: addrs}, nil, api.ReviewersEndpoint)
}

// RemoveReviewer deactivates a reviewer.
func (c *HTTPclient) RemoveReviewer(ctx context.Context, addr common.Address) error {
	return c.signed(ctx, HTTPDELETE, api.ActionRemoveReviewer, &api.RemoveReviewer{Address: addr},
		nil, api.ReviewersEndpoint, addr.Hex())
}

// Reviewers lists the active reviewers.
func (c *HTTPclient) Reviewers(ctx context.Context) ([]*types.Reviewer, error) {
	r := &api.Reviewers{}
	err := c.call(ctx, HTTPGET, nil, r, nil, api.ReviewersEndpoint)
	return r.Reviewers, err
}

// IsReviewer reports whether addr is an active reviewer.
func (c *HTTPclient) IsReviewer(ctx context.Context, addr common.Address) (bool, error) {
	s := &api.ReviewerStatus{}
	err := c.call(ctx, HTTPGET, nil, s, nil, api.ReviewersEndpoint, addr.Hex())
	return s.Reviewer, err
}

// AddWorks registers works atomically and returns their ids.
func (c *HTTPclient) AddWorks(ctx context.Context, works ...*types.WorkInput) ([]uint64, error) {
	ids := &api.WorkIDs{}
	err := c.signed(ctx, HTTPPOST, api.ActionAddWorks, &api.NewWorks{Works: works}, ids, api.WorksEndpoint)
	return ids.WorkIDs, err
}

// Works lists the registered works.
func (c *HTTPclient) Works(ctx context.Context) ([]*types.Work, error) {
	w := &api.Works{}
	err := c.call(ctx, HTTPGET, nil, w, nil, api.WorksEndpoint)
	return w.Works, err
}

// Work returns a work.
func (c *HTTPclient) Work(ctx context.Context, id uint64) (*types.Work, error) {
	w := &types.Work{}
	return w, c.call(ctx, HTTPGET, nil, w, nil, workPath(id)...)
}

// SubmitScore submits the encrypted score of the signer.
func (c *HTTPclient) SubmitScore(ctx context.Context, in *types.ScoreInput) error {
	return c.signed(ctx, HTTPPOST, api.ActionSubmitScore, in, nil, workPath(in.WorkID, "scores")...)
}

// Scores lists the scores of a work.
func (c *HTTPclient) Scores(ctx context.Context, id uint64) ([]*types.Score, error) {
	s := &api.Scores{}
	err := c.call(ctx, HTTPGET, nil, s, nil, workPath(id, "scores")...)
	return s.Scores, err
}

// Score returns the score of a reviewer for a work.
func (c *HTTPclient) Score(ctx context.Context, id uint64, addr common.Address) (*types.Score, error) {
	s := &types.Score{}
	return s, c.call(ctx, HTTPGET, nil, s, nil, workPath(id, "scores", addr.Hex())...)
}

// Aggregate computes the aggregates of the works atomically.
func (c *HTTPclient) Aggregate(ctx context.Context, ids ...uint64) error {
	if len(ids) == 1 {
		return c.signed(ctx, HTTPPOST, api.ActionAggregate, nil, nil, workPath(ids[0], "aggregate")...)
	}
	return c.signed(ctx, HTTPPOST, api.ActionAggregate, &api.WorkIDs{WorkIDs: ids}, nil, api.AggregationsEndpoint)
}

// AggregatedScore returns the aggregate of a work.
func (c *HTTPclient) AggregatedScore(ctx context.Context, id uint64) (*types.AggregatedScore, error) {
	a := &types.AggregatedScore{}
	return a, c.call(ctx, HTTPGET, nil, a, nil, workPath(id, "aggregate")...)
}

// Aggregations lists the computed aggregates.
func (c *HTTPclient) Aggregations(ctx context.Context) ([]*types.AggregatedScore, error) {
	a := &api.Aggregations{}
	err := c.call(ctx, HTTPGET, nil, a, nil, api.AggregationsEndpoint)
	return a.Aggregations, err
}

// SetThreshold replaces the encrypted threshold.
func (c *HTTPclient) SetThreshold(ctx context.Context, h types.Handle, proof []byte) error {
	return c.signed(ctx, HTTPPOST, api.ActionSetThreshold, &api.SetThreshold{Handle: h, Proof: proof},
		nil, api.ThresholdEndpoint)
}

// Threshold returns the encrypted threshold.
func (c *HTTPclient) Threshold(ctx context.Context) (*types.Threshold, error) {
	th := &types.Threshold{}
	return th, c.call(ctx, HTTPGET, nil, th, nil, api.ThresholdEndpoint)
}

// CheckQualification returns the encrypted per dimension qualification
// flags of a work, decryptable by the signer.
func (c *HTTPclient) CheckQualification(ctx context.Context, id uint64) ([types.Dimensions]types.Handle, error) {
	q := &api.Qualification{}
	err := c.signed(ctx, HTTPPOST, api.ActionCheckQualify, nil, q, workPath(id, "qualification")...)
	return q.Flags, err
}

// AllowDisclosure grants principal access to the aggregates of the works. A
// zero principal grants the signer.
func (c *HTTPclient) AllowDisclosure(ctx context.Context, principal common.Address, ids ...uint64) error {
	return c.signed(ctx, HTTPPOST, api.ActionAllowDisclosure,
		&api.AllowDisclosure{WorkIDs: ids, Principal: principal}, nil, api.DisclosuresEndpoint)
}

// IsDisclosureAllowed reports whether principal may decrypt the aggregate of
// a work.
func (c *HTTPclient) IsDisclosureAllowed(ctx context.Context, id uint64, principal common.Address) (bool, error) {
	s := &api.DisclosureStatus{}
	err := c.call(ctx, HTTPGET, nil, s, nil, workPath(id, "disclosures", principal.Hex())...)
	return s.Allowed, err
}

// Grants lists the disclosure grants.
func (c *HTTPclient) Grants(ctx context.Context) ([]*types.DisclosureGrant, error) {
	g := &api.Grants{}
	err := c.call(ctx, HTTPGET, nil, g, nil, api.DisclosuresEndpoint)
	return g.Grants, err
}

// PublishResults publishes the averages of several works atomically.
func (c *HTTPclient) PublishResults(ctx context.Context, ids []uint64, averages [types.Dimensions][]uint16) error {
	return c.signed(ctx, HTTPPOST, api.ActionPublish, &api.Publish{WorkIDs: ids, Averages: averages},
		nil, api.ResultsEndpoint)
}

// Publish publishes the averages of a single work.
func (c *HTTPclient) Publish(ctx context.Context, id uint64, averages [types.Dimensions]uint16) error {
	var lists [types.Dimensions][]uint16
	for d, avg := range averages {
		lists[d] = []uint16{avg}
	}
	return c.PublishResults(ctx, []uint64{id}, lists)
}

// Results lists the published results.
func (c *HTTPclient) Results(ctx context.Context) ([]*types.PublicResult, error) {
	r := &api.Results{}
	err := c.call(ctx, HTTPGET, nil, r, nil, api.ResultsEndpoint)
	return r.Results, err
}

// ResultAt returns the result at position i of the publication order.
func (c *HTTPclient) ResultAt(ctx context.Context, i uint64) (*types.PublicResult, error) {
	r := &types.PublicResult{}
	return r, c.call(ctx, HTTPGET, nil, r, nil, api.ResultsEndpoint, strconv.FormatUint(i, 10))
}

// Events lists up to limit events starting at sequence number from.
func (c *HTTPclient) Events(ctx context.Context, from uint64, limit int) ([]*types.Event, error) {
	e := &api.Events{}
	params := []string{api.FromQueryParam, strconv.FormatUint(from, 10), api.LimitQueryParam, strconv.Itoa(limit)}
	err := c.call(ctx, HTTPGET, nil, e, params, api.EventsEndpoint)
	return e.Events, err
}

// Info describes the fhe backend of the ledger.
func (c *HTTPclient) Info(ctx context.Context) (*fhe.Info, error) {
	info := &fhe.Info{}
	return info, c.call(ctx, HTTPGET, nil, info, nil, api.FHEEndpoint)
}

// EncryptInputs has the server encrypt values for the signer, bound to the
// ledger.
func (c *HTTPclient) EncryptInputs(ctx context.Context, values ...uint16) (*fhe.EncryptedInput, error) {
	in := &fhe.EncryptedInput{}
	err := c.signed(ctx, HTTPPOST, api.ActionEncryptInputs, &api.EncryptInputs{Values: values}, in, api.FHEInputsEndpoint)
	return in, err
}

// UserDecrypt sends a signed decryption request to the oracle.
func (c *HTTPclient) UserDecrypt(ctx context.Context, req *fhe.UserDecryptRequest) (*fhe.UserDecryptResponse, error) {
	resp := &fhe.UserDecryptResponse{}
	return resp, c.call(ctx, HTTPPOST, req, resp, nil, api.FHEDecryptEndpoint)
}
