package ledger

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/confidential-jury/crypto/ethereum"
	"github.com/vocdoni/confidential-jury/fhe"
	"github.com/vocdoni/confidential-jury/fhe/kms"
	"github.com/vocdoni/confidential-jury/fhe/mock"
	"github.com/vocdoni/confidential-jury/storage"
	"github.com/vocdoni/confidential-jury/types"
	"go.vocdoni.io/dvote/db/metadb"
)

var testNow = time.Unix(1_700_000_000, 0)

type testEnv struct {
	ledger  *Ledger
	backend fhe.Backend
	owner   *ethereum.SignKeys
}

func newKey(c *qt.C) *ethereum.SignKeys {
	k := ethereum.NewSignKeys()
	c.Assert(k.Generate(), qt.IsNil)
	return k
}

func newTestEnv(c *qt.C, backendType string) *testEnv {
	owner := newKey(c)
	opts := fhe.Options{
		Domain: fhe.DefaultDomain(31337, common.HexToAddress("0x00000000000000000000000000000000000000d0")),
		Now:    func() time.Time { return testNow },
	}
	var backend fhe.Backend
	var err error
	switch backendType {
	case fhe.BackendKMS:
		backend, err = kms.New(memdb.New(), opts)
	default:
		backend, err = mock.New(memdb.New(), nil, opts)
	}
	c.Assert(err, qt.IsNil)
	l, err := New(storage.New(metadb.NewTest(c.TB)), backend, Options{
		Owner: owner.Address(),
		Now:   func() time.Time { return testNow },
	})
	c.Assert(err, qt.IsNil)
	return &testEnv{ledger: l, backend: backend, owner: owner}
}

func (e *testEnv) ownerAddr() common.Address {
	return e.owner.Address()
}

func (e *testEnv) addWork(c *qt.C, title string) uint64 {
	id, err := e.ledger.AddWork(e.ownerAddr(), &types.WorkInput{Title: title, Director: "Director of " + title})
	c.Assert(err, qt.IsNil)
	return id
}

func (e *testEnv) addReviewer(c *qt.C) *ethereum.SignKeys {
	k := newKey(c)
	c.Assert(e.ledger.AddReviewer(e.ownerAddr(), k.Address()), qt.IsNil)
	return k
}

func (e *testEnv) encrypt(c *qt.C, user common.Address, values ...uint16) *fhe.EncryptedInput {
	in, err := e.backend.EncryptInputs(fhe.InputContext{Contract: e.ledger.Address(), User: user}, values...)
	c.Assert(err, qt.IsNil)
	return in
}

func (e *testEnv) scoreInput(c *qt.C, user common.Address, workID uint64, dims [4]uint16) *types.ScoreInput {
	in := e.encrypt(c, user, dims[0], dims[1], dims[2], dims[3])
	score := &types.ScoreInput{WorkID: workID, InputProof: in.Proof}
	copy(score.Dimensions[:], in.Handles)
	return score
}

func (e *testEnv) submit(c *qt.C, reviewer *ethereum.SignKeys, workID uint64, dims [4]uint16) {
	c.Assert(e.ledger.SubmitScore(reviewer.Address(), e.scoreInput(c, reviewer.Address(), workID, dims)), qt.IsNil)
}

// decrypt user-decrypts handles as user through the ledger address.
func (e *testEnv) decrypt(c *qt.C, user *ethereum.SignKeys, handles ...types.Handle) ([]uint64, error) {
	key, err := fhe.NewEphemeralKey()
	c.Assert(err, qt.IsNil)
	auth := fhe.Authorization{
		PublicKey:         key.PublicKeyBytes(),
		ContractAddresses: []common.Address{e.ledger.Address()},
		StartTimestamp:    uint64(testNow.Unix()),
		DurationDays:      types.DefaultDisclosureDays,
	}
	sig, err := user.SignTypedData(auth.TypedData(e.backend.Info().Domain))
	c.Assert(err, qt.IsNil)
	resp, err := e.backend.UserDecrypt(&fhe.UserDecryptRequest{
		Handles:         handles,
		ContractAddress: e.ledger.Address(),
		UserAddress:     user.Address(),
		Authorization:   auth,
		Signature:       sig,
	})
	if err != nil {
		return nil, err
	}
	opened, err := fhe.Open(key, resp)
	c.Assert(err, qt.IsNil)
	values := make([]uint64, len(handles))
	for i, h := range handles {
		values[i] = opened[h]
	}
	return values, nil
}
