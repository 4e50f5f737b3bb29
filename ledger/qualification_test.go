package ledger

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/confidential-jury/fhe"
	"github.com/vocdoni/confidential-jury/types"
)

func TestQualification(t *testing.T) {
	for _, backend := range []string{fhe.BackendMock, fhe.BackendKMS} {
		t.Run(backend, func(t *testing.T) {
			c := qt.New(t)
			e := newTestEnv(c, backend)
			owner := e.ownerAddr()
			work := e.addWork(c, "Film")
			e.submit(c, e.addReviewer(c), work, [4]uint16{80, 40, 100, 60})
			e.submit(c, e.addReviewer(c), work, [4]uint16{80, 40, 100, 59})

			_, err := e.ledger.CheckQualification(owner, work)
			c.Assert(err, qt.ErrorIs, ErrState)
			c.Assert(err, qt.ErrorMatches, ".*not aggregated yet.*")
			c.Assert(e.ledger.Aggregate(owner, work), qt.IsNil)

			_, err = e.ledger.CheckQualification(owner, work)
			c.Assert(err, qt.ErrorMatches, ".*threshold not configured.*")
			th, err := e.ledger.Threshold()
			c.Assert(err, qt.IsNil)
			c.Assert(th.Configured, qt.IsFalse)

			// the threshold proof is bound to the owner
			stranger := common.HexToAddress("0x01")
			in := e.encrypt(c, stranger, 120)
			c.Assert(e.ledger.SetThreshold(stranger, in.Handles[0], in.Proof), qt.ErrorIs, ErrUnauthorized)
			c.Assert(e.ledger.SetThreshold(owner, in.Handles[0], in.Proof), qt.ErrorIs, ErrProofVerification)

			in = e.encrypt(c, owner, 120)
			c.Assert(e.ledger.SetThreshold(owner, in.Handles[0], in.Proof), qt.IsNil)
			th, err = e.ledger.Threshold()
			c.Assert(err, qt.IsNil)
			c.Assert(th.Configured, qt.IsTrue)
			c.Assert(th.Value, qt.Equals, in.Handles[0])

			_, err = e.ledger.CheckQualification(stranger, work)
			c.Assert(err, qt.ErrorIs, ErrUnauthorized)
			results, err := e.ledger.CheckQualification(owner, work)
			c.Assert(err, qt.IsNil)
			for _, h := range results {
				c.Assert(h.Type(), qt.Equals, types.ValueTypeBool)
			}
			values, err := e.decrypt(c, e.owner, results[:]...)
			c.Assert(err, qt.IsNil)
			// sums are 160, 80, 200, 119 against 120
			c.Assert(values, qt.DeepEquals, []uint64{1, 0, 1, 0})

			// a new threshold replaces the previous one
			in = e.encrypt(c, owner, 80)
			c.Assert(e.ledger.SetThreshold(owner, in.Handles[0], in.Proof), qt.IsNil)
			results, err = e.ledger.CheckQualification(owner, work)
			c.Assert(err, qt.IsNil)
			values, err = e.decrypt(c, e.owner, results[:]...)
			c.Assert(err, qt.IsNil)
			c.Assert(values, qt.DeepEquals, []uint64{1, 1, 1, 1})

			// qualification does not gate disclosure or publication
			c.Assert(e.ledger.AllowDisclosure(owner, work), qt.IsNil)
		})
	}
}
