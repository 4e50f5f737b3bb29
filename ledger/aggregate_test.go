package ledger

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/confidential-jury/fhe"
	"github.com/vocdoni/confidential-jury/types"
)

func TestAggregate(t *testing.T) {
	for _, backend := range []string{fhe.BackendMock, fhe.BackendKMS} {
		t.Run(backend, func(t *testing.T) {
			c := qt.New(t)
			e := newTestEnv(c, backend)
			owner := e.ownerAddr()
			work := e.addWork(c, "Film")
			empty := e.addWork(c, "Empty")
			for _, dims := range [][4]uint16{
				{80, 70, 100, 0},
				{85, 71, 100, 0},
				{90, 72, 100, 1},
			} {
				e.submit(c, e.addReviewer(c), work, dims)
			}

			c.Assert(e.ledger.Aggregate(common.HexToAddress("0x01"), work), qt.ErrorIs, ErrUnauthorized)
			c.Assert(e.ledger.Aggregate(owner, 99), qt.ErrorIs, ErrNotFound)
			err := e.ledger.Aggregate(owner, empty)
			c.Assert(err, qt.ErrorIs, ErrState)
			c.Assert(err, qt.ErrorMatches, ".*no scores submitted.*")

			agg, err := e.ledger.AggregatedScore(work)
			c.Assert(err, qt.IsNil)
			c.Assert(agg.Aggregated, qt.IsFalse)

			c.Assert(e.ledger.Aggregate(owner, work), qt.IsNil)
			err = e.ledger.Aggregate(owner, work)
			c.Assert(err, qt.ErrorIs, ErrState)
			c.Assert(err, qt.ErrorMatches, ".*already aggregated.*")

			agg, err = e.ledger.AggregatedScore(work)
			c.Assert(err, qt.IsNil)
			c.Assert(agg.Aggregated, qt.IsTrue)
			c.Assert(agg.ReviewerCount, qt.Equals, uint32(3))

			// the owner cannot decrypt before the disclosure grant
			_, err = e.decrypt(c, e.owner, agg.Sums[:]...)
			c.Assert(err, qt.ErrorIs, fhe.ErrUnauthorized)

			c.Assert(e.ledger.AllowDisclosure(owner, work), qt.IsNil)
			sums, err := e.decrypt(c, e.owner, agg.Sums[:]...)
			c.Assert(err, qt.IsNil)
			c.Assert(sums, qt.DeepEquals, []uint64{255, 213, 300, 1})

			aggs, err := e.ledger.Aggregations()
			c.Assert(err, qt.IsNil)
			c.Assert(aggs, qt.HasLen, 1)
			c.Assert(aggs[0].WorkID, qt.Equals, work)
		})
	}
}

func TestBatchAggregateAtomic(t *testing.T) {
	c := qt.New(t)
	e := newTestEnv(c, fhe.BackendMock)
	owner := e.ownerAddr()
	w1, w2 := e.addWork(c, "One"), e.addWork(c, "Two")
	e.submit(c, e.addReviewer(c), w1, [4]uint16{1, 2, 3, 4})

	c.Assert(e.ledger.BatchAggregate(owner, []uint64{w1, w2}), qt.ErrorIs, ErrState)
	agg, err := e.ledger.AggregatedScore(w1)
	c.Assert(err, qt.IsNil)
	c.Assert(agg.Aggregated, qt.IsFalse)

	c.Assert(e.ledger.BatchAggregate(owner, []uint64{w1, w1}), qt.ErrorIs, ErrState)
	c.Assert(e.ledger.BatchAggregate(owner, []uint64{w1}), qt.IsNil)

	events, err := e.ledger.Events(0, 0)
	c.Assert(err, qt.IsNil)
	last := events[len(events)-1]
	c.Assert(last.Kind, qt.Equals, types.EventScoresAggregated)
	c.Assert(last.Count, qt.Equals, uint32(1))
}
