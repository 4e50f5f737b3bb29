package ledger

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/confidential-jury/fhe"
	"github.com/vocdoni/confidential-jury/types"
)

func TestPublish(t *testing.T) {
	c := qt.New(t)
	e := newTestEnv(c, fhe.BackendMock)
	owner := e.ownerAddr()
	w1, w2, w3 := e.addWork(c, "One"), e.addWork(c, "Two"), e.addWork(c, "Three")
	one := func(v uint16) []uint16 { return []uint16{v} }

	c.Assert(e.ledger.Publish(common.HexToAddress("0x01"), []uint64{w1}, one(1), one(2), one(3), one(4)),
		qt.ErrorIs, ErrUnauthorized)
	c.Assert(e.ledger.Publish(owner, []uint64{w1}, one(1), one(2), one(3), nil), qt.ErrorIs, ErrShape)
	c.Assert(e.ledger.Publish(owner, nil, nil, nil, nil, nil), qt.ErrorIs, ErrShape)
	c.Assert(e.ledger.Publish(owner, []uint64{42}, one(1), one(2), one(3), one(4)), qt.ErrorIs, ErrNotFound)
	c.Assert(e.ledger.Publish(owner, []uint64{w1}, one(101), one(2), one(3), one(4)), qt.ErrorIs, ErrInvalidArgument)

	c.Assert(e.ledger.Publish(owner, []uint64{w1}, one(85), one(90), one(88), one(92)), qt.IsNil)
	err := e.ledger.Publish(owner, []uint64{w1}, one(85), one(90), one(88), one(92))
	c.Assert(err, qt.ErrorIs, ErrDuplicate)
	c.Assert(err, qt.ErrorMatches, ".*already published.*")

	// atomic: w2 is not published because w1 already is
	err = e.ledger.Publish(owner, []uint64{w2, w1}, []uint16{1, 1}, []uint16{1, 1}, []uint16{1, 1}, []uint16{1, 1})
	c.Assert(err, qt.ErrorIs, ErrDuplicate)
	published, err := e.ledger.IsPublished(w2)
	c.Assert(err, qt.IsNil)
	c.Assert(published, qt.IsFalse)

	// repeated inside one call
	err = e.ledger.Publish(owner, []uint64{w2, w2}, []uint16{1, 1}, []uint16{1, 1}, []uint16{1, 1}, []uint16{1, 1})
	c.Assert(err, qt.ErrorIs, ErrDuplicate)

	c.Assert(e.ledger.Publish(owner, []uint64{w3, w2}, []uint16{10, 20}, []uint16{11, 21}, []uint16{12, 22},
		[]uint16{13, 23}), qt.IsNil)

	n, err := e.ledger.ResultCount()
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, uint64(3))
	results, err := e.ledger.Results()
	c.Assert(err, qt.IsNil)
	c.Assert(results, qt.HasLen, 3)
	c.Assert(results[0].WorkID, qt.Equals, w1)
	c.Assert(results[0].Averages, qt.Equals, [types.Dimensions]uint16{85, 90, 88, 92})
	c.Assert(results[0].Overall(), qt.Equals, uint16(89))
	c.Assert(results[1].WorkID, qt.Equals, w3)
	c.Assert(results[1].Title, qt.Equals, "Three")
	c.Assert(results[1].Director, qt.Equals, "Director of Three")
	c.Assert(results[2].Averages, qt.Equals, [types.Dimensions]uint16{20, 21, 22, 23})

	r, err := e.ledger.ResultAt(1)
	c.Assert(err, qt.IsNil)
	c.Assert(r.WorkID, qt.Equals, w3)
	_, err = e.ledger.ResultAt(3)
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}

func TestEventsFeed(t *testing.T) {
	c := qt.New(t)
	e := newTestEnv(c, fhe.BackendMock)
	ch, cancel := e.ledger.Subscribe(10)
	defer cancel()

	work := e.addWork(c, "Film")
	reviewer := e.addReviewer(c)
	e.submit(c, reviewer, work, [4]uint16{1, 2, 3, 4})

	expected := []types.EventKind{types.EventWorkAdded, types.EventReviewerAdded, types.EventScoreSubmitted}
	for i, kind := range expected {
		ev := <-ch
		c.Assert(ev.Kind, qt.Equals, kind)
		c.Assert(ev.Seq, qt.Equals, uint64(i))
	}
	// failed operations emit nothing
	c.Assert(e.ledger.Aggregate(reviewer.Address(), work), qt.IsNotNil)
	select {
	case ev := <-ch:
		c.Fatalf("unexpected event %s", ev)
	default:
	}

	events, err := e.ledger.Events(1, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(events, qt.HasLen, 1)
	c.Assert(events[0].Kind, qt.Equals, types.EventReviewerAdded)
	c.Assert(events[0].Principal, qt.Equals, reviewer.Address())

	info, err := e.ledger.Info()
	c.Assert(err, qt.IsNil)
	c.Assert(info.Works, qt.Equals, uint64(1))
	c.Assert(info.Reviewers, qt.Equals, uint64(1))
	c.Assert(info.Events, qt.Equals, uint64(3))
	c.Assert(info.Owner, qt.Equals, e.ownerAddr())
	c.Assert(info.Backend.Backend, qt.Equals, fhe.BackendMock)
}
