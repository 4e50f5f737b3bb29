package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/confidential-jury/types"
	"go.vocdoni.io/dvote/db/metadb"
)

func TestUpdateAtomicity(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	owner := common.HexToAddress("0x0a")
	c.Assert(stg.Update(func(tx *Tx) error {
		if err := tx.SetOwner(owner); err != nil {
			return err
		}
		// pending writes are visible inside the transaction
		got, err := tx.Owner()
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.Equals, owner)
		return nil
	}), qt.IsNil)

	failure := errors.New("boom")
	err := stg.Update(func(tx *Tx) error {
		if err := tx.SetOwner(common.HexToAddress("0x0b")); err != nil {
			return err
		}
		if _, err := tx.NextCounter(CounterWorks); err != nil {
			return err
		}
		return failure
	})
	c.Assert(err, qt.Equals, failure)

	c.Assert(stg.View(func(tx *Tx) error {
		got, err := tx.Owner()
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.Equals, owner)
		n, err := tx.Counter(CounterWorks)
		c.Assert(err, qt.IsNil)
		c.Assert(n, qt.Equals, uint64(0))
		// views cannot write
		c.Assert(tx.SetOwner(owner), qt.ErrorIs, errReadOnlyTx)
		return nil
	}), qt.IsNil)
}

func TestRecords(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))
	alice := common.HexToAddress("0x01")
	bob := common.HexToAddress("0x02")
	now := time.Unix(1_700_000_000, 0)

	c.Assert(stg.Update(func(tx *Tx) error {
		_, err := tx.Address()
		c.Assert(err, qt.ErrorIs, ErrNotFound)
		c.Assert(tx.SetAddress(bob), qt.IsNil)
		id, err := tx.NextCounter(CounterWorks)
		c.Assert(err, qt.IsNil)
		c.Assert(tx.SetWork(&types.Work{ID: id, Title: "Film", Exists: true, CreatedAt: now}), qt.IsNil)
		c.Assert(tx.SetReviewer(&types.Reviewer{Address: alice, Active: true, Index: 0}), qt.IsNil)
		c.Assert(tx.SetReviewer(&types.Reviewer{Address: bob, Active: true, Index: 1}), qt.IsNil)
		c.Assert(tx.AddScore(&types.Score{WorkID: id, Reviewer: bob}), qt.IsNil)
		c.Assert(tx.AddScore(&types.Score{WorkID: id, Reviewer: alice}), qt.IsNil)
		return nil
	}), qt.IsNil)

	c.Assert(stg.View(func(tx *Tx) error {
		addr, err := tx.Address()
		c.Assert(err, qt.IsNil)
		c.Assert(addr, qt.Equals, bob)
		w, err := tx.Work(0)
		c.Assert(err, qt.IsNil)
		c.Assert(w.Title, qt.Equals, "Film")
		c.Assert(w.CreatedAt.Equal(now), qt.IsTrue)
		_, err = tx.Work(1)
		c.Assert(err, qt.ErrorIs, ErrNotFound)

		r, err := tx.ReviewerAt(1)
		c.Assert(err, qt.IsNil)
		c.Assert(r.Address, qt.Equals, bob)

		n, err := tx.ScoreCount(0)
		c.Assert(err, qt.IsNil)
		c.Assert(n, qt.Equals, uint64(2))
		first, err := tx.ScoreAt(0, 0)
		c.Assert(err, qt.IsNil)
		c.Assert(first.Reviewer, qt.Equals, bob)
		second, err := tx.ScoreAt(0, 1)
		c.Assert(err, qt.IsNil)
		c.Assert(second.Reviewer, qt.Equals, alice)

		has, err := tx.HasScore(0, alice)
		c.Assert(err, qt.IsNil)
		c.Assert(has, qt.IsTrue)
		has, err = tx.HasScore(1, alice)
		c.Assert(err, qt.IsNil)
		c.Assert(has, qt.IsFalse)
		return nil
	}), qt.IsNil)
}

func TestResultsAndEvents(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	c.Assert(stg.Update(func(tx *Tx) error {
		for _, id := range []uint64{3, 1} {
			_, err := tx.AppendResult(&types.PublicResult{WorkID: id, Averages: [4]uint16{1, 2, 3, 4}})
			c.Assert(err, qt.IsNil)
			c.Assert(tx.AppendEvent(&types.Event{Kind: types.EventResultsPublished, WorkIDs: []uint64{id}}), qt.IsNil)
		}
		c.Assert(tx.SetGrant(&types.DisclosureGrant{WorkID: 1, Principal: common.HexToAddress("0x01")}), qt.IsNil)
		return nil
	}), qt.IsNil)

	c.Assert(stg.View(func(tx *Tx) error {
		n, err := tx.Counter(CounterResults)
		c.Assert(err, qt.IsNil)
		c.Assert(n, qt.Equals, uint64(2))
		r, err := tx.ResultAt(0)
		c.Assert(err, qt.IsNil)
		c.Assert(r.WorkID, qt.Equals, uint64(3))
		pub, err := tx.IsPublished(1)
		c.Assert(err, qt.IsNil)
		c.Assert(pub, qt.IsTrue)
		pub, err = tx.IsPublished(2)
		c.Assert(err, qt.IsNil)
		c.Assert(pub, qt.IsFalse)

		events, err := tx.Events(1, 0)
		c.Assert(err, qt.IsNil)
		c.Assert(events, qt.HasLen, 1)
		c.Assert(events[0].Seq, qt.Equals, uint64(1))
		c.Assert(events[0].WorkIDs, qt.DeepEquals, []uint64{1})

		grants, err := tx.Grants()
		c.Assert(err, qt.IsNil)
		c.Assert(grants, qt.HasLen, 1)
		c.Assert(grants[0].WorkID, qt.Equals, uint64(1))
		return nil
	}), qt.IsNil)
}
