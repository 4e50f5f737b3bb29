package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-jury/log"
	"github.com/vocdoni/confidential-jury/storage"
	"github.com/vocdoni/confidential-jury/types"
)

// Owner returns the ledger owner.
func (l *Ledger) Owner() (common.Address, error) {
	var owner common.Address
	err := l.view(func(t *txn) error {
		var err error
		owner, err = t.Owner()
		return err
	})
	return owner, err
}

// TransferOwnership hands the ledger over to newOwner.
func (l *Ledger) TransferOwnership(caller, newOwner common.Address) error {
	return l.update(func(t *txn) error {
		if err := t.requireOwner(caller); err != nil {
			return err
		}
		if newOwner == (common.Address{}) {
			return fmt.Errorf("%w: new owner is the zero address", ErrInvalidArgument)
		}
		if err := t.SetOwner(newOwner); err != nil {
			return err
		}
		t.emit(&types.Event{Kind: types.EventOwnershipTransferred, Principal: newOwner, Previous: caller})
		log.Infow("ownership transferred", "from", caller.Hex(), "to", newOwner.Hex())
		return nil
	})
}

// AddReviewer registers addr as an active reviewer.
func (l *Ledger) AddReviewer(caller, addr common.Address) error {
	return l.BatchAddReviewers(caller, []common.Address{addr})
}

// BatchAddReviewers registers every address or none of them. A removed
// reviewer can be added again and is placed at the end of the order.
func (l *Ledger) BatchAddReviewers(caller common.Address, addrs []common.Address) error {
	return l.update(func(t *txn) error {
		if err := t.requireOwner(caller); err != nil {
			return err
		}
		if len(addrs) == 0 {
			return fmt.Errorf("%w: no reviewers", ErrInvalidArgument)
		}
		seen := make(map[common.Address]bool, len(addrs))
		for _, addr := range addrs {
			if addr == (common.Address{}) {
				return fmt.Errorf("%w: reviewer is the zero address", ErrInvalidArgument)
			}
			if seen[addr] {
				return fmt.Errorf("%w: reviewer already exists: %s", ErrDuplicate, addr.Hex())
			}
			seen[addr] = true
			r, err := t.Reviewer(addr)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			if r != nil && r.Active {
				return fmt.Errorf("%w: reviewer already exists: %s", ErrDuplicate, addr.Hex())
			}
			idx, err := t.NextCounter(storage.CounterReviewers)
			if err != nil {
				return err
			}
			if err := t.SetReviewer(&types.Reviewer{
				Address: addr,
				Active:  true,
				Index:   idx,
				AddedAt: t.now,
			}); err != nil {
				return err
			}
			t.emit(&types.Event{Kind: types.EventReviewerAdded, Principal: addr})
		}
		log.Infow("reviewers added", "count", len(addrs))
		return nil
	})
}

// RemoveReviewer deactivates a reviewer. Scores already submitted stay.
func (l *Ledger) RemoveReviewer(caller, addr common.Address) error {
	return l.update(func(t *txn) error {
		if err := t.requireOwner(caller); err != nil {
			return err
		}
		r, err := t.Reviewer(addr)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && !r.Active) {
			return fmt.Errorf("%w: reviewer %s", ErrNotFound, addr.Hex())
		}
		if err != nil {
			return err
		}
		r.Active = false
		if err := t.SetReviewer(r); err != nil {
			return err
		}
		t.emit(&types.Event{Kind: types.EventReviewerRemoved, Principal: addr})
		log.Infow("reviewer removed", "address", addr.Hex())
		return nil
	})
}

// IsReviewer reports whether addr is an active reviewer.
func (l *Ledger) IsReviewer(addr common.Address) (bool, error) {
	var active bool
	err := l.view(func(t *txn) error {
		r, err := t.Reviewer(addr)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		active = r.Active
		return nil
	})
	return active, err
}

// Reviewers returns the active reviewers in insertion order.
func (l *Ledger) Reviewers() ([]*types.Reviewer, error) {
	var reviewers []*types.Reviewer
	err := l.view(func(t *txn) error {
		var err error
		reviewers, err = activeReviewers(t.Tx)
		return err
	})
	return reviewers, err
}

// ReviewerCount returns the number of active reviewers.
func (l *Ledger) ReviewerCount() (uint64, error) {
	reviewers, err := l.Reviewers()
	return uint64(len(reviewers)), err
}

func activeReviewers(tx *storage.Tx) ([]*types.Reviewer, error) {
	n, err := tx.Counter(storage.CounterReviewers)
	if err != nil {
		return nil, err
	}
	reviewers := []*types.Reviewer{}
	for i := uint64(0); i < n; i++ {
		r, err := tx.ReviewerAt(i)
		if err != nil {
			return nil, err
		}
		// stale index entries point to reviewers re-added later
		if r.Active && r.Index == i {
			reviewers = append(reviewers, r)
		}
	}
	return reviewers, nil
}

// AddWork registers a work and returns its id.
func (l *Ledger) AddWork(caller common.Address, in *types.WorkInput) (uint64, error) {
	ids, err := l.BatchAddWorks(caller, []*types.WorkInput{in})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// BatchAddWorks registers every work or none of them and returns the
// assigned ids.
func (l *Ledger) BatchAddWorks(caller common.Address, inputs []*types.WorkInput) ([]uint64, error) {
	var ids []uint64
	err := l.update(func(t *txn) error {
		if err := t.requireOwner(caller); err != nil {
			return err
		}
		if len(inputs) == 0 {
			return fmt.Errorf("%w: no works", ErrInvalidArgument)
		}
		ids = make([]uint64, 0, len(inputs))
		for _, in := range inputs {
			if in == nil || strings.TrimSpace(in.Title) == "" {
				return fmt.Errorf("%w: work title is empty", ErrInvalidArgument)
			}
			id, err := t.NextCounter(storage.CounterWorks)
			if err != nil {
				return err
			}
			w := &types.Work{
				ID:             id,
				Title:          in.Title,
				Director:       in.Director,
				Duration:       in.Duration,
				SubmissionHash: in.SubmissionHash,
				Metadata:       in.Metadata,
				Exists:         true,
				CreatedAt:      t.now,
			}
			if err := t.SetWork(w); err != nil {
				return err
			}
			t.emit(&types.Event{Kind: types.EventWorkAdded, WorkIDs: []uint64{id}, Title: w.Title, Director: w.Director})
			ids = append(ids, id)
		}
		log.Infow("works added", "ids", ids)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Work returns a registered work.
func (l *Ledger) Work(id uint64) (*types.Work, error) {
	var w *types.Work
	err := l.view(func(t *txn) error {
		var err error
		w, err = t.work(id)
		return err
	})
	return w, err
}

// TotalWorks returns the number of registered works.
func (l *Ledger) TotalWorks() (uint64, error) {
	var n uint64
	err := l.view(func(t *txn) error {
		var err error
		n, err = t.Counter(storage.CounterWorks)
		return err
	})
	return n, err
}

// Works returns every registered work ordered by id.
func (l *Ledger) Works() ([]*types.Work, error) {
	works := []*types.Work{}
	err := l.view(func(t *txn) error {
		n, err := t.Counter(storage.CounterWorks)
		if err != nil {
			return err
		}
		for id := uint64(0); id < n; id++ {
			w, err := t.work(id)
			if err != nil {
				return err
			}
			works = append(works, w)
		}
		return nil
	})
	return works, err
}
