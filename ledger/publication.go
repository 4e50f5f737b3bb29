package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-jury/log"
	"github.com/vocdoni/confidential-jury/storage"
	"github.com/vocdoni/confidential-jury/types"
)

// Publish appends the plaintext averages of the listed works to the public
// results. The five slices are parallel. A work is published at most once
// and the whole call is atomic.
//
// The averages are taken as given: nothing checks that they are the
// decryption of the aggregate divided by the reviewer count. Readers of the
// results trust the owner for that.
func (l *Ledger) Publish(caller common.Address, workIDs []uint64, avg1, avg2, avg3, avg4 []uint16) error {
	return l.update(func(t *txn) error {
		if err := t.requireOwner(caller); err != nil {
			return err
		}
		n := len(workIDs)
		if n == 0 || len(avg1) != n || len(avg2) != n || len(avg3) != n || len(avg4) != n {
			return fmt.Errorf("%w: %d works, averages %d/%d/%d/%d",
				ErrShape, n, len(avg1), len(avg2), len(avg3), len(avg4))
		}
		seen := make(map[uint64]bool, n)
		results := make([]*types.PublicResult, n)
		for i, id := range workIDs {
			w, err := t.work(id)
			if err != nil {
				return err
			}
			published, err := t.IsPublished(id)
			if err != nil {
				return err
			}
			if published || seen[id] {
				return fmt.Errorf("%w: work %d already published", ErrDuplicate, id)
			}
			seen[id] = true
			averages := [types.Dimensions]uint16{avg1[i], avg2[i], avg3[i], avg4[i]}
			for d, a := range averages {
				if a > types.MaxDimensionScore {
					return fmt.Errorf("%w: %s average %d of work %d above %d",
						ErrInvalidArgument, types.DimensionNames[d], a, id, types.MaxDimensionScore)
				}
			}
			results[i] = &types.PublicResult{
				WorkID:      id,
				Title:       w.Title,
				Director:    w.Director,
				Averages:    averages,
				PublishedAt: t.now,
			}
		}
		for _, r := range results {
			if _, err := t.AppendResult(r); err != nil {
				return err
			}
		}
		t.emit(&types.Event{Kind: types.EventResultsPublished, WorkIDs: append([]uint64{}, workIDs...)})
		log.Infow("results published", "works", workIDs)
		return nil
	})
}

// ResultCount returns the number of published results.
func (l *Ledger) ResultCount() (uint64, error) {
	var n uint64
	err := l.view(func(t *txn) error {
		var err error
		n, err = t.Counter(storage.CounterResults)
		return err
	})
	return n, err
}

// ResultAt returns the result published at position i.
func (l *Ledger) ResultAt(i uint64) (*types.PublicResult, error) {
	var r *types.PublicResult
	err := l.view(func(t *txn) error {
		var err error
		r, err = t.ResultAt(i)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: no result at index %d", ErrNotFound, i)
		}
		return err
	})
	return r, err
}

// IsPublished reports whether the work has a published result.
func (l *Ledger) IsPublished(workID uint64) (bool, error) {
	var published bool
	err := l.view(func(t *txn) error {
		var err error
		published, err = t.IsPublished(workID)
		return err
	})
	return published, err
}

// Results returns the published results in publication order.
func (l *Ledger) Results() ([]*types.PublicResult, error) {
	results := []*types.PublicResult{}
	err := l.view(func(t *txn) error {
		n, err := t.Counter(storage.CounterResults)
		if err != nil {
			return err
		}
		for i := uint64(0); i < n; i++ {
			r, err := t.ResultAt(i)
			if err != nil {
				return err
			}
			results = append(results, r)
		}
		return nil
	})
	return results, err
}
