package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-jury/log"
	"github.com/vocdoni/confidential-jury/storage"
	"github.com/vocdoni/confidential-jury/types"
)

// Aggregate computes the encrypted per dimension sums of a work. It can
// only run once per work.
func (l *Ledger) Aggregate(caller common.Address, workID uint64) error {
	return l.BatchAggregate(caller, []uint64{workID})
}

// BatchAggregate aggregates every work or none of them. All the
// preconditions are checked before any homomorphic operation runs.
func (l *Ledger) BatchAggregate(caller common.Address, workIDs []uint64) error {
	return l.update(func(t *txn) error {
		if err := t.requireOwner(caller); err != nil {
			return err
		}
		if len(workIDs) == 0 {
			return fmt.Errorf("%w: no works", ErrInvalidArgument)
		}
		seen := make(map[uint64]bool, len(workIDs))
		pending := make([][]*types.Score, len(workIDs))
		for i, id := range workIDs {
			if _, err := t.work(id); err != nil {
				return err
			}
			agg, err := t.Aggregate(id)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			if seen[id] || (agg != nil && agg.Aggregated) {
				return fmt.Errorf("%w: work %d already aggregated", ErrState, id)
			}
			seen[id] = true
			scores, err := scoresOf(t, id)
			if err != nil {
				return err
			}
			if len(scores) == 0 {
				return fmt.Errorf("%w: no scores submitted for work %d", ErrState, id)
			}
			pending[i] = scores
		}
		for i, id := range workIDs {
			sums, err := l.sum(pending[i])
			if err != nil {
				return err
			}
			t.allow(sums[:], l.address)
			count := uint32(len(pending[i]))
			if err := t.SetAggregate(&types.AggregatedScore{
				WorkID:        id,
				Sums:          sums,
				ReviewerCount: count,
				Aggregated:    true,
				AggregatedAt:  t.now,
			}); err != nil {
				return err
			}
			t.emit(&types.Event{Kind: types.EventScoresAggregated, WorkIDs: []uint64{id}, Count: count})
			log.Infow("scores aggregated", "work", id, "count", count)
		}
		return nil
	})
}

// sum adds the scores dimension by dimension, in submission order.
func (l *Ledger) sum(scores []*types.Score) ([types.Dimensions]types.Handle, error) {
	sums := scores[0].Dimensions
	for _, s := range scores[1:] {
		for d := range sums {
			h, err := l.backend.Add(sums[d], s.Dimensions[d])
			if err != nil {
				return sums, fmt.Errorf("cannot add dimension %d: %w", d, err)
			}
			sums[d] = h
		}
	}
	return sums, nil
}

// AggregatedScore returns the aggregate of a work. Before aggregation the
// record has Aggregated set to false and no sums.
func (l *Ledger) AggregatedScore(workID uint64) (*types.AggregatedScore, error) {
	var agg *types.AggregatedScore
	err := l.view(func(t *txn) error {
		if _, err := t.work(workID); err != nil {
			return err
		}
		var err error
		agg, err = t.Aggregate(workID)
		if errors.Is(err, storage.ErrNotFound) {
			agg = &types.AggregatedScore{WorkID: workID}
			return nil
		}
		return err
	})
	return agg, err
}

// Aggregations returns the aggregates of every aggregated work.
func (l *Ledger) Aggregations() ([]*types.AggregatedScore, error) {
	aggs := []*types.AggregatedScore{}
	err := l.view(func(t *txn) error {
		n, err := t.Counter(storage.CounterWorks)
		if err != nil {
			return err
		}
		for id := uint64(0); id < n; id++ {
			agg, err := t.Aggregate(id)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			aggs = append(aggs, agg)
		}
		return nil
	})
	return aggs, err
}

func (t *txn) aggregated(workID uint64) (*types.AggregatedScore, error) {
	if _, err := t.work(workID); err != nil {
		return nil, err
	}
	agg, err := t.Aggregate(workID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && !agg.Aggregated) {
		return nil, fmt.Errorf("%w: work %d not aggregated yet", ErrState, workID)
	}
	return agg, err
}
