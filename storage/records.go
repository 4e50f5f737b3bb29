package storage

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-jury/types"
	"github.com/vocdoni/confidential-jury/util"
)

// Counter names kept under the metadata prefix.
const (
	CounterWorks     = "works"
	CounterReviewers = "reviewers"
	CounterResults   = "results"
	CounterEvents    = "events"
)

var (
	ownerKey   = []byte("owner")
	addressKey = []byte("address")
)

func counterKey(name string) []byte {
	return []byte("counter/" + name)
}

func workReviewerKey(workID uint64, addr common.Address) []byte {
	return append(uint64Key(workID), addr.Bytes()...)
}

// Owner returns the ledger owner, or ErrNotFound before initialization.
func (tx *Tx) Owner() (common.Address, error) {
	data, err := tx.get(metadataPrefix, ownerKey)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(data), nil
}

// SetOwner stores the ledger owner.
func (tx *Tx) SetOwner(owner common.Address) error {
	return tx.set(metadataPrefix, ownerKey, owner.Bytes())
}

// Address returns the ledger address fixed at initialization, or ErrNotFound.
func (tx *Tx) Address() (common.Address, error) {
	data, err := tx.get(metadataPrefix, addressKey)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(data), nil
}

// SetAddress stores the ledger address.
func (tx *Tx) SetAddress(addr common.Address) error {
	return tx.set(metadataPrefix, addressKey, addr.Bytes())
}

// Counter returns the value of a named counter, zero if never set.
func (tx *Tx) Counter(name string) (uint64, error) {
	data, err := tx.get(metadataPrefix, counterKey(name))
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return util.BytesToUint64(data), nil
}

// NextCounter returns the current value of a named counter and increments
// it.
func (tx *Tx) NextCounter(name string) (uint64, error) {
	n, err := tx.Counter(name)
	if err != nil {
		return 0, err
	}
	return n, tx.set(metadataPrefix, counterKey(name), uint64Key(n+1))
}

// Reviewer returns the registry entry of addr, active or not.
func (tx *Tx) Reviewer(addr common.Address) (*types.Reviewer, error) {
	r := &types.Reviewer{}
	if err := tx.getArtifact(reviewerPrefix, addr.Bytes(), r); err != nil {
		return nil, err
	}
	return r, nil
}

// SetReviewer stores the registry entry and indexes it by its insertion
// index.
func (tx *Tx) SetReviewer(r *types.Reviewer) error {
	if err := tx.setArtifact(reviewerPrefix, r.Address.Bytes(), r); err != nil {
		return err
	}
	return tx.set(reviewerIdxPrefix, uint64Key(r.Index), r.Address.Bytes())
}

// ReviewerAt returns the reviewer that was given insertion index i. The
// entry may have been removed or re-indexed since.
func (tx *Tx) ReviewerAt(i uint64) (*types.Reviewer, error) {
	data, err := tx.get(reviewerIdxPrefix, uint64Key(i))
	if err != nil {
		return nil, err
	}
	return tx.Reviewer(common.BytesToAddress(data))
}

// Work returns the work with the given id.
func (tx *Tx) Work(id uint64) (*types.Work, error) {
	w := &types.Work{}
	if err := tx.getArtifact(workPrefix, uint64Key(id), w); err != nil {
		return nil, err
	}
	return w, nil
}

// SetWork stores a work.
func (tx *Tx) SetWork(w *types.Work) error {
	return tx.setArtifact(workPrefix, uint64Key(w.ID), w)
}

// Score returns the score of reviewer for the work.
func (tx *Tx) Score(workID uint64, reviewer common.Address) (*types.Score, error) {
	s := &types.Score{}
	if err := tx.getArtifact(scorePrefix, workReviewerKey(workID, reviewer), s); err != nil {
		return nil, err
	}
	return s, nil
}

// HasScore reports whether reviewer already scored the work.
func (tx *Tx) HasScore(workID uint64, reviewer common.Address) (bool, error) {
	return tx.has(scorePrefix, workReviewerKey(workID, reviewer))
}

// ScoreCount returns the number of scores submitted for the work.
func (tx *Tx) ScoreCount(workID uint64) (uint64, error) {
	data, err := tx.get(scoreOrderPrefix, uint64Key(workID))
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return util.BytesToUint64(data), nil
}

// AddScore stores a new score and appends it to the submission order of
// its work.
func (tx *Tx) AddScore(s *types.Score) error {
	n, err := tx.ScoreCount(s.WorkID)
	if err != nil {
		return err
	}
	if err := tx.setArtifact(scorePrefix, workReviewerKey(s.WorkID, s.Reviewer), s); err != nil {
		return err
	}
	if err := tx.set(scoreOrderPrefix, append(uint64Key(s.WorkID), uint64Key(n)...), s.Reviewer.Bytes()); err != nil {
		return err
	}
	return tx.set(scoreOrderPrefix, uint64Key(s.WorkID), uint64Key(n+1))
}

// ScoreAt returns the i-th score submitted for the work.
func (tx *Tx) ScoreAt(workID, i uint64) (*types.Score, error) {
	data, err := tx.get(scoreOrderPrefix, append(uint64Key(workID), uint64Key(i)...))
	if err != nil {
		return nil, err
	}
	return tx.Score(workID, common.BytesToAddress(data))
}

// Aggregate returns the aggregated score of the work.
func (tx *Tx) Aggregate(workID uint64) (*types.AggregatedScore, error) {
	a := &types.AggregatedScore{}
	if err := tx.getArtifact(aggregatePrefix, uint64Key(workID), a); err != nil {
		return nil, err
	}
	return a, nil
}

// SetAggregate stores the aggregated score of a work.
func (tx *Tx) SetAggregate(a *types.AggregatedScore) error {
	return tx.setArtifact(aggregatePrefix, uint64Key(a.WorkID), a)
}

// Threshold returns the qualification threshold.
func (tx *Tx) Threshold() (*types.Threshold, error) {
	t := &types.Threshold{}
	if err := tx.getArtifact(thresholdPrefix, nil, t); err != nil {
		return nil, err
	}
	return t, nil
}

// SetThreshold overwrites the qualification threshold.
func (tx *Tx) SetThreshold(t *types.Threshold) error {
	return tx.setArtifact(thresholdPrefix, nil, t)
}

// Grant returns the disclosure grant of principal for the work.
func (tx *Tx) Grant(workID uint64, principal common.Address) (*types.DisclosureGrant, error) {
	g := &types.DisclosureGrant{}
	if err := tx.getArtifact(grantPrefix, workReviewerKey(workID, principal), g); err != nil {
		return nil, err
	}
	return g, nil
}

// SetGrant stores a disclosure grant.
func (tx *Tx) SetGrant(g *types.DisclosureGrant) error {
	return tx.setArtifact(grantPrefix, workReviewerKey(g.WorkID, g.Principal), g)
}

// Grants returns the committed disclosure grants ordered by work.
func (tx *Tx) Grants() ([]*types.DisclosureGrant, error) {
	var grants []*types.DisclosureGrant
	var derr error
	err := tx.iterate(grantPrefix, func(_, v []byte) bool {
		g := &types.DisclosureGrant{}
		if derr = decodeArtifact(v, g); derr != nil {
			return false
		}
		grants = append(grants, g)
		return true
	})
	if err != nil {
		return nil, err
	}
	return grants, derr
}

// IsPublished reports whether a result has been published for the work.
func (tx *Tx) IsPublished(workID uint64) (bool, error) {
	return tx.has(publishedPrefix, uint64Key(workID))
}

// AppendResult appends a result to the publication list and returns its
// index.
func (tx *Tx) AppendResult(r *types.PublicResult) (uint64, error) {
	idx, err := tx.NextCounter(CounterResults)
	if err != nil {
		return 0, err
	}
	if err := tx.setArtifact(resultPrefix, uint64Key(idx), r); err != nil {
		return 0, err
	}
	return idx, tx.set(publishedPrefix, uint64Key(r.WorkID), uint64Key(idx))
}

// ResultAt returns the i-th published result.
func (tx *Tx) ResultAt(i uint64) (*types.PublicResult, error) {
	r := &types.PublicResult{}
	if err := tx.getArtifact(resultPrefix, uint64Key(i), r); err != nil {
		return nil, err
	}
	return r, nil
}

// AppendEvent assigns the next sequence number to e and stores it.
func (tx *Tx) AppendEvent(e *types.Event) error {
	seq, err := tx.NextCounter(CounterEvents)
	if err != nil {
		return err
	}
	e.Seq = seq
	return tx.setArtifact(eventPrefix, uint64Key(seq), e)
}

// Events returns up to limit committed events starting at sequence number
// from. A zero limit means no limit.
func (tx *Tx) Events(from uint64, limit int) ([]*types.Event, error) {
	total, err := tx.Counter(CounterEvents)
	if err != nil {
		return nil, err
	}
	events := []*types.Event{}
	for seq := from; seq < total; seq++ {
		if limit > 0 && len(events) >= limit {
			break
		}
		e := &types.Event{}
		if err := tx.getArtifact(eventPrefix, uint64Key(seq), e); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}
