package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-jury/log"
	"github.com/vocdoni/confidential-jury/storage"
	"github.com/vocdoni/confidential-jury/types"
)

// SubmitScore stores the encrypted score of caller for a work. The input
// proof must bind the four handles to the ledger and to the caller. A
// reviewer scores each work at most once.
func (l *Ledger) SubmitScore(caller common.Address, in *types.ScoreInput) error {
	if in == nil {
		return fmt.Errorf("%w: empty score", ErrInvalidArgument)
	}
	return l.update(func(t *txn) error {
		if _, err := t.work(in.WorkID); err != nil {
			return err
		}
		r, err := t.Reviewer(caller)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if r == nil || !r.Active {
			return fmt.Errorf("%w: %s is not a reviewer", ErrUnauthorized, caller.Hex())
		}
		scored, err := t.HasScore(in.WorkID, caller)
		if err != nil {
			return err
		}
		if scored {
			return fmt.Errorf("%w: already scored work %d", ErrDuplicate, in.WorkID)
		}
		for _, h := range in.Dimensions {
			if h.IsZero() {
				return fmt.Errorf("%w: empty dimension handle", ErrProofVerification)
			}
		}
		if err := l.backend.VerifyInputs(l.inputContext(caller), in.Dimensions[:], in.InputProof); err != nil {
			return fmt.Errorf("%w: %v", ErrProofVerification, err)
		}
		t.allow(in.Dimensions[:], l.address)
		if err := t.AddScore(&types.Score{
			WorkID:      in.WorkID,
			Reviewer:    caller,
			Dimensions:  in.Dimensions,
			CommentHash: in.CommentHash,
			SubmittedAt: t.now,
		}); err != nil {
			return err
		}
		t.emit(&types.Event{Kind: types.EventScoreSubmitted, WorkIDs: []uint64{in.WorkID}, Principal: caller})
		log.Infow("score submitted", "work", in.WorkID, "reviewer", caller.Hex())
		return nil
	})
}

// HasScored reports whether addr submitted a score for the work.
func (l *Ledger) HasScored(workID uint64, addr common.Address) (bool, error) {
	var scored bool
	err := l.view(func(t *txn) error {
		var err error
		scored, err = t.HasScore(workID, addr)
		return err
	})
	return scored, err
}

// ScoreCount returns the number of scores submitted for the work.
func (l *Ledger) ScoreCount(workID uint64) (uint64, error) {
	var n uint64
	err := l.view(func(t *txn) error {
		if _, err := t.work(workID); err != nil {
			return err
		}
		var err error
		n, err = t.ScoreCount(workID)
		return err
	})
	return n, err
}

// Score returns the stored encrypted score of addr for the work.
func (l *Ledger) Score(workID uint64, addr common.Address) (*types.Score, error) {
	var s *types.Score
	err := l.view(func(t *txn) error {
		var err error
		s, err = t.Score(workID, addr)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: no score of %s for work %d", ErrNotFound, addr.Hex(), workID)
		}
		return err
	})
	return s, err
}

// Scores returns the scores of a work in submission order.
func (l *Ledger) Scores(workID uint64) ([]*types.Score, error) {
	scores := []*types.Score{}
	err := l.view(func(t *txn) error {
		if _, err := t.work(workID); err != nil {
			return err
		}
		var err error
		scores, err = scoresOf(t, workID)
		return err
	})
	return scores, err
}

func scoresOf(t *txn, workID uint64) ([]*types.Score, error) {
	n, err := t.ScoreCount(workID)
	if err != nil {
		return nil, err
	}
	scores := make([]*types.Score, 0, n)
	for i := uint64(0); i < n; i++ {
		s, err := t.ScoreAt(workID, i)
		if err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	return scores, nil
}
