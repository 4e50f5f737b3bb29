package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-jury/log"
	"github.com/vocdoni/confidential-jury/storage"
	"github.com/vocdoni/confidential-jury/types"
)

// SetThreshold stores the encrypted qualification threshold, replacing any
// previous one. The proof must bind the handle to the ledger and the caller.
func (l *Ledger) SetThreshold(caller common.Address, h types.Handle, proof []byte) error {
	return l.update(func(t *txn) error {
		if err := t.requireOwner(caller); err != nil {
			return err
		}
		if h.IsZero() {
			return fmt.Errorf("%w: empty threshold handle", ErrProofVerification)
		}
		if err := l.backend.VerifyInputs(l.inputContext(caller), []types.Handle{h}, proof); err != nil {
			return fmt.Errorf("%w: %v", ErrProofVerification, err)
		}
		t.allow([]types.Handle{h}, l.address)
		if err := t.SetThreshold(&types.Threshold{Value: h, Configured: true, SetAt: t.now}); err != nil {
			return err
		}
		t.emit(&types.Event{Kind: types.EventThresholdSet, Handle: h})
		log.Infow("threshold set", "handle", h.String())
		return nil
	})
}

// Threshold returns the qualification threshold. Configured is false until
// one is set.
func (l *Ledger) Threshold() (*types.Threshold, error) {
	th := &types.Threshold{}
	err := l.view(func(t *txn) error {
		stored, err := t.Threshold()
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		th = stored
		return nil
	})
	return th, err
}

// CheckQualification compares every dimension sum of an aggregated work with
// the threshold and returns the encrypted booleans sum >= threshold. The
// results can be decrypted by the caller. Qualification does not gate any
// other operation.
func (l *Ledger) CheckQualification(caller common.Address, workID uint64) ([types.Dimensions]types.Handle, error) {
	var results [types.Dimensions]types.Handle
	l.mu.Lock()
	defer l.mu.Unlock()
	var agg *types.AggregatedScore
	var th *types.Threshold
	err := l.view(func(t *txn) error {
		if err := t.requireOwner(caller); err != nil {
			return err
		}
		var err error
		if agg, err = t.aggregated(workID); err != nil {
			return err
		}
		th, err = t.Threshold()
		if errors.Is(err, storage.ErrNotFound) || (err == nil && !th.Configured) {
			return fmt.Errorf("%w: threshold not configured", ErrState)
		}
		return err
	})
	if err != nil {
		return results, err
	}
	for d, sum := range agg.Sums {
		h, err := l.backend.GE(sum, th.Value)
		if err != nil {
			return results, fmt.Errorf("cannot compare dimension %d: %w", d, err)
		}
		results[d] = h
	}
	if err := l.allow(results[:], l.address, caller); err != nil {
		return results, err
	}
	log.Debugw("qualification checked", "work", workID)
	return results, nil
}
