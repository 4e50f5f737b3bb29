package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-jury/log"
	"github.com/vocdoni/confidential-jury/storage"
	"github.com/vocdoni/confidential-jury/types"
)

// AllowDisclosure lets the owner decrypt the aggregate of a work.
func (l *Ledger) AllowDisclosure(caller common.Address, workID uint64) error {
	return l.BatchAllowDisclosureTo(caller, []uint64{workID}, caller)
}

// BatchAllowDisclosure lets the owner decrypt the aggregates of every work,
// or of none of them.
func (l *Ledger) BatchAllowDisclosure(caller common.Address, workIDs []uint64) error {
	return l.BatchAllowDisclosureTo(caller, workIDs, caller)
}

// AllowDisclosureTo lets principal decrypt the aggregate of a work.
func (l *Ledger) AllowDisclosureTo(caller common.Address, workID uint64, principal common.Address) error {
	return l.BatchAllowDisclosureTo(caller, []uint64{workID}, principal)
}

// BatchAllowDisclosureTo grants principal access to the sums of every
// aggregated work listed. Granting twice is not an error.
func (l *Ledger) BatchAllowDisclosureTo(caller common.Address, workIDs []uint64, principal common.Address) error {
	return l.update(func(t *txn) error {
		if err := t.requireOwner(caller); err != nil {
			return err
		}
		if principal == (common.Address{}) {
			return fmt.Errorf("%w: principal is the zero address", ErrInvalidArgument)
		}
		if len(workIDs) == 0 {
			return fmt.Errorf("%w: no works", ErrInvalidArgument)
		}
		aggs := make([]*types.AggregatedScore, len(workIDs))
		for i, id := range workIDs {
			agg, err := t.aggregated(id)
			if err != nil {
				return err
			}
			aggs[i] = agg
		}
		for _, agg := range aggs {
			t.allow(agg.Sums[:], principal)
			_, err := t.Grant(agg.WorkID, principal)
			if errors.Is(err, storage.ErrNotFound) {
				err = t.SetGrant(&types.DisclosureGrant{WorkID: agg.WorkID, Principal: principal, GrantedAt: t.now})
			}
			if err != nil {
				return err
			}
			t.emit(&types.Event{Kind: types.EventDisclosureAuthorized, WorkIDs: []uint64{agg.WorkID}, Principal: principal})
			log.Infow("disclosure authorized", "work", agg.WorkID, "principal", principal.Hex())
		}
		return nil
	})
}

// IsDisclosureAllowed reports whether principal was granted the aggregate of
// the work.
func (l *Ledger) IsDisclosureAllowed(workID uint64, principal common.Address) (bool, error) {
	var allowed bool
	err := l.view(func(t *txn) error {
		_, err := t.Grant(workID, principal)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		allowed = err == nil
		return err
	})
	return allowed, err
}

// Grants returns every disclosure grant, ordered by work.
func (l *Ledger) Grants() ([]*types.DisclosureGrant, error) {
	var grants []*types.DisclosureGrant
	err := l.view(func(t *txn) error {
		var err error
		grants, err = t.Grants()
		return err
	})
	if grants == nil {
		grants = []*types.DisclosureGrant{}
	}
	return grants, err
}
