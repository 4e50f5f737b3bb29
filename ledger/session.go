package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-jury/types"
)

// Session binds a Ledger to a caller, for in-process clients such as the
// disclosure orchestrator.
type Session struct {
	ledger *Ledger
	caller common.Address
}

// AsCaller returns a Session acting as caller.
func AsCaller(l *Ledger, caller common.Address) *Session {
	return &Session{ledger: l, caller: caller}
}

// Address returns the ledger address.
func (s *Session) Address() common.Address {
	return s.ledger.Address()
}

// AggregatedScore returns the aggregate of a work.
func (s *Session) AggregatedScore(ctx context.Context, workID uint64) (*types.AggregatedScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.ledger.AggregatedScore(workID)
}

// Publish publishes the averages of a single work.
func (s *Session) Publish(ctx context.Context, workID uint64, averages [types.Dimensions]uint16) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.ledger.Publish(s.caller, []uint64{workID},
		[]uint16{averages[0]}, []uint16{averages[1]}, []uint16{averages[2]}, []uint16{averages[3]})
}
