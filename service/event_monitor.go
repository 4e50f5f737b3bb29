package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/vocdoni/confidential-jury/ledger"
	"github.com/vocdoni/confidential-jury/log"
	"github.com/vocdoni/confidential-jury/types"
)

// EventHandler is called for every ledger event, in order.
type EventHandler func(*types.Event)

// EventMonitor represents a service that follows the ledger event feed and
// hands each event to a handler.
type EventMonitor struct {
	ledger  *ledger.Ledger
	handler EventHandler
	buffer  int
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewEventMonitor creates a new EventMonitor service. If handler is nil the
// events are logged.
func NewEventMonitor(l *ledger.Ledger, buffer int, handler EventHandler) *EventMonitor {
	if handler == nil {
		handler = LogEvent
	}
	return &EventMonitor{
		ledger:  l,
		handler: handler,
		buffer:  buffer,
	}
}

// Start begins monitoring the ledger events. It returns an error if the
// service is already running.
func (em *EventMonitor) Start(ctx context.Context) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	if em.cancel != nil {
		return fmt.Errorf("service already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	em.cancel = cancel
	em.done = make(chan struct{})

	events, unsubscribe := em.ledger.Subscribe(em.buffer)
	go em.monitorEvents(ctx, events, unsubscribe, em.done)
	return nil
}

// Stop halts the monitoring service and waits for the pending handler call.
func (em *EventMonitor) Stop() {
	em.mu.Lock()
	defer em.mu.Unlock()

	if em.cancel != nil {
		em.cancel()
		<-em.done
		em.cancel = nil
	}
}

func (em *EventMonitor) monitorEvents(ctx context.Context, events <-chan *types.Event, unsubscribe func(),
	done chan struct{},
) {
	defer close(done)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			em.handler(e)
		}
	}
}

// LogEvent logs an event.
func LogEvent(e *types.Event) {
	log.Infow("ledger event", "seq", e.Seq, "kind", string(e.Kind), "works", e.WorkIDs,
		"principal", e.Principal.Hex(), "count", e.Count)
}
