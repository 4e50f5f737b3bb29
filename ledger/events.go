package ledger

import (
	"github.com/vocdoni/confidential-jury/log"
	"github.com/vocdoni/confidential-jury/types"
)

// Subscribe returns a channel receiving every event committed from now on,
// and a function to cancel the subscription. Events are dropped for a
// subscriber whose buffer is full; the persistent log can be used to catch
// up.
func (l *Ledger) Subscribe(buffer int) (<-chan *types.Event, func()) {
	ch := make(chan *types.Event, buffer)
	l.subsMu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.subsMu.Unlock()
	var once bool
	return ch, func() {
		l.subsMu.Lock()
		defer l.subsMu.Unlock()
		if once {
			return
		}
		once = true
		delete(l.subs, id)
		close(ch)
	}
}

func (l *Ledger) broadcast(events []*types.Event) {
	l.subsMu.RLock()
	defer l.subsMu.RUnlock()
	for _, e := range events {
		log.Debugw("ledger event", "event", e.String())
		for id, ch := range l.subs {
			select {
			case ch <- e:
			default:
				log.Warnw("dropping event for slow subscriber", "subscriber", id, "seq", e.Seq)
			}
		}
	}
}

// Events returns up to limit persisted events starting at sequence number
// from. A zero limit returns all of them.
func (l *Ledger) Events(from uint64, limit int) ([]*types.Event, error) {
	var events []*types.Event
	err := l.view(func(t *txn) error {
		var err error
		events, err = t.Events(from, limit)
		return err
	})
	return events, err
}
