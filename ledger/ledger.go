// Package ledger implements the jury state machine: the registry of
// reviewers and works, encrypted score submission, per-work homomorphic
// aggregation, the encrypted qualification check, disclosure grants and the
// publication of plaintext results.
//
// Every mutation takes the caller address first and runs as a single
// storage transaction serialized with every other mutation. A failing
// operation leaves no trace in the ledger state. Events are appended to the
// persistent log inside the transaction and delivered to subscribers after
// it commits.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/confidential-jury/fhe"
	"github.com/vocdoni/confidential-jury/log"
	"github.com/vocdoni/confidential-jury/storage"
	"github.com/vocdoni/confidential-jury/types"
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("duplicate")
	ErrState             = errors.New("invalid state")
	ErrProofVerification = errors.New("input proof verification failed")
	ErrShape             = errors.New("mismatched input lengths")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// Options configure a Ledger.
type Options struct {
	// Owner is the initial owner. It is only used the first time the
	// storage is opened.
	Owner common.Address
	// Address identifies the ledger as the consumer of encrypted inputs and
	// as the contract of decryption requests. Defaults to the address
	// derived from the owner.
	Address common.Address
	// Now returns the current time; time.Now if nil.
	Now func() time.Time
}

// Info summarizes the ledger state.
type Info struct {
	Address   common.Address `json:"address"`
	Owner     common.Address `json:"owner"`
	Backend   *fhe.Info      `json:"fhe"`
	Works     uint64         `json:"works"`
	Reviewers uint64         `json:"reviewers"`
	Results   uint64         `json:"results"`
	Events    uint64         `json:"events"`
}

// Ledger is the jury state machine.
type Ledger struct {
	stg     *storage.Storage
	backend fhe.Backend
	address common.Address
	now     func() time.Time
	mu      sync.Mutex

	subsMu  sync.RWMutex
	subs    map[int]chan *types.Event
	nextSub int
}

// New opens the ledger stored in stg. The first time, opts.Owner becomes the
// owner; afterwards the stored owner is kept.
func New(stg *storage.Storage, backend fhe.Backend, opts Options) (*Ledger, error) {
	if stg == nil || backend == nil {
		return nil, fmt.Errorf("ledger needs a storage and an fhe backend")
	}
	l := &Ledger{
		stg:     stg,
		backend: backend,
		now:     opts.Now,
		subs:    make(map[int]chan *types.Event),
	}
	if l.now == nil {
		l.now = time.Now
	}
	var owner common.Address
	if err := stg.Update(func(tx *storage.Tx) error {
		stored, err := tx.Owner()
		if err == nil {
			owner = stored
			if opts.Owner != (common.Address{}) && opts.Owner != stored {
				log.Warnw("ignoring configured owner, ledger already owned",
					"configured", opts.Owner.Hex(), "owner", stored.Hex())
			}
			addr, err := tx.Address()
			if err == nil {
				if opts.Address != (common.Address{}) && opts.Address != addr {
					return fmt.Errorf("%w: ledger address is %s, configured %s",
						ErrInvalidArgument, addr.Hex(), opts.Address.Hex())
				}
				l.address = addr
				return nil
			}
			if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			return l.initAddress(tx, opts.Address, owner)
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if opts.Owner == (common.Address{}) {
			return fmt.Errorf("%w: an owner is required to initialize the ledger", ErrInvalidArgument)
		}
		owner = opts.Owner
		if err := tx.SetOwner(owner); err != nil {
			return err
		}
		return l.initAddress(tx, opts.Address, owner)
	}); err != nil {
		return nil, err
	}
	log.Infow("ledger ready", "address", l.address.Hex(), "owner", owner.Hex(), "fhe", backend.Info().Backend)
	return l, nil
}

func (l *Ledger) initAddress(tx *storage.Tx, addr, owner common.Address) error {
	if addr == (common.Address{}) {
		addr = DefaultAddress(owner)
	}
	l.address = addr
	return tx.SetAddress(addr)
}

// DefaultAddress returns the ledger address used when none is configured.
func DefaultAddress(owner common.Address) common.Address {
	return ethcrypto.CreateAddress(owner, 0)
}

// Address returns the ledger address.
func (l *Ledger) Address() common.Address {
	return l.address
}

// Backend returns the fhe backend used by the ledger.
func (l *Ledger) Backend() fhe.Backend {
	return l.backend
}

// Info returns a summary of the ledger state.
func (l *Ledger) Info() (*Info, error) {
	info := &Info{Address: l.address, Backend: l.backend.Info()}
	err := l.stg.View(func(tx *storage.Tx) error {
		var err error
		if info.Owner, err = tx.Owner(); err != nil {
			return err
		}
		if info.Works, err = tx.Counter(storage.CounterWorks); err != nil {
			return err
		}
		if info.Results, err = tx.Counter(storage.CounterResults); err != nil {
			return err
		}
		if info.Events, err = tx.Counter(storage.CounterEvents); err != nil {
			return err
		}
		reviewers, err := activeReviewers(tx)
		info.Reviewers = uint64(len(reviewers))
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// txn is the state of a running mutation.
type txn struct {
	*storage.Tx
	now    time.Time
	events []*types.Event
	grants []grant
}

// grant is a backend access grant held back until the mutation commits.
type grant struct {
	handles    []types.Handle
	principals []common.Address
}

// allow queues a backend access grant. Grants are applied only once the
// mutation commits, so an aborted mutation leaves the backend ACL untouched.
func (t *txn) allow(handles []types.Handle, principals ...common.Address) {
	t.grants = append(t.grants, grant{handles: handles, principals: principals})
}

func (t *txn) emit(e *types.Event) {
	e.Time = t.now
	t.events = append(t.events, e)
}

func (t *txn) requireOwner(caller common.Address) error {
	owner, err := t.Owner()
	if err != nil {
		return err
	}
	if caller != owner {
		return fmt.Errorf("%w: %s is not the owner", ErrUnauthorized, caller.Hex())
	}
	return nil
}

func (t *txn) work(id uint64) (*types.Work, error) {
	w, err := t.Work(id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: work %d does not exist", ErrNotFound, id)
	}
	return w, err
}

// update runs fn as one atomic mutation. The backend grants and the events
// of the mutation are delivered after commit.
func (l *Ledger) update(fn func(t *txn) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var events []*types.Event
	var grants []grant
	err := l.stg.Update(func(tx *storage.Tx) error {
		t := &txn{Tx: tx, now: l.now()}
		if err := fn(t); err != nil {
			return err
		}
		for _, e := range t.events {
			if err := tx.AppendEvent(e); err != nil {
				return err
			}
		}
		events, grants = t.events, t.grants
		return nil
	})
	if err != nil {
		return err
	}
	var grantErr error
	for _, g := range grants {
		if grantErr = l.allow(g.handles, g.principals...); grantErr != nil {
			break
		}
	}
	l.broadcast(events)
	return grantErr
}

// view runs fn over the committed state.
func (l *Ledger) view(fn func(t *txn) error) error {
	return l.stg.View(func(tx *storage.Tx) error {
		return fn(&txn{Tx: tx, now: l.now()})
	})
}

func (l *Ledger) inputContext(caller common.Address) fhe.InputContext {
	return fhe.InputContext{Contract: l.address, User: caller}
}

// allow grants principals access to the handles on the backend.
func (l *Ledger) allow(handles []types.Handle, principals ...common.Address) error {
	for _, h := range handles {
		for _, p := range principals {
			if err := l.backend.Allow(h, p); err != nil {
				return fmt.Errorf("cannot grant access to %s: %w", h, err)
			}
		}
	}
	return nil
}
