// Package backends selects the fhe.Backend implementation once, at process
// start.
package backends

import (
	"fmt"

	"github.com/vocdoni/confidential-jury/crypto/ethereum"
	"github.com/vocdoni/confidential-jury/fhe"
	"github.com/vocdoni/confidential-jury/fhe/kms"
	"github.com/vocdoni/confidential-jury/fhe/mock"
	"github.com/vocdoni/confidential-jury/log"
	"go.vocdoni.io/dvote/db"
)

// Auto picks the mock backend on development networks and kms otherwise.
const Auto = "auto"

// Config selects and configures a backend.
type Config struct {
	// Type is one of fhe.BackendMock, fhe.BackendKMS or Auto.
	Type string
	// Dev marks a development network, used by Auto.
	Dev bool
	// Coprocessor signs the mock input attestations. Optional.
	Coprocessor *ethereum.SignKeys
	Options     fhe.Options
}

// Resolve returns the concrete backend type for cfg.
func (cfg Config) Resolve() (string, error) {
	switch cfg.Type {
	case fhe.BackendMock, fhe.BackendKMS:
		return cfg.Type, nil
	case Auto, "":
		if cfg.Dev {
			return fhe.BackendMock, nil
		}
		return fhe.BackendKMS, nil
	default:
		return "", fmt.Errorf("unknown fhe backend %q", cfg.Type)
	}
}

// New builds the backend selected by cfg over database.
func New(database db.Database, cfg Config) (fhe.Backend, error) {
	typ, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	log.Infow("selected fhe backend", "type", typ, "requested", cfg.Type, "dev", cfg.Dev)
	switch typ {
	case fhe.BackendMock:
		return mock.New(database, cfg.Coprocessor, cfg.Options)
	default:
		return kms.New(database, cfg.Options)
	}
}

// Encryptor returns the client side input encryptor for a backend described
// by info. Mock inputs can only be produced by the backend itself, so it
// returns nil and false for them.
func Encryptor(info *fhe.Info) (fhe.InputEncryptor, bool, error) {
	switch info.Backend {
	case fhe.BackendKMS:
		enc, err := kms.NewEncryptor(info.PublicKey)
		if err != nil {
			return nil, false, err
		}
		return enc, true, nil
	case fhe.BackendMock:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("unknown fhe backend %q", info.Backend)
	}
}
