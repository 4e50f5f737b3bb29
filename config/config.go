// Package config holds the settings of the jury binaries, their defaults and
// the binding to command line flags. Every flag can also be set through an
// environment variable named JURY_ followed by the flag name in upper case,
// with dashes replaced by underscores. Explicit flags win over the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	flag "github.com/spf13/pflag"
	"github.com/vocdoni/confidential-jury/crypto/ethereum"
	"github.com/vocdoni/confidential-jury/fhe"
	"github.com/vocdoni/confidential-jury/fhe/backends"
	"github.com/vocdoni/confidential-jury/types"
)

// EnvPrefix prefixes the environment variables that override flags.
const EnvPrefix = "JURY_"

const (
	DefaultHost       = "0.0.0.0"
	DefaultPort       = 9090
	DefaultLogLevel   = "info"
	DefaultLogOutput  = "stdout"
	DefaultChainID    = 31337
	DefaultAPIURL     = "http://127.0.0.1:9090"
	DefaultEventsBuf  = 256
	DefaultRetryLimit = time.Minute
)

// Node configures juryd.
type Node struct {
	DataDir   string
	Host      string
	Port      int
	LogLevel  string
	LogOutput string
	// Owner is the initial ledger owner, used the first time the data
	// directory is opened.
	Owner string
	// Address overrides the ledger address.
	Address string
	// FHE is the backend type: mock, kms or auto.
	FHE     string
	Dev     bool
	ChainID uint64
	// VerifyingContract is the EIP-712 verifying contract of the decryption
	// domain. Defaults to the ledger address.
	VerifyingContract string
	// CoprocessorKey is the hex private key signing mock input attestations.
	CoprocessorKey string
	EventsBuffer   int
}

// DefaultNode returns the default node configuration.
func DefaultNode() *Node {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Node{
		DataDir:      filepath.Join(home, ".juryd"),
		Host:         DefaultHost,
		Port:         DefaultPort,
		LogLevel:     DefaultLogLevel,
		LogOutput:    DefaultLogOutput,
		FHE:          backends.Auto,
		ChainID:      DefaultChainID,
		EventsBuffer: DefaultEventsBuf,
	}
}

// BindFlags registers the node flags on fs.
func (n *Node) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&n.DataDir, "datadir", n.DataDir, "data directory")
	fs.StringVar(&n.Host, "host", n.Host, "API listen host")
	fs.IntVar(&n.Port, "port", n.Port, "API listen port")
	fs.StringVar(&n.LogLevel, "log-level", n.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&n.LogOutput, "log-output", n.LogOutput, "log output (stdout, stderr or a file path)")
	fs.StringVar(&n.Owner, "owner", n.Owner, "initial ledger owner address")
	fs.StringVar(&n.Address, "address", n.Address, "ledger address (derived from the owner if empty)")
	fs.StringVar(&n.FHE, "fhe", n.FHE, "fhe backend: mock, kms or auto")
	fs.BoolVar(&n.Dev, "dev", n.Dev, "development network (auto selects the mock backend)")
	fs.Uint64Var(&n.ChainID, "chain-id", n.ChainID, "chain id of the decryption domain")
	fs.StringVar(&n.VerifyingContract, "verifying-contract", n.VerifyingContract,
		"verifying contract of the decryption domain (the ledger address if empty)")
	fs.StringVar(&n.CoprocessorKey, "coprocessor-key", n.CoprocessorKey, "hex key signing mock input attestations")
	fs.IntVar(&n.EventsBuffer, "events-buffer", n.EventsBuffer, "event monitor buffer size")
}

// Validate checks the node configuration.
func (n *Node) Validate() error {
	if n.DataDir == "" {
		return fmt.Errorf("missing data directory")
	}
	if n.Port < 0 || n.Port > 65535 {
		return fmt.Errorf("invalid port %d", n.Port)
	}
	for name, addr := range map[string]string{
		"owner": n.Owner, "address": n.Address, "verifying-contract": n.VerifyingContract,
	} {
		if addr == "" {
			continue
		}
		if _, err := ethereum.HexToAddress(addr); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if _, err := (backends.Config{Type: n.FHE, Dev: n.Dev}).Resolve(); err != nil {
		return err
	}
	return nil
}

// Backend returns the fhe backend configuration. ledger is the address the
// domain falls back to when no verifying contract is configured.
func (n *Node) Backend(ledger common.Address) (backends.Config, error) {
	cfg := backends.Config{Type: n.FHE, Dev: n.Dev}
	vc := ledger
	if n.VerifyingContract != "" {
		vc = common.HexToAddress(n.VerifyingContract)
	}
	cfg.Options.Domain = fhe.DefaultDomain(n.ChainID, vc)
	if n.CoprocessorKey != "" {
		cfg.Coprocessor = ethereum.NewSignKeys()
		if err := cfg.Coprocessor.AddHexKey(n.CoprocessorKey); err != nil {
			return cfg, fmt.Errorf("coprocessor-key: %w", err)
		}
	}
	return cfg, nil
}

// Client configures jurycli.
type Client struct {
	API      string
	Key      string
	LogLevel string
	// DurationDays is the validity of the decryption authorizations.
	DurationDays uint64
	Timeout      time.Duration
	RetryLimit   time.Duration
}

// DefaultClient returns the default client configuration.
func DefaultClient() *Client {
	return &Client{
		API:          DefaultAPIURL,
		LogLevel:     "warn",
		DurationDays: types.DefaultDisclosureDays,
		Timeout:      10 * time.Second,
		RetryLimit:   DefaultRetryLimit,
	}
}

// BindFlags registers the client flags on fs.
func (c *Client) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.API, "api", c.API, "jury API URL")
	fs.StringVar(&c.Key, "key", c.Key, "hex private key of the caller")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (debug, info, warn, error)")
	fs.Uint64Var(&c.DurationDays, "duration-days", c.DurationDays, "validity of decryption authorizations in days")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "HTTP request timeout")
	fs.DurationVar(&c.RetryLimit, "retry-limit", c.RetryLimit, "maximum retry time of the disclosure steps")
}

// Validate checks the client configuration.
func (c *Client) Validate() error {
	if c.API == "" {
		return fmt.Errorf("missing API URL")
	}
	if c.DurationDays == 0 || c.DurationDays > fhe.MaxDurationDays {
		return fmt.Errorf("duration-days must be between 1 and %d", fhe.MaxDurationDays)
	}
	return nil
}

// Keys returns the caller keys, or nil if no key is configured.
func (c *Client) Keys() (*ethereum.SignKeys, error) {
	if c.Key == "" {
		return nil, nil
	}
	k := ethereum.NewSignKeys()
	if err := k.AddHexKey(c.Key); err != nil {
		return nil, fmt.Errorf("key: %w", err)
	}
	return k, nil
}

// EnvName returns the environment variable overriding a flag.
func EnvName(flagName string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// ApplyEnv sets every flag of fs not given on the command line from its
// environment variable, if present. lookup is os.LookupEnv when nil.
func ApplyEnv(fs *flag.FlagSet, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var err error
	fs.VisitAll(func(f *flag.Flag) {
		if err != nil || f.Changed {
			return
		}
		v, ok := lookup(EnvName(f.Name))
		if !ok {
			return
		}
		if serr := fs.Set(f.Name, v); serr != nil {
			err = fmt.Errorf("%s: %w", EnvName(f.Name), serr)
		}
	})
	return err
}
