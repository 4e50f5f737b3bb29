// Command juryd runs a jury ledger node: the ledger state machine, its fhe
// backend and the HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	flag "github.com/spf13/pflag"
	"github.com/vocdoni/confidential-jury/config"
	"github.com/vocdoni/confidential-jury/fhe/backends"
	"github.com/vocdoni/confidential-jury/ledger"
	"github.com/vocdoni/confidential-jury/log"
	"github.com/vocdoni/confidential-jury/service"
	"github.com/vocdoni/confidential-jury/storage"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var (
	ledgerPrefix = []byte("ledger/")
	fhePrefix    = []byte("fhe/")
)

func main() {
	cfg := config.DefaultNode()
	cfg.BindFlags(flag.CommandLine)
	flag.Parse()
	if err := config.ApplyEnv(flag.CommandLine, nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log.Init(cfg.LogLevel, cfg.LogOutput, nil)
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		log.Fatal(err)
	}
	database, err := metadb.New(db.TypePebble, filepath.Join(cfg.DataDir, "db"))
	if err != nil {
		log.Fatal(err)
	}
	stg := storage.New(prefixeddb.NewPrefixedDatabase(database, ledgerPrefix))
	defer stg.Close()

	address, owner, err := ledgerAddress(stg, cfg)
	if err != nil {
		log.Fatal(err)
	}
	backendCfg, err := cfg.Backend(address)
	if err != nil {
		log.Fatal(err)
	}
	backend, err := backends.New(prefixeddb.NewPrefixedDatabase(database, fhePrefix), backendCfg)
	if err != nil {
		log.Fatal(err)
	}
	l, err := ledger.New(stg, backend, ledger.Options{Owner: owner, Address: address})
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	monitor := service.NewEventMonitor(l, cfg.EventsBuffer, nil)
	if err := monitor.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer monitor.Stop()

	api := service.NewAPI(l, cfg.Host, cfg.Port)
	if err := api.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer api.Stop()

	host, port := api.HostPort()
	log.Infow("juryd ready", "host", host, "port", port, "ledger", address.Hex(),
		"fhe", backend.Info().Backend, "datadir", cfg.DataDir)
	<-ctx.Done()
	log.Info("shutting down")
}

// ledgerAddress returns the ledger address and the owner to initialize the
// ledger with. An existing ledger keeps the address stored at initialization.
func ledgerAddress(stg *storage.Storage, cfg *config.Node) (common.Address, common.Address, error) {
	var owner, address common.Address
	if cfg.Owner != "" {
		owner = common.HexToAddress(cfg.Owner)
	}
	if cfg.Address != "" {
		address = common.HexToAddress(cfg.Address)
	}
	err := stg.View(func(tx *storage.Tx) error {
		stored, err := tx.Owner()
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		owner = stored
		addr, err := tx.Address()
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		address = addr
		return nil
	})
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	if owner == (common.Address{}) {
		return common.Address{}, common.Address{}, fmt.Errorf("new ledger: --owner is required")
	}
	if address == (common.Address{}) {
		address = ledger.DefaultAddress(owner)
	}
	return address, owner, nil
}
