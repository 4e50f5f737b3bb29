package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/vocdoni/confidential-jury/api"
	"github.com/vocdoni/confidential-jury/ledger"
	"github.com/vocdoni/confidential-jury/log"
)

// shutdownTimeout bounds the graceful shutdown of the HTTP server.
const shutdownTimeout = 10 * time.Second

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	ledger *ledger.Ledger
	mu     sync.Mutex
	server *http.Server
	host   string
	port   int
}

// NewAPI creates a new APIService instance. Port 0 lets the OS choose a port,
// which HostPort reports once the service is started.
func NewAPI(l *ledger.Ledger, host string, port int) *APIService {
	return &APIService{
		ledger: l,
		host:   host,
		port:   port,
	}
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.server != nil {
		return fmt.Errorf("service already running")
	}

	a, err := api.New(&api.APIConfig{Ledger: as.ledger})
	if err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(as.host, strconv.Itoa(as.port)))
	if err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	as.port = ln.Addr().(*net.TCPAddr).Port
	as.server = &http.Server{
		Handler:           a,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	go func(srv *http.Server) {
		log.Infow("starting API server", "host", as.host, "port", as.port)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw(err, "API server stopped")
		}
	}(as.server)
	return nil
}

// Stop halts the API server.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := as.server.Shutdown(ctx); err != nil {
		log.Warnw("API server shutdown failed", "error", err.Error())
	}
	as.server = nil
}

// HostPort returns the host and port of the API server.
func (as *APIService) HostPort() (string, int) {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.host, as.port
}
