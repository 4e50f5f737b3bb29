package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/vocdoni/confidential-jury/ledger"
	"github.com/vocdoni/confidential-jury/log"
)

// MaxRequestSkew is how far the timestamp of a signed request may be from
// the server clock.
const MaxRequestSkew = 5 * time.Minute

// APIConfig type represents the configuration for the API HTTP handler.
type APIConfig struct {
	Ledger *ledger.Ledger
	// Now returns the current time; time.Now if nil.
	Now func() time.Time
}

// API type represents the HTTP API of a jury ledger.
type API struct {
	router *chi.Mux
	ledger *ledger.Ledger
	now    func() time.Time
}

// New creates a new API instance with the given configuration. The API is an
// http.Handler; service.APIService serves it.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Ledger == nil {
		return nil, fmt.Errorf("missing ledger instance")
	}
	a := &API{
		ledger: conf.Ledger,
		now:    conf.Now,
	}
	if a.now == nil {
		a.now = time.Now
	}
	a.initRouter()
	return a, nil
}

// Router returns the chi router.
func (a *API) Router() *chi.Mux {
	return a.router
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *API) handle(method, endpoint string, h http.HandlerFunc) {
	log.Infow("register handler", "endpoint", endpoint, "method", method)
	a.router.Method(method, endpoint, h)
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	a.handle(http.MethodGet, PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	a.handle(http.MethodGet, InfoEndpoint, a.info)
	a.handle(http.MethodGet, OwnerEndpoint, a.owner)
	a.handle(http.MethodPost, OwnerEndpoint, a.transferOwnership)

	a.handle(http.MethodGet, ReviewersEndpoint, a.reviewers)
	a.handle(http.MethodPost, ReviewersEndpoint, a.addReviewers)
	a.handle(http.MethodGet, ReviewerEndpoint, a.reviewer)
	a.handle(http.MethodDelete, ReviewerEndpoint, a.removeReviewer)

	a.handle(http.MethodGet, WorksEndpoint, a.works)
	a.handle(http.MethodPost, WorksEndpoint, a.addWorks)
	a.handle(http.MethodGet, WorkEndpoint, a.work)
	a.handle(http.MethodGet, ScoresEndpoint, a.scores)
	a.handle(http.MethodPost, ScoresEndpoint, a.submitScore)
	a.handle(http.MethodGet, ScoreEndpoint, a.score)
	a.handle(http.MethodGet, AggregateEndpoint, a.aggregatedScore)
	a.handle(http.MethodPost, AggregateEndpoint, a.aggregate)
	a.handle(http.MethodPost, QualificationEndpoint, a.checkQualification)
	a.handle(http.MethodGet, WorkDisclosureEndpoint, a.isDisclosureAllowed)

	a.handle(http.MethodGet, AggregationsEndpoint, a.aggregations)
	a.handle(http.MethodPost, AggregationsEndpoint, a.batchAggregate)
	a.handle(http.MethodGet, ThresholdEndpoint, a.threshold)
	a.handle(http.MethodPost, ThresholdEndpoint, a.setThreshold)
	a.handle(http.MethodGet, DisclosuresEndpoint, a.grants)
	a.handle(http.MethodPost, DisclosuresEndpoint, a.allowDisclosure)

	a.handle(http.MethodGet, ResultsEndpoint, a.results)
	a.handle(http.MethodPost, ResultsEndpoint, a.publish)
	a.handle(http.MethodGet, ResultEndpoint, a.result)
	a.handle(http.MethodGet, EventsEndpoint, a.events)

	a.handle(http.MethodGet, FHEEndpoint, a.fheInfo)
	a.handle(http.MethodPost, FHEInputsEndpoint, a.encryptInputs)
	a.handle(http.MethodPost, FHEDecryptEndpoint, a.userDecrypt)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	// Create the router with a basic middleware stack
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	// Register the API handlers
	a.registerHandlers()
}
