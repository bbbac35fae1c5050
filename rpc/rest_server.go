package rpc

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/metric"
)

const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	headerETag        = "ETag"

	applicationJson        = "application/json"
	applicationCBOR        = "application/cbor"
	applicationOctetStream = "application/octet-stream"

	metricsScopeRESTAPI = "rest_api"

	// MaxBodySize is the default request body limit, large enough for chains of thousands of snapshots.
	MaxBodySize int64 = 4 * 1024 * 1024
)

var allowedCORSHeaders = []string{headerAccept, "Accept-Language", "Content-Language", "Origin", headerContentType}

type (
	// Registrar registers new HTTP handlers for given router.
	Registrar interface {
		Register(r *mux.Router)
	}

	// RegistrarFunc type is an adapter to allow the use of ordinary function as Registrar.
	RegistrarFunc func(r *mux.Router)

	Observability interface {
		Meter(name string, opts ...metric.MeterOption) metric.Meter
		// MetricsHandler returns handler for the "/metrics" endpoint, nil when
		// metrics are not exported over http.
		MetricsHandler() http.Handler
	}
)

func NewRESTServer(addr string, maxBodySize int64, obs Observability, log *slog.Logger, registrars ...Registrar) *http.Server {
	mtr := obs.Meter(metricsScopeRESTAPI)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(http.NotFound)
	if h := obs.MetricsHandler(); h != nil {
		r.Handle("/metrics", h).Methods(http.MethodGet)
	}
	apiV1Router := r.PathPrefix("/api/v1").Subrouter()
	apiV1Router.Use(
		handlers.CORS(
			handlers.AllowedHeaders(allowedCORSHeaders),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete}),
		),
		instrumentHTTP(mtr, log),
	)

	for _, registrar := range registrars {
		registrar.Register(apiV1Router)
	}

	return &http.Server{
		Addr:              addr,
		ReadTimeout:       3 * time.Second,
		ReadHeaderTimeout: time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       30 * time.Second,
		Handler:           http.MaxBytesHandler(r, maxBodySize),
	}
}

func (f RegistrarFunc) Register(r *mux.Router) {
	f(r)
}
