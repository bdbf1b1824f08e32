package httpserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"parkledger/backend/services/parking-service/internal/http/middleware"
)

const serviceName = "parking-service"

// Routes groups handlers.
type Routes struct {
	Login    http.HandlerFunc
	Entry    http.HandlerFunc
	Exit     http.HandlerFunc
	Payment  http.HandlerFunc
	Present  http.HandlerFunc
	Sessions http.HandlerFunc
	Receipt  http.HandlerFunc
	Board    http.HandlerFunc
	Health   http.HandlerFunc
}

// NewRouter registers endpoints. When validator is non-nil every /parking route
// requires an operator token.
func NewRouter(routes Routes, validator middleware.TokenValidator, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	protect := func(h http.HandlerFunc) http.Handler {
		if validator == nil {
			return h
		}
		return middleware.Auth(validator)(h)
	}

	if routes.Login != nil {
		mux.Handle("/auth/login", method(http.MethodPost, routes.Login))
	}
	if routes.Entry != nil {
		mux.Handle("/parking/entry", protect(method(http.MethodPost, routes.Entry)))
	}
	if routes.Exit != nil {
		mux.Handle("/parking/exit", protect(method(http.MethodPost, routes.Exit)))
	}
	if routes.Payment != nil {
		mux.Handle("/parking/payment", protect(method(http.MethodPost, routes.Payment)))
	}
	if routes.Present != nil {
		mux.Handle("/parking/present", protect(method(http.MethodGet, routes.Present)))
	}
	if routes.Sessions != nil {
		mux.Handle("/parking/sessions", protect(method(http.MethodGet, routes.Sessions)))
	}
	if routes.Receipt != nil {
		mux.Handle("/parking/sessions/{id}/receipt", protect(method(http.MethodGet, routes.Receipt)))
	}
	if routes.Board != nil {
		mux.Handle("/ws/board", method(http.MethodGet, routes.Board))
	}
	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health))
	}
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.Chain(mux,
		middleware.Recover(logger),
		middleware.Logging(logger),
		middleware.Metrics(serviceName),
	)
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}
