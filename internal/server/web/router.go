// Package web serves the operational HTTP endpoints and the landing route of
// email verification links.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/blindauth/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// EmailVerifier redeems verification links.
type EmailVerifier interface {
	VerifyEmail(ctx context.Context, userID, secret string) error
}

// Options wires the router. Metrics and Ready may be nil.
type Options struct {
	Verifier EmailVerifier
	Metrics  http.Handler
	Ready    func(ctx context.Context) error
	Logger   logging.Logger

	// VerifyRateLimit is the number of verification requests allowed per
	// client IP and minute.
	VerifyRateLimit int
}

type handlers struct {
	verifier EmailVerifier
	ready    func(ctx context.Context) error
	logger   logging.Logger
}

// Router builds the HTTP handler with health, readiness, metrics and the
// verify-email route, traced with otelhttp.
func Router(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger{}
	}
	if opts.VerifyRateLimit <= 0 {
		opts.VerifyRateLimit = 20
	}
	h := &handlers{verifier: opts.Verifier, ready: opts.Ready, logger: opts.Logger.With("module", "http_server")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", h.handleReady)

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(opts.VerifyRateLimit, time.Minute))
		r.Get("/verify-email", h.handleVerifyEmail)
	})

	return otelhttp.NewHandler(r, "blindauth-http")
}

func (h *handlers) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			h.logger.Warn(ctx, "readiness check failed", "error", err)
			respondError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
