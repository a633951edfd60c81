package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/pj-ledger-bfa-go/internal/infra/notify"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/infra/observability"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// svc and feed may be nil, in which case only the operational endpoints answer.
// With no allowedOrigins every origin may call the API.
func NewRouter(svc *service.LedgerService, feed *notify.Feed, metrics *observability.Metrics, logger *zap.Logger, allowedOrigins ...string) http.Handler {
	r := chi.NewRouter()

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	if svc == nil {
		return r
	}

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/ledger", ledgerMetricsHandler(svc, metrics))

		// =============================================
		// Transactions
		// =============================================
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", listTransactionsHandler(svc, logger))
			r.Post("/", createTransactionHandler(svc, logger))
			r.Post("/refresh", refreshTransactionsHandler(svc, logger))
			r.Get("/groups", groupTransactionsHandler(svc, logger))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", getTransactionHandler(svc, logger))
				r.Patch("/", patchTransactionHandler(svc, logger))
				r.Delete("/", deleteTransactionHandler(svc, logger))
				r.Post("/cancel", cancelTransactionHandler(svc, logger))
				r.Post("/restore", restoreTransactionHandler(svc, logger))
				r.Post("/dismiss", dismissTransactionHandler(svc, logger))
			})
		})

		// =============================================
		// Balance + notifications
		// =============================================
		r.Get("/balance", balanceHandler(svc))
		if feed != nil {
			r.Get("/notifications", notificationsHandler(feed))
		}
	})

	return r
}

// ============================================================
// Operational
// ============================================================

type healthResponse struct {
	Status       string `json:"status"`
	Timestamp    string `json:"timestamp"`
	Transactions int    `json:"transactions"`
	SweepArmed   bool   `json:"sweepArmed"`
}

func healthzHandler(svc *service.LedgerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "healthy", Timestamp: time.Now().UTC().Format(time.RFC3339)}
		if svc != nil {
			resp.Transactions = svc.Size()
			resp.SweepArmed = svc.Armed()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func ledgerMetricsHandler(svc *service.LedgerService, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := metrics.Snapshot()
		snap.SweepTimerArmed = svc.Armed()
		writeJSON(w, http.StatusOK, snap)
	}
}

func notificationsHandler(feed *notify.Feed) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"notifications": feed.Recent()})
	}
}
