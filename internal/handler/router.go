// Package handler exposes the HTTP API for the billing and investment
// engines.
package handler

import (
	"net/http"

	"github.com/peandrade/cifracash/internal/infra/observability"
	"github.com/peandrade/cifracash/internal/port"
	"github.com/peandrade/cifracash/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(billingSvc *service.BillingService, investSvc *service.InvestmentService, rateProvider port.RateProvider, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger, metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(billingSvc, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// Cards, invoices and purchases
		// =============================================
		r.Get("/cards", listCardsHandler(billingSvc, logger))
		r.Post("/cards", createCardHandler(billingSvc, logger))
		r.Get("/cards/{cardId}", getCardHandler(billingSvc, logger))
		r.Post("/cards/{cardId}/purchases", createPurchaseHandler(billingSvc, logger))
		r.Get("/cards/{cardId}/invoices", listInvoicesHandler(billingSvc, logger))
		r.Get("/cards/{cardId}/invoices/{year}/{month}", getInvoiceHandler(billingSvc, logger))
		r.Post("/cards/{cardId}/invoices/{year}/{month}/pay", payInvoiceHandler(billingSvc, logger))

		// =============================================
		// Investments and yield
		// =============================================
		r.Get("/investments", listInvestmentsHandler(investSvc, logger))
		r.Post("/investments", createInvestmentHandler(investSvc, logger))
		r.Get("/investments/portfolio", portfolioHandler(investSvc, logger))
		r.Get("/investments/{investmentId}", getInvestmentHandler(investSvc, logger))
		r.Get("/investments/{investmentId}/operations", listOperationsHandler(investSvc, logger))
		r.Post("/investments/{investmentId}/operations", createOperationHandler(investSvc, logger))
		r.Get("/investments/{investmentId}/position", getPositionHandler(investSvc, logger))

		// =============================================
		// Benchmark rates
		// =============================================
		r.Get("/rates", ratesHandler(rateProvider, logger))

		// =============================================
		// Engine metrics
		// =============================================
		r.Get("/metrics/engine", engineMetricsHandler(metrics, logger))
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

func healthzHandler(billingSvc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /healthz")
		defer span.End()

		if _, err := billingSvc.ListCards(ctx); err != nil {
			logger.Error("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func engineMetricsHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/metrics/engine")
		defer span.End()

		writeJSON(w, http.StatusOK, metrics.EngineSnapshot())
	}
}
