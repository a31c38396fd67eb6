package handler

import (
	"encoding/json"
	"net/http"

	"github.com/peandrade/cifracash/internal/domain"
	"github.com/peandrade/cifracash/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Investments and yield
// ============================================================

func listInvestmentsHandler(svc *service.InvestmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/investments")
		defer span.End()

		investments, err := svc.ListInvestments(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if investments == nil {
			investments = []domain.Investment{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"investments": investments})
	}
}

func createInvestmentHandler(svc *service.InvestmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/investments")
		defer span.End()

		var req domain.InvestmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		inv, err := svc.CreateInvestment(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, inv)
	}
}

func getInvestmentHandler(svc *service.InvestmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/investments/{investmentId}")
		defer span.End()

		inv, err := svc.GetInvestment(ctx, chi.URLParam(r, "investmentId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	}
}

func listOperationsHandler(svc *service.InvestmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/investments/{investmentId}/operations")
		defer span.End()

		ops, err := svc.ListOperations(ctx, chi.URLParam(r, "investmentId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if ops == nil {
			ops = []domain.Operation{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"operations": ops})
	}
}

func createOperationHandler(svc *service.InvestmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/investments/{investmentId}/operations")
		defer span.End()

		var req domain.OperationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := svc.CreateOperation(ctx, chi.URLParam(r, "investmentId"), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

func getPositionHandler(svc *service.InvestmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/investments/{investmentId}/position")
		defer span.End()

		pos, err := svc.GetPosition(ctx, chi.URLParam(r, "investmentId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, pos)
	}
}

func portfolioHandler(svc *service.InvestmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/investments/portfolio")
		defer span.End()

		positions, err := svc.Portfolio(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if positions == nil {
			positions = []domain.Position{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"positions": positions})
	}
}
