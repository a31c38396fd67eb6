package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/peandrade/cifracash/internal/domain"
	"github.com/peandrade/cifracash/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Cards, invoices and purchases
// ============================================================

func listCardsHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/cards")
		defer span.End()

		cards, err := svc.ListCards(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if cards == nil {
			cards = []domain.Card{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"cards": cards})
	}
}

func createCardHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/cards")
		defer span.End()

		var req domain.CardRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		card, err := svc.CreateCard(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, card)
	}
}

func getCardHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/cards/{cardId}")
		defer span.End()

		card, err := svc.GetCard(ctx, chi.URLParam(r, "cardId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

func createPurchaseHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/cards/{cardId}/purchases")
		defer span.End()

		var req domain.PurchaseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := svc.CreatePurchase(ctx, chi.URLParam(r, "cardId"), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

func listInvoicesHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/cards/{cardId}/invoices")
		defer span.End()

		invoices, err := svc.ListInvoices(ctx, chi.URLParam(r, "cardId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if invoices == nil {
			invoices = []domain.Invoice{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
	}
}

func invoiceCycleParams(r *http.Request) (month, year int, ok bool) {
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		return 0, 0, false
	}
	year, err = strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		return 0, 0, false
	}
	return month, year, true
}

func getInvoiceHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/cards/{cardId}/invoices/{year}/{month}")
		defer span.End()

		month, year, ok := invoiceCycleParams(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "month and year must be numeric")
			return
		}

		invoice, purchases, err := svc.GetInvoice(ctx, chi.URLParam(r, "cardId"), month, year)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if purchases == nil {
			purchases = []domain.Purchase{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"invoice":   invoice,
			"purchases": purchases,
		})
	}
}

func payInvoiceHandler(svc *service.BillingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/cards/{cardId}/invoices/{year}/{month}/pay")
		defer span.End()

		month, year, ok := invoiceCycleParams(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "month and year must be numeric")
			return
		}

		var req domain.InvoicePayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		invoice, err := svc.PayInvoice(ctx, chi.URLParam(r, "cardId"), month, year, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, invoice)
	}
}
