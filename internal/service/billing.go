// Package service provides the business logic layer (use cases).
// BillingService resolves billing cycles and distributes installment
// plans; InvestmentService computes fixed-income yields.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/peandrade/cifracash/internal/cycle"
	"github.com/peandrade/cifracash/internal/domain"
	"github.com/peandrade/cifracash/internal/infra/observability"
	"github.com/peandrade/cifracash/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var billingTracer = otel.Tracer("service/billing")

const (
	maxInstallments = 48
	cardsCacheKey   = "cards"
	dateLayout      = "2006-01-02"
)

// BillingService orchestrates card, invoice and purchase operations.
type BillingService struct {
	store   port.LedgerStore
	cards   port.Cache[[]domain.Card]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewBillingService creates a new billing service.
func NewBillingService(store port.LedgerStore, cards port.Cache[[]domain.Card], metrics *observability.Metrics, logger *zap.Logger) *BillingService {
	return &BillingService{store: store, cards: cards, metrics: metrics, logger: logger}
}

// ============================================================
// Cards
// ============================================================

func (s *BillingService) CreateCard(ctx context.Context, req *domain.CardRequest) (*domain.Card, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.CreateCard")
	defer span.End()

	if req.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if req.ClosingDay < 1 || req.ClosingDay > 31 {
		return nil, &domain.ErrValidation{Field: "closing_day", Message: "must be between 1 and 31"}
	}
	if req.DueDay < 1 || req.DueDay > 31 {
		return nil, &domain.ErrValidation{Field: "due_day", Message: "must be between 1 and 31"}
	}
	if req.CreditLimit <= 0 {
		return nil, &domain.ErrValidation{Field: "credit_limit", Message: "must be positive"}
	}

	card, err := s.store.CreateCard(ctx, req)
	if err != nil {
		s.logger.Error("failed to create card", zap.String("name", req.Name), zap.Error(err))
		return nil, err
	}
	s.cards.Delete(cardsCacheKey)

	s.logger.Info("card created",
		zap.String("card_id", card.ID),
		zap.Int("closing_day", card.ClosingDay),
		zap.Int("due_day", card.DueDay),
	)
	return card, nil
}

func (s *BillingService) ListCards(ctx context.Context) ([]domain.Card, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.ListCards")
	defer span.End()

	if cached, ok := s.cards.Get(cardsCacheKey); ok {
		s.metrics.IncrCacheHit(cardsCacheKey)
		return cached, nil
	}
	s.metrics.IncrCacheMiss(cardsCacheKey)

	cards, err := s.store.ListCards(ctx)
	if err != nil {
		return nil, err
	}
	s.cards.Set(cardsCacheKey, cards)
	return cards, nil
}

func (s *BillingService) GetCard(ctx context.Context, cardID string) (*domain.Card, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.GetCard")
	defer span.End()

	return s.store.GetCard(ctx, cardID)
}

// ============================================================
// Purchases
// ============================================================

// CreatePurchase validates a purchase, resolves the billing cycle of each
// installment and commits the whole plan atomically. All validation happens
// before any write: a rejected purchase leaves no rows behind.
func (s *BillingService) CreatePurchase(ctx context.Context, cardID string, req *domain.PurchaseRequest) (*domain.PurchaseResult, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.CreatePurchase")
	defer span.End()
	span.SetAttributes(attribute.String("card.id", cardID))

	if req.Description == "" {
		return nil, &domain.ErrValidation{Field: "description", Message: "required"}
	}
	if req.Value <= 0 {
		return nil, &domain.ErrValidation{Field: "value", Message: "must be positive"}
	}
	installments := req.Installments
	if installments == 0 {
		installments = 1
	}
	if installments < 1 || installments > maxInstallments {
		return nil, &domain.ErrValidation{
			Field:   "installments",
			Message: fmt.Sprintf("must be between 1 and %d", maxInstallments),
		}
	}
	purchaseDate, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return nil, &domain.ErrValidation{Field: "date", Message: "must be YYYY-MM-DD"}
	}

	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}

	used, err := s.store.UsedLimit(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if used+req.Value > card.CreditLimit {
		s.logger.Warn("purchase rejected: credit limit",
			zap.String("card_id", cardID),
			zap.Float64("limit", card.CreditLimit),
			zap.Float64("used", used),
			zap.Float64("requested", req.Value),
		)
		return nil, &domain.ErrLimitExceeded{Limit: card.CreditLimit, Used: used, Requested: req.Value}
	}

	specs := buildInstallmentPlan(card, req, purchaseDate, installments)
	purchases, invoices, err := s.store.CreateInstallments(ctx, cardID, specs)
	if err != nil {
		s.logger.Error("failed to commit installment plan",
			zap.String("card_id", cardID), zap.Error(err))
		return nil, err
	}
	s.metrics.AddPurchases(len(purchases))

	s.logger.Info("purchase created",
		zap.String("card_id", cardID),
		zap.Float64("value", req.Value),
		zap.Int("installments", installments),
		zap.Int("invoices_touched", len(invoices)),
	)
	return &domain.PurchaseResult{Purchases: purchases, Invoices: invoices}, nil
}

// buildInstallmentPlan splits a purchase into N equal monthly charges and
// resolves the invoice cycle each one belongs to. Installment i carries the
// original date advanced by i months (with end-of-month clipping), and each
// advanced date goes through cycle resolution independently.
func buildInstallmentPlan(card *domain.Card, req *domain.PurchaseRequest, purchaseDate time.Time, installments int) []domain.InstallmentSpec {
	var parentID *string
	if installments > 1 {
		id := uuid.New().String()
		parentID = &id
	}
	value := req.Value / float64(installments)
	now := time.Now().UTC()

	specs := make([]domain.InstallmentSpec, 0, installments)
	for i := 0; i < installments; i++ {
		date := cycle.AddMonths(purchaseDate, i)
		month, year := cycle.Resolve(date, card.ClosingDay, card.DueDay)
		closing, due := cycle.InvoiceDates(month, year, card.ClosingDay, card.DueDay)

		specs = append(specs, domain.InstallmentSpec{
			Purchase: domain.Purchase{
				ID:                 uuid.New().String(),
				CardID:             card.ID,
				Description:        req.Description,
				Category:           req.Category,
				Value:              value,
				TotalValue:         req.Value,
				Installments:       installments,
				CurrentInstallment: i + 1,
				ParentPurchaseID:   parentID,
				Date:               date,
				CreatedAt:          now,
			},
			ReferenceMonth: int(month),
			ReferenceYear:  year,
			ClosingDate:    closing,
			DueDate:        due,
		})
	}
	return specs
}

// ============================================================
// Invoices
// ============================================================

func (s *BillingService) ListInvoices(ctx context.Context, cardID string) ([]domain.Invoice, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.ListInvoices")
	defer span.End()

	if _, err := s.store.GetCard(ctx, cardID); err != nil {
		return nil, err
	}
	return s.store.ListInvoices(ctx, cardID)
}

// GetInvoice returns one invoice by billing cycle along with its purchases.
func (s *BillingService) GetInvoice(ctx context.Context, cardID string, month, year int) (*domain.Invoice, []domain.Purchase, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.GetInvoice")
	defer span.End()

	if month < 1 || month > 12 {
		return nil, nil, &domain.ErrValidation{Field: "month", Message: "must be between 1 and 12"}
	}
	if _, err := s.store.GetCard(ctx, cardID); err != nil {
		return nil, nil, err
	}
	invoice, err := s.store.GetInvoiceByCycle(ctx, cardID, month, year)
	if err != nil {
		return nil, nil, err
	}
	purchases, err := s.store.ListInvoicePurchases(ctx, invoice.ID)
	if err != nil {
		return nil, nil, err
	}
	return invoice, purchases, nil
}

// PayInvoice records an external payment against the invoice of the given
// cycle. Paying frees the card's limit since UsedLimit skips paid invoices.
func (s *BillingService) PayInvoice(ctx context.Context, cardID string, month, year int, req *domain.InvoicePayRequest) (*domain.Invoice, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.PayInvoice")
	defer span.End()

	if req.Amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	invoice, err := s.store.GetInvoiceByCycle(ctx, cardID, month, year)
	if err != nil {
		return nil, err
	}

	paid, err := s.store.RegisterInvoicePayment(ctx, invoice.ID, req.Amount)
	if err != nil {
		return nil, err
	}
	s.logger.Info("invoice payment registered",
		zap.String("invoice_id", invoice.ID),
		zap.Float64("amount", req.Amount),
		zap.String("status", string(paid.Status)),
	)
	return paid, nil
}
