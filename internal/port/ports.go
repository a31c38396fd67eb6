// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/peandrade/cifracash/internal/domain"
	"github.com/peandrade/cifracash/internal/rates"
)

// LedgerStore defines all data operations for cards, invoices and purchases.
// Implemented by the SQLite store (or any other persistence layer).
type LedgerStore interface {
	// Cards
	CreateCard(ctx context.Context, req *domain.CardRequest) (*domain.Card, error)
	ListCards(ctx context.Context) ([]domain.Card, error)
	GetCard(ctx context.Context, cardID string) (*domain.Card, error)
	UsedLimit(ctx context.Context, cardID string) (float64, error)

	// Invoices
	ListInvoices(ctx context.Context, cardID string) ([]domain.Invoice, error)
	GetInvoiceByCycle(ctx context.Context, cardID string, month, year int) (*domain.Invoice, error)
	ListInvoicePurchases(ctx context.Context, invoiceID string) ([]domain.Purchase, error)
	RegisterInvoicePayment(ctx context.Context, invoiceID string, amount float64) (*domain.Invoice, error)

	// Installment plans
	CreateInstallments(ctx context.Context, cardID string, specs []domain.InstallmentSpec) ([]domain.Purchase, []domain.Invoice, error)
}

// InvestmentStore defines all data operations for investment positions.
type InvestmentStore interface {
	CreateInvestment(ctx context.Context, inv *domain.Investment) error
	ListInvestments(ctx context.Context) ([]domain.Investment, error)
	GetInvestment(ctx context.Context, id string) (*domain.Investment, error)
	ListOperations(ctx context.Context, investmentID string) ([]domain.Operation, error)
	LatestOperationDate(ctx context.Context, investmentID string) (time.Time, error)
	CreateOperation(ctx context.Context, op *domain.Operation) (*domain.Investment, error)
	UpdatePositionValue(ctx context.Context, investmentID string, value float64) error
}

// RateProvider supplies the benchmark daily-rate series covering the last
// N calendar days. The boolean reports whether the series is synthetic
// (the upstream source was unavailable).
type RateProvider interface {
	Fetch(ctx context.Context, days int) (rates.Series, bool)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
