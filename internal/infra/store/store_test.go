package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/peandrade/cifracash/internal/domain"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testCard(t *testing.T, s *Store) *domain.Card {
	t.Helper()
	card, err := s.CreateCard(context.Background(), &domain.CardRequest{
		Name:        "Platinum",
		ClosingDay:  20,
		DueDay:      27,
		CreditLimit: 5000,
	})
	if err != nil {
		t.Fatalf("CreateCard() error = %v", err)
	}
	return card
}

func installmentSpecs(card *domain.Card, total float64, n int, first time.Time) []domain.InstallmentSpec {
	parent := NewID()
	specs := make([]domain.InstallmentSpec, 0, n)
	for i := 0; i < n; i++ {
		date := first.AddDate(0, i, 0)
		month := date.Month()
		year := date.Year()
		var parentID *string
		if n > 1 {
			parentID = &parent
		}
		specs = append(specs, domain.InstallmentSpec{
			Purchase: domain.Purchase{
				ID:                 NewID(),
				CardID:             card.ID,
				Description:        "notebook",
				Category:           "electronics",
				Value:              total / float64(n),
				TotalValue:         total,
				Installments:       n,
				CurrentInstallment: i + 1,
				ParentPurchaseID:   parentID,
				Date:               date,
				CreatedAt:          time.Now().UTC(),
			},
			ReferenceMonth: int(month),
			ReferenceYear:  year,
			ClosingDate:    time.Date(year, month, 20, 0, 0, 0, 0, time.UTC),
			DueDate:        time.Date(year, month, 27, 0, 0, 0, 0, time.UTC),
		})
	}
	return specs
}

func TestStore_CardRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	card := testCard(t, s)

	got, err := s.GetCard(ctx, card.ID)
	if err != nil {
		t.Fatalf("GetCard() error = %v", err)
	}
	if got.Name != "Platinum" || got.ClosingDay != 20 || got.DueDay != 27 || got.CreditLimit != 5000 {
		t.Errorf("GetCard() = %+v", got)
	}

	cards, err := s.ListCards(ctx)
	if err != nil {
		t.Fatalf("ListCards() error = %v", err)
	}
	if len(cards) != 1 {
		t.Errorf("ListCards() returned %d cards, want 1", len(cards))
	}
}

func TestStore_GetCard_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetCard(context.Background(), "nope")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("GetCard() error = %v, want ErrNotFound", err)
	}
	if notFound.Resource != "card" {
		t.Errorf("Resource = %q, want card", notFound.Resource)
	}
}

func TestStore_GetOrCreateInvoice_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	card := testCard(t, s)

	closing := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)
	due := time.Date(2024, 2, 27, 0, 0, 0, 0, time.UTC)

	first, err := s.GetOrCreateInvoice(ctx, card.ID, 2, 2024, closing, due)
	if err != nil {
		t.Fatalf("GetOrCreateInvoice() error = %v", err)
	}
	second, err := s.GetOrCreateInvoice(ctx, card.ID, 2, 2024, closing, due)
	if err != nil {
		t.Fatalf("GetOrCreateInvoice() second call error = %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("second call created a new invoice: %s vs %s", first.ID, second.ID)
	}
	if second.Status != domain.InvoiceOpen {
		t.Errorf("Status = %q, want open", second.Status)
	}
}

func TestStore_CreateInstallments_DistributesAcrossInvoices(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	card := testCard(t, s)

	first := time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)
	purchases, invoices, err := s.CreateInstallments(ctx, card.ID, installmentSpecs(card, 900, 3, first))
	if err != nil {
		t.Fatalf("CreateInstallments() error = %v", err)
	}
	if len(purchases) != 3 {
		t.Fatalf("got %d purchases, want 3", len(purchases))
	}
	if len(invoices) != 3 {
		t.Fatalf("got %d invoices, want 3", len(invoices))
	}
	for i, inv := range invoices {
		if inv.Total != 300 {
			t.Errorf("invoice %d total = %.2f, want 300", i, inv.Total)
		}
		if inv.ReferenceMonth != int(time.February)+i {
			t.Errorf("invoice %d month = %d, want %d", i, inv.ReferenceMonth, int(time.February)+i)
		}
	}
	for i, p := range purchases {
		if p.CurrentInstallment != i+1 {
			t.Errorf("purchase %d CurrentInstallment = %d", i, p.CurrentInstallment)
		}
		if p.ParentPurchaseID == nil {
			t.Errorf("purchase %d missing parent id", i)
		}
	}

	listed, err := s.ListInvoicePurchases(ctx, invoices[0].ID)
	if err != nil {
		t.Fatalf("ListInvoicePurchases() error = %v", err)
	}
	if len(listed) != 1 || listed[0].Value != 300 {
		t.Errorf("ListInvoicePurchases() = %+v", listed)
	}
}

func TestStore_CreateInstallments_SameInvoiceAccumulates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	card := testCard(t, s)

	first := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	if _, _, err := s.CreateInstallments(ctx, card.ID, installmentSpecs(card, 100, 1, first)); err != nil {
		t.Fatalf("first plan error = %v", err)
	}
	_, invoices, err := s.CreateInstallments(ctx, card.ID, installmentSpecs(card, 50, 1, first))
	if err != nil {
		t.Fatalf("second plan error = %v", err)
	}
	if invoices[0].Total != 150 {
		t.Errorf("invoice total = %.2f, want 150", invoices[0].Total)
	}
}

func TestStore_UsedLimit_ExcludesPaidInvoices(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	card := testCard(t, s)

	first := time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)
	_, invoices, err := s.CreateInstallments(ctx, card.ID, installmentSpecs(card, 900, 3, first))
	if err != nil {
		t.Fatalf("CreateInstallments() error = %v", err)
	}

	used, err := s.UsedLimit(ctx, card.ID)
	if err != nil {
		t.Fatalf("UsedLimit() error = %v", err)
	}
	if used != 900 {
		t.Errorf("UsedLimit() = %.2f, want 900", used)
	}

	paid, err := s.RegisterInvoicePayment(ctx, invoices[0].ID, 300)
	if err != nil {
		t.Fatalf("RegisterInvoicePayment() error = %v", err)
	}
	if paid.Status != domain.InvoicePaid {
		t.Errorf("status after full payment = %q, want paid", paid.Status)
	}

	used, err = s.UsedLimit(ctx, card.ID)
	if err != nil {
		t.Fatalf("UsedLimit() after payment error = %v", err)
	}
	if used != 600 {
		t.Errorf("UsedLimit() after payment = %.2f, want 600", used)
	}
}

func TestStore_RegisterInvoicePayment_Partial(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	card := testCard(t, s)

	first := time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)
	_, invoices, err := s.CreateInstallments(ctx, card.ID, installmentSpecs(card, 300, 1, first))
	if err != nil {
		t.Fatalf("CreateInstallments() error = %v", err)
	}

	inv, err := s.RegisterInvoicePayment(ctx, invoices[0].ID, 100)
	if err != nil {
		t.Fatalf("RegisterInvoicePayment() error = %v", err)
	}
	if inv.Status != domain.InvoiceOpen {
		t.Errorf("status after partial payment = %q, want open", inv.Status)
	}
	if inv.PaidAmount != 100 {
		t.Errorf("PaidAmount = %.2f, want 100", inv.PaidAmount)
	}
}

func TestStore_InvestmentOperations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inv := &domain.Investment{
		ID:           NewID(),
		Name:         "CDB 100% CDI",
		Type:         domain.FixedIncome,
		Indexer:      domain.IndexerCDI,
		InterestRate: 100,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreateInvestment(ctx, inv); err != nil {
		t.Fatalf("CreateInvestment() error = %v", err)
	}

	deposit := &domain.Operation{
		ID:           NewID(),
		InvestmentID: inv.ID,
		Type:         domain.OpDeposit,
		Price:        10000,
		Date:         time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC),
		CreatedAt:    time.Now().UTC(),
	}
	updated, err := s.CreateOperation(ctx, deposit)
	if err != nil {
		t.Fatalf("CreateOperation(deposit) error = %v", err)
	}
	if updated.TotalInvested != 10000 || updated.CurrentValue != 10000 {
		t.Errorf("after deposit: invested=%.2f value=%.2f", updated.TotalInvested, updated.CurrentValue)
	}

	withdraw := &domain.Operation{
		ID:           NewID(),
		InvestmentID: inv.ID,
		Type:         domain.OpWithdraw,
		Price:        2500,
		Date:         time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC),
		CreatedAt:    time.Now().UTC(),
	}
	updated, err = s.CreateOperation(ctx, withdraw)
	if err != nil {
		t.Fatalf("CreateOperation(withdraw) error = %v", err)
	}
	if updated.TotalInvested != 7500 {
		t.Errorf("after withdraw: invested=%.2f, want 7500", updated.TotalInvested)
	}

	ops, err := s.ListOperations(ctx, inv.ID)
	if err != nil {
		t.Fatalf("ListOperations() error = %v", err)
	}
	if len(ops) != 2 || ops[0].Type != domain.OpDeposit || ops[1].Type != domain.OpWithdraw {
		t.Errorf("ListOperations() = %+v", ops)
	}
	if !ops[0].Date.Equal(deposit.Date) {
		t.Errorf("deposit date = %s, want %s", ops[0].Date, deposit.Date)
	}

	latest, err := s.LatestOperationDate(ctx, inv.ID)
	if err != nil {
		t.Fatalf("LatestOperationDate() error = %v", err)
	}
	if !latest.Equal(withdraw.Date) {
		t.Errorf("LatestOperationDate() = %v, want %v", latest, withdraw.Date)
	}
}

func TestStore_WithdrawClampsPrincipalAtZero(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inv := &domain.Investment{
		ID:           NewID(),
		Name:         "CDB 110% CDI",
		Type:         domain.FixedIncome,
		Indexer:      domain.IndexerCDI,
		InterestRate: 110,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreateInvestment(ctx, inv); err != nil {
		t.Fatalf("CreateInvestment() error = %v", err)
	}
	if _, err := s.CreateOperation(ctx, &domain.Operation{
		ID: NewID(), InvestmentID: inv.ID, Type: domain.OpDeposit, Price: 1000,
		Date:      time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("CreateOperation(deposit) error = %v", err)
	}

	// Mark the position above principal, then withdraw into the yield.
	if err := s.UpdatePositionValue(ctx, inv.ID, 1050); err != nil {
		t.Fatalf("UpdatePositionValue() error = %v", err)
	}
	updated, err := s.CreateOperation(ctx, &domain.Operation{
		ID: NewID(), InvestmentID: inv.ID, Type: domain.OpWithdraw, Price: 1020,
		Date:      time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateOperation(withdraw) error = %v", err)
	}
	if updated.TotalInvested != 0 {
		t.Errorf("TotalInvested = %.2f, want 0 (clamped)", updated.TotalInvested)
	}
	if updated.CurrentValue != 30 {
		t.Errorf("CurrentValue = %.2f, want 30", updated.CurrentValue)
	}
}

func TestStore_LatestOperationDate_Empty(t *testing.T) {
	s := newTestStore(t)

	latest, err := s.LatestOperationDate(context.Background(), "none")
	if err != nil {
		t.Fatalf("LatestOperationDate() error = %v", err)
	}
	if !latest.IsZero() {
		t.Errorf("LatestOperationDate() = %v, want zero time", latest)
	}
}

func TestStore_UpdatePositionValue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inv := &domain.Investment{
		ID:        NewID(),
		Name:      "Tesouro Selic",
		Type:      domain.FixedIncome,
		Indexer:   domain.IndexerSELIC,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateInvestment(ctx, inv); err != nil {
		t.Fatalf("CreateInvestment() error = %v", err)
	}
	if err := s.UpdatePositionValue(ctx, inv.ID, 10123.45); err != nil {
		t.Fatalf("UpdatePositionValue() error = %v", err)
	}
	got, err := s.GetInvestment(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvestment() error = %v", err)
	}
	if got.CurrentValue != 10123.45 {
		t.Errorf("CurrentValue = %.2f, want 10123.45", got.CurrentValue)
	}

	var notFound *domain.ErrNotFound
	if err := s.UpdatePositionValue(ctx, "missing", 1); !errors.As(err, &notFound) {
		t.Errorf("UpdatePositionValue(missing) error = %v, want ErrNotFound", err)
	}
}
