package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/peandrade/cifracash/internal/domain"
	"github.com/peandrade/cifracash/internal/infra/observability"
	"github.com/peandrade/cifracash/internal/rates"

	"go.uber.org/zap"
)

// ============================================================
// Mocks
// ============================================================

type mockInvestmentStore struct {
	investment  *domain.Investment
	investments []domain.Investment
	operations  []domain.Operation
	latest      time.Time
	created     *domain.Operation
	markedValue float64
	markCalled  bool
}

func (m *mockInvestmentStore) CreateInvestment(_ context.Context, inv *domain.Investment) error {
	m.investment = inv
	return nil
}

func (m *mockInvestmentStore) ListInvestments(context.Context) ([]domain.Investment, error) {
	return m.investments, nil
}

func (m *mockInvestmentStore) GetInvestment(_ context.Context, id string) (*domain.Investment, error) {
	if m.investment == nil || m.investment.ID != id {
		for i := range m.investments {
			if m.investments[i].ID == id {
				return &m.investments[i], nil
			}
		}
		return nil, &domain.ErrNotFound{Resource: "investment", ID: id}
	}
	return m.investment, nil
}

func (m *mockInvestmentStore) ListOperations(context.Context, string) ([]domain.Operation, error) {
	return m.operations, nil
}

func (m *mockInvestmentStore) LatestOperationDate(context.Context, string) (time.Time, error) {
	return m.latest, nil
}

func (m *mockInvestmentStore) CreateOperation(_ context.Context, op *domain.Operation) (*domain.Investment, error) {
	m.created = op
	inv := *m.investment
	if op.Type.Inflow() {
		inv.TotalInvested += op.Price
	} else {
		inv.TotalInvested -= op.Price
	}
	return &inv, nil
}

func (m *mockInvestmentStore) UpdatePositionValue(_ context.Context, _ string, value float64) error {
	m.markCalled = true
	m.markedValue = value
	return nil
}

type stubRateProvider struct {
	series    rates.Series
	degraded  bool
	lastDays  int
	fetchHits int
}

func (p *stubRateProvider) Fetch(_ context.Context, days int) (rates.Series, bool) {
	p.fetchHits++
	p.lastDays = days
	return p.series, p.degraded
}

var testNow = time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC)

func newInvestmentService(store *mockInvestmentStore, provider *stubRateProvider) *InvestmentService {
	return NewInvestmentService(store, provider, observability.NewMetrics(), zap.NewNop(),
		WithInvestmentClock(func() time.Time { return testNow }))
}

func flatBusinessSeries(start time.Time, businessDays int, rate float64) rates.Series {
	var s rates.Series
	d := start
	for len(s) < businessDays {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			s = append(s, rates.Entry{Date: d, Rate: rate})
		}
		d = d.AddDate(0, 0, 1)
	}
	return s
}

// ============================================================
// Tests
// ============================================================

func TestCreateInvestment_Validation(t *testing.T) {
	svc := newInvestmentService(&mockInvestmentStore{}, &stubRateProvider{})

	tests := []struct {
		name string
		req  domain.InvestmentRequest
	}{
		{"missing name", domain.InvestmentRequest{Type: "fixed_income", Indexer: "CDI"}},
		{"bad type", domain.InvestmentRequest{Name: "x", Type: "crypto"}},
		{"fixed income without indexer", domain.InvestmentRequest{Name: "x", Type: "fixed_income"}},
		{"fixed income with NA indexer", domain.InvestmentRequest{Name: "x", Type: "fixed_income", Indexer: "NA"}},
		{"negative rate", domain.InvestmentRequest{Name: "x", Type: "fixed_income", Indexer: "CDI", InterestRate: -1}},
		{"bad maturity date", domain.InvestmentRequest{Name: "x", Type: "fixed_income", Indexer: "CDI", MaturityDate: "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateInvestment(context.Background(), &tt.req)
			var verr *domain.ErrValidation
			if !errors.As(err, &verr) {
				t.Errorf("CreateInvestment() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCreateInvestment_VariableIncomeForcesNAIndexer(t *testing.T) {
	store := &mockInvestmentStore{}
	svc := newInvestmentService(store, &stubRateProvider{})

	inv, err := svc.CreateInvestment(context.Background(), &domain.InvestmentRequest{
		Name:    "PETR4",
		Type:    "variable_income",
		Indexer: "CDI", // ignored for variable income
	})
	if err != nil {
		t.Fatalf("CreateInvestment() error = %v", err)
	}
	if inv.Indexer != domain.IndexerNA {
		t.Errorf("Indexer = %q, want NA", inv.Indexer)
	}
}

func TestCreateOperation_TypeCompatibility(t *testing.T) {
	store := &mockInvestmentStore{
		investment: &domain.Investment{ID: "inv-1", Type: domain.FixedIncome, Indexer: domain.IndexerCDI},
	}
	svc := newInvestmentService(store, &stubRateProvider{})

	_, err := svc.CreateOperation(context.Background(), "inv-1", &domain.OperationRequest{
		Type: "buy", Price: 10, Quantity: 1, Date: "2024-06-01",
	})
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Errorf("buy on fixed income error = %v, want ErrValidation", err)
	}

	store.investment.Type = domain.VariableIncome
	_, err = svc.CreateOperation(context.Background(), "inv-1", &domain.OperationRequest{
		Type: "deposit", Price: 10, Date: "2024-06-01",
	})
	if !errors.As(err, &verr) {
		t.Errorf("deposit on variable income error = %v, want ErrValidation", err)
	}
}

func TestCreateOperation_RejectsFutureDate(t *testing.T) {
	store := &mockInvestmentStore{
		investment: &domain.Investment{ID: "inv-1", Type: domain.FixedIncome, Indexer: domain.IndexerCDI},
	}
	svc := newInvestmentService(store, &stubRateProvider{})

	_, err := svc.CreateOperation(context.Background(), "inv-1", &domain.OperationRequest{
		Type: "deposit", Price: 100, Date: "2024-06-15",
	})
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) {
		t.Fatalf("future date error = %v, want ErrValidation", err)
	}
	if store.created != nil {
		t.Errorf("rejected operation reached the store")
	}
}

func TestCreateOperation_RejectsOutOfOrderDate(t *testing.T) {
	store := &mockInvestmentStore{
		investment: &domain.Investment{ID: "inv-1", Type: domain.FixedIncome, Indexer: domain.IndexerCDI, TotalInvested: 1000},
		latest:     time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
	}
	svc := newInvestmentService(store, &stubRateProvider{})

	_, err := svc.CreateOperation(context.Background(), "inv-1", &domain.OperationRequest{
		Type: "deposit", Price: 100, Date: "2024-06-05",
	})
	var chronErr *domain.ErrChronology
	if !errors.As(err, &chronErr) {
		t.Fatalf("out-of-order date error = %v, want ErrChronology", err)
	}
	if !chronErr.Latest.Equal(store.latest) {
		t.Errorf("Latest = %v, want %v", chronErr.Latest, store.latest)
	}
	if store.created != nil {
		t.Errorf("rejected operation reached the store")
	}
}

func TestCreateOperation_WithdrawExceedsPrincipal(t *testing.T) {
	store := &mockInvestmentStore{
		investment: &domain.Investment{ID: "inv-1", Type: domain.FixedIncome, Indexer: domain.IndexerCDI, TotalInvested: 500, CurrentValue: 500},
	}
	svc := newInvestmentService(store, &stubRateProvider{})

	_, err := svc.CreateOperation(context.Background(), "inv-1", &domain.OperationRequest{
		Type: "withdraw", Price: 600, Date: "2024-06-01",
	})
	var fundsErr *domain.ErrInsufficientFunds
	if !errors.As(err, &fundsErr) {
		t.Fatalf("over-withdrawal error = %v, want ErrInsufficientFunds", err)
	}
	if fundsErr.Available != 500 || fundsErr.Required != 600 {
		t.Errorf("funds error = %+v", fundsErr)
	}
	if store.created != nil {
		t.Errorf("rejected operation reached the store")
	}
}

func TestCreateOperation_WithdrawAccruedYield(t *testing.T) {
	// Current value includes accrued yield above the invested principal.
	// Withdrawals up to the current mark must go through.
	store := &mockInvestmentStore{
		investment: &domain.Investment{
			ID: "inv-1", Type: domain.FixedIncome, Indexer: domain.IndexerCDI,
			TotalInvested: 1000, CurrentValue: 1050,
		},
	}
	svc := newInvestmentService(store, &stubRateProvider{})

	res, err := svc.CreateOperation(context.Background(), "inv-1", &domain.OperationRequest{
		Type: "withdraw", Price: 1020, Date: "2024-06-01",
	})
	if err != nil {
		t.Fatalf("withdrawal within current value failed: %v", err)
	}
	if res.Operation.Price != 1020 {
		t.Errorf("operation price = %.2f, want 1020", res.Operation.Price)
	}

	_, err = svc.CreateOperation(context.Background(), "inv-1", &domain.OperationRequest{
		Type: "withdraw", Price: 1060, Date: "2024-06-01",
	})
	var fundsErr *domain.ErrInsufficientFunds
	if !errors.As(err, &fundsErr) {
		t.Fatalf("over-withdrawal error = %v, want ErrInsufficientFunds", err)
	}
	if fundsErr.Available != 1050 || fundsErr.Required != 1060 {
		t.Errorf("funds error = %+v", fundsErr)
	}
}

func TestCreateOperation_SellExceedsHeldQuantity(t *testing.T) {
	store := &mockInvestmentStore{
		investment: &domain.Investment{ID: "inv-1", Type: domain.VariableIncome, Indexer: domain.IndexerNA},
		operations: []domain.Operation{
			{Type: domain.OpBuy, Quantity: 10},
			{Type: domain.OpSell, Quantity: 4},
		},
	}
	svc := newInvestmentService(store, &stubRateProvider{})

	_, err := svc.CreateOperation(context.Background(), "inv-1", &domain.OperationRequest{
		Type: "sell", Price: 30, Quantity: 7, Date: "2024-06-01",
	})
	var fundsErr *domain.ErrInsufficientFunds
	if !errors.As(err, &fundsErr) {
		t.Fatalf("oversell error = %v, want ErrInsufficientFunds", err)
	}
	if fundsErr.Available != 6 {
		t.Errorf("Available = %.2f, want 6", fundsErr.Available)
	}
}

func TestCreateOperation_Deposit(t *testing.T) {
	store := &mockInvestmentStore{
		investment: &domain.Investment{ID: "inv-1", Type: domain.FixedIncome, Indexer: domain.IndexerCDI},
	}
	svc := newInvestmentService(store, &stubRateProvider{})

	result, err := svc.CreateOperation(context.Background(), "inv-1", &domain.OperationRequest{
		Type: "deposit", Price: 10000, Date: "2024-05-15",
	})
	if err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}
	if result.Operation.Type != domain.OpDeposit || result.Operation.Price != 10000 {
		t.Errorf("operation = %+v", result.Operation)
	}
	if result.Position.TotalInvested != 10000 {
		t.Errorf("TotalInvested = %.2f, want 10000", result.Position.TotalInvested)
	}
}

func TestGetPosition_VariableIncomeHasNoYield(t *testing.T) {
	store := &mockInvestmentStore{
		investment: &domain.Investment{ID: "inv-1", Type: domain.VariableIncome, Indexer: domain.IndexerNA},
	}
	provider := &stubRateProvider{}
	svc := newInvestmentService(store, provider)

	pos, err := svc.GetPosition(context.Background(), "inv-1")
	if err != nil {
		t.Fatalf("GetPosition() error = %v", err)
	}
	if pos.Yield != nil {
		t.Errorf("Yield = %+v, want nil", pos.Yield)
	}
	if provider.fetchHits != 0 {
		t.Errorf("rate provider hit %d times for variable income", provider.fetchHits)
	}
}

func TestGetPosition_ComputesAndPersistsYield(t *testing.T) {
	depositDate := testNow.AddDate(0, 0, -30)
	store := &mockInvestmentStore{
		investment: &domain.Investment{ID: "inv-1", Type: domain.FixedIncome, Indexer: domain.IndexerCDI, InterestRate: 100, TotalInvested: 10000},
		operations: []domain.Operation{
			{ID: "op-1", InvestmentID: "inv-1", Type: domain.OpDeposit, Price: 10000, Date: depositDate},
		},
	}
	provider := &stubRateProvider{series: flatBusinessSeries(depositDate, 40, 0.04)}
	svc := newInvestmentService(store, provider)

	pos, err := svc.GetPosition(context.Background(), "inv-1")
	if err != nil {
		t.Fatalf("GetPosition() error = %v", err)
	}
	if pos.Yield == nil {
		t.Fatal("Yield is nil")
	}
	if pos.Yield.GrossYield <= 0 {
		t.Errorf("GrossYield = %.4f, want positive", pos.Yield.GrossYield)
	}
	if pos.Yield.CalendarDays != 30 {
		t.Errorf("CalendarDays = %d, want 30", pos.Yield.CalendarDays)
	}
	if provider.lastDays < 30 {
		t.Errorf("requested window = %d days, want at least 30", provider.lastDays)
	}
	if !store.markCalled {
		t.Fatal("position mark not persisted")
	}
	if math.Abs(store.markedValue-pos.Yield.NetValue) > 1e-9 {
		t.Errorf("persisted mark = %.4f, want %.4f", store.markedValue, pos.Yield.NetValue)
	}
	if pos.Investment.CurrentValue != pos.Yield.NetValue {
		t.Errorf("CurrentValue = %.4f, want %.4f", pos.Investment.CurrentValue, pos.Yield.NetValue)
	}
	if pos.RateDegraded {
		t.Error("RateDegraded = true on real series")
	}
}

func TestGetPosition_FlagsDegradedRates(t *testing.T) {
	depositDate := testNow.AddDate(0, 0, -10)
	store := &mockInvestmentStore{
		investment: &domain.Investment{ID: "inv-1", Type: domain.FixedIncome, Indexer: domain.IndexerCDI, InterestRate: 100},
		operations: []domain.Operation{
			{Type: domain.OpDeposit, Price: 1000, Date: depositDate},
		},
	}
	provider := &stubRateProvider{series: flatBusinessSeries(depositDate, 10, 0.04), degraded: true}
	svc := newInvestmentService(store, provider)

	pos, err := svc.GetPosition(context.Background(), "inv-1")
	if err != nil {
		t.Fatalf("GetPosition() error = %v", err)
	}
	if !pos.RateDegraded {
		t.Error("RateDegraded = false, want true")
	}
}

func TestPortfolio_PreservesOrder(t *testing.T) {
	store := &mockInvestmentStore{
		investments: []domain.Investment{
			{ID: "a", Type: domain.VariableIncome, Indexer: domain.IndexerNA},
			{ID: "b", Type: domain.VariableIncome, Indexer: domain.IndexerNA},
			{ID: "c", Type: domain.VariableIncome, Indexer: domain.IndexerNA},
		},
	}
	svc := newInvestmentService(store, &stubRateProvider{})

	positions, err := svc.Portfolio(context.Background())
	if err != nil {
		t.Fatalf("Portfolio() error = %v", err)
	}
	if len(positions) != 3 {
		t.Fatalf("got %d positions, want 3", len(positions))
	}
	for i, want := range []string{"a", "b", "c"} {
		if positions[i].Investment.ID != want {
			t.Errorf("positions[%d].ID = %s, want %s", i, positions[i].Investment.ID, want)
		}
	}
}
