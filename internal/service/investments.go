package service

import (
	"context"
	"time"

	"github.com/peandrade/cifracash/internal/domain"
	"github.com/peandrade/cifracash/internal/infra/observability"
	"github.com/peandrade/cifracash/internal/port"
	"github.com/peandrade/cifracash/internal/yield"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var investTracer = otel.Tracer("service/investments")

const maxConcurrentPositions = 4

// InvestmentService orchestrates investment positions and their yield
// computation against the benchmark rate series.
type InvestmentService struct {
	store   port.InvestmentStore
	rates   port.RateProvider
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// InvestmentOption configures an InvestmentService.
type InvestmentOption func(*InvestmentService)

// WithInvestmentClock overrides the wall clock, for tests.
func WithInvestmentClock(now func() time.Time) InvestmentOption {
	return func(s *InvestmentService) { s.now = now }
}

// NewInvestmentService creates a new investment service.
func NewInvestmentService(store port.InvestmentStore, rates port.RateProvider, metrics *observability.Metrics, logger *zap.Logger, opts ...InvestmentOption) *InvestmentService {
	s := &InvestmentService{
		store:   store,
		rates:   rates,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ============================================================
// Positions
// ============================================================

func (s *InvestmentService) CreateInvestment(ctx context.Context, req *domain.InvestmentRequest) (*domain.Investment, error) {
	ctx, span := investTracer.Start(ctx, "InvestmentService.CreateInvestment")
	defer span.End()

	if req.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	invType := domain.InvestmentType(req.Type)
	if invType != domain.FixedIncome && invType != domain.VariableIncome {
		return nil, &domain.ErrValidation{Field: "type", Message: "must be fixed_income or variable_income"}
	}

	indexer := domain.Indexer(req.Indexer)
	if invType == domain.FixedIncome {
		if !domain.ValidIndexer(indexer) || indexer == domain.IndexerNA {
			return nil, &domain.ErrValidation{Field: "indexer", Message: "must be CDI, SELIC, IPCA or PREFIXADO"}
		}
		if req.InterestRate < 0 {
			return nil, &domain.ErrValidation{Field: "interest_rate", Message: "must not be negative"}
		}
	} else {
		indexer = domain.IndexerNA
	}

	var maturity *time.Time
	if req.MaturityDate != "" {
		t, err := time.Parse(dateLayout, req.MaturityDate)
		if err != nil {
			return nil, &domain.ErrValidation{Field: "maturity_date", Message: "must be YYYY-MM-DD"}
		}
		maturity = &t
	}

	inv := &domain.Investment{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Type:         invType,
		Indexer:      indexer,
		InterestRate: req.InterestRate,
		MaturityDate: maturity,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateInvestment(ctx, inv); err != nil {
		s.logger.Error("failed to create investment", zap.String("name", req.Name), zap.Error(err))
		return nil, err
	}

	s.logger.Info("investment created",
		zap.String("investment_id", inv.ID),
		zap.String("indexer", string(inv.Indexer)),
		zap.Float64("interest_rate", inv.InterestRate),
	)
	return inv, nil
}

func (s *InvestmentService) ListInvestments(ctx context.Context) ([]domain.Investment, error) {
	ctx, span := investTracer.Start(ctx, "InvestmentService.ListInvestments")
	defer span.End()

	return s.store.ListInvestments(ctx)
}

func (s *InvestmentService) GetInvestment(ctx context.Context, id string) (*domain.Investment, error) {
	ctx, span := investTracer.Start(ctx, "InvestmentService.GetInvestment")
	defer span.End()

	return s.store.GetInvestment(ctx, id)
}

// ============================================================
// Operations
// ============================================================

// CreateOperation validates and appends one operation to a position. All
// checks (type compatibility, future dating, chronology, available balance)
// run before any write.
func (s *InvestmentService) CreateOperation(ctx context.Context, investmentID string, req *domain.OperationRequest) (*domain.OperationResult, error) {
	ctx, span := investTracer.Start(ctx, "InvestmentService.CreateOperation")
	defer span.End()
	span.SetAttributes(attribute.String("investment.id", investmentID))

	opType := domain.OperationType(req.Type)
	inv, err := s.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return nil, err
	}

	switch inv.Type {
	case domain.FixedIncome:
		if opType != domain.OpDeposit && opType != domain.OpWithdraw {
			return nil, &domain.ErrValidation{Field: "type", Message: "fixed income accepts deposit or withdraw"}
		}
	case domain.VariableIncome:
		if opType != domain.OpBuy && opType != domain.OpSell {
			return nil, &domain.ErrValidation{Field: "type", Message: "variable income accepts buy or sell"}
		}
		if req.Quantity <= 0 {
			return nil, &domain.ErrValidation{Field: "quantity", Message: "must be positive"}
		}
	}
	if req.Price <= 0 {
		return nil, &domain.ErrValidation{Field: "price", Message: "must be positive"}
	}
	if req.Fees < 0 {
		return nil, &domain.ErrValidation{Field: "fees", Message: "must not be negative"}
	}

	opDate, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return nil, &domain.ErrValidation{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	today := s.now().UTC().Truncate(24 * time.Hour)
	if opDate.After(today) {
		return nil, &domain.ErrValidation{Field: "date", Message: "must not be in the future"}
	}

	latest, err := s.store.LatestOperationDate(ctx, investmentID)
	if err != nil {
		return nil, err
	}
	if !latest.IsZero() && opDate.Before(latest) {
		return nil, &domain.ErrChronology{Latest: latest, Attempted: opDate}
	}

	if err := s.checkAvailability(ctx, inv, opType, req); err != nil {
		return nil, err
	}

	op := &domain.Operation{
		ID:           uuid.New().String(),
		InvestmentID: investmentID,
		Type:         opType,
		Price:        req.Price,
		Quantity:     req.Quantity,
		Fees:         req.Fees,
		Date:         opDate,
		CreatedAt:    s.now().UTC(),
	}
	updated, err := s.store.CreateOperation(ctx, op)
	if err != nil {
		s.logger.Error("failed to commit operation",
			zap.String("investment_id", investmentID), zap.Error(err))
		return nil, err
	}
	s.metrics.IncrOperation(string(opType))

	s.logger.Info("operation created",
		zap.String("investment_id", investmentID),
		zap.String("type", string(opType)),
		zap.Float64("price", req.Price),
	)
	return &domain.OperationResult{Operation: *op, Position: *updated}, nil
}

// checkAvailability rejects outflows that exceed what the position holds.
// Withdrawals are checked against the position's current marked value,
// which includes accrued yield, sells against the held quantity.
func (s *InvestmentService) checkAvailability(ctx context.Context, inv *domain.Investment, opType domain.OperationType, req *domain.OperationRequest) error {
	switch opType {
	case domain.OpWithdraw:
		available := inv.CurrentValue
		if inv.TotalInvested > available {
			available = inv.TotalInvested
		}
		if req.Price > available {
			return &domain.ErrInsufficientFunds{Available: available, Required: req.Price}
		}
	case domain.OpSell:
		ops, err := s.store.ListOperations(ctx, inv.ID)
		if err != nil {
			return err
		}
		var held float64
		for _, op := range ops {
			switch op.Type {
			case domain.OpBuy:
				held += op.Quantity
			case domain.OpSell:
				held -= op.Quantity
			}
		}
		if req.Quantity > held {
			return &domain.ErrInsufficientFunds{Available: held, Required: req.Quantity}
		}
	}
	return nil
}

func (s *InvestmentService) ListOperations(ctx context.Context, investmentID string) ([]domain.Operation, error) {
	ctx, span := investTracer.Start(ctx, "InvestmentService.ListOperations")
	defer span.End()

	if _, err := s.store.GetInvestment(ctx, investmentID); err != nil {
		return nil, err
	}
	return s.store.ListOperations(ctx, investmentID)
}

// ============================================================
// Yield
// ============================================================

// GetPosition returns an investment with its yield computed against the
// benchmark series covering the position's full deposit window. The freshly
// computed net value is persisted as the position's current mark.
func (s *InvestmentService) GetPosition(ctx context.Context, investmentID string) (*domain.Position, error) {
	ctx, span := investTracer.Start(ctx, "InvestmentService.GetPosition")
	defer span.End()
	span.SetAttributes(attribute.String("investment.id", investmentID))

	inv, err := s.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return nil, err
	}
	if inv.Type != domain.FixedIncome || inv.Indexer == domain.IndexerNA {
		return &domain.Position{Investment: *inv}, nil
	}

	ops, err := s.store.ListOperations(ctx, investmentID)
	if err != nil {
		return nil, err
	}
	var deposits, withdrawals []domain.Operation
	for _, op := range ops {
		switch op.Type {
		case domain.OpDeposit:
			deposits = append(deposits, op)
		case domain.OpWithdraw:
			withdrawals = append(withdrawals, op)
		}
	}
	if len(deposits) == 0 {
		return &domain.Position{Investment: *inv}, nil
	}

	now := s.now().UTC()
	days := int(now.Sub(deposits[0].Date).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	series, degraded := s.rates.Fetch(ctx, days)
	if degraded {
		s.metrics.IncrSyntheticFallback()
		s.logger.Warn("yield computed on synthetic rate series",
			zap.String("investment_id", investmentID))
	}

	result := yield.Compute(deposits, withdrawals, inv.InterestRate, inv.Indexer, series, now)
	s.metrics.IncrYieldComputation()

	if result != nil {
		if err := s.store.UpdatePositionValue(ctx, investmentID, result.NetValue); err != nil {
			s.logger.Warn("failed to persist position mark",
				zap.String("investment_id", investmentID), zap.Error(err))
		}
		inv.CurrentValue = result.NetValue
	}
	return &domain.Position{Investment: *inv, Yield: result, RateDegraded: degraded}, nil
}

// Portfolio computes every position concurrently, bounded to keep pressure
// on the rate provider predictable.
func (s *InvestmentService) Portfolio(ctx context.Context) ([]domain.Position, error) {
	ctx, span := investTracer.Start(ctx, "InvestmentService.Portfolio")
	defer span.End()

	investments, err := s.store.ListInvestments(ctx)
	if err != nil {
		return nil, err
	}

	positions := make([]domain.Position, len(investments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPositions)
	for i, inv := range investments {
		i, inv := i, inv
		g.Go(func() error {
			pos, err := s.GetPosition(gctx, inv.ID)
			if err != nil {
				return err
			}
			positions[i] = *pos
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return positions, nil
}
