package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/peandrade/cifracash/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *Store) CreateInvestment(ctx context.Context, inv *domain.Investment) error {
	ctx, span := tracer.Start(ctx, "Store.CreateInvestment")
	defer span.End()

	var maturity any
	if inv.MaturityDate != nil {
		maturity = inv.MaturityDate.Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO investments (id, name, type, indexer, interest_rate,
		                          total_invested, current_value, maturity_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Name, string(inv.Type), string(inv.Indexer), inv.InterestRate,
		inv.TotalInvested, inv.CurrentValue, maturity, inv.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert investment: %w", err)
	}
	return nil
}

func (s *Store) ListInvestments(ctx context.Context) ([]domain.Investment, error) {
	ctx, span := tracer.Start(ctx, "Store.ListInvestments")
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, type, indexer, interest_rate, total_invested,
		        current_value, maturity_date, created_at
		 FROM investments ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}
	defer rows.Close()

	var investments []domain.Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, err
		}
		investments = append(investments, *inv)
	}
	return investments, rows.Err()
}

func (s *Store) GetInvestment(ctx context.Context, id string) (*domain.Investment, error) {
	ctx, span := tracer.Start(ctx, "Store.GetInvestment")
	defer span.End()

	return getInvestment(ctx, s.db, id)
}

func getInvestment(ctx context.Context, q dbtx, id string) (*domain.Investment, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, name, type, indexer, interest_rate, total_invested,
		        current_value, maturity_date, created_at
		 FROM investments WHERE id = ?`, id)
	inv, err := scanInvestment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "investment", ID: id}
	}
	return inv, err
}

func scanInvestment(row rowScanner) (*domain.Investment, error) {
	var inv domain.Investment
	var typ, indexer, createdAt string
	var maturity sql.NullString
	err := row.Scan(&inv.ID, &inv.Name, &typ, &indexer, &inv.InterestRate,
		&inv.TotalInvested, &inv.CurrentValue, &maturity, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan investment: %w", err)
	}
	inv.Type = domain.InvestmentType(typ)
	inv.Indexer = domain.Indexer(indexer)
	if maturity.Valid {
		t := parseTime(maturity.String)
		inv.MaturityDate = &t
	}
	inv.CreatedAt = parseTime(createdAt)
	return &inv, nil
}

// ListOperations returns a position's operations in chronological order.
func (s *Store) ListOperations(ctx context.Context, investmentID string) ([]domain.Operation, error) {
	ctx, span := tracer.Start(ctx, "Store.ListOperations")
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, investment_id, type, price, quantity, fees, operation_date, created_at
		 FROM operations WHERE investment_id = ?
		 ORDER BY operation_date, created_at`, investmentID)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	var ops []domain.Operation
	for rows.Next() {
		var op domain.Operation
		var typ, date, createdAt string
		if err := rows.Scan(&op.ID, &op.InvestmentID, &typ, &op.Price, &op.Quantity,
			&op.Fees, &date, &createdAt); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		op.Type = domain.OperationType(typ)
		op.Date = parseTime(date)
		op.CreatedAt = parseTime(createdAt)
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// LatestOperationDate returns the date of the most recent operation on a
// position, or the zero time when none exist.
func (s *Store) LatestOperationDate(ctx context.Context, investmentID string) (time.Time, error) {
	ctx, span := tracer.Start(ctx, "Store.LatestOperationDate")
	defer span.End()

	var date sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(operation_date) FROM operations WHERE investment_id = ?`,
		investmentID).Scan(&date)
	if err != nil {
		return time.Time{}, fmt.Errorf("latest operation date: %w", err)
	}
	if !date.Valid {
		return time.Time{}, nil
	}
	return parseTime(date.String), nil
}

// CreateOperation appends an operation and applies its effect on the
// position's running totals in a single transaction.
func (s *Store) CreateOperation(ctx context.Context, op *domain.Operation) (*domain.Investment, error) {
	ctx, span := tracer.Start(ctx, "Store.CreateOperation")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin operation tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO operations (id, investment_id, type, price, quantity, fees,
		                         operation_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID, op.InvestmentID, string(op.Type), op.Price, op.Quantity, op.Fees,
		op.Date.Format(time.RFC3339), op.CreatedAt.Format(time.RFC3339),
	); err != nil {
		return nil, fmt.Errorf("insert operation: %w", err)
	}

	amount := op.Price
	if op.Type == domain.OpBuy || op.Type == domain.OpSell {
		amount = op.Price * op.Quantity
	}
	var stmt string
	if op.Type.Inflow() {
		stmt = `UPDATE investments
		        SET total_invested = total_invested + ?, current_value = current_value + ?
		        WHERE id = ?`
	} else {
		stmt = `UPDATE investments
		        SET total_invested = MAX(total_invested - ?, 0), current_value = current_value - ?
		        WHERE id = ?`
	}
	res, err := tx.ExecContext(ctx, stmt, amount, amount, op.InvestmentID)
	if err != nil {
		return nil, fmt.Errorf("update position totals: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &domain.ErrNotFound{Resource: "investment", ID: op.InvestmentID}
	}

	inv, err := getInvestment(ctx, tx, op.InvestmentID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit operation tx: %w", err)
	}

	s.logger.Debug("operation committed",
		zap.String("investment_id", op.InvestmentID),
		zap.String("type", string(op.Type)),
		zap.Float64("amount", amount),
	)
	return inv, nil
}

// UpdatePositionValue persists a freshly computed mark for a position.
func (s *Store) UpdatePositionValue(ctx context.Context, investmentID string, value float64) error {
	ctx, span := tracer.Start(ctx, "Store.UpdatePositionValue")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		`UPDATE investments SET current_value = ? WHERE id = ?`, value, investmentID)
	if err != nil {
		return fmt.Errorf("update position value: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "investment", ID: investmentID}
	}
	return nil
}

// NewID returns a fresh identifier for store-managed rows.
func NewID() string { return uuid.New().String() }
