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

// ============================================================
// Cards
// ============================================================

func (s *Store) CreateCard(ctx context.Context, req *domain.CardRequest) (*domain.Card, error) {
	ctx, span := tracer.Start(ctx, "Store.CreateCard")
	defer span.End()

	card := &domain.Card{
		ID:          uuid.New().String(),
		Name:        req.Name,
		ClosingDay:  req.ClosingDay,
		DueDay:      req.DueDay,
		CreditLimit: req.CreditLimit,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cards (id, name, closing_day, due_day, credit_limit, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		card.ID, card.Name, card.ClosingDay, card.DueDay, card.CreditLimit,
		card.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("insert card: %w", err)
	}
	return card, nil
}

func (s *Store) ListCards(ctx context.Context) ([]domain.Card, error) {
	ctx, span := tracer.Start(ctx, "Store.ListCards")
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, closing_day, due_day, credit_limit, created_at
		 FROM cards ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.ClosingDay, &c.DueDay, &c.CreditLimit, &createdAt); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (s *Store) GetCard(ctx context.Context, cardID string) (*domain.Card, error) {
	ctx, span := tracer.Start(ctx, "Store.GetCard")
	defer span.End()

	var c domain.Card
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, closing_day, due_day, credit_limit, created_at
		 FROM cards WHERE id = ?`, cardID,
	).Scan(&c.ID, &c.Name, &c.ClosingDay, &c.DueDay, &c.CreditLimit, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "card", ID: cardID}
	}
	if err != nil {
		return nil, fmt.Errorf("get card: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

// ============================================================
// Invoices
// ============================================================

// UsedLimit returns the committed-but-unpaid amount across all of a card's
// invoices that are not fully paid.
func (s *Store) UsedLimit(ctx context.Context, cardID string) (float64, error) {
	ctx, span := tracer.Start(ctx, "Store.UsedLimit")
	defer span.End()

	var used float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total - paid_amount), 0)
		 FROM invoices WHERE card_id = ? AND status != ?`,
		cardID, string(domain.InvoicePaid),
	).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("used limit: %w", err)
	}
	return used, nil
}

// GetOrCreateInvoice returns the invoice for (card, month, year), creating
// it if absent. The UNIQUE constraint on that key is the single creation
// point: concurrent callers cannot produce duplicates.
func (s *Store) GetOrCreateInvoice(ctx context.Context, cardID string, month, year int, closingDate, dueDate time.Time) (*domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Store.GetOrCreateInvoice")
	defer span.End()

	return getOrCreateInvoice(ctx, s.db, cardID, month, year, closingDate, dueDate)
}

func getOrCreateInvoice(ctx context.Context, q dbtx, cardID string, month, year int, closingDate, dueDate time.Time) (*domain.Invoice, error) {
	_, err := q.ExecContext(ctx,
		`INSERT INTO invoices (id, card_id, reference_month, reference_year,
		                       closing_date, due_date, status, total, paid_amount, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, ?)
		 ON CONFLICT (card_id, reference_month, reference_year) DO NOTHING`,
		uuid.New().String(), cardID, month, year,
		closingDate.Format(time.RFC3339), dueDate.Format(time.RFC3339),
		string(domain.InvoiceOpen), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("insert invoice: %w", err)
	}

	return invoiceByCycle(ctx, q, cardID, month, year)
}

func invoiceByCycle(ctx context.Context, q dbtx, cardID string, month, year int) (*domain.Invoice, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, card_id, reference_month, reference_year, closing_date, due_date,
		        status, total, paid_amount, created_at
		 FROM invoices WHERE card_id = ? AND reference_month = ? AND reference_year = ?`,
		cardID, month, year)
	return scanInvoice(row)
}

func invoiceByID(ctx context.Context, q dbtx, invoiceID string) (*domain.Invoice, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, card_id, reference_month, reference_year, closing_date, due_date,
		        status, total, paid_amount, created_at
		 FROM invoices WHERE id = ?`, invoiceID)
	inv, err := scanInvoice(row)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, &domain.ErrNotFound{Resource: "invoice", ID: invoiceID}
		}
	}
	return inv, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	var inv domain.Invoice
	var closing, due, createdAt, status string
	err := row.Scan(&inv.ID, &inv.CardID, &inv.ReferenceMonth, &inv.ReferenceYear,
		&closing, &due, &status, &inv.Total, &inv.PaidAmount, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "invoice", ID: ""}
	}
	if err != nil {
		return nil, fmt.Errorf("scan invoice: %w", err)
	}
	inv.ClosingDate = parseTime(closing)
	inv.DueDate = parseTime(due)
	inv.Status = domain.InvoiceStatus(status)
	inv.CreatedAt = parseTime(createdAt)
	return &inv, nil
}

// AddToInvoiceTotal atomically increments an invoice's total. A single
// UPDATE statement, never read-modify-write in application code.
func (s *Store) AddToInvoiceTotal(ctx context.Context, invoiceID string, amount float64) error {
	ctx, span := tracer.Start(ctx, "Store.AddToInvoiceTotal")
	defer span.End()

	return addToInvoiceTotal(ctx, s.db, invoiceID, amount)
}

func addToInvoiceTotal(ctx context.Context, q dbtx, invoiceID string, amount float64) error {
	res, err := q.ExecContext(ctx,
		`UPDATE invoices SET total = total + ? WHERE id = ?`, amount, invoiceID)
	if err != nil {
		return fmt.Errorf("increment invoice total: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "invoice", ID: invoiceID}
	}
	return nil
}

func (s *Store) ListInvoices(ctx context.Context, cardID string) ([]domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Store.ListInvoices")
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		`SELECT i.id, i.card_id, i.reference_month, i.reference_year, i.closing_date,
		        i.due_date, i.status, i.total, i.paid_amount, i.created_at, c.id
		 FROM invoices i LEFT JOIN cards c ON c.id = i.card_id
		 WHERE i.card_id = ?
		 ORDER BY i.reference_year, i.reference_month`, cardID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		var inv domain.Invoice
		var closing, due, createdAt, status string
		var joinedCard sql.NullString
		if err := rows.Scan(&inv.ID, &inv.CardID, &inv.ReferenceMonth, &inv.ReferenceYear,
			&closing, &due, &status, &inv.Total, &inv.PaidAmount, &createdAt, &joinedCard); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		if !joinedCard.Valid {
			// An invoice without its card is corrupted upstream state, not
			// something to skip over.
			return nil, &domain.ErrDataIntegrity{Resource: "invoice", ID: inv.ID, Reason: "card missing"}
		}
		inv.ClosingDate = parseTime(closing)
		inv.DueDate = parseTime(due)
		inv.Status = domain.InvoiceStatus(status)
		inv.CreatedAt = parseTime(createdAt)
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (s *Store) GetInvoiceByCycle(ctx context.Context, cardID string, month, year int) (*domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Store.GetInvoiceByCycle")
	defer span.End()

	return invoiceByCycle(ctx, s.db, cardID, month, year)
}

func (s *Store) ListInvoicePurchases(ctx context.Context, invoiceID string) ([]domain.Purchase, error) {
	ctx, span := tracer.Start(ctx, "Store.ListInvoicePurchases")
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, invoice_id, card_id, description, category, value, total_value,
		        installments, current_installment, parent_purchase_id, purchase_date, created_at
		 FROM purchases WHERE invoice_id = ? ORDER BY purchase_date, created_at`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []domain.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, *p)
	}
	return purchases, rows.Err()
}

func scanPurchase(row rowScanner) (*domain.Purchase, error) {
	var p domain.Purchase
	var parent sql.NullString
	var date, createdAt string
	err := row.Scan(&p.ID, &p.InvoiceID, &p.CardID, &p.Description, &p.Category,
		&p.Value, &p.TotalValue, &p.Installments, &p.CurrentInstallment,
		&parent, &date, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("scan purchase: %w", err)
	}
	if parent.Valid {
		p.ParentPurchaseID = &parent.String
	}
	p.Date = parseTime(date)
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

// RegisterInvoicePayment records an external payment event, marking the
// invoice paid once payments cover the total.
func (s *Store) RegisterInvoicePayment(ctx context.Context, invoiceID string, amount float64) (*domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Store.RegisterInvoicePayment")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin payment tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE invoices SET paid_amount = paid_amount + ? WHERE id = ?`, amount, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("register payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &domain.ErrNotFound{Resource: "invoice", ID: invoiceID}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE invoices SET status = ? WHERE id = ? AND paid_amount >= total`,
		string(domain.InvoicePaid), invoiceID); err != nil {
		return nil, fmt.Errorf("update invoice status: %w", err)
	}

	inv, err := invoiceByID(ctx, tx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit payment tx: %w", err)
	}
	return inv, nil
}

// ============================================================
// Installment plans
// ============================================================

// CreateInstallments commits a resolved installment plan as one unit of
// work: every get-or-create, purchase insert and total increment happens in
// a single transaction, so a failure mid-plan leaves nothing behind.
func (s *Store) CreateInstallments(ctx context.Context, cardID string, specs []domain.InstallmentSpec) ([]domain.Purchase, []domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "Store.CreateInstallments")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin installment tx: %w", err)
	}
	defer tx.Rollback()

	purchases := make([]domain.Purchase, 0, len(specs))
	touched := make(map[string]bool)
	var invoiceOrder []string

	for _, spec := range specs {
		inv, err := getOrCreateInvoice(ctx, tx, cardID,
			spec.ReferenceMonth, spec.ReferenceYear, spec.ClosingDate, spec.DueDate)
		if err != nil {
			return nil, nil, err
		}

		p := spec.Purchase
		p.InvoiceID = inv.ID
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO purchases (id, invoice_id, card_id, description, category, value,
			                        total_value, installments, current_installment,
			                        parent_purchase_id, purchase_date, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.InvoiceID, p.CardID, p.Description, p.Category, p.Value,
			p.TotalValue, p.Installments, p.CurrentInstallment,
			nullable(p.ParentPurchaseID), p.Date.Format(time.RFC3339),
			p.CreatedAt.Format(time.RFC3339),
		); err != nil {
			return nil, nil, fmt.Errorf("insert purchase: %w", err)
		}

		if err := addToInvoiceTotal(ctx, tx, inv.ID, p.Value); err != nil {
			return nil, nil, err
		}

		purchases = append(purchases, p)
		if !touched[inv.ID] {
			touched[inv.ID] = true
			invoiceOrder = append(invoiceOrder, inv.ID)
		}
	}

	invoices := make([]domain.Invoice, 0, len(invoiceOrder))
	for _, id := range invoiceOrder {
		inv, err := invoiceByID(ctx, tx, id)
		if err != nil {
			return nil, nil, err
		}
		invoices = append(invoices, *inv)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit installment tx: %w", err)
	}

	s.logger.Debug("installment plan committed",
		zap.String("card_id", cardID),
		zap.Int("purchases", len(purchases)),
		zap.Int("invoices", len(invoices)),
	)
	return purchases, invoices, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
