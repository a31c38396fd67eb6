package domain

import "time"

// ============================================================
// Credit Cards, Invoices and Purchases
// ============================================================

// CardRequest is the payload to register a new credit card.
type CardRequest struct {
	Name        string  `json:"name"`
	ClosingDay  int     `json:"closing_day"`
	DueDay      int     `json:"due_day"`
	CreditLimit float64 `json:"credit_limit"`
}

// Card represents a credit card configuration.
// ClosingDay and DueDay are days of month (1-31); when an invoice lands on a
// month without that day, the date is clipped to the month's last day.
type Card struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ClosingDay  int       `json:"closing_day"`
	DueDay      int       `json:"due_day"`
	CreditLimit float64   `json:"credit_limit"`
	CreatedAt   time.Time `json:"created_at"`
}

// InvoiceStatus is the lifecycle state of a monthly invoice.
type InvoiceStatus string

const (
	InvoiceOpen    InvoiceStatus = "open"
	InvoiceClosed  InvoiceStatus = "closed"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
)

// Invoice is a card's monthly statement, identified by (card, month, year)
// of the cycle the cardholder pays (the due cycle, not the closing cycle).
type Invoice struct {
	ID             string        `json:"id"`
	CardID         string        `json:"card_id"`
	ReferenceMonth int           `json:"reference_month"` // 1..12
	ReferenceYear  int           `json:"reference_year"`
	ClosingDate    time.Time     `json:"closing_date"`
	DueDate        time.Time     `json:"due_date"`
	Status         InvoiceStatus `json:"status"`
	Total          float64       `json:"total"`
	PaidAmount     float64       `json:"paid_amount"`
	CreatedAt      time.Time     `json:"created_at"`
}

// PurchaseRequest is the payload for a new card purchase, possibly split
// across N monthly installments.
type PurchaseRequest struct {
	Description  string  `json:"description"`
	Category     string  `json:"category"`
	Value        float64 `json:"value"` // full purchase price
	Date         string  `json:"date"`  // YYYY-MM-DD
	Installments int     `json:"installments,omitempty"`
}

// Purchase is one charge routed to exactly one invoice. For an installment
// series, Date is the cycle-relevant date of this installment (original
// purchase date plus i months), not the original purchase date.
type Purchase struct {
	ID                 string    `json:"id"`
	InvoiceID          string    `json:"invoice_id"`
	CardID             string    `json:"card_id"`
	Description        string    `json:"description"`
	Category           string    `json:"category"`
	Value              float64   `json:"value"`       // this installment's amount
	TotalValue         float64   `json:"total_value"` // original full price
	Installments       int       `json:"installments"`
	CurrentInstallment int       `json:"current_installment"`
	ParentPurchaseID   *string   `json:"parent_purchase_id,omitempty"`
	Date               time.Time `json:"date"`
	CreatedAt          time.Time `json:"created_at"`
}

// InstallmentSpec is one fully resolved unit of an installment plan: the
// purchase row to insert plus the invoice cycle it must land in. Produced by
// the distributor, committed atomically by the ledger store.
type InstallmentSpec struct {
	Purchase       Purchase
	ReferenceMonth int
	ReferenceYear  int
	ClosingDate    time.Time
	DueDate        time.Time
}

// PurchaseResult is returned after an installment plan is committed.
type PurchaseResult struct {
	Purchases []Purchase `json:"purchases"`
	Invoices  []Invoice  `json:"updated_invoices"`
}

// InvoicePayRequest records an external payment event against an invoice.
type InvoicePayRequest struct {
	Amount float64 `json:"amount"`
}
