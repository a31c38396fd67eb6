package domain

import "time"

// ============================================================
// Investments and Operations
// ============================================================

// InvestmentType distinguishes deposit-based fixed income from
// quantity-based variable income.
type InvestmentType string

const (
	FixedIncome    InvestmentType = "fixed_income"
	VariableIncome InvestmentType = "variable_income"
)

// Indexer is the benchmark a fixed-income position's return is pegged to.
type Indexer string

const (
	IndexerCDI       Indexer = "CDI"
	IndexerSELIC     Indexer = "SELIC"
	IndexerIPCA      Indexer = "IPCA"
	IndexerPrefixado Indexer = "PREFIXADO"
	IndexerNA        Indexer = "NA"
)

// ValidIndexer reports whether s is a known indexer value.
func ValidIndexer(s Indexer) bool {
	switch s {
	case IndexerCDI, IndexerSELIC, IndexerIPCA, IndexerPrefixado, IndexerNA:
		return true
	}
	return false
}

// InvestmentRequest is the payload to register a new investment position.
type InvestmentRequest struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	Indexer      string  `json:"indexer,omitempty"`
	InterestRate float64 `json:"interest_rate,omitempty"` // contracted rate, % a.a. (or % of CDI)
	MaturityDate string  `json:"maturity_date,omitempty"` // YYYY-MM-DD
}

// Investment is one position. For fixed income, InterestRate semantics depend
// on the indexer: percentage of CDI for CDI-pegged papers, annual spread for
// SELIC/IPCA, plain annual rate for PREFIXADO.
type Investment struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Type          InvestmentType `json:"type"`
	Indexer       Indexer        `json:"indexer"`
	InterestRate  float64        `json:"interest_rate"`
	TotalInvested float64        `json:"total_invested"`
	CurrentValue  float64        `json:"current_value"`
	MaturityDate  *time.Time     `json:"maturity_date,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// OperationType classifies an operation on a position.
type OperationType string

const (
	OpBuy      OperationType = "buy"
	OpSell     OperationType = "sell"
	OpDeposit  OperationType = "deposit"
	OpWithdraw OperationType = "withdraw"
)

// Inflow reports whether the operation adds money to the position.
func (t OperationType) Inflow() bool { return t == OpBuy || t == OpDeposit }

// OperationRequest is the payload for a new operation on a position.
type OperationRequest struct {
	Type     string  `json:"type"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity,omitempty"`
	Fees     float64 `json:"fees,omitempty"`
	Date     string  `json:"date"` // YYYY-MM-DD
}

// Operation is one buy/sell/deposit/withdraw on a position. For fixed income
// Price is the full amount moved and Quantity is unused; for variable income
// Price is the unit price. Operations for one position are non-decreasing in
// Date.
type Operation struct {
	ID           string        `json:"id"`
	InvestmentID string        `json:"investment_id"`
	Type         OperationType `json:"type"`
	Price        float64       `json:"price"`
	Quantity     float64       `json:"quantity"`
	Fees         float64       `json:"fees"`
	Date         time.Time     `json:"date"`
	CreatedAt    time.Time     `json:"created_at"`
}

// OperationResult is returned after an operation is committed.
type OperationResult struct {
	Operation Operation  `json:"operation"`
	Position  Investment `json:"updated_position"`
}

// ============================================================
// Yield computation output
// ============================================================

// DepositYield is the per-deposit breakdown kept for auditability.
type DepositYield struct {
	Date         time.Time `json:"date"`
	Principal    float64   `json:"principal"`
	GrossValue   float64   `json:"gross_value"`
	GrossYield   float64   `json:"gross_yield"`
	CalendarDays int       `json:"calendar_days"`
	BusinessDays int       `json:"business_days"`
}

// YieldResult is the aggregate accrued value of a fixed-income position.
// Taxes apply to the aggregate gross yield at the bracket selected by the
// maximum calendar-day count across deposits, an aggregate-level
// simplification kept from the accounting rules this engine implements.
type YieldResult struct {
	Principal      float64        `json:"principal"`
	TotalWithdrawn float64        `json:"total_withdrawn"`
	GrossValue     float64        `json:"gross_value"`
	GrossYield     float64        `json:"gross_yield"`
	CalendarDays   int            `json:"calendar_days"`
	IOFPercent     float64        `json:"iof_percent"`
	IOFAmount      float64        `json:"iof_amount"`
	IRPercent      float64        `json:"ir_percent"`
	IRAmount       float64        `json:"ir_amount"`
	NetYield       float64        `json:"net_yield"`
	NetValue       float64        `json:"net_value"`
	Deposits       []DepositYield `json:"deposits"`
}

// Position is an investment together with its freshly computed yield.
// Yield is nil for variable income, NA indexer or positions without deposits.
type Position struct {
	Investment   Investment   `json:"investment"`
	Yield        *YieldResult `json:"yield,omitempty"`
	RateDegraded bool         `json:"rate_degraded,omitempty"` // synthetic rate series was used
}
