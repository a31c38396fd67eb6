// Package yield computes the accrued value of a deposit-based fixed-income
// position by compounding a day-indexed benchmark series from each deposit
// forward, then applying the regressive IOF and bracketed IR schedules.
//
// Accumulation runs on decimal arithmetic; float64 appears only at the
// result boundary, so compounding over long business-day windows does not
// pick up binary rounding drift.
package yield

import (
	"time"

	"github.com/peandrade/cifracash/internal/domain"
	"github.com/peandrade/cifracash/internal/rates"
	"github.com/peandrade/cifracash/internal/tax"

	"github.com/shopspring/decimal"
)

var (
	one        = decimal.NewFromInt(1)
	hundred    = decimal.NewFromInt(100)
	ipcaFactor = decimal.NewFromFloat(0.9)
	// Brazilian convention: 252 business days per year.
	businessYear = decimal.NewFromInt(252)
)

// Compute returns the gross/net value, yield and tax breakdown for one
// position. It returns nil (not an error) when the indexer is NA or there
// are no deposits: there is simply nothing to compute.
//
// Two aggregate-level simplifications are intentional and must not be
// "fixed" here: withdrawals reduce the aggregate value by amount (no lot
// tracking), and the tax bracket is selected by the maximum calendar-day
// count across deposits rather than per deposit.
func Compute(deposits, withdrawals []domain.Operation, contractedRate float64, indexer domain.Indexer, series rates.Series, now time.Time) *domain.YieldResult {
	if indexer == domain.IndexerNA || len(deposits) == 0 {
		return nil
	}

	contracted := decimal.NewFromFloat(contractedRate)

	totalPrincipal := decimal.Zero
	totalGross := decimal.Zero
	maxCalendarDays := 0
	breakdown := make([]domain.DepositYield, 0, len(deposits))

	for _, dep := range deposits {
		principal := decimal.NewFromFloat(dep.Price)
		totalPrincipal = totalPrincipal.Add(principal)

		calendarDays := int(now.Sub(dep.Date).Hours() / 24)
		if calendarDays < 0 {
			// Future-dated deposit: no accrual yet, value equals principal.
			totalGross = totalGross.Add(principal)
			breakdown = append(breakdown, domain.DepositYield{
				Date:       dep.Date,
				Principal:  dep.Price,
				GrossValue: dep.Price,
			})
			continue
		}
		if calendarDays > maxCalendarDays {
			maxCalendarDays = calendarDays
		}

		// Business days eligible for compounding. Days the series does not
		// cover contribute nothing; the window is not auto-extended.
		eligible := series.Between(dep.Date, now)

		accumulated := principal
		for _, e := range eligible {
			accumulated = accumulated.Mul(one.Add(dailyRate(indexer, contracted, e.Rate)))
		}

		totalGross = totalGross.Add(accumulated)
		breakdown = append(breakdown, domain.DepositYield{
			Date:         dep.Date,
			Principal:    dep.Price,
			GrossValue:   accumulated.InexactFloat64(),
			GrossYield:   accumulated.Sub(principal).InexactFloat64(),
			CalendarDays: calendarDays,
			BusinessDays: len(eligible),
		})
	}

	withdrawn := decimal.Zero
	for _, w := range withdrawals {
		withdrawn = withdrawn.Add(decimal.NewFromFloat(w.Price))
	}

	grossYield := totalGross.Sub(totalPrincipal)
	grossValue := totalGross.Sub(withdrawn)

	iofPercent := tax.IOFPercent(maxCalendarDays)
	iofAmount := grossYield.Mul(decimal.NewFromFloat(iofPercent)).Div(hundred)

	irPercent := tax.IRPercent(maxCalendarDays)
	irAmount := grossYield.Sub(iofAmount).Mul(decimal.NewFromFloat(irPercent)).Div(hundred)

	netYield := grossYield.Sub(iofAmount).Sub(irAmount)
	netValue := totalPrincipal.Sub(withdrawn).Add(netYield)

	return &domain.YieldResult{
		Principal:      totalPrincipal.InexactFloat64(),
		TotalWithdrawn: withdrawn.InexactFloat64(),
		GrossValue:     grossValue.InexactFloat64(),
		GrossYield:     grossYield.InexactFloat64(),
		CalendarDays:   maxCalendarDays,
		IOFPercent:     iofPercent,
		IOFAmount:      iofAmount.InexactFloat64(),
		IRPercent:      irPercent,
		IRAmount:       irAmount.InexactFloat64(),
		NetYield:       netYield.InexactFloat64(),
		NetValue:       netValue.InexactFloat64(),
		Deposits:       breakdown,
	}
}

// dailyRate converts one benchmark entry into the growth rate for a single
// business day under the position's indexer.
func dailyRate(indexer domain.Indexer, contracted decimal.Decimal, benchmark float64) decimal.Decimal {
	bench := decimal.NewFromFloat(benchmark)

	switch indexer {
	case domain.IndexerCDI:
		// Contracted rate is a percentage of the CDI daily rate.
		return contracted.Div(hundred).Mul(bench.Div(hundred))
	case domain.IndexerSELIC:
		// Benchmark daily rate plus the contracted annual spread.
		return bench.Div(hundred).Add(contracted.Div(businessYear).Div(hundred))
	case domain.IndexerIPCA:
		// IPCA is not daily-indexed; the benchmark series stands in as a
		// proxy at 90%, plus the contracted annual spread.
		return ipcaFactor.Mul(bench.Div(hundred)).Add(contracted.Div(businessYear).Div(hundred))
	case domain.IndexerPrefixado:
		// Fixed annual rate over the 252 business-day year; the benchmark
		// value is unused but the series still defines which days compound.
		return contracted.Div(businessYear).Div(hundred)
	default:
		return decimal.Zero
	}
}
