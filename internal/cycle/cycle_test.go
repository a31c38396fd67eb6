package cycle_test

import (
	"testing"
	"time"

	"github.com/peandrade/cifracash/internal/cycle"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolve_BeforeClosingDay(t *testing.T) {
	// Purchase on the 5th, closing on the 10th: stays in the current closing
	// cycle. Due day 17 > closing day 10, so due cycle == closing cycle.
	m, y := cycle.Resolve(date(2024, time.March, 5), 10, 17)
	if m != time.March || y != 2024 {
		t.Errorf("expected March/2024, got %s/%d", m, y)
	}
}

func TestResolve_AfterClosingDay(t *testing.T) {
	// Scenario: closing 10, due 17, purchase on the 15th → next closing
	// cycle, due in that same month.
	m, y := cycle.Resolve(date(2024, time.March, 15), 10, 17)
	if m != time.April || y != 2024 {
		t.Errorf("expected April/2024, got %s/%d", m, y)
	}
}

func TestResolve_DueDayBeforeClosingDay(t *testing.T) {
	// Closing 20, due 5: the bill closes this month but is paid next month.
	m, y := cycle.Resolve(date(2024, time.March, 10), 20, 5)
	if m != time.April || y != 2024 {
		t.Errorf("expected April/2024, got %s/%d", m, y)
	}
}

func TestResolve_YearWrapOnClosing(t *testing.T) {
	// Purchase Dec 28, closing 20 → closing cycle wraps to January.
	m, y := cycle.Resolve(date(2024, time.December, 28), 20, 27)
	if m != time.January || y != 2025 {
		t.Errorf("expected January/2025, got %s/%d", m, y)
	}
}

func TestResolve_YearWrapOnDue(t *testing.T) {
	// Purchase Dec 28, closing 20, due 10 (<= closing): closing wraps to
	// January AND due wraps one more month to February. Both advances are
	// independent.
	m, y := cycle.Resolve(date(2024, time.December, 28), 20, 10)
	if m != time.February || y != 2025 {
		t.Errorf("expected February/2025, got %s/%d", m, y)
	}

	// Purchase Dec 5, closing 20, due 10: closing stays in December, due
	// wraps into January.
	m, y = cycle.Resolve(date(2024, time.December, 5), 20, 10)
	if m != time.January || y != 2025 {
		t.Errorf("expected January/2025, got %s/%d", m, y)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	d := date(2024, time.July, 31)
	m1, y1 := cycle.Resolve(d, 15, 22)
	for i := 0; i < 100; i++ {
		m2, y2 := cycle.Resolve(d, 15, 22)
		if m1 != m2 || y1 != y2 {
			t.Fatalf("resolve not deterministic: %s/%d vs %s/%d", m1, y1, m2, y2)
		}
	}
}

func TestInvoiceDates_SameCycle(t *testing.T) {
	// Due day 17 > closing day 10: both dates in the invoice month.
	closing, due := cycle.InvoiceDates(time.April, 2024, 10, 17)
	if !closing.Equal(date(2024, time.April, 10)) {
		t.Errorf("closing = %s, want 2024-04-10", closing.Format("2006-01-02"))
	}
	if !due.Equal(date(2024, time.April, 17)) {
		t.Errorf("due = %s, want 2024-04-17", due.Format("2006-01-02"))
	}
}

func TestInvoiceDates_ClosingPreviousMonth(t *testing.T) {
	// Due day 5 <= closing day 20: the invoice closes the month before it
	// is due.
	closing, due := cycle.InvoiceDates(time.April, 2024, 20, 5)
	if !closing.Equal(date(2024, time.March, 20)) {
		t.Errorf("closing = %s, want 2024-03-20", closing.Format("2006-01-02"))
	}
	if !due.Equal(date(2024, time.April, 5)) {
		t.Errorf("due = %s, want 2024-04-05", due.Format("2006-01-02"))
	}
}

func TestInvoiceDates_JanuaryWrapsToDecember(t *testing.T) {
	closing, _ := cycle.InvoiceDates(time.January, 2025, 28, 10)
	if !closing.Equal(date(2024, time.December, 28)) {
		t.Errorf("closing = %s, want 2024-12-28", closing.Format("2006-01-02"))
	}
}

func TestInvoiceDates_DayClippedToMonthLength(t *testing.T) {
	// Day 31 in a 30-day month clips to the 30th; February clips to 28/29.
	_, due := cycle.InvoiceDates(time.April, 2024, 10, 31)
	if !due.Equal(date(2024, time.April, 30)) {
		t.Errorf("due = %s, want 2024-04-30", due.Format("2006-01-02"))
	}

	_, due = cycle.InvoiceDates(time.February, 2024, 10, 30)
	if !due.Equal(date(2024, time.February, 29)) {
		t.Errorf("due = %s, want 2024-02-29 (leap year)", due.Format("2006-01-02"))
	}

	_, due = cycle.InvoiceDates(time.February, 2023, 10, 30)
	if !due.Equal(date(2023, time.February, 28)) {
		t.Errorf("due = %s, want 2023-02-28", due.Format("2006-01-02"))
	}
}

func TestAddMonths(t *testing.T) {
	cases := []struct {
		start time.Time
		n     int
		want  time.Time
	}{
		{date(2024, time.January, 5), 1, date(2024, time.February, 5)},
		{date(2024, time.January, 31), 1, date(2024, time.February, 29)},
		{date(2023, time.January, 31), 1, date(2023, time.February, 28)},
		{date(2024, time.October, 15), 3, date(2025, time.January, 15)},
		{date(2024, time.November, 30), 15, date(2026, time.February, 28)},
		{date(2024, time.March, 31), 0, date(2024, time.March, 31)},
	}
	for _, c := range cases {
		got := cycle.AddMonths(c.start, c.n)
		if !got.Equal(c.want) {
			t.Errorf("AddMonths(%s, %d) = %s, want %s",
				c.start.Format("2006-01-02"), c.n,
				got.Format("2006-01-02"), c.want.Format("2006-01-02"))
		}
	}
}
