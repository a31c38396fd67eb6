// Package cycle resolves which monthly invoice a dated credit-card purchase
// belongs to, given the card's closing/due-day configuration.
//
// Invoices are identified by their due cycle, the statement the cardholder
// actually pays, not the closing cycle. A purchase after the closing day
// rolls into the next closing cycle, and when the due day is numerically
// less than or equal to the closing day the bill is paid the month after it
// closes. Both month advances wrap independently at December.
package cycle

import "time"

// Resolve maps a purchase date and the card's closing/due days to the
// invoice identity (month, year) the purchase belongs to.
func Resolve(purchaseDate time.Time, closingDay, dueDay int) (time.Month, int) {
	closingMonth := purchaseDate.Month()
	closingYear := purchaseDate.Year()

	if purchaseDate.Day() > closingDay {
		closingMonth++
		if closingMonth > time.December {
			closingMonth = time.January
			closingYear++
		}
	}

	dueMonth := closingMonth
	dueYear := closingYear
	if dueDay <= closingDay {
		dueMonth++
		if dueMonth > time.December {
			dueMonth = time.January
			dueYear++
		}
	}

	return dueMonth, dueYear
}

// InvoiceDates derives the concrete closing and due calendar dates for a
// resolved invoice identity. The closing cycle is the due cycle minus one
// month when dueDay <= closingDay, otherwise the same cycle. Days beyond the
// target month's length are clipped to its last day.
func InvoiceDates(month time.Month, year, closingDay, dueDay int) (closing, due time.Time) {
	closingMonth := month
	closingYear := year
	if dueDay <= closingDay {
		closingMonth--
		if closingMonth < time.January {
			closingMonth = time.December
			closingYear--
		}
	}

	closing = DateClipped(closingYear, closingMonth, closingDay)
	due = DateClipped(year, month, dueDay)
	return closing, due
}

// AddMonths returns date shifted by n calendar months, keeping the same
// day-of-month clipped to the target month's length. time.AddDate is not
// used because it normalizes Jan 31 + 1 month into Mar 2/3 instead of
// clipping to Feb 28/29.
func AddMonths(date time.Time, n int) time.Time {
	y, m, d := date.Date()
	m += time.Month(n)
	for m > time.December {
		m -= 12
		y++
	}
	for m < time.January {
		m += 12
		y--
	}
	return DateClipped(y, m, d)
}

// DateClipped builds a UTC date with day clipped to the month's last day.
func DateClipped(year int, month time.Month, day int) time.Time {
	if last := daysIn(year, month); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
