// Package rates holds the day-indexed benchmark-rate series consumed by the
// yield calculator, and a process-owned history store that caches fetches
// from the external rate source with a synthetic fallback.
package rates

import "time"

// Entry is one business day of the benchmark series. Rate is the daily
// percentage published for that day.
type Entry struct {
	Date time.Time `json:"date"`
	Rate float64   `json:"rate"`
}

// Series is an ordered, calendar-sparse rate series: weekends and holidays
// are simply absent.
type Series []Entry

// RateOn returns the rate published on the given date, if any.
func (s Series) RateOn(date time.Time) (float64, bool) {
	y, m, d := date.Date()
	for _, e := range s {
		ey, em, ed := e.Date.Date()
		if ey == y && em == m && ed == d {
			return e.Rate, true
		}
	}
	return 0, false
}

// IsBusinessDay reports whether the date is present in the series.
func (s Series) IsBusinessDay(date time.Time) bool {
	_, ok := s.RateOn(date)
	return ok
}

// Between returns the entries with start <= date <= end.
func (s Series) Between(start, end time.Time) Series {
	startDay := truncate(start)
	endDay := truncate(end)

	var out Series
	for _, e := range s {
		d := truncate(e.Date)
		if !d.Before(startDay) && !d.After(endDay) {
			out = append(out, e)
		}
	}
	return out
}

// Start returns the first date of the series.
func (s Series) Start() (time.Time, bool) {
	if len(s) == 0 {
		return time.Time{}, false
	}
	return s[0].Date, true
}

// Synthetic builds a fallback series covering [start, end] with one entry
// per non-weekend day at a fixed estimated daily rate. It is the degraded
// answer when the real source is unavailable: the yield calculator keeps
// working on an explicit approximation instead of failing.
func Synthetic(start, end time.Time, dailyRate float64) Series {
	var out Series
	for d := truncate(start); !d.After(truncate(end)); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		out = append(out, Entry{Date: d, Rate: dailyRate})
	}
	return out
}

func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
