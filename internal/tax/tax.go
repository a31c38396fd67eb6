// Package tax holds the regressive withholding-tax schedules applied to
// fixed-income yield: IOF over the first 30 calendar days and IR bracketed
// by holding period. Both are pure, allocation-free lookups.
package tax

// iofTable maps holding days 1..30 to the IOF percentage charged on yield.
var iofTable = [30]float64{
	96, 93, 90, 86, 83, 80, 76, 73, 70, 66,
	63, 60, 56, 53, 50, 46, 43, 40, 36, 33,
	30, 26, 23, 20, 16, 13, 10, 6, 3, 0,
}

// IOFPercent returns the IOF percentage for a holding period in calendar
// days. 96% below one day, 0% from day 30 on.
func IOFPercent(calendarDays int) float64 {
	if calendarDays < 1 {
		return 96
	}
	if calendarDays >= 30 {
		return 0
	}
	return iofTable[calendarDays-1]
}

// IRPercent returns the income-tax percentage on fixed-income yield for a
// holding period in calendar days.
func IRPercent(calendarDays int) float64 {
	switch {
	case calendarDays <= 180:
		return 22.5
	case calendarDays <= 360:
		return 20
	case calendarDays <= 720:
		return 17.5
	default:
		return 15
	}
}
