package hydro

import "time"

// WaterYearStart is the calendar day-of-year on which the operating year begins (about Oct 1).
const WaterYearStart = 274

// WaterDay re-indexes a calendar day-of-year (1-366) so that day 0 is the start of the water year.
func WaterDay(d int) int {
	if d >= WaterYearStart {
		return d - WaterYearStart
	}
	return d + 91
}

// WaterDayOf returns the water-year day for a date.
func WaterDayOf(t time.Time) int {
	return WaterDay(t.YearDay())
}
