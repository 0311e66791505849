package models

import "time"

// DayLabelLayout renders weekday, month, day and year with no time of day, e.g. "Tue Jan 05 2021".
const DayLabelLayout = "Mon Jan 02 2006"

// FormatDay converts an epoch-millisecond timestamp to the day label shared by forecasts and events.
// A nil loc means UTC.
func FormatDay(epochMillis int64, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(epochMillis).In(loc).Format(DayLabelLayout)
}

// SecondsToMillis scales a provider timestamp in whole seconds to milliseconds for FormatDay.
func SecondsToMillis(epochSeconds int64) int64 {
	return epochSeconds * 1000
}
