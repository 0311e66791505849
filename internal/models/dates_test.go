package models

import (
	"net/url"
	"testing"
	"time"
)

func TestFormatDay(t *testing.T) {
	tests := []struct {
		name   string
		millis int64
		loc    *time.Location
		want   string
	}{
		{"epoch", 0, nil, "Thu Jan 01 1970"},
		{"utc", 1609804800000, time.UTC, "Tue Jan 05 2021"},
		{"late in day stays on same date", 1609891199999, time.UTC, "Tue Jan 05 2021"},
		{"fixed offset shifts date", 1609804800000, time.FixedZone("PST", -8*3600), "Mon Jan 04 2021"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDay(tt.millis, tt.loc); got != tt.want {
				t.Errorf("FormatDay(%d) = %q, want %q", tt.millis, got, tt.want)
			}
		})
	}
}

// TestFormatDay_SecondsAndMillisAgree verifies forecast (seconds) and event (milliseconds)
// timestamps for the same instant produce the same label.
func TestFormatDay_SecondsAndMillisAgree(t *testing.T) {
	const seconds int64 = 1540000000
	fromSeconds := FormatDay(SecondsToMillis(seconds), time.UTC)
	fromMillis := FormatDay(seconds*1000, time.UTC)
	if fromSeconds != fromMillis {
		t.Errorf("labels differ: %q vs %q", fromSeconds, fromMillis)
	}
	if again := FormatDay(SecondsToMillis(seconds), time.UTC); again != fromSeconds {
		t.Errorf("FormatDay not deterministic: %q then %q", fromSeconds, again)
	}
}

func TestNewLocationRecord_EchoesQuery(t *testing.T) {
	q := url.Values{"data": {"1600 Amphitheatre Parkway", "ignored"}}
	rec := NewLocationRecord(q, "1600 Amphitheatre Pkwy, Mountain View, CA 94043, USA",
		Coordinates{Latitude: 37.4224, Longitude: -122.0841})

	if rec.SearchQuery["data"] != "1600 Amphitheatre Parkway" {
		t.Errorf("SearchQuery[data] = %q", rec.SearchQuery["data"])
	}
	if rec.Latitude != 37.4224 || rec.Longitude != -122.0841 {
		t.Errorf("coordinates = %v,%v", rec.Latitude, rec.Longitude)
	}
}
