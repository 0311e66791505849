package models

import "net/url"

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LocationRecord is the normalized result of geocoding one address query.
type LocationRecord struct {
	SearchQuery    map[string]string `json:"search_query"`
	FormattedQuery string            `json:"formatted_query"`
	Latitude       float64           `json:"latitude"`
	Longitude      float64           `json:"longitude"`
}

// ForecastRecord is one day of forecast.
type ForecastRecord struct {
	Forecast string `json:"forecast"`
	Time     string `json:"time"`
}

// EventRecord is one upcoming meetup event.
type EventRecord struct {
	Link         string `json:"link"`
	Name         string `json:"name"`
	CreationDate string `json:"creation_date"`
	Host         string `json:"host"`
}

// NewLocationRecord echoes the caller's query parameters alongside the geocoded match.
// Multi-valued parameters keep only their first value.
func NewLocationRecord(query url.Values, formattedAddress string, at Coordinates) LocationRecord {
	echo := make(map[string]string, len(query))
	for k, v := range query {
		if len(v) > 0 {
			echo[k] = v[0]
		}
	}
	return LocationRecord{
		SearchQuery:    echo,
		FormattedQuery: formattedAddress,
		Latitude:       at.Latitude,
		Longitude:      at.Longitude,
	}
}

func NewForecastRecord(summary string, dayLabel string) ForecastRecord {
	return ForecastRecord{Forecast: summary, Time: dayLabel}
}

func NewEventRecord(link, name, creationDate, host string) EventRecord {
	return EventRecord{
		Link:         link,
		Name:         name,
		CreationDate: creationDate,
		Host:         host,
	}
}
