package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/kjstillabower/city-explorer-service/internal/client"
	"github.com/kjstillabower/city-explorer-service/internal/models"
)

// LocationResolver maps one geocoding lookup into a LocationRecord.
type LocationResolver struct {
	geocoder client.Geocoder
}

func NewLocationResolver(geocoder client.Geocoder) *LocationResolver {
	return &LocationResolver{geocoder: geocoder}
}

// Resolve geocodes address and echoes query (the caller's raw query parameters) in the record.
func (r *LocationResolver) Resolve(ctx context.Context, address string, query url.Values) (models.LocationRecord, error) {
	match, err := r.geocoder.Geocode(ctx, address)
	if err != nil {
		return models.LocationRecord{}, fmt.Errorf("resolve location: %w", err)
	}
	return models.NewLocationRecord(query, match.FormattedAddress, match.Location), nil
}

// WeatherResolver maps the provider's daily forecast into ForecastRecords.
type WeatherResolver struct {
	forecaster client.Forecaster
	loc        *time.Location
}

// NewWeatherResolver returns a resolver that renders day labels in loc (nil means UTC).
func NewWeatherResolver(forecaster client.Forecaster, loc *time.Location) *WeatherResolver {
	return &WeatherResolver{forecaster: forecaster, loc: loc}
}

// Resolve returns one record per provider day, in provider order. On error no records are returned.
func (r *WeatherResolver) Resolve(ctx context.Context, at models.Coordinates) ([]models.ForecastRecord, error) {
	days, err := r.forecaster.DailyForecast(ctx, at)
	if err != nil {
		return nil, fmt.Errorf("resolve weather: %w", err)
	}
	return MapForecasts(days, r.loc), nil
}

// MapForecasts converts provider days to records. Empty input yields an empty, non-nil slice.
func MapForecasts(days []client.DailyForecast, loc *time.Location) []models.ForecastRecord {
	out := make([]models.ForecastRecord, 0, len(days))
	for _, d := range days {
		out = append(out, models.NewForecastRecord(d.Summary, models.FormatDay(models.SecondsToMillis(d.Time), loc)))
	}
	return out
}

// EventResolver maps upcoming provider events into EventRecords.
type EventResolver struct {
	finder client.EventFinder
	loc    *time.Location
}

func NewEventResolver(finder client.EventFinder, loc *time.Location) *EventResolver {
	return &EventResolver{finder: finder, loc: loc}
}

// Resolve returns one record per provider event, in provider order.
func (r *EventResolver) Resolve(ctx context.Context, at models.Coordinates) ([]models.EventRecord, error) {
	events, err := r.finder.UpcomingEvents(ctx, at)
	if err != nil {
		return nil, fmt.Errorf("resolve events: %w", err)
	}
	return MapEvents(events, r.loc), nil
}

func MapEvents(events []client.Event, loc *time.Location) []models.EventRecord {
	out := make([]models.EventRecord, 0, len(events))
	for _, e := range events {
		out = append(out, models.NewEventRecord(e.Link, e.Name, models.FormatDay(e.Created, loc), e.GroupName))
	}
	return out
}
