package client

import (
	"context"
	"strconv"
	"time"

	"github.com/kjstillabower/city-explorer-service/internal/models"
	"github.com/kjstillabower/city-explorer-service/internal/observability"
)

// DefaultForecastURL is the Dark Sky forecast endpoint; key and coordinates are appended as path segments.
const DefaultForecastURL = "https://api.darksky.net/forecast"

// Forecaster returns the provider's daily forecast for a coordinate pair.
type Forecaster interface {
	DailyForecast(ctx context.Context, at models.Coordinates) ([]DailyForecast, error)
}

// DailyForecast is one entry of the provider's daily block.
type DailyForecast struct {
	Summary string
	Time    int64 // epoch seconds
}

// DarkSkyClient calls the Dark Sky forecast API.
type DarkSkyClient struct {
	baseClient
}

func NewDarkSkyClient(apiKey, apiURL string, timeout time.Duration) (*DarkSkyClient, error) {
	base, err := newBaseClient(observability.ProviderWeather, apiKey, apiURL, timeout)
	if err != nil {
		return nil, err
	}
	return &DarkSkyClient{baseClient: base}, nil
}

type darkSkyResponse struct {
	Daily *struct {
		Data *[]struct {
			Summary string `json:"summary"`
			Time    int64  `json:"time"`
		} `json:"data"`
	} `json:"daily"`
}

// DailyForecast returns daily entries in provider order.
func (c *DarkSkyClient) DailyForecast(ctx context.Context, at models.Coordinates) ([]DailyForecast, error) {
	u := c.baseURL.JoinPath(c.apiKey, formatCoordinate(at.Latitude)+","+formatCoordinate(at.Longitude))

	var resp darkSkyResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	if resp.Daily == nil {
		return nil, c.malformed("daily")
	}
	if resp.Daily.Data == nil {
		return nil, c.malformed("daily.data")
	}

	days := make([]DailyForecast, 0, len(*resp.Daily.Data))
	for _, d := range *resp.Daily.Data {
		days = append(days, DailyForecast{Summary: d.Summary, Time: d.Time})
	}
	return days, nil
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var _ Forecaster = (*DarkSkyClient)(nil)
