package client

import (
	"context"
	"fmt"
	"time"

	"github.com/kjstillabower/city-explorer-service/internal/models"
	"github.com/kjstillabower/city-explorer-service/internal/observability"
)

// DefaultGeocodeURL is the Google Maps geocoding endpoint.
const DefaultGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// Geocoder resolves a free-text address to its best match.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (GeocodeResult, error)
}

// GeocodeResult is the first match returned by the geocoder.
type GeocodeResult struct {
	FormattedAddress string
	Location         models.Coordinates
}

// GoogleGeocodeClient calls the Google Maps geocoding API.
type GoogleGeocodeClient struct {
	baseClient
}

func NewGoogleGeocodeClient(apiKey, apiURL string, timeout time.Duration) (*GoogleGeocodeClient, error) {
	base, err := newBaseClient(observability.ProviderGeocode, apiKey, apiURL, timeout)
	if err != nil {
		return nil, err
	}
	return &GoogleGeocodeClient{baseClient: base}, nil
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         *struct {
			Location *struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode returns the provider's first result for address. Zero results, or a first result
// without a location, is an upstream failure.
func (c *GoogleGeocodeClient) Geocode(ctx context.Context, address string) (GeocodeResult, error) {
	u := *c.baseURL
	params := u.Query()
	params.Set("key", c.apiKey)
	params.Set("address", address)
	u.RawQuery = params.Encode()

	var resp geocodeResponse
	if err := c.getJSON(ctx, &u, &resp); err != nil {
		return GeocodeResult{}, err
	}
	if len(resp.Results) == 0 {
		return GeocodeResult{}, fmt.Errorf("%w: %s: %w (status %q%s)",
			ErrUpstreamFailure, c.provider, ErrNoResults, resp.Status, providerMessage(resp.ErrorMessage))
	}

	first := resp.Results[0]
	if first.Geometry == nil || first.Geometry.Location == nil {
		return GeocodeResult{}, c.malformed("results[0].geometry.location")
	}
	return GeocodeResult{
		FormattedAddress: first.FormattedAddress,
		Location: models.Coordinates{
			Latitude:  first.Geometry.Location.Lat,
			Longitude: first.Geometry.Location.Lng,
		},
	}, nil
}

func providerMessage(msg string) string {
	if msg == "" {
		return ""
	}
	return ": " + msg
}

var _ Geocoder = (*GoogleGeocodeClient)(nil)
