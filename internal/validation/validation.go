package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/kjstillabower/city-explorer-service/internal/models"
)

// QueryParam is the inbound query parameter every route reads.
const QueryParam = "data"

// ErrAddressRequired is returned when data is empty or whitespace-only.
var ErrAddressRequired = errors.New("data is required")

// ErrAddressTooLong is returned when the address exceeds the configured rune limit.
var ErrAddressTooLong = errors.New("data too long")

// ErrCoordinatesRequired is returned when latitude or longitude is absent.
var ErrCoordinatesRequired = errors.New("data.latitude and data.longitude are required")

// ErrCoordinatesInvalid is returned when a coordinate is not a number or is out of range.
var ErrCoordinatesInvalid = errors.New("invalid coordinates")

// ParseAddress returns the trimmed free-text address from data. maxLen (runes) is ignored when <= 0.
func ParseAddress(values url.Values, maxLen int) (string, error) {
	s := strings.TrimSpace(values.Get(QueryParam))
	if s == "" {
		return "", ErrAddressRequired
	}
	if maxLen > 0 && len([]rune(s)) > maxLen {
		return "", ErrAddressTooLong
	}
	return s, nil
}

// ParseCoordinates reads a latitude/longitude object from the query. Accepted forms, in order:
//
//	data[latitude]=47.6&data[longitude]=-122.3   (bracket form from browser query serializers)
//	data.latitude=47.6&data.longitude=-122.3
//	data={"latitude":47.6,"longitude":-122.3}
func ParseCoordinates(values url.Values) (models.Coordinates, error) {
	for _, keys := range [][2]string{
		{QueryParam + "[latitude]", QueryParam + "[longitude]"},
		{QueryParam + ".latitude", QueryParam + ".longitude"},
	} {
		lat, lng := values.Get(keys[0]), values.Get(keys[1])
		if lat == "" && lng == "" {
			continue
		}
		if lat == "" || lng == "" {
			return models.Coordinates{}, ErrCoordinatesRequired
		}
		return parsePair(lat, lng)
	}

	raw := strings.TrimSpace(values.Get(QueryParam))
	if raw == "" {
		return models.Coordinates{}, ErrCoordinatesRequired
	}
	var obj struct {
		Latitude  *json.Number `json:"latitude"`
		Longitude *json.Number `json:"longitude"`
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: data is not a coordinate object", ErrCoordinatesInvalid)
	}
	if obj.Latitude == nil || obj.Longitude == nil {
		return models.Coordinates{}, ErrCoordinatesRequired
	}
	return parsePair(obj.Latitude.String(), obj.Longitude.String())
}

func parsePair(latStr, lngStr string) (models.Coordinates, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: latitude %q", ErrCoordinatesInvalid, latStr)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: longitude %q", ErrCoordinatesInvalid, lngStr)
	}
	if math.IsNaN(lat) || math.IsInf(lat, 0) {
		return models.Coordinates{}, fmt.Errorf("%w: latitude %q is not finite", ErrCoordinatesInvalid, latStr)
	}
	if math.IsNaN(lng) || math.IsInf(lng, 0) {
		return models.Coordinates{}, fmt.Errorf("%w: longitude %q is not finite", ErrCoordinatesInvalid, lngStr)
	}
	if lat < -90 || lat > 90 {
		return models.Coordinates{}, fmt.Errorf("%w: latitude %v out of range", ErrCoordinatesInvalid, lat)
	}
	if lng < -180 || lng > 180 {
		return models.Coordinates{}, fmt.Errorf("%w: longitude %v out of range", ErrCoordinatesInvalid, lng)
	}
	return models.Coordinates{Latitude: lat, Longitude: lng}, nil
}
