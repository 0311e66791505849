package client

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kjstillabower/city-explorer-service/internal/models"
	"github.com/kjstillabower/city-explorer-service/internal/observability"
)

// DefaultEventsURL is the Meetup upcoming-events endpoint.
const DefaultEventsURL = "https://api.meetup.com/find/upcoming_events"

// EventsPageSize is the fixed number of events requested per call.
const EventsPageSize = 20

// EventFinder returns upcoming events near a coordinate pair.
type EventFinder interface {
	UpcomingEvents(ctx context.Context, at models.Coordinates) ([]Event, error)
}

// Event is one upstream event.
type Event struct {
	Link      string
	Name      string
	Created   int64 // epoch milliseconds
	GroupName string
}

// MeetupClient calls the Meetup find/upcoming_events API.
type MeetupClient struct {
	baseClient
}

func NewMeetupClient(apiKey, apiURL string, timeout time.Duration) (*MeetupClient, error) {
	base, err := newBaseClient(observability.ProviderEvents, apiKey, apiURL, timeout)
	if err != nil {
		return nil, err
	}
	return &MeetupClient{baseClient: base}, nil
}

type meetupResponse struct {
	Events *[]struct {
		Link    string `json:"link"`
		Name    string `json:"name"`
		Created int64  `json:"created"`
		Group   *struct {
			Name string `json:"name"`
		} `json:"group"`
	} `json:"events"`
}

// UpcomingEvents returns at most EventsPageSize events in provider order.
func (c *MeetupClient) UpcomingEvents(ctx context.Context, at models.Coordinates) ([]Event, error) {
	u := *c.baseURL
	params := u.Query()
	params.Set("lat", formatCoordinate(at.Latitude))
	params.Set("lon", formatCoordinate(at.Longitude))
	// sign=true asks Meetup to return signed URLs; the key parameter is the only credential sent.
	params.Set("sign", "true")
	params.Set("photo-host", "public")
	params.Set("page", strconv.Itoa(EventsPageSize))
	params.Set("key", c.apiKey)
	u.RawQuery = params.Encode()

	var resp meetupResponse
	if err := c.getJSON(ctx, &u, &resp); err != nil {
		return nil, err
	}
	if resp.Events == nil {
		return nil, c.malformed("events")
	}

	events := make([]Event, 0, len(*resp.Events))
	for i, e := range *resp.Events {
		if e.Group == nil {
			return nil, c.malformed(fmt.Sprintf("events[%d].group", i))
		}
		events = append(events, Event{
			Link:      e.Link,
			Name:      e.Name,
			Created:   e.Created,
			GroupName: e.Group.Name,
		})
	}
	return events, nil
}

var _ EventFinder = (*MeetupClient)(nil)
