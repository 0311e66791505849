package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/city-explorer-service/internal/client"
	"github.com/kjstillabower/city-explorer-service/internal/lifecycle"
	"github.com/kjstillabower/city-explorer-service/internal/models"
	"github.com/kjstillabower/city-explorer-service/internal/service"
)

const testKey = "test-api-key-12345"

// providerStubs are the upstream handlers a test wants; nil means "respond 500".
type providerStubs struct {
	geocode http.HandlerFunc
	weather http.HandlerFunc
	events  http.HandlerFunc
}

func failingProvider(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusInternalServerError)
}

func jsonResponder(t *testing.T, body interface{}) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			t.Errorf("encode stub response: %v", err)
		}
	}
}

func startProvider(t *testing.T, h http.HandlerFunc) string {
	t.Helper()
	if h == nil {
		h = failingProvider
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv.URL
}

// newTestRouter wires real clients at stub providers through real resolvers, with an observed logger.
func newTestRouter(t *testing.T, stubs providerStubs) (http.Handler, *observer.ObservedLogs) {
	t.Helper()
	geo, err := client.NewGoogleGeocodeClient(testKey, startProvider(t, stubs.geocode), 2*time.Second)
	if err != nil {
		t.Fatalf("NewGoogleGeocodeClient: %v", err)
	}
	sky, err := client.NewDarkSkyClient(testKey, startProvider(t, stubs.weather), 2*time.Second)
	if err != nil {
		t.Fatalf("NewDarkSkyClient: %v", err)
	}
	meetup, err := client.NewMeetupClient(testKey, startProvider(t, stubs.events), 2*time.Second)
	if err != nil {
		t.Fatalf("NewMeetupClient: %v", err)
	}

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	h := NewHandler(
		service.NewLocationResolver(geo),
		service.NewWeatherResolver(sky, time.UTC),
		service.NewEventResolver(meetup, time.UTC),
		&HealthConfig{Providers: map[string]bool{"geocode": true, "weather": true, "events": false}, StartTime: time.Now()},
		logger,
		200,
	)
	return NewRouter(h, logger, nil), logs
}

func get(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func assertUpstreamFailure(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if body := w.Body.String(); body != UpstreamErrorMessage {
		t.Errorf("body = %q, want %q", body, UpstreamErrorMessage)
	}
}

func TestHandler_GetLocation_Success(t *testing.T) {
	var gotAddress string
	router, _ := newTestRouter(t, providerStubs{
		geocode: func(w http.ResponseWriter, r *http.Request) {
			gotAddress = r.URL.Query().Get("address")
			jsonResponder(t, map[string]interface{}{
				"status": "OK",
				"results": []map[string]interface{}{{
					"formatted_address": "1600 Amphitheatre Pkwy, Mountain View, CA 94043, USA",
					"geometry":          map[string]interface{}{"location": map[string]float64{"lat": 37.4224, "lng": -122.0841}},
				}},
			})(w, r)
		},
	})

	w := get(t, router, "/location?data=1600+Amphitheatre+Parkway")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	if gotAddress != "1600 Amphitheatre Parkway" {
		t.Errorf("provider got address %q", gotAddress)
	}
	var rec models.LocationRecord
	if err := json.NewDecoder(w.Body).Decode(&rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.SearchQuery["data"] != "1600 Amphitheatre Parkway" {
		t.Errorf("search_query = %v", rec.SearchQuery)
	}
	if rec.FormattedQuery != "1600 Amphitheatre Pkwy, Mountain View, CA 94043, USA" {
		t.Errorf("formatted_query = %q", rec.FormattedQuery)
	}
	if rec.Latitude != 37.4224 || rec.Longitude != -122.0841 {
		t.Errorf("coordinates = %v,%v", rec.Latitude, rec.Longitude)
	}
}

func TestHandler_GetLocation_ZeroResults(t *testing.T) {
	router, logs := newTestRouter(t, providerStubs{
		geocode: jsonResponder(t, map[string]interface{}{"status": "ZERO_RESULTS", "results": []interface{}{}}),
	})

	w := get(t, router, "/location?data=nowhere")

	assertUpstreamFailure(t, w)
	if strings.Contains(w.Body.String(), "latitude") {
		t.Error("failure body must not carry location fields")
	}
	entries := logs.FilterMessage("upstream failure").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d upstream failures, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["category"]; got != "no_results" {
		t.Errorf("category = %v, want no_results", got)
	}
}

func TestHandler_GetLocation_ProviderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	deadURL := srv.URL
	srv.Close()

	geo, err := client.NewGoogleGeocodeClient(testKey, deadURL, time.Second)
	if err != nil {
		t.Fatalf("NewGoogleGeocodeClient: %v", err)
	}
	h := NewHandler(service.NewLocationResolver(geo), nil, nil, nil, zap.NewNop(), 0)
	router := NewRouter(h, zap.NewNop(), nil)

	assertUpstreamFailure(t, get(t, router, "/location?data=seattle"))
}

func TestHandler_GetLocation_MissingQuery(t *testing.T) {
	router, _ := newTestRouter(t, providerStubs{})

	w := get(t, router, "/location")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var errorResp map[string]map[string]string
	if err := json.NewDecoder(w.Body).Decode(&errorResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errorResp["error"]["code"] != "INVALID_QUERY" {
		t.Errorf("code = %q, want INVALID_QUERY", errorResp["error"]["code"])
	}
	if errorResp["error"]["requestId"] == "" {
		t.Error("requestId should carry the correlation ID")
	}
}

func TestHandler_GetWeather_Success(t *testing.T) {
	var gotPath string
	router, _ := newTestRouter(t, providerStubs{
		weather: func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			jsonResponder(t, map[string]interface{}{
				"daily": map[string]interface{}{"data": []map[string]interface{}{
					{"summary": "Light rain.", "time": 1609804800},
					{"summary": "Overcast.", "time": 1609891200},
				}},
			})(w, r)
		},
	})

	w := get(t, router, "/weather?data%5Blatitude%5D=47.6062&data%5Blongitude%5D=-122.3321")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	if gotPath != "/"+testKey+"/47.6062,-122.3321" {
		t.Errorf("provider path = %q", gotPath)
	}
	var got []models.ForecastRecord
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []models.ForecastRecord{
		{Forecast: "Light rain.", Time: "Tue Jan 05 2021"},
		{Forecast: "Overcast.", Time: "Wed Jan 06 2021"},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestHandler_GetWeather_EmptyDailyIsEmptyArray(t *testing.T) {
	router, _ := newTestRouter(t, providerStubs{
		weather: jsonResponder(t, map[string]interface{}{"daily": map[string]interface{}{"data": []interface{}{}}}),
	})

	w := get(t, router, "/weather?data.latitude=0&data.longitude=0")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("body = %q, want []", body)
	}
}

func TestHandler_GetWeather_UpstreamFailure(t *testing.T) {
	router, logs := newTestRouter(t, providerStubs{})

	w := get(t, router, `/weather?data=%7B%22latitude%22%3A1%2C%22longitude%22%3A2%7D`)

	assertUpstreamFailure(t, w)
	if logs.FilterMessage("upstream failure").Len() != 1 {
		t.Error("upstream failure should be logged once")
	}
}

func TestHandler_GetWeather_InvalidCoordinates(t *testing.T) {
	router, _ := newTestRouter(t, providerStubs{})

	w := get(t, router, "/weather?data%5Blatitude%5D=abc&data%5Blongitude%5D=1")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandler_GetMeetups_Success(t *testing.T) {
	router, _ := newTestRouter(t, providerStubs{
		events: func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("page") != "20" || r.URL.Query().Get("sign") != "true" {
				t.Errorf("unexpected provider query %s", r.URL.RawQuery)
			}
			jsonResponder(t, map[string]interface{}{"events": []map[string]interface{}{
				{"link": "https://meetup.com/go/1", "name": "Go Night", "created": int64(1609804800000), "group": map[string]string{"name": "Seattle Go"}},
				{"link": "https://meetup.com/hike/2", "name": "Hike", "created": int64(1609891200000), "group": map[string]string{"name": "Hikers"}},
			}})(w, r)
		},
	})

	w := get(t, router, "/meetups?data%5Blatitude%5D=47.6062&data%5Blongitude%5D=-122.3321")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	var got []models.EventRecord
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []models.EventRecord{
		{Link: "https://meetup.com/go/1", Name: "Go Night", CreationDate: models.FormatDay(1609804800000, time.UTC), Host: "Seattle Go"},
		{Link: "https://meetup.com/hike/2", Name: "Hike", CreationDate: "Wed Jan 06 2021", Host: "Hikers"},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestHandler_GetMeetups_MalformedBody(t *testing.T) {
	router, _ := newTestRouter(t, providerStubs{
		events: func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"events": [ {"link": "trunc`))
		},
	})

	w := get(t, router, "/meetups?data%5Blatitude%5D=1&data%5Blongitude%5D=2")

	assertUpstreamFailure(t, w)
	if strings.HasPrefix(w.Body.String(), "[") {
		t.Error("failure must not return a partial array")
	}
}

func TestHandler_GetHealth(t *testing.T) {
	router, _ := newTestRouter(t, providerStubs{})

	w := get(t, router, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Checks["events"] != "missing_key" || resp.Checks["geocode"] != "configured" {
		t.Errorf("checks = %v", resp.Checks)
	}

	lifecycle.SetShuttingDown(true)
	defer lifecycle.SetShuttingDown(false)
	if w := get(t, router, "/health"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status while shutting down = %d, want 503", w.Code)
	}
}

func TestHandler_IncompleteProviderBodiesAreUpstreamFailures(t *testing.T) {
	tests := []struct {
		name   string
		stubs  func(t *testing.T) providerStubs
		target string
	}{
		{
			name: "geocode result without location",
			stubs: func(t *testing.T) providerStubs {
				return providerStubs{geocode: jsonResponder(t, map[string]interface{}{
					"status":  "OK",
					"results": []interface{}{map[string]interface{}{"formatted_address": "X"}},
				})}
			},
			target: "/location?data=x",
		},
		{
			name: "daily without data",
			stubs: func(t *testing.T) providerStubs {
				return providerStubs{weather: jsonResponder(t, map[string]interface{}{"daily": map[string]interface{}{}})}
			},
			target: "/weather?data.latitude=1&data.longitude=2",
		},
		{
			name: "event without group",
			stubs: func(t *testing.T) providerStubs {
				return providerStubs{events: jsonResponder(t, map[string]interface{}{
					"events": []map[string]interface{}{{"link": "l", "name": "n", "created": 0}},
				})}
			},
			target: "/meetups?data.latitude=1&data.longitude=2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, logs := newTestRouter(t, tt.stubs(t))

			w := get(t, router, tt.target)

			assertUpstreamFailure(t, w)
			entries := logs.FilterMessage("upstream failure").All()
			if len(entries) != 1 {
				t.Fatalf("logged %d upstream failures, want 1", len(entries))
			}
			if got := entries[0].ContextMap()["category"]; got != "parsing" {
				t.Errorf("category = %v, want parsing", got)
			}
		})
	}
}

func TestHandler_NonFiniteCoordinatesAreRejected(t *testing.T) {
	var calls atomic.Int32
	counting := func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}
	router, _ := newTestRouter(t, providerStubs{weather: counting, events: counting})

	for _, target := range []string{
		"/weather?data%5Blatitude%5D=NaN&data%5Blongitude%5D=1",
		"/weather?data.latitude=1&data.longitude=Inf",
		"/meetups?data%5Blatitude%5D=-Inf&data%5Blongitude%5D=NaN",
	} {
		if w := get(t, router, target); w.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", target, w.Code)
		}
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("provider called %d times, want 0", n)
	}
}

func TestHandler_GetWeather_CallerCancellationDoesNotAbortProviderCall(t *testing.T) {
	var calls atomic.Int32
	router, _ := newTestRouter(t, providerStubs{
		weather: func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			jsonResponder(t, map[string]interface{}{"daily": map[string]interface{}{"data": []interface{}{}}})(w, r)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/weather?data.latitude=1&data.longitude=2", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("provider called %d times, want 1", n)
	}
}
