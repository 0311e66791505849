package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/city-explorer-service/internal/client"
	"github.com/kjstillabower/city-explorer-service/internal/lifecycle"
	"github.com/kjstillabower/city-explorer-service/internal/observability"
	"github.com/kjstillabower/city-explorer-service/internal/service"
	"github.com/kjstillabower/city-explorer-service/internal/validation"
)

// UpstreamErrorMessage is the fixed body sent with every 500.
const UpstreamErrorMessage = "Sorry, something went wrong"

// HealthConfig holds what the health handler reports.
type HealthConfig struct {
	// Providers maps provider name to whether a credential was configured.
	Providers map[string]bool
	Version   string
	StartTime time.Time
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	locations        *service.LocationResolver
	weather          *service.WeatherResolver
	events           *service.EventResolver
	healthConfig     *HealthConfig
	logger           *zap.Logger
	addressMaxLength int
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. addressMaxLength <= 0 disables the address length check.
func NewHandler(
	locations *service.LocationResolver,
	weather *service.WeatherResolver,
	events *service.EventResolver,
	healthConfig *HealthConfig,
	logger *zap.Logger,
	addressMaxLength int,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		locations:        locations,
		weather:          weather,
		events:           events,
		healthConfig:     healthConfig,
		logger:           logger,
		addressMaxLength: addressMaxLength,
	}
}

// upstreamContext keeps the request's values for the provider call but not its cancellation,
// so a dropped caller does not abort an issued upstream request.
func upstreamContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// GetLocation handles GET /location?data=<address>.
func (h *Handler) GetLocation(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	address, err := validation.ParseAddress(query, h.addressMaxLength)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}

	rec, err := h.locations.Resolve(upstreamContext(r), address, query)
	if err != nil {
		h.writeUpstreamFailure(w, r, observability.ProviderGeocode, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, rec)
}

// GetWeather handles GET /weather?data[latitude]=..&data[longitude]=..
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	at, err := validation.ParseCoordinates(r.URL.Query())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}

	forecasts, err := h.weather.Resolve(upstreamContext(r), at)
	if err != nil {
		h.writeUpstreamFailure(w, r, observability.ProviderWeather, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, forecasts)
}

// GetMeetups handles GET /meetups?data[latitude]=..&data[longitude]=..
func (h *Handler) GetMeetups(w http.ResponseWriter, r *http.Request) {
	at, err := validation.ParseCoordinates(r.URL.Query())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}

	events, err := h.events.Resolve(upstreamContext(r), at)
	if err != nil {
		h.writeUpstreamFailure(w, r, observability.ProviderEvents, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, events)
}

// GetHealth handles GET /health. Returns 503 with status shutting-down while draining.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status, statusCode := "healthy", http.StatusOK
	if lifecycle.IsShuttingDown() {
		status, statusCode = "shutting-down", http.StatusServiceUnavailable
	}

	h.healthStatusMu.Lock()
	if prev := h.healthStatusPrev; prev != "" && prev != status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", status))
	}
	h.healthStatusPrev = status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	version := "dev"
	resp := map[string]interface{}{
		"status":    status,
		"service":   observability.ServiceName,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.healthConfig != nil {
		for provider, configured := range h.healthConfig.Providers {
			if configured {
				checks[provider] = "configured"
			} else {
				checks[provider] = "missing_key"
			}
		}
		if h.healthConfig.Version != "" {
			version = h.healthConfig.Version
		}
		if !h.healthConfig.StartTime.IsZero() {
			resp["uptimeSeconds"] = int64(time.Since(h.healthConfig.StartTime).Seconds())
		}
	}
	resp["version"] = version
	h.writeJSON(w, r, statusCode, resp)
}

// writeUpstreamFailure logs err and sends the fixed 500. No partial body is ever written.
func (h *Handler) writeUpstreamFailure(w http.ResponseWriter, r *http.Request, provider string, err error) {
	category := client.CategorizeError(err)
	observability.RecordUpstreamError(provider, string(category))

	logger := observability.LoggerFrom(r.Context(), h.logger)
	fields := []zap.Field{
		zap.String("provider", provider),
		zap.String("category", string(category)),
		zap.Error(err),
	}
	if errors.Is(err, context.Canceled) {
		logger.Warn("upstream call canceled", fields...)
	} else {
		logger.Error("upstream failure", fields...)
	}
	writeUpstreamError(w)
}

// writeJSON encodes v fully before touching w, so an encoding failure still yields a single clean 500.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		observability.LoggerFrom(r.Context(), h.logger).Error("encode response", zap.Error(err))
		writeUpstreamError(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeUpstreamError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(UpstreamErrorMessage))
}

// writeError writes a client error in the standard error format with code, message
// and requestId (correlation ID) when available.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	body, _ := json.Marshal(map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
