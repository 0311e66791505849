package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/city-explorer-service/internal/observability"
)

// NewRouter registers every route and wraps the result in permissive CORS.
// limiter may be nil to disable rate limiting on the resolver routes.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter) http.Handler {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.Use(RecoveryMiddleware(logger))

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	limited := RateLimitMiddleware(limiter)
	router.Handle("/location", limited(http.HandlerFunc(h.GetLocation))).Methods(http.MethodGet)
	router.Handle("/weather", limited(http.HandlerFunc(h.GetWeather))).Methods(http.MethodGet)
	router.Handle("/meetups", limited(http.HandlerFunc(h.GetMeetups))).Methods(http.MethodGet)

	return CORSMiddleware()(router)
}
