package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/city-explorer-service/internal/client"
	"github.com/kjstillabower/city-explorer-service/internal/config"
	httphandler "github.com/kjstillabower/city-explorer-service/internal/http"
	"github.com/kjstillabower/city-explorer-service/internal/lifecycle"
	"github.com/kjstillabower/city-explorer-service/internal/observability"
	"github.com/kjstillabower/city-explorer-service/internal/service"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	for _, name := range cfg.MissingCredentials() {
		logger.Warn("provider credential not set; its route will fail upstream", zap.String("env", name))
	}

	geocoder, err := client.NewGoogleGeocodeClient(cfg.GeocodeAPIKey, cfg.GeocodeAPIURL, cfg.UpstreamTimeout)
	if err != nil {
		logger.Fatal("geocode client", zap.Error(err))
	}
	forecaster, err := client.NewDarkSkyClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.UpstreamTimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	events, err := client.NewMeetupClient(cfg.EventsAPIKey, cfg.EventsAPIURL, cfg.UpstreamTimeout)
	if err != nil {
		logger.Fatal("events client", zap.Error(err))
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
		logger.Info("rate limiting enabled", zap.Int("rps", cfg.RateLimitRPS), zap.Int("burst", cfg.RateLimitBurst))
	}

	handler := httphandler.NewHandler(
		service.NewLocationResolver(geocoder),
		service.NewWeatherResolver(forecaster, cfg.DateLocation),
		service.NewEventResolver(events, cfg.DateLocation),
		&httphandler.HealthConfig{
			Providers: map[string]bool{
				observability.ProviderGeocode: cfg.GeocodeAPIKey != "",
				observability.ProviderWeather: cfg.WeatherAPIKey != "",
				observability.ProviderEvents:  cfg.EventsAPIKey != "",
			},
			Version:   version,
			StartTime: time.Now(),
		},
		logger,
		cfg.AddressMaxLength,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      httphandler.NewRouter(handler, logger, limiter),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	lifecycle.WaitForShutdown(context.Background())

	logger.Info("graceful shutdown triggered", zap.Duration("drain_delay", cfg.ShutdownDrainDelay))
	lifecycle.Drain(context.Background(), cfg.ShutdownDrainDelay)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
