package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // dates.timezone must resolve on hosts without a zoneinfo database

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/city-explorer-service/internal/client"
)

// Config holds service configuration loaded from .env, YAML and the environment.
type Config struct {
	ServerPort   string
	LogLevel     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	GeocodeAPIKey string
	GeocodeAPIURL string
	WeatherAPIKey string
	WeatherAPIURL string
	EventsAPIKey  string
	EventsAPIURL  string

	// UpstreamTimeout bounds each provider call. Zero means no client timeout.
	UpstreamTimeout time.Duration

	// DateLocation is the zone day labels are rendered in.
	DateLocation *time.Location

	AddressMaxLength int

	// RateLimitRPS of 0 disables inbound rate limiting.
	RateLimitRPS   int
	RateLimitBurst int

	// ShutdownDrainDelay is how long /health reports shutting-down before the listener closes.
	ShutdownDrainDelay            time.Duration
	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration
}

type fileConfig struct {
	Server struct {
		Port         string `yaml:"port"`
		ReadTimeout  string `yaml:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Providers struct {
		Timeout string `yaml:"timeout"`
		Geocode struct {
			URL string `yaml:"url"`
		} `yaml:"geocode"`
		Weather struct {
			URL string `yaml:"url"`
		} `yaml:"weather"`
		Events struct {
			URL string `yaml:"url"`
		} `yaml:"events"`
	} `yaml:"providers"`

	Dates struct {
		Timezone string `yaml:"timezone"`
	} `yaml:"dates"`

	Validation struct {
		AddressMaxLength int `yaml:"address_max_length"`
	} `yaml:"validation"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		DrainDelay            string `yaml:"drain_delay"`
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	GoogleMapsAPIKey string `yaml:"google_maps_api_key"`
	DarkSkyAPIKey    string `yaml:"dark_sky_api_key"`
	MeetupAPIKey     string `yaml:"meetup_api_key"`
}

// Environment variable names.
const (
	EnvPort          = "PORT"
	EnvLogLevel      = "LOG_LEVEL"
	EnvName          = "ENV_NAME"
	EnvGeocodeAPIKey = "GOOGLE_MAPS_API_KEY"
	EnvWeatherAPIKey = "DARK_SKY_API_KEY"
	EnvEventsAPIKey  = "MEETUP_API_KEY"
)

// Load reads configuration relative to the working directory. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFrom(cwd)
}

// LoadFrom reads dir/.env (if present), dir/config/{ENV_NAME}.yaml and dir/config/secrets.yaml.
// Environment variables override file values. The YAML file may be absent only when ENV_NAME is unset.
func LoadFrom(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env file: %w", err)
	}

	env, explicit := os.LookupEnv(EnvName)
	if env == "" {
		env, explicit = "dev", false
	}

	var fc fileConfig
	configPath := filepath.Join(dir, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// defaults only
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("config file not found: %s", configPath)
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var sec secretsFile
	secretsData, err := os.ReadFile(filepath.Join(dir, "config", "secrets.yaml"))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read secrets file: %w", err)
		}
	} else if err := yaml.Unmarshal(secretsData, &sec); err != nil {
		return nil, fmt.Errorf("parse secrets file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = firstNonEmpty(os.Getenv(EnvPort), fc.Server.Port, "3000")
	cfg.LogLevel = firstNonEmpty(os.Getenv(EnvLogLevel), fc.Log.Level, "INFO")
	cfg.ReadTimeout = parseDuration(fc.Server.ReadTimeout, 10*time.Second)
	cfg.WriteTimeout = parseDuration(fc.Server.WriteTimeout, 30*time.Second)

	cfg.GeocodeAPIKey = firstNonEmpty(os.Getenv(EnvGeocodeAPIKey), sec.GoogleMapsAPIKey)
	cfg.WeatherAPIKey = firstNonEmpty(os.Getenv(EnvWeatherAPIKey), sec.DarkSkyAPIKey)
	cfg.EventsAPIKey = firstNonEmpty(os.Getenv(EnvEventsAPIKey), sec.MeetupAPIKey)

	cfg.GeocodeAPIURL = firstNonEmpty(fc.Providers.Geocode.URL, client.DefaultGeocodeURL)
	cfg.WeatherAPIURL = firstNonEmpty(fc.Providers.Weather.URL, client.DefaultForecastURL)
	cfg.EventsAPIURL = firstNonEmpty(fc.Providers.Events.URL, client.DefaultEventsURL)
	cfg.UpstreamTimeout = parseDurationOrZero(fc.Providers.Timeout, 0)

	tz := firstNonEmpty(fc.Dates.Timezone, "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("dates.timezone %q: %w", tz, err)
	}
	cfg.DateLocation = loc

	cfg.AddressMaxLength = fc.Validation.AddressMaxLength
	if cfg.AddressMaxLength <= 0 {
		cfg.AddressMaxLength = 200
	}

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = cfg.RateLimitRPS
	}

	cfg.ShutdownDrainDelay = parseDurationOrZero(fc.Shutdown.DrainDelay, 5*time.Second)
	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MissingCredentials returns the env var names of provider keys that are not set.
// The service still starts; the affected route fails upstream.
func (c *Config) MissingCredentials() []string {
	var missing []string
	if c.GeocodeAPIKey == "" {
		missing = append(missing, EnvGeocodeAPIKey)
	}
	if c.WeatherAPIKey == "" {
		missing = append(missing, EnvWeatherAPIKey)
	}
	if c.EventsAPIKey == "" {
		missing = append(missing, EnvEventsAPIKey)
	}
	return missing
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero is returned as-is.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

func validate(cfg *Config) error {
	if cfg.UpstreamTimeout < 0 {
		return fmt.Errorf("providers.timeout must not be negative")
	}
	if cfg.ShutdownDrainDelay < 0 {
		return fmt.Errorf("shutdown.drain_delay must not be negative")
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("reliability.rate_limit_rps must not be negative")
	}
	for _, c := range cfg.ServerPort {
		if c < '0' || c > '9' {
			return fmt.Errorf("%s must be numeric, got %q", EnvPort, cfg.ServerPort)
		}
	}
	return nil
}
