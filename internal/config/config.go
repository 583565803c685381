package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Stop sample policies used when a route asks for more stops than there are
// locations to draw from
const (
	StopSampleCap  = "cap"
	StopSampleFail = "fail"
)

// BoundingBox is the longitude/latitude rectangle synthetic locations are drawn from
type BoundingBox struct {
	MinLongitude float64 `yaml:"min_longitude" validate:"gte=-180,lte=180"`
	MaxLongitude float64 `yaml:"max_longitude" validate:"gte=-180,lte=180,gtefield=MinLongitude"`
	MinLatitude  float64 `yaml:"min_latitude" validate:"gte=-90,lte=90"`
	MaxLatitude  float64 `yaml:"max_latitude" validate:"gte=-90,lte=90,gtefield=MinLatitude"`
}

// Contains reports whether lon/lat falls inside the box, edges included
func (b BoundingBox) Contains(lon, lat float64) bool {
	return lon >= b.MinLongitude && lon <= b.MaxLongitude &&
		lat >= b.MinLatitude && lat <= b.MaxLatitude
}

// Config holds all configuration for the seeder
type Config struct {
	// Database
	DatabaseURI  string `yaml:"database_uri" validate:"required"`
	DatabaseName string `yaml:"database_name" validate:"required"`

	// Fixture sizes
	NumberOfLocations int `yaml:"number_of_locations" validate:"gte=0"`
	NumberOfRoutes    int `yaml:"number_of_routes" validate:"gte=0"`
	NumberOfJourneys  int `yaml:"number_of_journeys" validate:"gte=0"`

	BoundingBox BoundingBox `yaml:"bounding_box"`

	// Stops per route, inclusive range
	MinStopsPerRoute int    `yaml:"min_stops_per_route" validate:"gte=0"`
	MaxStopsPerRoute int    `yaml:"max_stops_per_route" validate:"gtefield=MinStopsPerRoute"`
	StopSamplePolicy string `yaml:"stop_sample_policy" validate:"oneof=cap fail"`

	// 0 picks a random seed
	Seed uint64 `yaml:"seed"`

	// Timeouts
	ConnectTimeout time.Duration `yaml:"connect_timeout" validate:"gt=0"`
	StageTimeout   time.Duration `yaml:"stage_timeout" validate:"gt=0"`

	// Logging
	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=console json"`

	// Completion event, disabled when the URL is empty
	NotifyAMQPURL  string `yaml:"notify_amqp_url" validate:"omitempty,url"`
	NotifyExchange string `yaml:"notify_exchange" validate:"required_with=NotifyAMQPURL"`
}

// Default returns the configuration used when nothing is overridden.
// The bounding box approximates Hong Kong.
func Default() *Config {
	return &Config{
		DatabaseURI:       "mongodb://localhost:27017",
		DatabaseName:      "ptes",
		NumberOfLocations: 100,
		NumberOfRoutes:    500,
		NumberOfJourneys:  1000,
		BoundingBox: BoundingBox{
			MinLongitude: 113.8,
			MaxLongitude: 114.4,
			MinLatitude:  22.25,
			MaxLatitude:  22.55,
		},
		MinStopsPerRoute: 5,
		MaxStopsPerRoute: 20,
		StopSamplePolicy: StopSampleCap,
		ConnectTimeout:   10 * time.Second,
		StageTimeout:     2 * time.Minute,
		LogLevel:         "info",
		LogFormat:        "console",
		NotifyExchange:   "fixtures",
	}
}

// Load builds the configuration from defaults, an optional YAML file, a .env
// file and the environment, in increasing order of precedence, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// .env never overrides variables already set in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.DatabaseURI = getEnv("DATABASE_URI", cfg.DatabaseURI)
	cfg.DatabaseName = getEnv("DATABASE_NAME", cfg.DatabaseName)

	cfg.NumberOfLocations = getEnvInt("NUMBER_OF_LOCATIONS", cfg.NumberOfLocations)
	cfg.NumberOfRoutes = getEnvInt("NUMBER_OF_ROUTES", cfg.NumberOfRoutes)
	cfg.NumberOfJourneys = getEnvInt("NUMBER_OF_JOURNEYS", cfg.NumberOfJourneys)

	cfg.BoundingBox.MinLongitude = getEnvFloat("MIN_LONGITUDE", cfg.BoundingBox.MinLongitude)
	cfg.BoundingBox.MaxLongitude = getEnvFloat("MAX_LONGITUDE", cfg.BoundingBox.MaxLongitude)
	cfg.BoundingBox.MinLatitude = getEnvFloat("MIN_LATITUDE", cfg.BoundingBox.MinLatitude)
	cfg.BoundingBox.MaxLatitude = getEnvFloat("MAX_LATITUDE", cfg.BoundingBox.MaxLatitude)

	cfg.MinStopsPerRoute = getEnvInt("MIN_STOPS_PER_ROUTE", cfg.MinStopsPerRoute)
	cfg.MaxStopsPerRoute = getEnvInt("MAX_STOPS_PER_ROUTE", cfg.MaxStopsPerRoute)
	cfg.StopSamplePolicy = getEnv("STOP_SAMPLE_POLICY", cfg.StopSamplePolicy)

	cfg.Seed = getEnvUint64("SEED", cfg.Seed)

	cfg.ConnectTimeout = getEnvDuration("CONNECT_TIMEOUT", cfg.ConnectTimeout)
	cfg.StageTimeout = getEnvDuration("STAGE_TIMEOUT", cfg.StageTimeout)

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	cfg.NotifyAMQPURL = getEnv("NOTIFY_AMQP_URL", cfg.NotifyAMQPURL)
	cfg.NotifyExchange = getEnv("NOTIFY_EXCHANGE", cfg.NotifyExchange)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if uintValue, err := strconv.ParseUint(value, 10, 64); err == nil {
			return uintValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
