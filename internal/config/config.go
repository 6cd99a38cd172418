package config

import (
	"fmt"
	"time"

	"github.com/Dias221467/savings-goals/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every setting the server and the goalctl tool read from the environment.
type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// MongoDB must run as a replica set: live goal subscriptions use change streams.
	MongoURI        string `envconfig:"MONGO_URI" required:"true"`
	MongoDB         string `envconfig:"MONGO_DB" default:"savings_goals"`
	ConnectAttempts uint64 `envconfig:"CONNECT_ATTEMPTS" default:"5"`

	JWTSecret      string   `envconfig:"JWT_SECRET" required:"true"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// Timezone is the location date-only deadlines are interpreted in.
	Timezone string `envconfig:"TIMEZONE" default:"UTC"`

	RefreshSchedule string `envconfig:"REFRESH_SCHEDULE" default:"@hourly"`
	SweepSchedule   string `envconfig:"SWEEP_SCHEDULE" default:"0 0 * * *"`
	DueSoonSchedule string `envconfig:"DUE_SOON_SCHEDULE" default:"@hourly"`
	CleanupSchedule string `envconfig:"CLEANUP_SCHEDULE" default:"@daily"`

	CorrectiveWriteTimeout time.Duration `envconfig:"CORRECTIVE_WRITE_TIMEOUT" default:"10s"`
	NotificationTTL        time.Duration `envconfig:"NOTIFICATION_TTL" default:"168h"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Log.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}
