package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// DefaultAPIURL is used when neither the environment nor a profile names a
// backend.
const DefaultAPIURL = "http://localhost:8000/api"

type Config struct {
	APIURL      string // ROUNDTABLE_API_URL (default DefaultAPIURL)
	Token       string // ROUNDTABLE_TOKEN (optional bearer token)
	NATSURL     string // ROUNDTABLE_NATS_URL (optional, enables the NATS insert feed)
	DatabaseURL string // ROUNDTABLE_DATABASE_URL (optional, enables Postgres history and LISTEN feed)
	Profile     string // ROUNDTABLE_PROFILE (default: active profile in profiles.toml)

	ReconnectDelay time.Duration // ROUNDTABLE_RECONNECT_DELAY (default 3s; must be > 0)
	PollInterval   time.Duration // ROUNDTABLE_POLL_INTERVAL (default 5s; 0 = disabled)
	LogLevel       slog.Level    // ROUNDTABLE_LOG_LEVEL (default warn)

	// Transcript export
	S3Bucket   string // ROUNDTABLE_S3_BUCKET (enables S3 export when set)
	S3Endpoint string // ROUNDTABLE_S3_ENDPOINT (custom endpoint for MinIO)
	S3Region   string // ROUNDTABLE_S3_REGION (default "us-east-1")
	S3Prefix   string // ROUNDTABLE_S3_PREFIX (default "roundtable/transcripts")
}

func Load() (*Config, error) {
	c := &Config{
		APIURL:      os.Getenv("ROUNDTABLE_API_URL"),
		Token:       os.Getenv("ROUNDTABLE_TOKEN"),
		NATSURL:     os.Getenv("ROUNDTABLE_NATS_URL"),
		DatabaseURL: os.Getenv("ROUNDTABLE_DATABASE_URL"),
		S3Bucket:    os.Getenv("ROUNDTABLE_S3_BUCKET"),
		S3Endpoint:  os.Getenv("ROUNDTABLE_S3_ENDPOINT"),
		S3Region:    envOrDefault("ROUNDTABLE_S3_REGION", "us-east-1"),
		S3Prefix:    envOrDefault("ROUNDTABLE_S3_PREFIX", "roundtable/transcripts"),
	}

	profiles, err := LoadProfiles()
	if err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}
	c.Profile = envOrDefault("ROUNDTABLE_PROFILE", profiles.Active)
	if c.Profile != "" {
		p, ok := profiles.Profiles[c.Profile]
		if !ok {
			return nil, fmt.Errorf("profile %q not found", c.Profile)
		}
		c.ApplyProfile(p)
	}
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")

	d, err := time.ParseDuration(envOrDefault("ROUNDTABLE_RECONNECT_DELAY", "3s"))
	if err != nil {
		return nil, fmt.Errorf("ROUNDTABLE_RECONNECT_DELAY: %w", err)
	}
	if d <= 0 {
		return nil, fmt.Errorf("ROUNDTABLE_RECONNECT_DELAY must be positive, got %s", d)
	}
	c.ReconnectDelay = d

	d, err = time.ParseDuration(envOrDefault("ROUNDTABLE_POLL_INTERVAL", "5s"))
	if err != nil {
		return nil, fmt.Errorf("ROUNDTABLE_POLL_INTERVAL: %w", err)
	}
	if d < 0 {
		return nil, fmt.Errorf("ROUNDTABLE_POLL_INTERVAL must not be negative, got %s", d)
	}
	c.PollInterval = d

	if err := c.LogLevel.UnmarshalText([]byte(envOrDefault("ROUNDTABLE_LOG_LEVEL", "warn"))); err != nil {
		return nil, fmt.Errorf("ROUNDTABLE_LOG_LEVEL: %w", err)
	}

	return c, nil
}

// ApplyProfile fills fields the environment left empty from p.
func (c *Config) ApplyProfile(p Profile) {
	if c.APIURL == "" {
		c.APIURL = p.APIURL
	}
	if c.Token == "" {
		c.Token = p.Token
	}
	if c.NATSURL == "" {
		c.NATSURL = p.NATSURL
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = p.DatabaseURL
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
