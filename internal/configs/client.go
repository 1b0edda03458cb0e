package configs

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Backend modes of the client.
const (
	// ModeRemote talks to the hosted backend.
	ModeRemote = "remote"
	// ModeMemory keeps everything in process, for demos and offline use.
	ModeMemory = "memory"
)

// Change feed drivers of the remote mode.
const (
	FeedPostgres = "postgres"
	FeedRealtime = "realtime"
)

// ClientConfig configures the chat client.
type ClientConfig struct {
	Environment string
	Mode        string

	BackendURL     string
	BackendAPIKey  string
	BackendTimeout time.Duration

	DatabaseURL string
	FeedDriver  string
	RealtimeURL string

	S3BucketName      string
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	SignedURLTTL      time.Duration

	// SessionDir holds the persisted session. Empty keeps it in memory.
	SessionDir string

	AutoLoginAfterRegister bool
}

func (c *ClientConfig) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

func LoadClientConfig() (*ClientConfig, error) {
	cfg := &ClientConfig{
		Environment:   environment(),
		Mode:          stringOr("BACKEND_MODE", ModeRemote),
		BackendAPIKey: os.Getenv("BACKEND_API_KEY"),
		S3Region:      stringOr("S3_REGION", "auto"),
	}

	var err error
	if cfg.AutoLoginAfterRegister, err = boolOr("AUTO_LOGIN_AFTER_REGISTER", false); err != nil {
		return nil, err
	}
	if cfg.SignedURLTTL, err = durationOr("SIGNED_URL_TTL", time.Hour); err != nil {
		return nil, err
	}

	switch cfg.Mode {
	case ModeMemory:
		return cfg, nil
	case ModeRemote:
	default:
		return nil, fmt.Errorf("invalid BACKEND_MODE %q, expected %q or %q", cfg.Mode, ModeRemote, ModeMemory)
	}

	cfg.BackendURL = stringOr("BACKEND_URL", "http://localhost:8080")
	if cfg.BackendTimeout, err = durationOr("BACKEND_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL, err = databaseURL(cfg.Environment); err != nil {
		return nil, err
	}

	cfg.FeedDriver = stringOr("FEED_DRIVER", FeedPostgres)
	switch cfg.FeedDriver {
	case FeedPostgres:
	case FeedRealtime:
		cfg.RealtimeURL = os.Getenv("REALTIME_URL")
		if cfg.RealtimeURL == "" {
			return nil, fmt.Errorf("REALTIME_URL environment variable is required when FEED_DRIVER is %s", FeedRealtime)
		}
	default:
		return nil, fmt.Errorf("invalid FEED_DRIVER %q, expected %q or %q", cfg.FeedDriver, FeedPostgres, FeedRealtime)
	}

	required := []struct {
		key string
		dst *string
	}{
		{"S3_BUCKET_NAME", &cfg.S3BucketName},
		{"S3_ENDPOINT", &cfg.S3Endpoint},
		{"S3_ACCESS_KEY_ID", &cfg.S3AccessKeyID},
		{"S3_SECRET_ACCESS_KEY", &cfg.S3SecretAccessKey},
	}
	for _, r := range required {
		*r.dst = os.Getenv(r.key)
		if *r.dst == "" {
			return nil, fmt.Errorf("%s environment variable is required for S3 storage connection", r.key)
		}
	}

	cfg.SessionDir = os.Getenv("SESSION_DIR")
	if cfg.SessionDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.SessionDir = filepath.Join(home, ".appdam", "session")
		}
	}

	return cfg, nil
}
