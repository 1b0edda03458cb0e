package configs

import (
	"fmt"
	"os"
)

// ServerConfig configures the functions service.
type ServerConfig struct {
	Environment    string
	Port           int
	AllowedOrigins []string
	JWTSecret      string
	DatabaseURL    string

	// Room endpoints are throttled per client IP.
	RoomRate  float64
	RoomBurst int
}

func (c *ServerConfig) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{Environment: environment()}

	port, err := intOr("PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port < 1024 || port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", port, 1024, 65535)
	}
	cfg.Port = port

	cfg.AllowedOrigins = list("ALLOWED_ORIGINS")

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required in %s environment for security", cfg.Environment)
		}
		cfg.JWTSecret = "insecure_development_secret_change_me"
	}

	if cfg.DatabaseURL, err = databaseURL(cfg.Environment); err != nil {
		return nil, err
	}

	if cfg.RoomRate, err = floatOr("CREATE_ROOM_RATE", 0.2); err != nil {
		return nil, err
	}
	if cfg.RoomBurst, err = intOr("CREATE_ROOM_BURST", 5); err != nil {
		return nil, err
	}
	if cfg.RoomRate <= 0 || cfg.RoomBurst < 1 {
		return nil, fmt.Errorf("CREATE_ROOM_RATE and CREATE_ROOM_BURST must be positive")
	}

	return cfg, nil
}
