package config

import (
	"os"
	"time"

	"sentimetrics/internal/store"
)

type Config struct {
	HTTPAddr        string
	UpstreamBase    string
	Store           store.Config
	RefreshInterval time.Duration
	CORSOrigins     []string
}

func Load() Config {
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":"+getenv("PORT", "8080")),
		UpstreamBase:    getenv("UPSTREAM_BASE", "http://localhost:5000"),
		Store:           store.ConfigFromEnv(),
		RefreshInterval: getDuration("BRAND_REFRESH_INTERVAL", time.Hour),
		CORSOrigins:     []string{getenv("CORS_ORIGIN", "*")},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
