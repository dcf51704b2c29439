package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the environment-provided engine settings. Timeout windows are
// configuration, not constants; defaults mirror production values.
type Config struct {
	DatabaseURL      string
	ListenAddr       string
	GatewayToken     string
	ReadyWindow      time.Duration
	StaleOpenWindow  time.Duration
	SweepInterval    time.Duration
	HouseRake        float64
	ServerPool       []string
	RconPassword     string
	AllowedOrigins   string
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		ListenAddr:      getEnv("LISTEN_ADDR", ":5300"),
		GatewayToken:    os.Getenv("ARENA_SERVICE_TOKEN"),
		ReadyWindow:     getDuration("READY_WINDOW", 60*time.Second),
		StaleOpenWindow: getDuration("STALE_OPEN_WINDOW", 30*time.Minute),
		SweepInterval:   getDuration("SWEEP_INTERVAL", 15*time.Second),
		HouseRake:       getFloat("HOUSE_RAKE", 0.1),
		RconPassword:    os.Getenv("RCON_PASSWORD"),
		AllowedOrigins:  getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
	}

	if pool := os.Getenv("SERVER_POOL"); pool != "" {
		for _, addr := range strings.Split(pool, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				cfg.ServerPool = append(cfg.ServerPool, addr)
			}
		}
	}

	if cfg.HouseRake < 0 || cfg.HouseRake >= 1 {
		log.Fatalf("HOUSE_RAKE must be in [0,1), got %v", cfg.HouseRake)
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("⚠️  invalid %s=%q, using default %s", key, v, fallback)
		return fallback
	}
	return d
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("⚠️  invalid %s=%q, using default %v", key, v, fallback)
		return fallback
	}
	return f
}
