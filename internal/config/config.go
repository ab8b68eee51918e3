package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	// Weather backend the /api/weather proxy forwards to.
	BackendBaseURL string
	WeatherPath    string

	// Chat agent backend used by /api/agent.
	ChatBaseURL string

	// Nominatim geocoding.
	GeocoderBaseURL        string
	GeocoderUserAgent      string
	GeocoderAcceptLanguage string
	GeocoderRPS            float64

	HTTPTimeout time.Duration

	// BackendPingInterval controls the keep-alive probe (0 = disabled).
	BackendPingInterval time.Duration
	ProbeMaxHistory     int           // max number of probes kept (0 = unlimited)
	ProbeMaxAge         time.Duration // max age of probes (0 = unlimited)

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.BackendBaseURL = getenvFirst("https://meetyo-back.onrender.com", "BACKEND_BASE_URL", "NEXT_PUBLIC_API_BASE_URL")
	cfg.WeatherPath = getenvFirst("/weather", "WEATHER_PATH", "NEXT_PUBLIC_WEATHER_PATH")
	cfg.ChatBaseURL = getenvFirst("http://localhost:8000", "CHAT_BASE_URL", "NEXT_PUBLIC_BACKEND_URL")

	cfg.GeocoderBaseURL = getenvDefault("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org")
	cfg.GeocoderUserAgent = getenvDefault("GEOCODER_USER_AGENT", "meetyo/1.0 (contato@seu-dominio.com)")
	cfg.GeocoderAcceptLanguage = getenvDefault("GEOCODER_ACCEPT_LANGUAGE", "pt-BR,pt;q=0.9")

	rps, err := strconv.ParseFloat(getenvDefault("GEOCODER_RPS", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid GEOCODER_RPS: %w", err)
	}
	cfg.GeocoderRPS = rps

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	// The public fallback backend idles after ~15 minutes.
	if cfg.BackendPingInterval, err = getenvDuration("BACKEND_PING_INTERVAL", "10m"); err != nil {
		return nil, err
	}

	if cfg.ProbeMaxHistory, err = getenvInt("PROBE_MAX_HISTORY", 48); err != nil {
		return nil, err
	}
	if cfg.ProbeMaxAge, err = getenvDuration("PROBE_MAX_AGE", "12h"); err != nil {
		return nil, err
	}

	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

// WeatherURL is the full backend weather endpoint.
func (c *AppConfig) WeatherURL() string {
	return c.BackendBaseURL + c.WeatherPath
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getenvFirst returns the first non-empty variable among keys.
func getenvFirst(def string, keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
