package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the jobtrail voice gateway.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool
	WSEndpoint     string

	RunnerMode    string
	RunnerHTTPURL string

	SpeechProvider string
	STTHTTPURL     string
	TTSHTTPURL     string
	SampleRate     int

	DefaultLanguage    string
	SupportedLanguages []string
	VoiceByLanguage    map[string]string

	DatabaseURL string
	SearchLimit int
	DedupWindow time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "jobtrail"),
		AllowAnyOrigin:   false,
		WSEndpoint:       envOrDefault("APP_WS_ENDPOINT", "/ws"),
		RunnerMode:       envOrDefault("RUNNER_MODE", "auto"),
		RunnerHTTPURL:    trimmedEnv("RUNNER_HTTP_URL"),
		SpeechProvider:   envOrDefault("SPEECH_PROVIDER", "auto"),
		STTHTTPURL:       trimmedEnv("STT_HTTP_URL"),
		TTSHTTPURL:       trimmedEnv("TTS_HTTP_URL"),
		SampleRate:       16000,
		DefaultLanguage:  envOrDefault("DEFAULT_LANGUAGE", "en"),
		DatabaseURL:      trimmedEnv("DATABASE_URL"),
		SearchLimit:      50,
		DedupWindow:      14 * 24 * time.Hour,
		ShutdownTimeout:  15 * time.Second,
	}

	cfg.SupportedLanguages = splitCSV(envOrDefault("SUPPORTED_LANGUAGES", "en,es,fr,de"))
	cfg.VoiceByLanguage = map[string]string{
		"en": envOrDefault("VOICE_EN", "alloy"),
		"es": envOrDefault("VOICE_ES", "nova"),
		"fr": envOrDefault("VOICE_FR", "echo"),
		"de": envOrDefault("VOICE_DE", "onyx"),
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SampleRate, err = intFromEnv("APP_SAMPLE_RATE", cfg.SampleRate)
	if err != nil {
		return Config{}, err
	}
	cfg.SearchLimit, err = intFromEnv("STORE_SEARCH_LIMIT", cfg.SearchLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.DedupWindow, err = durationFromEnv("STORE_DEDUP_WINDOW", cfg.DedupWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if !strings.HasPrefix(cfg.WSEndpoint, "/") {
		return Config{}, fmt.Errorf("APP_WS_ENDPOINT must start with /")
	}
	if cfg.SampleRate <= 0 {
		return Config{}, fmt.Errorf("APP_SAMPLE_RATE must be positive")
	}
	if cfg.SearchLimit <= 0 {
		return Config{}, fmt.Errorf("STORE_SEARCH_LIMIT must be positive")
	}
	if cfg.DedupWindow <= 0 {
		return Config{}, fmt.Errorf("STORE_DEDUP_WINDOW must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for %s: %w", key, err)
	}
	return b, nil
}
