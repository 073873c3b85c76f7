package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries every runtime knob that is not a CLI flag. Values come from
// the environment (a .env file is loaded by the entrypoint before this runs).
type Config struct {
	TranscribeBaseURL string
	TranscribeAPIKey  string
	Language          string
	PollInterval      time.Duration
	TranscribeTimeout time.Duration
	DatabaseDSN       string
	FetchRetryCeiling time.Duration
}

func FromEnv() Config {
	return Config{
		TranscribeBaseURL: envOr("TRANSCRIBE_URL", "https://api.assemblyai.com/v2"),
		TranscribeAPIKey:  os.Getenv("ASSEMBLYAI_API_KEY"),
		Language:          envOr("TRANSCRIBE_LANGUAGE", "pt"),
		PollInterval:      envDurationOr("TRANSCRIBE_POLL_INTERVAL", 10*time.Second),
		TranscribeTimeout: envDurationOr("TRANSCRIBE_TIMEOUT", 30*time.Minute),
		DatabaseDSN:       os.Getenv("DATABASE_URL"),
		FetchRetryCeiling: envDurationOr("FETCH_RETRY_CEILING", 30*time.Second),
	}
}

func (c Config) Validate() error {
	if c.TranscribeAPIKey == "" {
		return fmt.Errorf("ASSEMBLYAI_API_KEY is not set")
	}
	return nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envDurationOr(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// plain numbers are read as seconds
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
