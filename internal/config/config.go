package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port            string
	DefaultProvider string
	DefaultModel    string
	GroqKey         string
	GroqBaseURL     string
	OpenAIKey       string
	OpenAIBaseURL   string
	PistonURL       string
	ProviderTimeout time.Duration
	RunnerTimeout   time.Duration
	MaxRoomSize     int
	RoomTTL         time.Duration
	ReapInterval    time.Duration
	ExportEnabled   bool
	ExportFile      string
}

func FromEnv() Config {
	c := Config{}
	c.Port = getenv("PORT", "8080")
	c.DefaultProvider = getenv("DEFAULT_PROVIDER", "groq")
	c.DefaultModel = getenv("DEFAULT_MODEL", "llama-3.3-70b-versatile")
	c.GroqKey = os.Getenv("GROQ_API_KEY")
	c.GroqBaseURL = os.Getenv("GROQ_BASE_URL")
	c.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	c.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")
	c.PistonURL = getenv("PISTON_URL", "https://emkc.org/api/v2/piston")
	c.ProviderTimeout = getenvDur("PROVIDER_TIMEOUT_SEC", 30*time.Second)
	c.RunnerTimeout = getenvDur("RUNNER_TIMEOUT_SEC", 15*time.Second)
	c.MaxRoomSize = getenvInt("MAX_ROOM_SIZE", 10)
	c.RoomTTL = getenvDur("ROOM_TTL_SEC", 10*time.Minute)
	c.ReapInterval = getenvDur("REAP_INTERVAL_SEC", time.Minute)
	c.ExportEnabled = getenv("EXPORT_ENABLED", "true") == "true"
	c.ExportFile = getenv("EXPORT_FILE", "./codeclash-results.txt")
	return c
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getenvDur(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return def
}
