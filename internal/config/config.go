// Package config loads runtime settings from the environment. A .env file
// in the working directory is honored when present.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the tunables that are not part of the CLI contract.
type Config struct {
	// LogFile is the transaction log path.
	LogFile string
	// OpsAddr, when non-empty, enables the ops HTTP server (/health,
	// /metrics, /ws) on that address.
	OpsAddr string
	// OpsAllowAnyOrigin disables the same-host origin check on /ws.
	// Development only.
	OpsAllowAnyOrigin bool
	// StatusPeriod is the status service tick.
	StatusPeriod time.Duration
	// CommissionPeriod is the commission service tick.
	CommissionPeriod time.Duration
	// AgentPace is the per-agent pacing window.
	AgentPace time.Duration
}

// Load reads the environment, applying defaults. A missing .env file is not
// an error.
func Load() Config {
	godotenv.Load()

	return Config{
		LogFile:           getenv("BANK_LOG_FILE", "log.txt"),
		OpsAddr:           os.Getenv("BANK_OPS_ADDR"),
		OpsAllowAnyOrigin: os.Getenv("BANK_OPS_ALLOW_ANY_ORIGIN") == "true",
		StatusPeriod:      duration("BANK_STATUS_PERIOD", 10*time.Millisecond),
		CommissionPeriod:  duration("BANK_COMMISSION_PERIOD", 30*time.Millisecond),
		AgentPace:         duration("BANK_AGENT_PACE", time.Second),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
