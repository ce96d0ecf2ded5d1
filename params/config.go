package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Queue struct {
	// Capacity is fixed at startup; a full queue rejects pushes
	// instead of growing.
	Capacity int
}

type Feed struct {
	Addr           string
	UpdateInterval time.Duration
	PingInterval   time.Duration
	Depth          int
}

type Sim struct {
	Enabled   bool
	Producers int
	OpsPerSec int
	Seed      int64
}

type Journal struct {
	// Path of the pebble journal; empty disables persistence.
	Path string
}

type Config struct {
	Queue   Queue
	Feed    Feed
	Sim     Sim
	Journal Journal
	LogFile string
}

func Default() Config {
	return Config{
		Queue: Queue{Capacity: 4096},
		Feed: Feed{
			Addr:           ":8080",
			UpdateInterval: 100 * time.Millisecond,
			PingInterval:   1 * time.Second,
			Depth:          20,
		},
		Sim: Sim{
			Enabled:   true,
			Producers: 4,
			OpsPerSec: 400,
			Seed:      42,
		},
		Journal: Journal{Path: ""},
		LogFile: "data/bookd.log",
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Queue.Capacity = n
		}
	}

	if v := os.Getenv("FEED_ADDR"); v != "" {
		cfg.Feed.Addr = v
	}
	if v := os.Getenv("FEED_UPDATE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.Feed.UpdateInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("FEED_PING_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.Feed.PingInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("FEED_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Feed.Depth = n
		}
	}

	if v := os.Getenv("SIM_ENABLED"); v != "" {
		cfg.Sim.Enabled = v == "true"
	}
	if v := os.Getenv("SIM_PRODUCERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Sim.Producers = n
		}
	}
	if v := os.Getenv("SIM_OPS_PER_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Sim.OpsPerSec = n
		}
	}
	if v := os.Getenv("SIM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Sim.Seed = n
		}
	}

	if v := os.Getenv("JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}

	return cfg
}
