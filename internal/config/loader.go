package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the TOML file at path (skipped if path is empty or the file
// does not exist), merges it on top of Defaults, applies AGORA_*
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, err
			}
		}
	}

	// Load .env if present so secrets can live outside the TOML file.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.LogLevel, "AGORA_LOG_LEVEL")

	setStr(&cfg.Identity.Owner, "AGORA_OWNER_ID")
	setStr(&cfg.Identity.Oracle, "AGORA_ORACLE_ID")

	setStr(&cfg.Postgres.DSN, "AGORA_POSTGRES_DSN")
	setInt(&cfg.Postgres.MaxOpenConns, "AGORA_POSTGRES_MAX_OPEN_CONNS")
	setInt(&cfg.Postgres.MaxIdleConns, "AGORA_POSTGRES_MAX_IDLE_CONNS")
	setStr(&cfg.Postgres.MigrationsDir, "AGORA_MIGRATIONS_DIR")

	setStr(&cfg.NATS.URL, "AGORA_NATS_URL")

	setInt(&cfg.Core.PersistChanSize, "AGORA_PERSIST_CHAN_SIZE")
	setInt(&cfg.Core.ProjectionChanSize, "AGORA_PROJECTION_CHAN_SIZE")
	setInt(&cfg.Core.RawCommandChanSize, "AGORA_RAW_COMMAND_CHAN_SIZE")
	setInt(&cfg.Core.PublishChanSize, "AGORA_PUBLISH_CHAN_SIZE")
	setInt(&cfg.Core.PersistBatchSize, "AGORA_PERSIST_BATCH_SIZE")
	setDuration(&cfg.Core.PersistFlushTimeout, "AGORA_PERSIST_FLUSH_TIMEOUT")
	setInt64(&cfg.Core.SnapshotInterval, "AGORA_SNAPSHOT_INTERVAL")
	setInt(&cfg.Core.IdempotencyLRUCapacity, "AGORA_IDEMPOTENCY_LRU_CAPACITY")

	setStr(&cfg.Server.HTTPAddr, "AGORA_HTTP_ADDR")
	setStr(&cfg.Server.GRPCAddr, "AGORA_GRPC_ADDR")
	setStr(&cfg.Server.MetricsAddr, "AGORA_METRICS_ADDR")
}

// Typed env-var helpers. Each only mutates the target when the variable is
// present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
