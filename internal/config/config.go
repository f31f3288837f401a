package config

import (
	"encoding/hex"
	"fmt"
	"log"

	"github.com/spf13/viper"
)

// Config holds every environment-sourced setting HealthPrep needs. It is
// loaded once in main and threaded through explicitly — no package reaches
// back into viper or os.Getenv after Load returns.
type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	// EncryptionKey is a 64-char hex string (32 bytes decoded) used to seal
	// tenant Epic client secrets and per-provider OAuth tokens at rest.
	EncryptionKey string `mapstructure:"ENCRYPTION_KEY"`
	// AuditHashSalt salts the SHA-256 identifier hashes written to every
	// audit entry, so hashes are not guessable from a known patient name/DOB.
	AuditHashSalt string `mapstructure:"AUDIT_HASH_SALT"`
	// AuditLogPath is the append-only file the audit writer tees every
	// entry to, independent of the database row.
	AuditLogPath string `mapstructure:"AUDIT_LOG_PATH"`

	// JobWorkerCount is the number of goroutines pulling from the async
	// job queue.
	JobWorkerCount int `mapstructure:"JOB_WORKER_COUNT"`
	// JobPollIntervalMS is how often, in milliseconds, an idle worker
	// re-polls the queue.
	JobPollIntervalMS int `mapstructure:"JOB_POLL_INTERVAL_MS"`

	// WriteBackDryRun forces the prep-sheet write-back step to fabricate a
	// synthetic DocumentReference id instead of POSTing to the EMR.
	WriteBackDryRun bool `mapstructure:"WRITEBACK_DRY_RUN"`

	FHIRHTTPTimeoutSeconds int `mapstructure:"FHIR_HTTP_TIMEOUT_SECONDS"`
}

// Load reads configuration from the environment and an optional .env file,
// applying defaults for everything that isn't strictly required.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("AUDIT_LOG_PATH", "logs/hipaa_audit.log")
	v.SetDefault("JOB_WORKER_COUNT", 4)
	v.SetDefault("JOB_POLL_INTERVAL_MS", 500)
	v.SetDefault("WRITEBACK_DRY_RUN", true)
	v.SetDefault("FHIR_HTTP_TIMEOUT_SECONDS", 30)

	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"ENCRYPTION_KEY", "AUDIT_HASH_SALT", "AUDIT_LOG_PATH",
		"JOB_WORKER_COUNT", "JOB_POLL_INTERVAL_MS", "WRITEBACK_DRY_RUN",
		"FHIR_HTTP_TIMEOUT_SECONDS",
	} {
		_ = v.BindEnv(key)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: running with ENV=development; write-back defaults to dry-run and audit hashing uses a weak default salt unless AUDIT_HASH_SALT is set")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. In production the
// encryption key and audit hash salt are mandatory, and the encryption key
// must decode to exactly 32 bytes for AES-256-GCM.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.EncryptionKey == "" {
			return fmt.Errorf("ENCRYPTION_KEY is required in production")
		}
		if c.AuditHashSalt == "" {
			return fmt.Errorf("AUDIT_HASH_SALT is required in production")
		}
	}
	if c.EncryptionKey != "" {
		keyBytes, err := hex.DecodeString(c.EncryptionKey)
		if err != nil {
			return fmt.Errorf("ENCRYPTION_KEY is not valid hex: %w", err)
		}
		if len(keyBytes) != 32 {
			return fmt.Errorf("ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(keyBytes))
		}
	}
	if c.JobWorkerCount <= 0 {
		return fmt.Errorf("JOB_WORKER_COUNT must be positive, got %d", c.JobWorkerCount)
	}
	return nil
}
