// Package config defines the JSON-serializable configuration model for the
// transaction store. It is intentionally small and explicit: a config file is
// decoded over the defaults by the standard library, and a handful of runtime
// knobs accept environment overrides (12-factor style).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config is the top-level object decoded from a config file.
type Config struct {
	// Store selects and configures the persistent backend.
	Store Store `json:"store"`

	// Ingest controls batching and reject handling during uploads.
	Ingest Ingest `json:"ingest"`

	// Limits carries the per-row field validation bounds.
	Limits Limits `json:"limits"`

	// Metrics selects an optional metrics backend.
	Metrics Metrics `json:"metrics"`
}

// Store configures the persistent backend.
type Store struct {
	// Kind selects the backend implementation: "sqlite" or "postgres".
	Kind string `json:"kind"`

	// DSN is the backend connection string. For sqlite this is the database
	// file path (created on first use if absent).
	DSN string `json:"dsn"`

	// Table is the transaction table name.
	Table string `json:"table"`

	// OnConflict is the re-run policy applied on the transaction_id natural
	// key: "append" (store does not enforce the key), "ignore" (keep the
	// existing row), or "replace" (overwrite with the incoming row).
	OnConflict string `json:"on_conflict"`
}

// Ingest controls batching and reject handling for one upload.
type Ingest struct {
	// BatchSize is the number of accepted rows committed per store
	// transaction.
	BatchSize int `json:"batch_size"`

	// ChannelBuffer bounds the parser→loader channel.
	ChannelBuffer int `json:"channel_buffer"`

	// RejectSampleCap caps the number of (row, reason) samples kept on a job.
	// Counters are exact regardless of the cap.
	RejectSampleCap int `json:"reject_sample_cap"`

	// DedupInFile drops rows whose transaction_id was already seen earlier in
	// the same upload, counting them as rejected.
	DedupInFile bool `json:"dedup_in_file"`
}

// Limits carries per-row validation bounds. Zero values mean "use default".
type Limits struct {
	AmountMin   float64 `json:"amount_min"`
	AmountMax   float64 `json:"amount_max"`
	MaxFieldLen int     `json:"max_field_len"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is "pushgateway", "none", or empty (none).
	Backend string `json:"backend"`

	// PushgatewayURL is the Pushgateway base URL when Backend is
	// "pushgateway".
	PushgatewayURL string `json:"pushgateway_url"`

	// Job is the metrics job label; defaults to "txnstore".
	Job string `json:"job"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Store: Store{
			Kind:       "sqlite",
			DSN:        "transactions.db",
			Table:      "transactions",
			OnConflict: "append",
		},
		Ingest: Ingest{
			BatchSize:       5000,
			ChannelBuffer:   1024,
			RejectSampleCap: 20,
		},
		Limits: Limits{
			AmountMin:   -1e9,
			AmountMax:   1e9,
			MaxFieldLen: 256,
		},
		Metrics: Metrics{
			Backend: "none",
			Job:     "txnstore",
		},
	}
}

// Load decodes the file at path over the defaults and applies environment
// overrides. An empty path yields Default() plus overrides. The returned
// issues are warnings about env overrides that could not be applied; they
// never block execution.
func Load(path string) (Config, []Issue, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		dec := json.NewDecoder(f)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return cfg, nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	return cfg, cfg.applyEnv(), nil
}

// applyEnv applies TXNSTORE_* environment overrides for the knobs that are
// commonly tuned per deployment without editing the config file. A malformed
// numeric override is skipped and reported as a warning issue.
func (c *Config) applyEnv() []Issue {
	var issues []Issue
	if v := os.Getenv("TXNSTORE_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("TXNSTORE_STORE_KIND"); v != "" {
		c.Store.Kind = v
	}
	issues = envInt("TXNSTORE_BATCH_SIZE", &c.Ingest.BatchSize, issues)
	issues = envInt("TXNSTORE_CHANNEL_BUFFER", &c.Ingest.ChannelBuffer, issues)
	if v := os.Getenv("TXNSTORE_PUSHGATEWAY_URL"); v != "" {
		c.Metrics.PushgatewayURL = v
	}
	return issues
}

// envInt applies an integer env override to dst, appending a warning issue
// when the value does not parse.
func envInt(name string, dst *int, issues []Issue) []Issue {
	v := os.Getenv(name)
	if v == "" {
		return issues
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "env." + name,
			Message:  fmt.Sprintf("ignoring non-integer value %q", v),
		})
	}
	*dst = n
	return issues
}
