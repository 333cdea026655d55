// This file adds a lightweight linter for Config values. It performs static
// checks over a decoded Config and returns a list of issues (errors and
// warnings) that the CLI surfaces before opening the store.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity classifies a configuration finding.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path is a dotted path into the config
// (e.g. "store.kind").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements error so an Issue can be handled as one.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasError reports whether any issue in the slice is of error severity.
func HasError(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

var storeKinds = map[string]bool{"sqlite": true, "postgres": true}

var conflictPolicies = map[string]bool{"append": true, "ignore": true, "replace": true}

// Validate statically checks c without mutating it.
func Validate(c Config) []Issue {
	var issues []Issue

	if !storeKinds[c.Store.Kind] {
		issues = append(issues, Issue{SeverityError, "store.kind",
			fmt.Sprintf("unknown store kind %q (want sqlite or postgres)", c.Store.Kind)})
	}
	if strings.TrimSpace(c.Store.DSN) == "" {
		issues = append(issues, Issue{SeverityError, "store.dsn", "dsn must not be empty"})
	}
	if strings.TrimSpace(c.Store.Table) == "" {
		issues = append(issues, Issue{SeverityError, "store.table", "table must not be empty"})
	}
	if c.Store.OnConflict != "" && !conflictPolicies[c.Store.OnConflict] {
		issues = append(issues, Issue{SeverityError, "store.on_conflict",
			fmt.Sprintf("unknown policy %q (want append, ignore, or replace)", c.Store.OnConflict)})
	}

	if c.Ingest.BatchSize <= 0 {
		issues = append(issues, Issue{SeverityError, "ingest.batch_size", "batch_size must be > 0"})
	} else if c.Ingest.BatchSize > 50_000 {
		issues = append(issues, Issue{SeverityWarning, "ingest.batch_size",
			"very large batches increase memory use and lengthen each store transaction"})
	}
	if c.Ingest.ChannelBuffer < 0 {
		issues = append(issues, Issue{SeverityError, "ingest.channel_buffer", "channel_buffer must be >= 0"})
	}
	if c.Ingest.RejectSampleCap < 0 {
		issues = append(issues, Issue{SeverityError, "ingest.reject_sample_cap", "reject_sample_cap must be >= 0"})
	}

	if c.Limits.AmountMin > c.Limits.AmountMax {
		issues = append(issues, Issue{SeverityError, "limits",
			fmt.Sprintf("amount range inverted: [%v, %v]", c.Limits.AmountMin, c.Limits.AmountMax)})
	}
	if c.Limits.MaxFieldLen <= 0 {
		issues = append(issues, Issue{SeverityError, "limits.max_field_len", "max_field_len must be > 0"})
	}

	switch c.Metrics.Backend {
	case "", "none":
	case "pushgateway":
		if strings.TrimSpace(c.Metrics.PushgatewayURL) == "" {
			issues = append(issues, Issue{SeverityError, "metrics.pushgateway_url",
				"pushgateway_url is required when backend is pushgateway"})
		}
	default:
		issues = append(issues, Issue{SeverityWarning, "metrics.backend",
			fmt.Sprintf("unknown backend %q; metrics will be disabled", c.Metrics.Backend)})
	}

	return issues
}
