// Package query evaluates date-range summary requests against the store.
// Validation failures are *ValidationError values ("your input is invalid");
// anything else surfaced by the engine is a store failure ("the system is
// unavailable"). The engine never retries: store errors propagate immediately.
package query

import (
	"errors"
	"fmt"
	"time"

	"github.com/WillPhil45/Transaction-API/internal/storage"
	"github.com/WillPhil45/Transaction-API/internal/txn"
)

// ValidationError describes a rejected request. It is returned before any
// scan executes.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is a request validation failure, as
// opposed to a store failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// DateRange is one summary request. Start and End are inclusive ISO dates;
// GroupBy is empty or one of the supported group fields.
type DateRange struct {
	Start   string `json:"start_date"`
	End     string `json:"end_date"`
	GroupBy string `json:"group_by,omitempty"`
}

// Validate checks the request and returns the normalized range. The range is
// rejected, never clamped or swapped.
func (q DateRange) Validate() (start, end string, err error) {
	start, err = parseISODate("start_date", q.Start)
	if err != nil {
		return "", "", err
	}
	end, err = parseISODate("end_date", q.End)
	if err != nil {
		return "", "", err
	}
	if start > end {
		return "", "", &ValidationError{
			Field:   "date range",
			Message: fmt.Sprintf("start_date %s is after end_date %s", start, end),
		}
	}
	if q.GroupBy != "" && !storage.GroupFields[q.GroupBy] {
		return "", "", &ValidationError{
			Field:   "group_by",
			Message: fmt.Sprintf("unsupported field %q (want category or date)", q.GroupBy),
		}
	}
	return start, end, nil
}

func parseISODate(field, s string) (string, error) {
	if s == "" {
		return "", &ValidationError{Field: field, Message: "required"}
	}
	t, err := time.Parse(txn.DateLayout, s)
	if err != nil {
		return "", &ValidationError{Field: field, Message: fmt.Sprintf("%q is not a YYYY-MM-DD date", s)}
	}
	return t.Format(txn.DateLayout), nil
}

// GroupSummary is the aggregate tuple for one group key.
type GroupSummary struct {
	Key     string   `json:"key"`
	Count   int64    `json:"count"`
	Sum     float64  `json:"sum"`
	Average *float64 `json:"average"`
	Min     *float64 `json:"min"`
	Max     *float64 `json:"max"`
}

// Summary is the result of one date-range query. For an empty range Count
// and Sum are zero and Average/Min/Max are null rather than faulting on the
// zero division. Groups is present only for grouped queries, ordered
// ascending by key.
type Summary struct {
	Start   string         `json:"start_date"`
	End     string         `json:"end_date"`
	GroupBy string         `json:"group_by,omitempty"`
	Count   int64          `json:"count"`
	Sum     float64        `json:"sum"`
	Average *float64       `json:"average"`
	Min     *float64       `json:"min"`
	Max     *float64       `json:"max"`
	Groups  []GroupSummary `json:"groups,omitempty"`
}
