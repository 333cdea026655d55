// Package txn defines the transaction domain model shared by the parser,
// loader, and query layers.
package txn

import (
	"fmt"
	"time"
)

// Columns is the canonical column order used by the CSV header contract and
// by the storage backends for batched inserts. It excludes the store-assigned
// surrogate id.
var Columns = []string{"transaction_id", "date", "amount", "category", "memo"}

// Transaction is one validated record. ID is assigned by the store and is
// zero until the row has been persisted.
type Transaction struct {
	ID            int64
	TransactionID string
	Date          string // normalized YYYY-MM-DD
	Amount        float64
	Category      string // optional; empty means NULL
	Memo          string // optional; empty means NULL
}

// DateLayouts lists the accepted input date formats, tried in order.
// Whatever layout matched, the stored value is normalized to DateLayout.
var DateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// DateLayout is the canonical stored form. Lexicographic order on this layout
// equals calendar order, which is what the date range index relies on.
const DateLayout = "2006-01-02"

// ParseDate parses s against the accepted layouts and returns the normalized
// YYYY-MM-DD form.
func ParseDate(s string) (string, error) {
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", s)
}

// Limits holds the field-level validation bounds applied per row.
type Limits struct {
	AmountMin   float64 // inclusive
	AmountMax   float64 // inclusive
	MaxFieldLen int     // bytes, applies to free-form string fields
}

// DefaultLimits returns the bounds used when the config does not override
// them. The amount range is wide on purpose; it exists to catch corrupt
// values, not to enforce business rules.
func DefaultLimits() Limits {
	return Limits{
		AmountMin:   -1e9,
		AmountMax:   1e9,
		MaxFieldLen: 256,
	}
}
