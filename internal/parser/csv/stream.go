// Package csv streams transaction CSV uploads row by row without whole-file
// buffering.
//
// The header is read and checked once, when the stream is constructed; a
// header that does not match the expected column set fails the whole upload
// before any data row is processed. Data rows are then validated one at a
// time: bad rows are reported through the reject callback and the stream
// keeps going, so a single malformed row never aborts the file.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/WillPhil45/Transaction-API/internal/txn"
)

const utf8BOM = "\uFEFF"

// HeaderError is the fatal mismatch between the upload's header row and the
// expected column set.
type HeaderError struct {
	Got []string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("invalid header: expected %v, got %v", txn.Columns, e.Got)
}

// Row is one accepted data row paired with its position in the upload.
// Line is 1-based counting the header line, so the first data row is line 2.
type Row struct {
	Line int
	Txn  txn.Transaction
}

// RejectFn receives one rejected row, numbered like Row.Line. Detail carries
// the offending field or value.
type RejectFn func(line int, reason Reason, detail string)

// Stream is a single-use reader of one CSV upload. Construct with NewStream
// (which consumes and checks the header), then call Run exactly once.
type Stream struct {
	cr     *csv.Reader
	limits txn.Limits
	line   int
	done   bool
}

// NewStream wraps src and validates the header row. A missing or mismatched
// header returns a *HeaderError; the caller must not process any rows in
// that case.
func NewStream(src io.Reader, limits txn.Limits) (*Stream, error) {
	cr := csv.NewReader(src)
	cr.ReuseRecord = true
	// Width is enforced per row so a short row is a soft reject, not a
	// stream abort.
	cr.FieldsPerRecord = -1

	s := &Stream{cr: cr, limits: limits}

	hdr, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, &HeaderError{Got: nil}
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	s.line = 1

	got := make([]string, len(hdr))
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		got[i] = strings.ToLower(strings.TrimSpace(h))
	}
	if len(got) != len(txn.Columns) {
		return nil, &HeaderError{Got: got}
	}
	for i, want := range txn.Columns {
		if got[i] != want {
			return nil, &HeaderError{Got: got}
		}
	}
	return s, nil
}

// Run streams data rows into out until EOF, context cancellation, or an
// unrecoverable read error. Rejected rows go to onReject and do not stop the
// stream. Run returns nil on EOF and may be called once.
func (s *Stream) Run(ctx context.Context, out chan<- Row, onReject RejectFn) error {
	if s.done {
		return errors.New("csv stream already consumed")
	}
	s.done = true

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := s.cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			// A *csv.ParseError is one bad row (quoting, stray bytes) and
			// the reader has already advanced past it. Anything else is the
			// underlying stream failing; it would repeat on every Read, so
			// abort instead of rejecting forever.
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return fmt.Errorf("read row after line %d: %w", s.line, err)
			}
			s.line++
			if onReject != nil {
				onReject(s.line, ReasonUnreadableRow, err.Error())
			}
			continue
		}
		s.line++

		t, reason, detail := s.decode(rec)
		if reason != "" {
			if onReject != nil {
				onReject(s.line, reason, detail)
			}
			continue
		}

		select {
		case out <- Row{Line: s.line, Txn: t}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// decode parses and validates one record against the column contract. It
// returns an empty reason on success.
func (s *Stream) decode(rec []string) (txn.Transaction, Reason, string) {
	var t txn.Transaction

	if len(rec) != len(txn.Columns) {
		return t, ReasonFieldCount, fmt.Sprintf("expected %d fields, got %d", len(txn.Columns), len(rec))
	}

	id := strings.TrimSpace(rec[0])
	if id == "" {
		return t, ReasonMissingField, "transaction_id"
	}
	if len(id) > s.limits.MaxFieldLen {
		return t, ReasonFieldTooLong, "transaction_id"
	}

	rawDate := strings.TrimSpace(rec[1])
	if rawDate == "" {
		return t, ReasonMissingField, "date"
	}
	date, err := txn.ParseDate(rawDate)
	if err != nil {
		return t, ReasonBadDate, rawDate
	}

	rawAmount := strings.TrimSpace(rec[2])
	if rawAmount == "" {
		return t, ReasonMissingField, "amount"
	}
	amount, err := strconv.ParseFloat(rawAmount, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return t, ReasonBadAmount, rawAmount
	}
	if amount < s.limits.AmountMin || amount > s.limits.AmountMax {
		return t, ReasonAmountRange, rawAmount
	}

	category := strings.TrimSpace(rec[3])
	if len(category) > s.limits.MaxFieldLen {
		return t, ReasonFieldTooLong, "category"
	}
	memo := strings.TrimSpace(rec[4])
	if len(memo) > s.limits.MaxFieldLen {
		return t, ReasonFieldTooLong, "memo"
	}

	t.TransactionID = id
	t.Date = date
	t.Amount = amount
	t.Category = category
	t.Memo = memo
	return t, "", ""
}
