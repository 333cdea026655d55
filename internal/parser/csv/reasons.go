package csv

// Reason classifies why a row was rejected. The values are stable strings
// surfaced verbatim in job reject samples.
type Reason string

const (
	ReasonMissingField  Reason = "missing required field"
	ReasonBadDate       Reason = "unparsable date"
	ReasonBadAmount     Reason = "non-numeric amount"
	ReasonAmountRange   Reason = "amount out of range"
	ReasonFieldTooLong  Reason = "field length exceeded"
	ReasonFieldCount    Reason = "wrong field count"
	ReasonDuplicateKey  Reason = "duplicate transaction_id"
	ReasonUnreadableRow Reason = "unreadable row"
)
