package sqlite

// Config holds SQLite repository configuration.
type Config struct {
	// DSN is the database file path or a full driver DSN
	// (e.g. "transactions.db" or "file:transactions.db?cache=shared").
	// The file is created on first use if absent.
	DSN string

	// Table is the transaction table name.
	Table string

	// OnConflict selects the INSERT verb used on the transaction_id natural
	// key: "append" (plain INSERT), "ignore", or "replace".
	OnConflict string
}
