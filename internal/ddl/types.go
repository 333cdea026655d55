// Package ddl holds the database-agnostic schema model consumed by the
// backend-specific DDL builders. Schema changes are append-only: builders
// only ever emit CREATE ... IF NOT EXISTS statements, never DROP or ALTER.
package ddl

// ColumnDef describes one column. Name is unquoted; quoting happens in the
// backend renderer. SQLType is the backend's type text and may carry raw
// modifiers (e.g. "INTEGER PRIMARY KEY AUTOINCREMENT" for SQLite rowid keys).
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string // raw default expression
}

// TableDef is a table name plus its ordered columns.
type TableDef struct {
	Name    string
	Columns []ColumnDef
}

// IndexDef describes a secondary index over Table. Columns are listed in
// index order; renderers emit ascending indexes.
type IndexDef struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
}
