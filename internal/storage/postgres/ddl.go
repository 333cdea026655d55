// Postgres renderers for the generic ddl model and the schema bootstrap.
// Mirrors the sqlite bootstrap: CREATE ... IF NOT EXISTS only.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/WillPhil45/Transaction-API/internal/ddl"
	"github.com/WillPhil45/Transaction-API/internal/storage"
)

func tableDef(table string) ddl.TableDef {
	return ddl.TableDef{
		Name: table,
		Columns: []ddl.ColumnDef{
			{Name: "id", SQLType: "BIGINT GENERATED ALWAYS AS IDENTITY", PrimaryKey: true},
			{Name: "transaction_id", SQLType: "TEXT"},
			{Name: "date", SQLType: "DATE"},
			{Name: "amount", SQLType: "DOUBLE PRECISION"},
			{Name: "category", SQLType: "TEXT", Nullable: true},
			{Name: "memo", SQLType: "TEXT", Nullable: true},
		},
	}
}

func indexDefs(cfg storage.Config) []ddl.IndexDef {
	ixs := []ddl.IndexDef{
		{Name: "idx_" + cfg.Table + "_date", Table: cfg.Table, Columns: []string{"date"}},
		{Name: "idx_" + cfg.Table + "_date_category", Table: cfg.Table, Columns: []string{"date", "category"}},
	}
	if cfg.OnConflict == "ignore" || cfg.OnConflict == "replace" {
		ixs = append(ixs, ddl.IndexDef{
			Name:    "ux_" + cfg.Table + "_transaction_id",
			Table:   cfg.Table,
			Columns: []string{"transaction_id"},
			Unique:  true,
		})
	}
	return ixs
}

// BuildCreateTableSQL renders a CREATE TABLE IF NOT EXISTS statement.
func BuildCreateTableSQL(t ddl.TableDef) (string, error) {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return "", fmt.Errorf("postgres ddl: table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("postgres ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		cname := strings.TrimSpace(c.Name)
		if cname == "" {
			return "", fmt.Errorf("postgres ddl: column with empty name in table %s", name)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("postgres ddl: column %s missing SQLType", cname)
		}

		var sb strings.Builder
		sb.WriteString(pgIdent(cname))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable && !c.PrimaryKey {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, pgIdent(cname))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		pgIdent(name), strings.Join(cols, ",\n  "),
	), nil
}

// BuildCreateIndexSQL renders a CREATE INDEX IF NOT EXISTS statement.
func BuildCreateIndexSQL(ix ddl.IndexDef) (string, error) {
	if strings.TrimSpace(ix.Name) == "" || strings.TrimSpace(ix.Table) == "" {
		return "", fmt.Errorf("postgres ddl: index name and table are required")
	}
	if len(ix.Columns) == 0 {
		return "", fmt.Errorf("postgres ddl: index %s has no columns", ix.Name)
	}
	unique := ""
	if ix.Unique {
		unique = "UNIQUE "
	}
	cols := make([]string, len(ix.Columns))
	for i, c := range ix.Columns {
		cols[i] = pgIdent(c)
	}
	return fmt.Sprintf(
		"CREATE %sINDEX IF NOT EXISTS %s ON %s (%s);",
		unique, pgIdent(ix.Name), pgIdent(ix.Table), strings.Join(cols, ", "),
	), nil
}

// EnsureSchema applies the table and index DDL through repo.Exec.
func EnsureSchema(ctx context.Context, repo storage.Repository, cfg storage.Config) error {
	createTable, err := BuildCreateTableSQL(tableDef(cfg.Table))
	if err != nil {
		return err
	}
	if err := repo.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	for _, ix := range indexDefs(cfg) {
		stmt, err := BuildCreateIndexSQL(ix)
		if err != nil {
			return err
		}
		if err := repo.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create index %s: %w", ix.Name, err)
		}
	}
	return nil
}
