package sqlite

import (
	"strings"
	"testing"

	"github.com/WillPhil45/Transaction-API/internal/ddl"
)

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	sqlText, err := BuildCreateTableSQL(tableDef("transactions"))
	if err != nil {
		t.Fatalf("BuildCreateTableSQL: %v", err)
	}
	for _, want := range []string{
		`CREATE TABLE IF NOT EXISTS "transactions"`,
		`"id" INTEGER PRIMARY KEY AUTOINCREMENT`,
		`"transaction_id" TEXT NOT NULL`,
		`"date" TEXT NOT NULL`,
		`"amount" REAL NOT NULL`,
		`"category" TEXT`,
		`"memo" TEXT`,
	} {
		if !strings.Contains(sqlText, want) {
			t.Fatalf("DDL missing %q:\n%s", want, sqlText)
		}
	}
	if strings.Contains(sqlText, "DROP") || strings.Contains(sqlText, "ALTER") {
		t.Fatalf("DDL must be append-only:\n%s", sqlText)
	}
}

func TestBuildCreateTableSQLErrors(t *testing.T) {
	t.Parallel()

	if _, err := BuildCreateTableSQL(ddl.TableDef{Name: "", Columns: []ddl.ColumnDef{{Name: "x", SQLType: "TEXT"}}}); err == nil {
		t.Fatal("empty table name accepted")
	}
	if _, err := BuildCreateTableSQL(ddl.TableDef{Name: "t"}); err == nil {
		t.Fatal("zero columns accepted")
	}
	if _, err := BuildCreateTableSQL(ddl.TableDef{Name: "t", Columns: []ddl.ColumnDef{{Name: "x"}}}); err == nil {
		t.Fatal("column without SQLType accepted")
	}
}

func TestBuildCreateIndexSQL(t *testing.T) {
	t.Parallel()

	stmt, err := BuildCreateIndexSQL(ddl.IndexDef{
		Name: "idx_t_date_category", Table: "t", Columns: []string{"date", "category"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := `CREATE INDEX IF NOT EXISTS "idx_t_date_category" ON "t" ("date", "category");`
	if stmt != want {
		t.Fatalf("index DDL =\n%s\nwant\n%s", stmt, want)
	}

	ustmt, err := BuildCreateIndexSQL(ddl.IndexDef{
		Name: "ux_t_k", Table: "t", Columns: []string{"k"}, Unique: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(ustmt, "CREATE UNIQUE INDEX IF NOT EXISTS") {
		t.Fatalf("unique index DDL = %s", ustmt)
	}
}

func TestIndexDefsFollowConflictPolicy(t *testing.T) {
	t.Parallel()

	base := storageCfg("x.db", "append")
	if n := len(indexDefs(base)); n != 2 {
		t.Fatalf("append policy produced %d indexes, want 2 (date, date+category)", n)
	}
	withKey := storageCfg("x.db", "ignore")
	ixs := indexDefs(withKey)
	if n := len(ixs); n != 3 {
		t.Fatalf("ignore policy produced %d indexes, want 3", n)
	}
	last := ixs[len(ixs)-1]
	if !last.Unique || last.Columns[0] != "transaction_id" {
		t.Fatalf("ignore policy missing unique natural-key index: %+v", last)
	}
}
