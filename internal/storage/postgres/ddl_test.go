package postgres

import (
	"strings"
	"testing"

	"github.com/WillPhil45/Transaction-API/internal/storage"
)

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	sqlText, err := BuildCreateTableSQL(tableDef("transactions"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`CREATE TABLE IF NOT EXISTS "transactions"`,
		`"id" BIGINT GENERATED ALWAYS AS IDENTITY`,
		`"date" DATE NOT NULL`,
		`"amount" DOUBLE PRECISION NOT NULL`,
		`PRIMARY KEY ("id")`,
	} {
		if !strings.Contains(sqlText, want) {
			t.Fatalf("DDL missing %q:\n%s", want, sqlText)
		}
	}
}

func TestUpsertSQLPerPolicy(t *testing.T) {
	t.Parallel()

	ignore := &Repository{cfg: Config{Table: "transactions", OnConflict: "ignore"}}
	if got := ignore.upsertSQL(); !strings.HasSuffix(got, "DO NOTHING") {
		t.Fatalf("ignore policy SQL = %s", got)
	}

	replace := &Repository{cfg: Config{Table: "transactions", OnConflict: "replace"}}
	got := replace.upsertSQL()
	if !strings.Contains(got, "DO UPDATE SET") || !strings.Contains(got, "amount = EXCLUDED.amount") {
		t.Fatalf("replace policy SQL = %s", got)
	}
}

func TestIndexDefsFollowConflictPolicy(t *testing.T) {
	t.Parallel()

	cfg := storage.Config{Kind: "postgres", Table: "transactions", OnConflict: "append"}
	if n := len(indexDefs(cfg)); n != 2 {
		t.Fatalf("append policy produced %d indexes, want 2", n)
	}
	cfg.OnConflict = "replace"
	ixs := indexDefs(cfg)
	if n := len(ixs); n != 3 || !ixs[2].Unique {
		t.Fatalf("replace policy indexes = %+v, want unique natural-key index added", ixs)
	}
}

func TestPgIdentQuoting(t *testing.T) {
	t.Parallel()

	if got := pgIdent("public.transactions"); got != `"public"."transactions"` {
		t.Fatalf("pgIdent = %s", got)
	}
	if got := pgIdent(`we"ird`); got != `"we""ird"` {
		t.Fatalf("pgIdent = %s", got)
	}
}
