package database

import (
	"context"
	"testing"
)

func TestDialectFor(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{driver: "", want: "duckdb"},
		{driver: "DuckDB", want: "duckdb"},
		{driver: "postgres", want: "postgres"},
		{driver: "pgx", want: "postgres"},
	}
	for _, tc := range tests {
		got, err := DialectFor(tc.driver)
		if err != nil {
			t.Fatalf("DialectFor(%q) error = %v", tc.driver, err)
		}
		if got.Name != tc.want {
			t.Fatalf("DialectFor(%q).Name = %q, want %q", tc.driver, got.Name, tc.want)
		}
	}
	if _, err := DialectFor("oracle"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestTypeNames(t *testing.T) {
	if got := Postgres.TypeName(Integer); got != "INTEGER" {
		t.Fatalf("Postgres.TypeName(Integer) = %q", got)
	}
	if got := Postgres.TypeName(Decimal); got != "DECIMAL" {
		t.Fatalf("Postgres.TypeName(Decimal) = %q", got)
	}
	if got := DuckDB.TypeName(Integer); got != "BIGINT" {
		t.Fatalf("DuckDB.TypeName(Integer) = %q", got)
	}
	if got := DuckDB.TypeName(StorageType("unknown")); got != "VARCHAR" {
		t.Fatalf("DuckDB.TypeName(unknown) = %q", got)
	}
}

func TestQuoteIdentAndPlaceholder(t *testing.T) {
	if got := QuoteIdent(`odd "name"`); got != `"odd ""name"""` {
		t.Fatalf("QuoteIdent() = %s", got)
	}
	if got := Placeholder(12); got != "$12" {
		t.Fatalf("Placeholder(12) = %q", got)
	}
}

func TestOpenRequiresDSNForPostgres(t *testing.T) {
	_, _, err := Open(context.Background(), Config{Driver: "postgres"})
	if err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestOpenInMemoryDuckDB(t *testing.T) {
	db, dialect, err := Open(context.Background(), Config{Driver: "duckdb", MaxOpenConns: 2})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()
	if dialect.Name != "duckdb" {
		t.Fatalf("dialect = %q", dialect.Name)
	}
	if err := Ping(db)(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}
