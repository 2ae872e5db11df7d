package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"math/big"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/marcboeker/go-duckdb/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datachat/datachat/internal/errs"
)

func TestExecuteRunsSQLVerbatim(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT AVG(score) AS avg_score FROM scores;").
		WillReturnRows(sqlmock.NewRows([]string{"avg_score"}).AddRow([]byte("2.5")))

	result, err := NewExecutor(db, Options{}).Execute(context.Background(), Request{SQL: "SELECT AVG(score) AS avg_score FROM scores;"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Columns) != 1 || result.Columns[0] != "avg_score" {
		t.Fatalf("Columns = %v", result.Columns)
	}
	if len(result.Rows) != 1 || result.Rows[0][0] != "2.5" {
		t.Fatalf("Rows = %#v", result.Rows)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet() error = %v", err)
	}
}

func TestExecuteReportsDatabaseErrorVerbatim(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT").WillReturnError(sql.ErrConnDone)

	_, err = NewExecutor(db, Options{}).Execute(context.Background(), Request{SQL: "SELECT * FROM missing"})
	if !errs.IsKind(err, errs.KindExecution) {
		t.Fatalf("Execute() error = %v, want execution error", err)
	}
	if err.Error() != sql.ErrConnDone.Error() {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestExecuteReadOnlyRejectsWrites(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	_, err = NewExecutor(db, Options{ReadOnly: true}).Execute(context.Background(), Request{SQL: "DROP TABLE scores"})
	if !errs.IsKind(err, errs.KindExecution) {
		t.Fatalf("Execute() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no query should reach the database: %v", err)
	}
}

func TestExecuteRejectsEmptySQL(t *testing.T) {
	_, err := NewExecutor(nil, Options{}).Execute(context.Background(), Request{SQL: "  \n"})
	if !errs.IsKind(err, errs.KindExecution) {
		t.Fatalf("Execute() error = %v", err)
	}
}

func TestExecuteAgainstDuckDB(t *testing.T) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	executor := NewExecutor(db, Options{})
	ctx := context.Background()
	if _, err := executor.Execute(ctx, Request{SQL: `CREATE TABLE "scores" ("id" BIGINT, "name" VARCHAR)`}); err != nil {
		t.Fatalf("Execute(create) error = %v", err)
	}
	if _, err := executor.Execute(ctx, Request{SQL: `INSERT INTO "scores" VALUES (1, 'a'), (2, 'b')`}); err != nil {
		t.Fatalf("Execute(insert) error = %v", err)
	}

	result, err := executor.Execute(ctx, Request{SQL: "SELECT id, name FROM scores ORDER BY id;"})
	if err != nil {
		t.Fatalf("Execute(select) error = %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	if result.Rows[1][0] != int64(2) || result.Rows[1][1] != "b" {
		t.Fatalf("row = %#v", result.Rows[1])
	}

	empty, err := executor.Execute(ctx, Request{SQL: "SELECT * FROM scores WHERE id > 10"})
	if err != nil {
		t.Fatalf("Execute(empty) error = %v", err)
	}
	if !empty.Empty() || len(empty.Columns) != 2 {
		t.Fatalf("empty result = %+v", empty)
	}
}

func TestIsReadOnly(t *testing.T) {
	tests := map[string]bool{
		"SELECT 1":                        true,
		"  with t as (select 1) select *": true,
		"-- top scorers\nSELECT * FROM t": true,
		"/* note */ select 1":             true,
		"INSERT INTO t VALUES (1)":        false,
		"-- SELECT\nDELETE FROM t":        false,
		"":                                false,
		"/* unterminated select":          false,
	}
	for sqlText, want := range tests {
		if got := IsReadOnly(sqlText); got != want {
			t.Fatalf("IsReadOnly(%q) = %v, want %v", sqlText, got, want)
		}
	}
}

func TestNormalizeValues(t *testing.T) {
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	got := normalizeValues([]any{[]byte("x"), big.NewInt(7), huge, nil, int64(3)}, nil)
	if got[0] != "x" || got[1] != int64(7) || got[2] != "123456789012345678901234567890" || got[3] != nil || got[4] != int64(3) {
		t.Fatalf("normalizeValues() = %#v", got)
	}
}

func TestNormalizeValuesKeepsRowsEncodable(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	got := normalizeValues([]any{
		math.NaN(),
		math.Inf(1),
		math.Inf(-1),
		id[:],
		[]byte{0xff, 0x00},
		duckdb.Map{"a": int64(1), int64(2): math.NaN()},
		[]any{math.Inf(1), "x"},
	}, []string{"DOUBLE", "DOUBLE", "DOUBLE", "UUID", "BLOB", "MAP", "LIST"})

	want := []any{
		"NaN",
		"+Inf",
		"-Inf",
		"6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		`\xff00`,
		map[string]any{"a": int64(1), "2": "NaN"},
		[]any{"+Inf", "x"},
	}
	assert.Equal(t, want, got)
	_, err := json.Marshal(got)
	require.NoError(t, err)
}

func TestExecuteNormalizesDuckDBTypes(t *testing.T) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	result, err := NewExecutor(db, Options{}).Execute(context.Background(), Request{
		SQL: `SELECT '6ba7b810-9dad-11d1-80b4-00c04fd430c8'::UUID AS id, 'NaN'::DOUBLE AS ratio, MAP {'a': 1} AS attrs`,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	row := result.Rows[0]
	if row[0] != "6ba7b810-9dad-11d1-80b4-00c04fd430c8" {
		t.Fatalf("uuid = %#v", row[0])
	}
	if row[1] != "NaN" {
		t.Fatalf("ratio = %#v", row[1])
	}
	if attrs, ok := row[2].(map[string]any); !ok || len(attrs) != 1 {
		t.Fatalf("attrs = %#v", row[2])
	}
	if _, err := json.Marshal(result.Rows); err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
}

func TestResultRecordsAndPreview(t *testing.T) {
	result := Result{Columns: []string{"a", "b"}, Rows: [][]any{{int64(1), "x"}, {int64(2), "y"}}}
	records := result.Records()
	if len(records) != 2 || records[1]["a"] != int64(2) || records[1]["b"] != "y" {
		t.Fatalf("Records() = %#v", records)
	}
	if preview := result.Preview(1); len(preview.Rows) != 1 || len(result.Rows) != 2 {
		t.Fatalf("Preview(1) rows = %d", len(preview.Rows))
	}
	if preview := result.Preview(0); len(preview.Rows) != 2 {
		t.Fatalf("Preview(0) rows = %d", len(preview.Rows))
	}
}
