package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/datachat/datachat/internal/database"
	"github.com/datachat/datachat/internal/errs"
)

const (
	containerTablesSQL  = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	containerColumnsSQL = `SELECT name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`
)

// ingestContainer copies every table of an embedded SQLite database. Each table is its own
// transaction, so one failing table leaves the others committed.
func (i *Ingestor) ingestContainer(ctx context.Context, file File) Result {
	result := Result{File: file.Name, Kind: KindContainer}
	name := TableName(file.Name)

	dir, err := os.MkdirTemp("", "datachat-container-")
	if err != nil {
		result.Err = errs.Ingest(name, fmt.Errorf("create temp dir: %w", err))
		return result
	}
	defer func() { _ = os.RemoveAll(dir) }()

	localPath := filepath.Join(dir, "upload.sqlite")
	if err := os.WriteFile(localPath, file.Data, 0o600); err != nil {
		result.Err = errs.Ingest(name, fmt.Errorf("write container: %w", err))
		return result
	}

	src, err := sql.Open("sqlite3", "file:"+(&url.URL{Path: localPath}).EscapedPath()+"?mode=ro")
	if err != nil {
		result.Err = errs.Ingest(name, fmt.Errorf("open container: %w", err))
		return result
	}
	defer func() { _ = src.Close() }()

	tables, err := containerTables(ctx, src)
	if err != nil {
		result.Err = errs.Ingest(name, err)
		return result
	}
	if len(tables) == 0 {
		result.Err = errs.Ingest(name, fmt.Errorf("container has no tables"))
		return result
	}

	var failures []error
	for _, table := range tables {
		created, rows, err := i.copyContainerTable(ctx, src, table)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		result.Tables = append(result.Tables, created)
		result.Rows += rows
	}
	if len(failures) > 0 {
		result.Err = errors.Join(failures...)
	}
	return result
}

func (i *Ingestor) copyContainerTable(ctx context.Context, src *sql.DB, table string) (string, int64, error) {
	columns, primaryKey, err := i.containerColumns(ctx, src, table)
	if err != nil {
		return "", 0, errs.Ingest(table, err)
	}

	rows, err := src.QueryContext(ctx, "SELECT * FROM "+database.QuoteIdent(table))
	if err != nil {
		return "", 0, errs.Ingest(table, fmt.Errorf("read container table: %w", err))
	}
	defer func() { _ = rows.Close() }()

	next := func() ([]any, bool, error) {
		if !rows.Next() {
			return nil, false, rows.Err()
		}
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for index := range values {
			targets[index] = &values[index]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, false, err
		}
		return values, true, nil
	}

	return i.load(ctx, KindContainer, tableLoad{
		Name:       table,
		Columns:    columns,
		PrimaryKey: primaryKey,
		Next:       next,
	})
}

func containerTables(ctx context.Context, src *sql.DB) ([]string, error) {
	rows, err := src.QueryContext(ctx, containerTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("list container tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan container table: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate container tables: %w", err)
	}
	return tables, nil
}

func (i *Ingestor) containerColumns(ctx context.Context, src *sql.DB, table string) ([]columnDef, []string, error) {
	rows, err := src.QueryContext(ctx, containerColumnsSQL, table)
	if err != nil {
		return nil, nil, fmt.Errorf("describe container table: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type keyPart struct {
		position int
		name     string
	}
	var (
		columns []columnDef
		keys    []keyPart
	)
	for rows.Next() {
		var (
			name     string
			declared string
			notNull  bool
			pk       int
		)
		if err := rows.Scan(&name, &declared, &notNull, &pk); err != nil {
			return nil, nil, fmt.Errorf("scan container column: %w", err)
		}
		sqlType, bind := nativeType(declared, i.dialect)
		columns = append(columns, columnDef{Name: name, SQLType: sqlType, NotNull: notNull, Bind: bind})
		if pk > 0 {
			keys = append(keys, keyPart{position: pk, name: name})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate container columns: %w", err)
	}

	sort.Slice(keys, func(a, b int) bool { return keys[a].position < keys[b].position })
	primaryKey := make([]string, 0, len(keys))
	for _, key := range keys {
		primaryKey = append(primaryKey, key.name)
	}
	return columns, primaryKey, nil
}

var typeArgsPattern = regexp.MustCompile(`^\s*\(\s*\d+\s*(,\s*\d+\s*)?\)\s*$`)

func nativeType(declared string, dialect database.Dialect) (string, bindKind) {
	upper := strings.ToUpper(strings.TrimSpace(declared))
	base, args := upper, ""
	if open := strings.Index(upper, "("); open >= 0 {
		base = strings.TrimSpace(upper[:open])
		if typeArgsPattern.MatchString(upper[open:]) {
			args = strings.ReplaceAll(upper[open:], " ", "")
		}
	}

	switch base {
	case "INTEGER", "INT", "BIGINT", "INT8", "SMALLINT", "INT2", "MEDIUMINT", "TINYINT", "UNSIGNED BIG INT":
		if dialect.Name == database.DuckDB.Name {
			return "BIGINT", bindInteger
		}
		if base == "SMALLINT" || base == "INTEGER" || base == "BIGINT" {
			return base, bindInteger
		}
		return "BIGINT", bindInteger
	case "REAL", "DOUBLE", "DOUBLE PRECISION", "FLOAT":
		return dialect.DoubleType, bindFloat
	case "NUMERIC", "DECIMAL":
		if dialect.Name == database.DuckDB.Name {
			return dialect.DoubleType, bindFloat
		}
		return base + args, bindFloat
	case "BOOLEAN", "BOOL":
		return "BOOLEAN", bindBoolean
	case "DATE":
		return "DATE", bindTimestamp
	case "DATETIME", "TIMESTAMP":
		return "TIMESTAMP", bindTimestamp
	case "VARCHAR", "CHARACTER VARYING", "NVARCHAR", "CHAR", "CHARACTER", "NCHAR":
		if dialect.Name == database.Postgres.Name && args != "" && base != "NVARCHAR" && base != "NCHAR" {
			return base + args, bindText
		}
		return dialect.TypeName(database.Text), bindText
	case "TEXT", "CLOB":
		return dialect.TypeName(database.Text), bindText
	case "BLOB":
		return dialect.BlobType, bindBlob
	}

	switch {
	case strings.Contains(upper, "INT"):
		return "BIGINT", bindInteger
	case strings.Contains(upper, "CHAR"), strings.Contains(upper, "CLOB"), strings.Contains(upper, "TEXT"):
		return dialect.TypeName(database.Text), bindText
	case strings.Contains(upper, "BLOB"):
		return dialect.BlobType, bindBlob
	case strings.Contains(upper, "REAL"), strings.Contains(upper, "FLOA"), strings.Contains(upper, "DOUB"):
		return dialect.DoubleType, bindFloat
	default:
		return dialect.TypeName(database.Text), bindText
	}
}
