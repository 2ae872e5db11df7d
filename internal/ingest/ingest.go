package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/datachat/datachat/internal/database"
	"github.com/datachat/datachat/internal/errs"
	"github.com/datachat/datachat/internal/observability"
)

type Kind string

const (
	KindDelimited Kind = "csv"
	KindContainer Kind = "sqlite"
)

var containerExtensions = map[string]bool{
	".sqlite3": true,
	".db":      true,
	".sqlite":  true,
	".s3db":    true,
	".sl3":     true,
}

type Policy string

const (
	PolicyAppend  Policy = "append"
	PolicyReplace Policy = "replace"
	PolicyReject  Policy = "reject"
	PolicySuffix  Policy = "suffix"
)

type File struct {
	Name string
	Data []byte
}

type Result struct {
	File   string
	Kind   Kind
	Tables []string
	Rows   int64
	Err    error
}

func (r Result) Notifications() []string {
	out := make([]string, 0, len(r.Tables)+1)
	for _, table := range r.Tables {
		out = append(out, "Imported table: "+table)
	}
	if r.Err != nil {
		out = append(out, "Failed to import table: "+errs.Cause(r.Err))
	}
	return out
}

type Options struct {
	Policy             Policy
	MaxConcurrentFiles int
	Logger             *slog.Logger
}

type Ingestor struct {
	db            *sql.DB
	dialect       database.Dialect
	policy        Policy
	maxConcurrent int
	logger        *slog.Logger
}

func New(db *sql.DB, dialect database.Dialect, opts Options) *Ingestor {
	policy := opts.Policy
	if policy == "" {
		policy = PolicyAppend
	}
	maxConcurrent := opts.MaxConcurrentFiles
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Ingestor{
		db:            db,
		dialect:       dialect,
		policy:        policy,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

func KindOf(fileName string) (Kind, error) {
	ext := strings.ToLower(path.Ext(normalizePath(fileName)))
	switch {
	case ext == ".csv":
		return KindDelimited, nil
	case containerExtensions[ext]:
		return KindContainer, nil
	default:
		return "", errs.Newf(errs.KindIngest, "unsupported file type %q for %s", ext, fileName)
	}
}

func TableName(fileName string) string {
	base := path.Base(normalizePath(fileName))
	name := strings.TrimSuffix(base, path.Ext(base))
	if name == "" || name == "." || name == "/" {
		return "table"
	}
	return name
}

func normalizePath(fileName string) string {
	return strings.ReplaceAll(fileName, `\`, "/")
}

// IngestAll ingests every file concurrently and returns once all of them have settled.
// Results keep the order of files.
func (i *Ingestor) IngestAll(ctx context.Context, files []File) []Result {
	results := make([]Result, len(files))
	var group errgroup.Group
	group.SetLimit(i.maxConcurrent)
	for index, file := range files {
		group.Go(func() error {
			results[index] = i.Ingest(ctx, file)
			return nil
		})
	}
	_ = group.Wait()
	return results
}

func (i *Ingestor) Ingest(ctx context.Context, file File) Result {
	kind, err := KindOf(file.Name)
	if err != nil {
		return Result{File: file.Name, Err: err}
	}
	switch kind {
	case KindContainer:
		return i.ingestContainer(ctx, file)
	default:
		return i.ingestDelimited(ctx, file)
	}
}

func (i *Ingestor) ingestDelimited(ctx context.Context, file File) Result {
	result := Result{File: file.Name, Kind: KindDelimited}
	name := TableName(file.Name)

	parsed, err := parseDelimitedBytes(file.Data)
	if err != nil {
		result.Err = errs.Ingest(name, err)
		return result
	}
	if len(parsed.Rows) == 0 {
		result.Err = errs.Ingest(name, fmt.Errorf("no data rows"))
		return result
	}

	types := Infer(parsed.Rows[0])
	columns := make([]columnDef, 0, len(parsed.Columns))
	for _, column := range parsed.Columns {
		storage := types[column]
		columns = append(columns, columnDef{
			Name:    column,
			SQLType: i.dialect.TypeName(storage),
			Bind:    bindKindFor(storage),
		})
	}

	next := 0
	source := func() ([]any, bool, error) {
		if next >= len(parsed.Rows) {
			return nil, false, nil
		}
		row := parsed.Rows[next]
		next++
		values := make([]any, len(parsed.Columns))
		for index, column := range parsed.Columns {
			values[index] = row[column]
		}
		return values, true, nil
	}

	table, rows, err := i.load(ctx, KindDelimited, tableLoad{Name: name, Columns: columns, Next: source})
	if err != nil {
		result.Err = err
		return result
	}
	result.Tables = []string{table}
	result.Rows = rows
	return result
}

type columnDef struct {
	Name    string
	SQLType string
	NotNull bool
	Bind    bindKind
}

type tableLoad struct {
	Name       string
	Columns    []columnDef
	PrimaryKey []string
	Next       func() ([]any, bool, error)
}

// maxParams is the PostgreSQL wire protocol limit on bind parameters per statement.
const maxParams = 65535

func (i *Ingestor) load(ctx context.Context, kind Kind, spec tableLoad) (string, int64, error) {
	start := time.Now()
	table, rows, err := i.loadTx(ctx, spec)
	observability.ObserveIngest(string(kind), rows, time.Since(start), err)
	if err != nil {
		i.logger.WarnContext(ctx, "table import failed",
			slog.String("table", spec.Name),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		return "", 0, err
	}
	i.logger.InfoContext(ctx, "table imported",
		slog.String("table", table),
		slog.String("kind", string(kind)),
		slog.Int64("rows", rows),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return table, rows, nil
}

func (i *Ingestor) loadTx(ctx context.Context, spec tableLoad) (string, int64, error) {
	if len(spec.Columns) == 0 {
		return "", 0, errs.Ingest(spec.Name, fmt.Errorf("no columns"))
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, errs.Ingest(spec.Name, fmt.Errorf("begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	name, err := i.resolveName(ctx, tx, spec.Name)
	if err != nil {
		return "", 0, errs.Ingest(spec.Name, err)
	}

	if _, err := tx.ExecContext(ctx, createTableSQL(name, spec.Columns, spec.PrimaryKey)); err != nil {
		return "", 0, errs.Ingest(name, fmt.Errorf("create table: %w", err))
	}

	batchRows := maxParams / len(spec.Columns)
	if batchRows < 1 {
		batchRows = 1
	}
	var total int64
	batch := make([][]any, 0)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		args := make([]any, 0, len(batch)*len(spec.Columns))
		for _, values := range batch {
			for index, column := range spec.Columns {
				args = append(args, bindValue(column.Bind, values[index], i.dialect))
			}
		}
		if _, err := tx.ExecContext(ctx, insertSQL(name, spec.Columns, len(batch)), args...); err != nil {
			return fmt.Errorf("insert rows: %w", err)
		}
		total += int64(len(batch))
		batch = batch[:0]
		return nil
	}

	for {
		values, ok, err := spec.Next()
		if err != nil {
			return "", 0, errs.Ingest(name, fmt.Errorf("read rows: %w", err))
		}
		if !ok {
			break
		}
		batch = append(batch, values)
		if len(batch) == batchRows {
			if err := flush(); err != nil {
				return "", 0, errs.Ingest(name, err)
			}
		}
	}
	if err := flush(); err != nil {
		return "", 0, errs.Ingest(name, err)
	}

	if err := tx.Commit(); err != nil {
		return "", 0, errs.Ingest(name, fmt.Errorf("commit: %w", err))
	}
	return name, total, nil
}

const tableExistsSQL = `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2`

func (i *Ingestor) resolveName(ctx context.Context, tx *sql.Tx, name string) (string, error) {
	switch i.policy {
	case PolicyReplace:
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+database.QuoteIdent(name)); err != nil {
			return "", fmt.Errorf("drop existing table: %w", err)
		}
		return name, nil
	case PolicyReject:
		exists, err := i.tableExists(ctx, tx, name)
		if err != nil {
			return "", err
		}
		if exists {
			return "", fmt.Errorf("table %q already exists", name)
		}
		return name, nil
	case PolicySuffix:
		candidate := name
		for n := 2; ; n++ {
			exists, err := i.tableExists(ctx, tx, candidate)
			if err != nil {
				return "", err
			}
			if !exists {
				return candidate, nil
			}
			candidate = fmt.Sprintf("%s_%d", name, n)
		}
	default:
		return name, nil
	}
}

func (i *Ingestor) tableExists(ctx context.Context, tx *sql.Tx, name string) (bool, error) {
	var count int64
	if err := tx.QueryRowContext(ctx, tableExistsSQL, i.dialect.CatalogSchema, name).Scan(&count); err != nil {
		return false, fmt.Errorf("check table %q: %w", name, err)
	}
	return count > 0, nil
}

func createTableSQL(table string, columns []columnDef, primaryKey []string) string {
	fragments := make([]string, 0, len(columns)+1)
	for _, column := range columns {
		fragment := database.QuoteIdent(column.Name) + " " + column.SQLType
		if column.NotNull {
			fragment += " NOT NULL"
		}
		fragments = append(fragments, fragment)
	}
	if len(primaryKey) > 0 {
		keys := make([]string, 0, len(primaryKey))
		for _, key := range primaryKey {
			keys = append(keys, database.QuoteIdent(key))
		}
		fragments = append(fragments, "PRIMARY KEY ("+strings.Join(keys, ", ")+")")
	}
	return "CREATE TABLE IF NOT EXISTS " + database.QuoteIdent(table) + " (" + strings.Join(fragments, ", ") + ")"
}

func insertSQL(table string, columns []columnDef, rows int) string {
	names := make([]string, 0, len(columns))
	for _, column := range columns {
		names = append(names, database.QuoteIdent(column.Name))
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(database.QuoteIdent(table))
	b.WriteString(" (")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(") VALUES ")
	param := 1
	for row := 0; row < rows; row++ {
		if row > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for col := range columns {
			if col > 0 {
				b.WriteString(", ")
			}
			b.WriteString(database.Placeholder(param))
			param++
		}
		b.WriteString(")")
	}
	return b.String()
}
