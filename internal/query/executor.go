package query

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/marcboeker/go-duckdb/v2"

	"github.com/datachat/datachat/internal/errs"
)

type Options struct {
	ReadOnly bool
}

type Executor struct {
	db       *sql.DB
	readOnly bool
}

func NewExecutor(db *sql.DB, opts Options) *Executor {
	return &Executor{db: db, readOnly: opts.ReadOnly}
}

func (e *Executor) Execute(ctx context.Context, request Request) (Result, error) {
	if strings.TrimSpace(request.SQL) == "" {
		return Result{}, errs.New(errs.KindExecution, "sql is empty")
	}
	if e.readOnly && !IsReadOnly(request.SQL) {
		return Result{}, errs.New(errs.KindExecution, "only read-only SELECT/WITH queries are allowed")
	}

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, request.SQL)
	if err != nil {
		return Result{}, errs.Wrap(err, errs.KindExecution, "")
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, errs.Wrap(err, errs.KindExecution, "query columns")
	}
	typeNames := databaseTypeNames(rows, len(columns))

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, errs.Wrap(err, errs.KindExecution, "scan row")
		}
		resultRows = append(resultRows, normalizeValues(values, typeNames))
	}
	if err := rows.Err(); err != nil {
		return Result{}, errs.Wrap(err, errs.KindExecution, "")
	}

	return Result{Columns: columns, Rows: resultRows, Duration: time.Since(start)}, nil
}

// IsReadOnly reports whether sqlText starts with SELECT or WITH, ignoring case, leading whitespace
// and leading SQL comments.
func IsReadOnly(sqlText string) bool {
	normalized := strings.ToLower(stripLeadingComments(sqlText))
	return strings.HasPrefix(normalized, "select") || strings.HasPrefix(normalized, "with")
}

func stripLeadingComments(sqlText string) string {
	text := strings.TrimSpace(sqlText)
	for {
		switch {
		case strings.HasPrefix(text, "--"):
			end := strings.IndexByte(text, '\n')
			if end < 0 {
				return ""
			}
			text = strings.TrimSpace(text[end+1:])
		case strings.HasPrefix(text, "/*"):
			end := strings.Index(text, "*/")
			if end < 0 {
				return ""
			}
			text = strings.TrimSpace(text[end+2:])
		default:
			return text
		}
	}
}

type float64Valuer interface {
	Float64() float64
}

func databaseTypeNames(rows *sql.Rows, count int) []string {
	names := make([]string, count)
	types, err := rows.ColumnTypes()
	if err != nil {
		return names
	}
	for i, columnType := range types {
		if i < count {
			names[i] = strings.ToUpper(columnType.DatabaseTypeName())
		}
	}
	return names
}

func normalizeValues(values []any, typeNames []string) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		typeName := ""
		if i < len(typeNames) {
			typeName = typeNames[i]
		}
		normalized[i] = normalizeValue(value, typeName)
	}
	return normalized
}

func normalizeValue(value any, typeName string) any {
	switch typed := value.(type) {
	case []byte:
		return normalizeBytes(typed, typeName)
	case *big.Int:
		if typed.IsInt64() {
			return typed.Int64()
		}
		return typed.String()
	case float64:
		return normalizeFloat(typed)
	case float32:
		return normalizeFloat(float64(typed))
	case float64Valuer:
		return normalizeFloat(typed.Float64())
	case duckdb.UUID:
		return uuid.UUID(typed).String()
	case duckdb.Map:
		return normalizeMap(typed)
	case map[any]any:
		return normalizeMap(typed)
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = normalizeValue(item, "")
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = normalizeValue(item, "")
		}
		return out
	default:
		return typed
	}
}

func normalizeBytes(value []byte, typeName string) any {
	if typeName == "UUID" && len(value) == 16 {
		if id, err := uuid.FromBytes(value); err == nil {
			return id.String()
		}
	}
	if utf8.Valid(value) {
		return string(value)
	}
	return `\x` + hex.EncodeToString(value)
}

func normalizeFloat(value float64) any {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
	return value
}

func normalizeMap[M ~map[any]any](value M) map[string]any {
	out := make(map[string]any, len(value))
	for key, item := range value {
		out[fmt.Sprint(normalizeValue(key, ""))] = normalizeValue(item, "")
	}
	return out
}
