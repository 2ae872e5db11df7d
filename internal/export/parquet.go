package export

import (
	"bytes"
	"strconv"

	"github.com/parquet-go/parquet-go"

	"github.com/datachat/datachat/internal/errs"
	"github.com/datachat/datachat/internal/query"
)

func Parquet(result query.Result) ([]byte, error) {
	names := uniqueNames(result.Columns)
	group := parquet.Group{}
	for _, name := range names {
		group[name] = parquet.Optional(parquet.String())
	}
	schema := parquet.NewSchema("datachat", group)

	// Group fields are ordered by name, so leaf indexes are resolved per column.
	leaf := make([]int, len(names))
	for i, name := range names {
		column, ok := schema.Lookup(name)
		if !ok {
			return nil, errs.Newf(errs.KindInternal, "parquet column %q missing from schema", name)
		}
		leaf[i] = column.ColumnIndex
	}

	var buf bytes.Buffer
	writer := parquet.NewWriter(&buf, schema)
	rows := make([]parquet.Row, 0, len(result.Rows))
	for _, source := range result.Rows {
		row := make(parquet.Row, len(names))
		for i := range names {
			var value any
			if i < len(source) {
				value = source[i]
			}
			if value == nil {
				row[leaf[i]] = parquet.NullValue().Level(0, 0, leaf[i])
				continue
			}
			row[leaf[i]] = parquet.ByteArrayValue([]byte(formatValue(value))).Level(0, 1, leaf[i])
		}
		rows = append(rows, row)
	}
	if _, err := writer.WriteRows(rows); err != nil {
		return nil, errs.Wrap(err, errs.KindInternal, "write parquet rows")
	}
	if err := writer.Close(); err != nil {
		return nil, errs.Wrap(err, errs.KindInternal, "close parquet writer")
	}
	return buf.Bytes(), nil
}

func uniqueNames(columns []string) []string {
	seen := make(map[string]bool, len(columns))
	out := make([]string, len(columns))
	for i, name := range columns {
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		candidate := name
		for n := 2; seen[candidate]; n++ {
			candidate = name + "_" + strconv.Itoa(n)
		}
		seen[candidate] = true
		out[i] = candidate
	}
	return out
}
