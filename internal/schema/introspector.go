package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/datachat/datachat/internal/errs"
)

const listTablesSQL = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE'
ORDER BY table_name`

const describeColumnsSQL = `
SELECT
  c.column_name,
  c.data_type,
  c.is_nullable = 'NO' AS not_null,
  c.column_default,
  pk.column_name IS NOT NULL AS is_pk
FROM information_schema.columns c
LEFT JOIN (
  SELECT ku.column_name
  FROM information_schema.table_constraints tc
  JOIN information_schema.key_column_usage ku
    ON tc.constraint_name = ku.constraint_name
   AND tc.table_schema = ku.table_schema
   AND tc.table_name = ku.table_name
  WHERE tc.constraint_type = 'PRIMARY KEY'
    AND tc.table_schema = $1
    AND tc.table_name = $2
) pk ON c.column_name = pk.column_name
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`

type Introspector struct {
	db            *sql.DB
	catalogSchema string
}

func NewIntrospector(db *sql.DB, catalogSchema string) *Introspector {
	return &Introspector{db: db, catalogSchema: catalogSchema}
}

func (i *Introspector) Describe(ctx context.Context) (Schema, error) {
	if i == nil || i.db == nil {
		return nil, errs.New(errs.KindSchema, "database is not configured")
	}

	names, err := i.listTables(ctx)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindSchema, "list tables")
	}

	out := make(Schema, 0, len(names))
	for _, name := range names {
		columns, err := i.describeColumns(ctx, name)
		if err != nil {
			return nil, errs.Wrapf(err, errs.KindSchema, "describe table %q", name)
		}
		out = append(out, TableDescriptor{
			Name:            name,
			CreateStatement: createStatement(name, columns),
			Columns:         columns,
		})
	}
	return out, nil
}

func (i *Introspector) listTables(ctx context.Context) ([]string, error) {
	rows, err := i.db.QueryContext(ctx, listTablesSQL, i.catalogSchema)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return names, nil
}

func (i *Introspector) describeColumns(ctx context.Context, table string) ([]ColumnDescriptor, error) {
	rows, err := i.db.QueryContext(ctx, describeColumnsSQL, i.catalogSchema, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]ColumnDescriptor, 0)
	for rows.Next() {
		var (
			column       ColumnDescriptor
			defaultValue sql.NullString
		)
		if err := rows.Scan(&column.Name, &column.Type, &column.NotNull, &defaultValue, &column.IsPrimaryKey); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		if defaultValue.Valid {
			value := defaultValue.String
			column.DefaultValue = &value
		}
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}
