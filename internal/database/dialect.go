package database

import (
	"fmt"
	"strconv"
	"strings"
)

type StorageType string

const (
	Integer   StorageType = "integer"
	Decimal   StorageType = "decimal"
	Boolean   StorageType = "boolean"
	Timestamp StorageType = "timestamp"
	Text      StorageType = "text"
)

type Dialect struct {
	Name          string
	Label         string
	DriverName    string
	CatalogSchema string
	DoubleType    string
	BlobType      string
	types         map[StorageType]string
}

var (
	DuckDB = Dialect{
		Name:          "duckdb",
		Label:         "DuckDB",
		DriverName:    "duckdb",
		CatalogSchema: "main",
		DoubleType:    "DOUBLE",
		BlobType:      "BLOB",
		types: map[StorageType]string{
			Integer:   "BIGINT",
			Decimal:   "DOUBLE",
			Boolean:   "BOOLEAN",
			Timestamp: "TIMESTAMP",
			Text:      "VARCHAR",
		},
	}
	Postgres = Dialect{
		Name:          "postgres",
		Label:         "PostgreSQL",
		DriverName:    "pgx",
		CatalogSchema: "public",
		DoubleType:    "DOUBLE PRECISION",
		BlobType:      "BYTEA",
		types: map[StorageType]string{
			Integer:   "INTEGER",
			Decimal:   "DECIMAL",
			Boolean:   "BOOLEAN",
			Timestamp: "TIMESTAMP",
			Text:      "TEXT",
		},
	}
)

func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DuckDB.Name:
		return DuckDB, nil
	case Postgres.Name, "pgx", "postgresql":
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func (d Dialect) TypeName(storage StorageType) string {
	if name, ok := d.types[storage]; ok {
		return name
	}
	return d.types[Text]
}

func QuoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
