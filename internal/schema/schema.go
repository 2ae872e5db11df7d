package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

type ColumnDescriptor struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	NotNull      bool    `json:"notnull"`
	DefaultValue *string `json:"dflt_value"`
	IsPrimaryKey bool    `json:"pk"`
}

type TableDescriptor struct {
	Name            string             `json:"name"`
	CreateStatement string             `json:"sql"`
	Columns         []ColumnDescriptor `json:"columns"`
}

type Schema []TableDescriptor

func (s Schema) Serialize() []byte {
	if s == nil {
		s = Schema{}
	}
	encoded, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (s Schema) Fingerprint() string {
	sum := sha256.Sum256(s.Serialize())
	return hex.EncodeToString(sum[:])
}

func (s Schema) CreateStatements() []string {
	out := make([]string, 0, len(s))
	for _, table := range s {
		out = append(out, table.CreateStatement)
	}
	return out
}

func (s Schema) Prompt() string {
	return strings.Join(s.CreateStatements(), "\n\n")
}

func (s Schema) Table(name string) (TableDescriptor, bool) {
	for _, table := range s {
		if table.Name == name {
			return table, true
		}
	}
	return TableDescriptor{}, false
}

func createStatement(table string, columns []ColumnDescriptor) string {
	fragments := make([]string, 0, len(columns))
	for _, column := range columns {
		fragment := column.Name + " " + column.Type
		if column.NotNull {
			fragment += " NOT NULL"
		}
		fragments = append(fragments, fragment)
	}
	return "CREATE TABLE " + table + " (" + strings.Join(fragments, ", ") + ")"
}
