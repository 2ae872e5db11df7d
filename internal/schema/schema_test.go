package schema

import "testing"

func TestFingerprintIsStableAndContentSensitive(t *testing.T) {
	base := Schema{{
		Name:            "t",
		CreateStatement: "CREATE TABLE t (a INTEGER)",
		Columns:         []ColumnDescriptor{{Name: "a", Type: "INTEGER"}},
	}}
	same := Schema{{
		Name:            "t",
		CreateStatement: "CREATE TABLE t (a INTEGER)",
		Columns:         []ColumnDescriptor{{Name: "a", Type: "INTEGER"}},
	}}
	retyped := Schema{{
		Name:            "t",
		CreateStatement: "CREATE TABLE t (a TEXT)",
		Columns:         []ColumnDescriptor{{Name: "a", Type: "TEXT"}},
	}}

	if base.Fingerprint() != same.Fingerprint() {
		t.Fatal("identical schemas must share a fingerprint")
	}
	if base.Fingerprint() == retyped.Fingerprint() {
		t.Fatal("column type change must change the fingerprint")
	}
	if Schema(nil).Fingerprint() != (Schema{}).Fingerprint() {
		t.Fatal("nil and empty schemas must share a fingerprint")
	}
}

func TestSerializeUsesCatalogFieldNames(t *testing.T) {
	def := "0"
	s := Schema{{
		Name:            "t",
		CreateStatement: "CREATE TABLE t (a INTEGER NOT NULL)",
		Columns:         []ColumnDescriptor{{Name: "a", Type: "INTEGER", NotNull: true, DefaultValue: &def, IsPrimaryKey: true}},
	}}
	want := `[{"name":"t","sql":"CREATE TABLE t (a INTEGER NOT NULL)","columns":[{"name":"a","type":"INTEGER","notnull":true,"dflt_value":"0","pk":true}]}]`
	if got := string(s.Serialize()); got != want {
		t.Fatalf("Serialize() = %s", got)
	}
}

func TestPromptJoinsCreateStatements(t *testing.T) {
	s := Schema{
		{Name: "a", CreateStatement: "CREATE TABLE a (x BIGINT)"},
		{Name: "b", CreateStatement: "CREATE TABLE b (y VARCHAR)"},
	}
	if got := s.Prompt(); got != "CREATE TABLE a (x BIGINT)\n\nCREATE TABLE b (y VARCHAR)" {
		t.Fatalf("Prompt() = %q", got)
	}
	if got := (Schema{}).Prompt(); got != "" {
		t.Fatalf("empty Prompt() = %q", got)
	}
}
