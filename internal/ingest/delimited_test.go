package ingest

import (
	"math"
	"strings"
	"testing"
	"time"
)

func TestAutoType(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{raw: "", want: nil},
		{raw: "   ", want: nil},
		{raw: "true", want: true},
		{raw: "false", want: false},
		{raw: "True", want: "True"},
		{raw: "42", want: float64(42)},
		{raw: " 3.5 ", want: 3.5},
		{raw: "-1e3", want: float64(-1000)},
		{raw: "0x1F", want: float64(31)},
		{raw: "2024", want: float64(2024)},
		{raw: "2024-03-05", want: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{raw: "2024-03", want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{raw: "2024-03-05T10:20:30Z", want: time.Date(2024, 3, 5, 10, 20, 30, 0, time.UTC)},
		{raw: "2024-03-05T10:20", want: time.Date(2024, 3, 5, 10, 20, 0, 0, time.UTC)},
		{raw: "03/05/2024", want: "03/05/2024"},
		{raw: "1,000", want: "1,000"},
		{raw: "inf", want: "inf"},
		{raw: "hello", want: "hello"},
	}
	for _, tc := range tests {
		got := AutoType(tc.raw)
		switch want := tc.want.(type) {
		case time.Time:
			ts, ok := got.(time.Time)
			if !ok || !ts.Equal(want) {
				t.Fatalf("AutoType(%q) = %#v, want %v", tc.raw, got, want)
			}
		default:
			if got != tc.want {
				t.Fatalf("AutoType(%q) = %#v, want %#v", tc.raw, got, tc.want)
			}
		}
	}

	if got, ok := AutoType("NaN").(float64); !ok || !math.IsNaN(got) {
		t.Fatalf("AutoType(NaN) = %#v", AutoType("NaN"))
	}
	if got, ok := AutoType("-Infinity").(float64); !ok || !math.IsInf(got, -1) {
		t.Fatalf("AutoType(-Infinity) = %#v", AutoType("-Infinity"))
	}
}

func TestParseDelimited(t *testing.T) {
	input := "\ufeffid,name,joined\n1,\"Doe, Jane\",2023-01-15\n2,Bob\n"
	got, err := ParseDelimited(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseDelimited() error = %v", err)
	}
	if strings.Join(got.Columns, "|") != "id|name|joined" {
		t.Fatalf("Columns = %v", got.Columns)
	}
	if len(got.Rows) != 2 {
		t.Fatalf("len(Rows) = %d", len(got.Rows))
	}
	if got.Rows[0]["name"] != "Doe, Jane" {
		t.Fatalf("name = %#v", got.Rows[0]["name"])
	}
	if got.Rows[0]["id"] != float64(1) {
		t.Fatalf("id = %#v", got.Rows[0]["id"])
	}
	if _, ok := got.Rows[0]["joined"].(time.Time); !ok {
		t.Fatalf("joined = %#v, want time.Time", got.Rows[0]["joined"])
	}
	if got.Rows[1]["joined"] != nil {
		t.Fatalf("missing trailing field = %#v, want nil", got.Rows[1]["joined"])
	}
}

func TestParseDelimitedDuplicateHeaderKeepsLastValue(t *testing.T) {
	got, err := ParseDelimited(strings.NewReader("a,b,a\n1,2,3\n"))
	if err != nil {
		t.Fatalf("ParseDelimited() error = %v", err)
	}
	if strings.Join(got.Columns, ",") != "a,b" {
		t.Fatalf("Columns = %v", got.Columns)
	}
	if got.Rows[0]["a"] != float64(3) {
		t.Fatalf("a = %#v", got.Rows[0]["a"])
	}
}

func TestParseDelimitedEmpty(t *testing.T) {
	if _, err := ParseDelimited(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty input")
	}
}
