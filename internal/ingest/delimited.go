package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type Table struct {
	Columns []string
	Rows    []map[string]any
}

var isoDatePattern = regexp.MustCompile(`^\d{4}(-\d{2}(-\d{2})?)?(T\d{2}:\d{2}(:\d{2}(\.\d{3})?)?(Z|[-+]\d{2}:\d{2})?)?$`)

var isoDateLayouts = []string{
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-01",
}

func ParseDelimited(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Table{}, fmt.Errorf("file is empty")
	}
	if err != nil {
		return Table{}, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	columns := make([]string, 0, len(header))
	seen := make(map[string]bool, len(header))
	for _, name := range header {
		if !seen[name] {
			seen[name] = true
			columns = append(columns, name)
		}
	}

	rows := make([]map[string]any, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		row := make(map[string]any, len(columns))
		for index, name := range header {
			raw := ""
			if index < len(record) {
				raw = record[index]
			}
			row[name] = AutoType(raw)
		}
		rows = append(rows, row)
	}
	return Table{Columns: columns, Rows: rows}, nil
}

func parseDelimitedBytes(data []byte) (Table, error) {
	return ParseDelimited(bytes.NewReader(data))
}

// AutoType converts one trimmed field: empty becomes nil, true/false become bool, numeric literals
// become float64, ISO-8601 dates become time.Time and everything else stays a string.
func AutoType(raw string) any {
	value := strings.TrimSpace(raw)
	switch value {
	case "":
		return nil
	case "true":
		return true
	case "false":
		return false
	case "NaN":
		return math.NaN()
	}
	if number, ok := parseNumber(value); ok {
		return number
	}
	if isoDatePattern.MatchString(value) {
		if parsed, ok := parseISODate(value); ok {
			return parsed
		}
	}
	return value
}

func parseNumber(value string) (float64, bool) {
	switch value {
	case "Infinity", "+Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}
	if len(value) > 2 && value[0] == '0' {
		base := 0
		switch value[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			parsed, err := strconv.ParseUint(value[2:], base, 64)
			if err != nil {
				return 0, false
			}
			return float64(parsed), true
		}
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsInf(parsed, 0) || math.IsNaN(parsed) {
		return 0, false
	}
	return parsed, true
}

func parseISODate(value string) (time.Time, bool) {
	for _, layout := range isoDateLayouts {
		parsed, err := time.ParseInLocation(layout, value, time.UTC)
		if err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
