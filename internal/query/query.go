package query

import (
	"context"
	"time"
)

type Request struct {
	SQL string
}

type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}

func (r Result) Empty() bool {
	return len(r.Rows) == 0
}

func (r Result) Records() []map[string]any {
	records := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		record := make(map[string]any, len(r.Columns))
		for i, column := range r.Columns {
			if i < len(row) {
				record[column] = row[i]
			}
		}
		records = append(records, record)
	}
	return records
}

func (r Result) Preview(limit int) Result {
	if limit <= 0 || len(r.Rows) <= limit {
		return r
	}
	return Result{Columns: r.Columns, Rows: r.Rows[:limit], Duration: r.Duration}
}
