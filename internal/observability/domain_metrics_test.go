package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveIngestCountsByStatus(t *testing.T) {
	okBefore := testutil.ToFloat64(ingestTablesTotal.WithLabelValues("csv", "ok"))
	errBefore := testutil.ToFloat64(ingestTablesTotal.WithLabelValues("csv", "error"))
	rowsBefore := testutil.ToFloat64(ingestRowsTotal)

	ObserveIngest("csv", 12, 5*time.Millisecond, nil)
	ObserveIngest("csv", 3, 5*time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(ingestTablesTotal.WithLabelValues("csv", "ok")) - okBefore; got != 1 {
		t.Fatalf("ok delta = %v", got)
	}
	if got := testutil.ToFloat64(ingestTablesTotal.WithLabelValues("csv", "error")) - errBefore; got != 1 {
		t.Fatalf("error delta = %v", got)
	}
	if got := testutil.ToFloat64(ingestRowsTotal) - rowsBefore; got != 12 {
		t.Fatalf("rows delta = %v, failed ingest rows must not count", got)
	}
}

func TestObserveQuestionCache(t *testing.T) {
	hitBefore := testutil.ToFloat64(questionCacheTotal.WithLabelValues("hit"))
	missBefore := testutil.ToFloat64(questionCacheTotal.WithLabelValues("miss"))

	ObserveQuestionCache(true)
	ObserveQuestionCache(false)
	ObserveQuestionCache(false)

	if got := testutil.ToFloat64(questionCacheTotal.WithLabelValues("hit")) - hitBefore; got != 1 {
		t.Fatalf("hit delta = %v", got)
	}
	if got := testutil.ToFloat64(questionCacheTotal.WithLabelValues("miss")) - missBefore; got != 2 {
		t.Fatalf("miss delta = %v", got)
	}
}
