package storage

import (
	"testing"
	"time"
)

func TestUploadKey(t *testing.T) {
	ts := time.Date(2026, time.February, 19, 23, 5, 0, 0, time.FixedZone("x", -5*3600))
	key, err := UploadKey("default", "0b7c", "reports/Q1 sales.csv", ts)
	if err != nil {
		t.Fatalf("UploadKey() error = %v", err)
	}
	want := "uploads/session=default/date=2026-02-20/0b7c-Q1_sales.csv"
	if key != want {
		t.Fatalf("UploadKey() = %q, want %q", key, want)
	}
}

func TestUploadKeyRejectsInvalidSession(t *testing.T) {
	if _, err := UploadKey("../oops", "id", "a.csv", time.Now()); err == nil {
		t.Fatal("expected invalid component error")
	}
}

func TestSafeFileName(t *testing.T) {
	tests := map[string]string{
		"a.csv":              "a.csv",
		`C:\data\my file.db`: "my_file.db",
		"../../etc/passwd":   "passwd",
		"...":                "upload",
		"":                   "upload",
		"weird$$name(1).csv": "weird_name_1_.csv",
	}
	for input, want := range tests {
		if got := SafeFileName(input); got != want {
			t.Fatalf("SafeFileName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestCleanKey(t *testing.T) {
	if got, err := CleanKey("/demos//sales.csv"); err != nil || got != "demos/sales.csv" {
		t.Fatalf("CleanKey() = %q, %v", got, err)
	}
	for _, bad := range []string{"", "..", "../secret", "a/../../b", "."} {
		if _, err := CleanKey(bad); err == nil {
			t.Fatalf("CleanKey(%q) expected error", bad)
		}
	}
}
