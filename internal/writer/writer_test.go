// Copyright 2025 James Ross
package writer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteCreatesDirAndPrettyPrints(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "responses")
	w := New(dir)

	now := time.Date(2025, 5, 14, 9, 30, 12, 123456000, time.UTC)
	path, err := w.Write([]byte(`{"counts":{"profiles_total_results":5}}`), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(filepath.Base(path), "profile_search_response_2025-05-14_09-30-12-123456") {
		t.Fatalf("unexpected filename: %s", filepath.Base(path))
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading written file: %v", err)
	}
	if !strings.Contains(string(contents), "    \"profiles_total_results\"") {
		t.Fatalf("expected 4-space indentation, got:\n%s", contents)
	}
}

func TestWriteDistinctTimestampsAvoidCollision(t *testing.T) {
	dir := t.TempDir()
	w := New(dir)

	t1 := time.Date(2025, 5, 14, 9, 30, 12, 100000000, time.UTC)
	t2 := time.Date(2025, 5, 14, 9, 30, 12, 200000000, time.UTC)

	p1, err := w.Write([]byte(`{}`), t1)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := w.Write([]byte(`{}`), t2)
	if err != nil {
		t.Fatal(err)
	}
	if p1 == p2 {
		t.Fatalf("expected distinct filenames for distinct microsecond timestamps")
	}
}
