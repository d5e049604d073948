// Copyright 2025 James Ross
// Package writer implements the response writer (C3): it persists each
// downloaded page as a timestamped, pretty-printed JSON file under the
// configured output directory.
package writer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goldilockshq/profile-crawler/internal/errs"
)

// Writer persists raw response bodies to disk.
type Writer struct {
	outputDir string
}

// New returns a Writer rooted at outputDir. The directory is created lazily
// on first Write, not here.
func New(outputDir string) *Writer {
	return &Writer{outputDir: outputDir}
}

// Write persists body (assumed to already be valid JSON) to
// <outputDir>/profile_search_response_<timestamp>.json, pretty-printed
// with 4-space indentation. now is passed in rather than read from the
// clock so callers control collision behavior and tests are deterministic.
func (w *Writer) Write(body []byte, now time.Time) (string, error) {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return "", errs.NewIoError(fmt.Errorf("create output dir: %w", err))
	}

	pretty, err := prettyPrint(body)
	if err != nil {
		return "", errs.NewIoError(fmt.Errorf("pretty-print response: %w", err))
	}

	name := fmt.Sprintf("profile_search_response_%s-%06d.json",
		now.Format("2006-01-02_15-04-05"), now.Nanosecond()/1000)
	path := filepath.Join(w.outputDir, name)

	if err := os.WriteFile(path, pretty, 0o644); err != nil {
		return "", errs.NewIoError(fmt.Errorf("write response file: %w", err))
	}
	return path, nil
}

func prettyPrint(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "    "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
