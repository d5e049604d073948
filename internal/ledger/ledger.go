// Copyright 2025 James Ross
// Package ledger implements the event ledger (C4): an append-only CSV log
// of CHECK/PAGE_UPDATE/COMPLETED/FAILED events that is the crawler's sole
// source of truth for what work has been done. In-memory QueryState is
// always a fold over the events written so far; a fresh process
// reconstructs it by replaying every ledger file in lexical order before
// the producer is allowed to start.
package ledger

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goldilockshq/profile-crawler/internal/errs"
	"github.com/goldilockshq/profile-crawler/internal/obs"
)

// Status is the lifecycle state of a single parameter set.
type Status string

const (
	Pending          Status = "PENDING"
	InProgress       Status = "IN_PROGRESS"
	Completed        Status = "COMPLETED"
	Failed           Status = "FAILED"
	SkippedTooLarge  Status = "SKIPPED_TOO_LARGE"
	SkippedNoResult  Status = "SKIPPED_NO_RESULT"
)

// EventType identifies one of the four mutating ledger operations.
type EventType string

const (
	EventCheck       EventType = "CHECK"
	EventPageUpdate  EventType = "PAGE_UPDATE"
	EventCompleted   EventType = "COMPLETED"
	EventFailed      EventType = "FAILED"
)

// QueryState is the folded, in-memory view of one parameter set's
// progress, keyed by its canonical ParameterSet string.
type QueryState struct {
	TotalProfiles      int
	IsWorkable         bool
	Status             Status
	LastCompletedPage  int
	FailedAtPage       int
	Timestamp          time.Time
}

// Ledger owns the mutex that serializes every mutating operation: file
// append and in-memory fold happen atomically together, so readers never
// observe a state the file doesn't yet reflect.
type Ledger struct {
	mu       sync.Mutex
	dir      string
	baseName string
	maxRows  int

	file     *os.File
	writer   *csv.Writer
	rowCount int

	state map[string]*QueryState
}

// New constructs a Ledger rooted at dir, replaying every existing ledger
// file in lexical order to reconstruct in-memory state, then opening a
// fresh active file for new writes. Reconstruction must complete before
// the caller launches the producer.
func New(dir, baseName string, maxRows int) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.NewProgrammerError(fmt.Errorf("create ledger dir: %w", err))
	}

	l := &Ledger{
		dir:      dir,
		baseName: baseName,
		maxRows:  maxRows,
		state:    make(map[string]*QueryState),
	}

	if err := l.replay(); err != nil {
		return nil, err
	}
	if err := l.openNewFile(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) ledgerFiles() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(l.dir, l.baseName+"_*.csv"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func (l *Ledger) replay() error {
	files, err := l.ledgerFiles()
	if err != nil {
		return errs.NewProgrammerError(fmt.Errorf("list ledger files: %w", err))
	}
	for _, path := range files {
		if err := l.replayFile(path); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) replayFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errs.NewProgrammerError(fmt.Errorf("open ledger file %s: %w", path, err))
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 4
	rows, err := r.ReadAll()
	if err != nil {
		return errs.NewProgrammerError(fmt.Errorf("read ledger file %s: %w", path, err))
	}
	for i, row := range rows {
		if i == 0 && row[0] == "timestamp" {
			continue // header
		}
		if err := l.foldRow(row); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) foldRow(row []string) error {
	ts, err := time.Parse(time.RFC3339Nano, row[0])
	if err != nil {
		return errs.NewProgrammerError(fmt.Errorf("parse timestamp %q: %w", row[0], err))
	}
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(row[3]), &data); err != nil {
		return errs.NewProgrammerError(fmt.Errorf("parse event data %q: %w", row[3], err))
	}
	l.fold(row[1], EventType(row[2]), data, ts)
	return nil
}

// fold applies one event to in-memory state. It is the single place the
// four invariants in the data model live: monotonic last_completed_page,
// COMPLETED/IN_PROGRESS protection against a later CHECK, and FAILED
// being the only terminal status that is retryable.
func (l *Ledger) fold(key string, eventType EventType, data map[string]interface{}, ts time.Time) {
	st, ok := l.state[key]
	if !ok {
		st = &QueryState{}
		l.state[key] = st
	}
	st.Timestamp = ts

	switch eventType {
	case EventCheck:
		if total, ok := data["total_profiles"].(float64); ok {
			st.TotalProfiles = int(total)
		}
		if workable, ok := data["is_workable"].(bool); ok {
			st.IsWorkable = workable
		}
		if st.Status != Completed && st.Status != InProgress {
			switch {
			case st.IsWorkable:
				st.Status = Pending
			case st.TotalProfiles == 0:
				st.Status = SkippedNoResult
			default:
				st.Status = SkippedTooLarge
			}
		}
	case EventPageUpdate:
		if page, ok := data["page_number"].(float64); ok {
			if int(page) > st.LastCompletedPage {
				st.LastCompletedPage = int(page)
			}
		}
		st.Status = InProgress
	case EventCompleted:
		st.Status = Completed
	case EventFailed:
		st.Status = Failed
		if page, ok := data["failed_at_page"].(float64); ok {
			st.FailedAtPage = int(page)
		}
	}
}

// Get returns a copy of the current state for key, and whether it exists.
func (l *Ledger) Get(key string) (QueryState, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.state[key]
	if !ok {
		return QueryState{}, false
	}
	return *st, true
}

// LogCheck records a CHECK event: total profiles found and whether the
// query is workable (0 < total < 10000).
func (l *Ledger) LogCheck(key string, totalProfiles int, isWorkable bool) error {
	return l.append(key, EventCheck, map[string]interface{}{
		"total_profiles": totalProfiles,
		"is_workable":    isWorkable,
	})
}

// UpdatePageProgress records a PAGE_UPDATE event for a durably written page.
func (l *Ledger) UpdatePageProgress(key string, pageNumber int) error {
	return l.append(key, EventPageUpdate, map[string]interface{}{
		"page_number": pageNumber,
	})
}

// MarkCompleted records a COMPLETED event.
func (l *Ledger) MarkCompleted(key string) error {
	return l.append(key, EventCompleted, map[string]interface{}{})
}

// MarkFailed records a FAILED event, optionally noting the page the
// failure occurred on.
func (l *Ledger) MarkFailed(key string, failedAtPage int) error {
	data := map[string]interface{}{}
	if failedAtPage > 0 {
		data["failed_at_page"] = failedAtPage
	}
	return l.append(key, EventFailed, data)
}

func (l *Ledger) append(key string, eventType EventType, data map[string]interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	dataJSON, err := json.Marshal(data)
	if err != nil {
		return errs.NewProgrammerError(fmt.Errorf("marshal event data: %w", err))
	}
	ts := time.Now().UTC()

	if l.rowCount >= l.maxRows {
		if err := l.rotate(); err != nil {
			return err
		}
	}

	row := []string{ts.Format(time.RFC3339Nano), key, string(eventType), string(dataJSON)}
	if err := l.writer.Write(row); err != nil {
		return errs.NewProgrammerError(fmt.Errorf("write ledger row: %w", err))
	}
	l.writer.Flush()
	if err := l.writer.Error(); err != nil {
		return errs.NewProgrammerError(fmt.Errorf("flush ledger row: %w", err))
	}
	l.rowCount++
	obs.LedgerEventsAppended.Inc()

	var parsed map[string]interface{}
	_ = json.Unmarshal(dataJSON, &parsed)
	l.fold(key, eventType, parsed, ts)
	return nil
}

func (l *Ledger) openNewFile() error {
	// File names have one-second resolution. If a file for the current
	// second already exists (an earlier rotation or run), wait for the next
	// second so every file gets its own name and a header of its own.
	var path string
	for {
		name := fmt.Sprintf("%s_%s.csv", l.baseName, time.Now().UTC().Format("20060102_150405"))
		path = filepath.Join(l.dir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errs.NewProgrammerError(fmt.Errorf("open new ledger file: %w", err))
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "parameters_key", "event_type", "data_json"}); err != nil {
		f.Close()
		return errs.NewProgrammerError(fmt.Errorf("write ledger header: %w", err))
	}
	w.Flush()

	l.file = f
	l.writer = w
	l.rowCount = 0
	return nil
}

func (l *Ledger) rotate() error {
	if l.file != nil {
		l.file.Close()
	}
	return l.openNewFile()
}

// Close flushes and closes the active ledger file.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer != nil {
		l.writer.Flush()
	}
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// EffectivePageSize returns the page size for pageNum given a query's
// total_profiles and its last page, matching the downloader's rule: 100
// for every page but the last, where the last page takes
// total_profiles mod 100 (or 100 when that would be 0).
func EffectivePageSize(pageNum, lastPage, totalProfiles int) int {
	if pageNum != lastPage {
		return 100
	}
	size := totalProfiles % 100
	if size == 0 {
		return 100
	}
	return size
}

// LastPage returns min(ceil(totalProfiles/100), 100).
func LastPage(totalProfiles int) int {
	pages := int(math.Ceil(float64(totalProfiles) / 100))
	if pages > 100 {
		return 100
	}
	if pages < 0 {
		return 0
	}
	return pages
}
