// Copyright 2025 James Ross
//
// ledger-migrate converts a legacy single-file tracker CSV (columns:
// parameters_json, status, timestamp, total_profiles, is_workable,
// last_completed_page) into a ledger event file the crawler's replay logic
// can read natively. It writes events directly rather than going through
// internal/ledger.Ledger, since each migrated event must carry its
// original historical timestamp instead of the time the migration ran.
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goldilockshq/profile-crawler/internal/obs"
)

type legacyRow struct {
	ParametersKey     string
	Status            string
	Timestamp         string
	TotalProfiles     int
	IsWorkable        bool
	LastCompletedPage int
}

type ledgerEvent struct {
	Timestamp     string
	ParametersKey string
	EventType     string
	DataJSON      string
}

func main() {
	var inputPath, outputDir, baseName string
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&inputPath, "input", "", "Path to the legacy tracker CSV (required)")
	fs.StringVar(&outputDir, "output-dir", "./data/ledger", "Directory to write the migrated ledger file into")
	fs.StringVar(&baseName, "base-name", "profile_search_ledger", "Ledger file base name, matching internal/ledger.Ledger's base_name config")
	_ = fs.Parse(os.Args[1:])

	logger, err := obs.NewLogger("info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if inputPath == "" {
		logger.Fatal("--input is required")
	}

	rows, err := readLegacyTracker(inputPath)
	if err != nil {
		logger.Fatal("failed to read legacy tracker", obs.Err(err))
	}

	events, skipped := convertRows(rows)
	logger.Info("converted legacy tracker rows",
		obs.Int("rows_read", len(rows)),
		obs.Int("events_written", len(events)),
		obs.Int("rows_skipped", skipped))

	sort.SliceStable(events, func(i, j int) bool { return events[i].Timestamp < events[j].Timestamp })

	outPath, err := writeLedgerFile(outputDir, baseName, events)
	if err != nil {
		logger.Fatal("failed to write migrated ledger file", obs.Err(err))
	}
	logger.Info("migration finished", obs.String("output_path", outPath))
}

func readLegacyTracker(path string) ([]legacyRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}

	var rows []legacyRow
	for _, rec := range records[1:] {
		total, err := strconv.Atoi(rec[col["total_profiles"]])
		if err != nil {
			continue
		}
		lastPage, err := strconv.Atoi(rec[col["last_completed_page"]])
		if err != nil {
			continue
		}
		rows = append(rows, legacyRow{
			ParametersKey:     rec[col["parameters_json"]],
			Status:            rec[col["status"]],
			Timestamp:         rec[col["timestamp"]],
			TotalProfiles:     total,
			IsWorkable:        strings.EqualFold(rec[col["is_workable"]], "true"),
			LastCompletedPage: lastPage,
		})
	}
	return rows, nil
}

// convertRows applies the same three-event expansion the original
// migration script used: every row always yields a CHECK; IN_PROGRESS and
// COMPLETED rows additionally yield one PAGE_UPDATE for their last known
// page, since the legacy tracker only ever stored the latest page, not the
// full per-page history; COMPLETED and FAILED rows yield their terminal
// event last.
func convertRows(rows []legacyRow) ([]ledgerEvent, int) {
	var events []ledgerEvent
	skipped := 0

	for _, row := range rows {
		if row.ParametersKey == "" {
			skipped++
			continue
		}

		checkData, _ := json.Marshal(map[string]interface{}{
			"total_profiles": row.TotalProfiles,
			"is_workable":    row.IsWorkable,
		})
		events = append(events, ledgerEvent{
			Timestamp:     row.Timestamp,
			ParametersKey: row.ParametersKey,
			EventType:     "CHECK",
			DataJSON:      string(checkData),
		})

		if (row.Status == "IN_PROGRESS" || row.Status == "COMPLETED") && row.LastCompletedPage > 0 {
			pageData, _ := json.Marshal(map[string]interface{}{"page_number": row.LastCompletedPage})
			events = append(events, ledgerEvent{
				Timestamp:     row.Timestamp,
				ParametersKey: row.ParametersKey,
				EventType:     "PAGE_UPDATE",
				DataJSON:      string(pageData),
			})
		}

		switch row.Status {
		case "COMPLETED":
			events = append(events, ledgerEvent{
				Timestamp:     row.Timestamp,
				ParametersKey: row.ParametersKey,
				EventType:     "COMPLETED",
				DataJSON:      "{}",
			})
		case "FAILED":
			events = append(events, ledgerEvent{
				Timestamp:     row.Timestamp,
				ParametersKey: row.ParametersKey,
				EventType:     "FAILED",
				DataJSON:      "{}",
			})
		}
	}
	return events, skipped
}

func writeLedgerFile(outputDir, baseName string, events []ledgerEvent) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s.csv", baseName, time.Now().UTC().Format("20060102_150405"))
	path := filepath.Join(outputDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "parameters_key", "event_type", "data_json"}); err != nil {
		return "", err
	}
	for _, ev := range events {
		if err := w.Write([]string{ev.Timestamp, ev.ParametersKey, ev.EventType, ev.DataJSON}); err != nil {
			return "", err
		}
	}
	w.Flush()
	return path, w.Error()
}
