// Copyright 2025 James Ross
// Package work defines the item types that flow across the pipeline's
// three queues, so the explorer, downloader, writer, and ledger-appender
// stages can all depend on a small shared vocabulary instead of on each
// other.
package work

import "github.com/goldilockshq/profile-crawler/internal/paramset"

// Item is a unit of work_queue: a parameter set known to be workable
// (or best-effort capped), along with the total profile count the CHECK
// (or prior run) reported for it. A nil Item is the sentinel signaling a
// downloader to exit.
type Item struct {
	Params        paramset.Set
	ParametersKey string
	TotalProfiles int
}

// Result is a unit of results_queue: one successfully fetched page body,
// bound for the response writer.
type Result struct {
	Body []byte
}

// ProgressKind distinguishes the ledger mutation a ProgressEvent requests.
type ProgressKind int

const (
	ProgressPageUpdate ProgressKind = iota
	ProgressCompleted
	ProgressFailed
)

// ProgressEvent is a unit of progress_queue: a ledger mutation describing
// how far a download got.
type ProgressEvent struct {
	ParametersKey string
	Kind          ProgressKind
	PageNumber    int
	FailedAtPage  int
}
