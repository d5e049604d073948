// Copyright 2025 James Ross
package downloader

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goldilockshq/profile-crawler/internal/apiclient"
	"github.com/goldilockshq/profile-crawler/internal/config"
	"github.com/goldilockshq/profile-crawler/internal/failedlog"
	"github.com/goldilockshq/profile-crawler/internal/ledger"
	"github.com/goldilockshq/profile-crawler/internal/paramset"
	"github.com/goldilockshq/profile-crawler/internal/work"
	"go.uber.org/zap/zaptest"
)

func newTestWorker(t *testing.T, handler http.HandlerFunc) (*Worker, *ledger.Ledger, chan *work.Result, chan *work.ProgressEvent) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		API:            config.API{BaseURL: srv.URL, RequestTimeout: 2 * time.Second, MaxAttempts: 1, RetryBase: time.Millisecond},
		CircuitBreaker: config.CircuitBreaker{FailureThreshold: 0.9, Window: time.Minute, CooldownPeriod: time.Millisecond, MinSamples: 1000},
	}
	client := apiclient.New(cfg, zaptest.NewLogger(t))

	l, err := ledger.New(t.TempDir(), "ledger", 100000)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })

	fl, err := failedlog.New(t.TempDir()+"/failed.log", 10, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { fl.Close() })

	resultsQueue := make(chan *work.Result, 100)
	progressQueue := make(chan *work.ProgressEvent, 100)

	var inFlight sync.WaitGroup
	return New("w0", client, l, fl, zaptest.NewLogger(t), resultsQueue, progressQueue, &inFlight), l, resultsQueue, progressQueue
}

func TestFetchAllHappyPathThreePages(t *testing.T) {
	var pagesSeen []int
	w, l, results, progress := newTestWorker(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			PageNumber int `json:"page_number"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		pagesSeen = append(pagesSeen, body.PageNumber)
		resp, _ := json.Marshal(map[string]interface{}{"counts": map[string]interface{}{"profiles_total_results": 250}})
		w.Write(resp)
	})

	l.LogCheck("k1", 250, true)
	item := &work.Item{Params: paramset.New(), ParametersKey: "k1", TotalProfiles: 250}

	w.fetchAll(context.Background(), item)
	close(results)
	close(progress)

	var resultCount, pageUpdates int
	completed := false
	for range results {
		resultCount++
	}
	for ev := range progress {
		switch ev.Kind {
		case work.ProgressPageUpdate:
			pageUpdates++
		case work.ProgressCompleted:
			completed = true
		}
	}

	if resultCount != 3 {
		t.Fatalf("expected 3 response files, got %d", resultCount)
	}
	if pageUpdates != 3 {
		t.Fatalf("expected 3 PAGE_UPDATE events, got %d", pageUpdates)
	}
	if !completed {
		t.Fatalf("expected a COMPLETED event")
	}
	if len(pagesSeen) != 3 || pagesSeen[0] != 1 || pagesSeen[2] != 3 {
		t.Fatalf("unexpected page sequence: %v", pagesSeen)
	}
}

func TestFetchAllResumesFromLastCompletedPage(t *testing.T) {
	var pagesSeen []int
	w, l, results, progress := newTestWorker(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			PageNumber int `json:"page_number"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		pagesSeen = append(pagesSeen, body.PageNumber)
		resp, _ := json.Marshal(map[string]interface{}{"counts": map[string]interface{}{"profiles_total_results": 250}})
		w.Write(resp)
	})

	l.LogCheck("k1", 250, true)
	l.UpdatePageProgress("k1", 1)

	item := &work.Item{Params: paramset.New(), ParametersKey: "k1", TotalProfiles: 250}
	w.fetchAll(context.Background(), item)
	close(results)
	close(progress)

	if len(pagesSeen) != 2 || pagesSeen[0] != 2 || pagesSeen[1] != 3 {
		t.Fatalf("expected resume from page 2, got %v", pagesSeen)
	}
}

func TestFetchAllStopsOnPermanentFailureMidRun(t *testing.T) {
	var calls int32
	w, _, results, progress := newTestWorker(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 2 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		resp, _ := json.Marshal(map[string]interface{}{"counts": map[string]interface{}{"profiles_total_results": 300}})
		w.Write(resp)
	})

	item := &work.Item{Params: paramset.New(), ParametersKey: "k1", TotalProfiles: 300}
	w.fetchAll(context.Background(), item)
	close(results)
	close(progress)

	var resultCount int
	var failedAtPage int
	sawCompleted := false
	for range results {
		resultCount++
	}
	for ev := range progress {
		if ev.Kind == work.ProgressFailed {
			failedAtPage = ev.FailedAtPage
		}
		if ev.Kind == work.ProgressCompleted {
			sawCompleted = true
		}
	}

	if resultCount != 1 {
		t.Fatalf("expected exactly 1 response file before the failure, got %d", resultCount)
	}
	if failedAtPage != 2 {
		t.Fatalf("expected failure recorded at page 2, got %d", failedAtPage)
	}
	if sawCompleted {
		t.Fatalf("did not expect a COMPLETED event after a mid-run failure")
	}
}
