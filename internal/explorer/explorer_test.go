// Copyright 2025 James Ross
package explorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goldilockshq/profile-crawler/internal/apiclient"
	"github.com/goldilockshq/profile-crawler/internal/config"
	"github.com/goldilockshq/profile-crawler/internal/failedlog"
	"github.com/goldilockshq/profile-crawler/internal/hierarchy"
	"github.com/goldilockshq/profile-crawler/internal/ledger"
	"github.com/goldilockshq/profile-crawler/internal/paramset"
	"github.com/goldilockshq/profile-crawler/internal/work"
	"go.uber.org/zap/zaptest"
)

// withHierarchy temporarily replaces the global layer list for the
// duration of a test, restoring it on cleanup. The hierarchy package
// exposes its layer order as a package variable precisely so the explorer
// can walk it without a layer of indirection; tests take advantage of the
// same variable to exercise small, deterministic trees.
func withHierarchy(t *testing.T, names []string) {
	t.Helper()
	original := hierarchy.Names
	hierarchy.Names = names
	t.Cleanup(func() { hierarchy.Names = original })
}

func newTestExplorer(t *testing.T, totalsByLayerValue map[string]int, workQueue chan *work.Item) (*Explorer, *ledger.Ledger) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Parameters map[string]paramset.FilterValue `json:"parameters"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		total := 0
		for layer, fv := range body.Parameters {
			if layer == "countries" {
				continue
			}
			// Only the "is one of" side of a toggle is looked up; the
			// "is not one of" side reports zero results.
			if len(fv) > 0 && fv[0].Operator == paramset.OpIsOneOf {
				if vs, ok := fv[0].Value.([]interface{}); ok && len(vs) > 0 {
					if s, ok := vs[0].(string); ok {
						total = totalsByLayerValue[s]
					}
				}
			}
		}
		w.WriteHeader(http.StatusOK)
		resp, _ := json.Marshal(map[string]interface{}{
			"counts": map[string]interface{}{"profiles_total_results": total},
		})
		w.Write(resp)
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		API: config.API{BaseURL: srv.URL, RequestTimeout: 2 * time.Second, MaxAttempts: 1, RetryBase: time.Millisecond},
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

	var inFlight sync.WaitGroup
	return New(l, client, fl, zaptest.NewLogger(t), false, workQueue, &inFlight), l
}

func drain(ch chan *work.Item) []*work.Item {
	close(ch)
	var items []*work.Item
	for it := range ch {
		items = append(items, it)
	}
	return items
}

func TestSingleLayerHappyPathEnqueuesOneItem(t *testing.T) {
	withHierarchy(t, []string{"cities"})
	wq := make(chan *work.Item, 10)
	e, _ := newTestExplorer(t, map[string]int{"London": 250}, wq)

	e.Run(context.Background())
	items := drain(wq)

	if len(items) != 1 {
		t.Fatalf("expected exactly 1 enqueued item, got %d", len(items))
	}
	if items[0].TotalProfiles != 250 {
		t.Fatalf("expected total 250, got %d", items[0].TotalProfiles)
	}
}

func TestZeroTotalPrunesBranch(t *testing.T) {
	withHierarchy(t, []string{"cities"})
	wq := make(chan *work.Item, 10)
	e, l := newTestExplorer(t, map[string]int{}, wq)

	e.Run(context.Background())
	items := drain(wq)

	if len(items) != 0 {
		t.Fatalf("expected no enqueued items for zero-result branches, got %d", len(items))
	}
	_ = l
}

func TestTooLargeNonLastLayerRecurses(t *testing.T) {
	withHierarchy(t, []string{"cities", "profile_tags"})
	wq := make(chan *work.Item, 10)
	e, _ := newTestExplorer(t, map[string]int{"London": 12000, "Profile Has Phone": 500}, wq)

	e.Run(context.Background())
	items := drain(wq)

	if len(items) == 0 {
		t.Fatalf("expected recursion into the next layer to eventually enqueue workable children")
	}
}

func TestTooLargeAtLastLayerEnqueuesCapped(t *testing.T) {
	withHierarchy(t, []string{"cities"})
	wq := make(chan *work.Item, 10)
	e, _ := newTestExplorer(t, map[string]int{"London": 15000}, wq)

	e.Run(context.Background())
	items := drain(wq)

	if len(items) != 1 {
		t.Fatalf("expected exactly one capped enqueue, got %d", len(items))
	}
	if items[0].TotalProfiles != maxWorkableTotal {
		t.Fatalf("expected capped total %d, got %d", maxWorkableTotal, items[0].TotalProfiles)
	}
}

func TestDryRunNeverEnqueuesButStillChecks(t *testing.T) {
	withHierarchy(t, []string{"cities"})
	wq := make(chan *work.Item, 10)
	e, l := newTestExplorer(t, map[string]int{"London": 250}, wq)
	e.dryRun = true

	e.Run(context.Background())
	items := drain(wq)

	if len(items) != 0 {
		t.Fatalf("dry run must never enqueue, got %d items", len(items))
	}
	found := false
	for _, v := range hierarchy.ValuesForLayer("cities", paramset.New()) {
		next := paramset.New().With("countries", hierarchy.StaticCountry).With("cities", v)
		if st, ok := l.Get(next.Key()); ok && st.TotalProfiles == 250 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected dry run to still log a CHECK event")
	}
}
