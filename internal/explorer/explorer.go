// Copyright 2025 James Ross
// Package explorer implements the producer (C5): a depth-first traversal
// of the parameter hierarchy that, for every bound parameter set, consults
// the ledger and decides whether to enqueue it for download, recurse
// deeper, or prune the branch entirely.
package explorer

import (
	"context"
	"sync"

	"github.com/goldilockshq/profile-crawler/internal/apiclient"
	"github.com/goldilockshq/profile-crawler/internal/failedlog"
	"github.com/goldilockshq/profile-crawler/internal/hierarchy"
	"github.com/goldilockshq/profile-crawler/internal/ledger"
	"github.com/goldilockshq/profile-crawler/internal/obs"
	"github.com/goldilockshq/profile-crawler/internal/paramset"
	"github.com/goldilockshq/profile-crawler/internal/work"
	"go.uber.org/zap"
)

const maxWorkableTotal = 10000

// Explorer walks the hierarchy and feeds workQueue. It is single-threaded
// by design: the only concurrency-safe state it touches is the Ledger,
// which serializes its own mutations.
type Explorer struct {
	ledger    *ledger.Ledger
	client    *apiclient.Client
	failedLog *failedlog.Logger
	log       *zap.Logger
	dryRun    bool
	workQueue chan *work.Item
	inFlight  *sync.WaitGroup
}

// New builds an Explorer. workQueue is the bounded channel the coordinator
// created; a nil item on it is the downloader sentinel, never sent by the
// explorer itself. inFlight is the coordinator's shared counter of
// enqueued-but-not-yet-processed work items: every enqueue here adds one,
// matched by a Done() when the downloader that dequeues it finishes.
func New(l *ledger.Ledger, client *apiclient.Client, failedLog *failedlog.Logger, log *zap.Logger, dryRun bool, workQueue chan *work.Item, inFlight *sync.WaitGroup) *Explorer {
	return &Explorer{ledger: l, client: client, failedLog: failedLog, log: log, dryRun: dryRun, workQueue: workQueue, inFlight: inFlight}
}

// Run starts the traversal at the root, static country binding, and
// blocks until the whole tree has been visited or ctx is cancelled.
func (e *Explorer) Run(ctx context.Context) {
	root := paramset.New().With("countries", hierarchy.StaticCountry)
	e.explore(ctx, root, 0)
}

func (e *Explorer) explore(ctx context.Context, current paramset.Set, layerIndex int) {
	if ctx.Err() != nil {
		return
	}
	if layerIndex == len(hierarchy.Names) {
		return
	}
	layer := hierarchy.Names[layerIndex]
	values := hierarchy.ValuesForLayer(layer, current)

	for _, v := range values {
		if ctx.Err() != nil {
			return
		}
		next := current.With(layer, v)
		key := next.Key()

		st, known := e.ledger.Get(key)
		if known {
			switch st.Status {
			case ledger.Completed, ledger.SkippedNoResult:
				continue
			case ledger.SkippedTooLarge:
				e.explore(ctx, next, layerIndex+1)
				continue
			case ledger.InProgress, ledger.Pending, ledger.Failed:
				e.enqueue(next, key, st.TotalProfiles)
				continue
			}
		}

		e.checkAndDecide(ctx, next, key, layerIndex)
	}
}

func (e *Explorer) checkAndDecide(ctx context.Context, next paramset.Set, key string, layerIndex int) {
	ctx, span := obs.StartCheckSpan(ctx, key, layerIndex)
	defer span.End()

	resp, err := e.client.Search(ctx, 1, 1, next)
	obs.ChecksPerformed.Inc()
	if err != nil {
		e.failedLog.Record(key, "check", err)
		_ = e.ledger.MarkFailed(key, 0)
		e.log.Warn("check failed", obs.String("parameters_key", key), obs.Err(err))
		return
	}

	total := resp.Counts.ProfilesTotalResults
	isLastLayer := layerIndex == len(hierarchy.Names)-1

	switch {
	case total == 0:
		_ = e.ledger.LogCheck(key, 0, false)
		obs.QueriesSkipped.WithLabelValues("no_result").Inc()
	case total < maxWorkableTotal:
		_ = e.ledger.LogCheck(key, total, true)
		e.enqueue(next, key, total)
	case isLastLayer:
		_ = e.ledger.LogCheck(key, total, false)
		obs.QueriesSkipped.WithLabelValues("too_large_capped").Inc()
		e.enqueue(next, key, maxWorkableTotal)
	default:
		_ = e.ledger.LogCheck(key, total, false)
		obs.QueriesSkipped.WithLabelValues("too_large_recurse").Inc()
		e.explore(ctx, next, layerIndex+1)
	}
}

func (e *Explorer) enqueue(params paramset.Set, key string, totalProfiles int) {
	if e.dryRun {
		return
	}
	obs.QueriesEnqueued.Inc()
	e.inFlight.Add(1)
	e.workQueue <- &work.Item{Params: params, ParametersKey: key, TotalProfiles: totalProfiles}
}
