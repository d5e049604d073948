// Copyright 2025 James Ross
// Package downloader implements the downloader workers (C6): each worker
// dequeues a work item and fetches every remaining page for that
// parameter set, emitting response bodies to the results queue and
// progress events to the ledger queue as it goes.
package downloader

import (
	"context"
	"sync"

	"github.com/goldilockshq/profile-crawler/internal/apiclient"
	"github.com/goldilockshq/profile-crawler/internal/failedlog"
	"github.com/goldilockshq/profile-crawler/internal/ledger"
	"github.com/goldilockshq/profile-crawler/internal/obs"
	"github.com/goldilockshq/profile-crawler/internal/work"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Worker consumes work.Item values and fetches all their pages. Each
// worker owns its own API client; workers share nothing but the channels
// and the ledger, which already serializes its own access.
type Worker struct {
	id            string
	client        *apiclient.Client
	ledger        *ledger.Ledger
	failedLog     *failedlog.Logger
	log           *zap.Logger
	resultsQueue  chan *work.Result
	progressQueue chan *work.ProgressEvent
	inFlight      *sync.WaitGroup
}

// New builds a downloader Worker. inFlight is the coordinator's shared
// counter of enqueued-but-not-yet-processed work items; the worker marks
// one done each time fetchAll returns, regardless of outcome.
func New(id string, client *apiclient.Client, l *ledger.Ledger, failedLog *failedlog.Logger, log *zap.Logger, resultsQueue chan *work.Result, progressQueue chan *work.ProgressEvent, inFlight *sync.WaitGroup) *Worker {
	return &Worker{id: id, client: client, ledger: l, failedLog: failedLog, log: log, resultsQueue: resultsQueue, progressQueue: progressQueue, inFlight: inFlight}
}

// Run dequeues items from workQueue until it receives the nil sentinel or
// the channel is closed. Cancelling ctx does not end the loop: items
// dequeued afterwards are marked done without fetching any page.
func (w *Worker) Run(ctx context.Context, workQueue chan *work.Item) {
	for item := range workQueue {
		if item == nil {
			return
		}
		w.fetchAll(ctx, item)
		w.inFlight.Done()
	}
}

func (w *Worker) fetchAll(ctx context.Context, item *work.Item) {
	lastPage := ledger.LastPage(item.TotalProfiles)

	st, _ := w.ledger.Get(item.ParametersKey)
	startPage := st.LastCompletedPage + 1
	if startPage < 1 {
		startPage = 1
	}

	for pageNum := startPage; pageNum <= lastPage; pageNum++ {
		if ctx.Err() != nil {
			return
		}
		size := ledger.EffectivePageSize(pageNum, lastPage, item.TotalProfiles)

		// correlationID tags this page's log lines (fetched or failed). It
		// is not attached to the trace span or the response file.
		correlationID := uuid.New().String()

		pageCtx, span := obs.StartFetchPageSpan(ctx, item.ParametersKey, pageNum)
		resp, err := w.client.Search(pageCtx, pageNum, size, item.Params)
		span.End()

		if err != nil {
			w.failedLog.Record(item.ParametersKey, "fetch_page", err)
			w.log.Warn("page fetch failed",
				obs.String("parameters_key", item.ParametersKey),
				obs.Int("page_number", pageNum),
				obs.String("correlation_id", correlationID),
				obs.Err(err))
			w.progressQueue <- &work.ProgressEvent{
				ParametersKey: item.ParametersKey,
				Kind:          work.ProgressFailed,
				FailedAtPage:  pageNum,
			}
			return
		}

		w.log.Debug("page fetched",
			obs.String("parameters_key", item.ParametersKey),
			obs.Int("page_number", pageNum),
			obs.String("correlation_id", correlationID))
		w.resultsQueue <- &work.Result{Body: resp.RawBody}
		obs.PagesDownloaded.Inc()
		w.progressQueue <- &work.ProgressEvent{
			ParametersKey: item.ParametersKey,
			Kind:          work.ProgressPageUpdate,
			PageNumber:    pageNum,
		}
	}

	w.progressQueue <- &work.ProgressEvent{
		ParametersKey: item.ParametersKey,
		Kind:          work.ProgressCompleted,
	}
}
