// Copyright 2025 James Ross
// Package pipeline implements the coordinator (C7): it owns the bounded
// queues, spawns the producer, downloaders, writer, and progress-logger,
// and runs the two-stage graceful drain on shutdown.
package pipeline

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/goldilockshq/profile-crawler/internal/apiclient"
	"github.com/goldilockshq/profile-crawler/internal/config"
	"github.com/goldilockshq/profile-crawler/internal/downloader"
	"github.com/goldilockshq/profile-crawler/internal/explorer"
	"github.com/goldilockshq/profile-crawler/internal/failedlog"
	"github.com/goldilockshq/profile-crawler/internal/ledger"
	"github.com/goldilockshq/profile-crawler/internal/obs"
	"github.com/goldilockshq/profile-crawler/internal/writer"
	"github.com/goldilockshq/profile-crawler/internal/work"
	"go.uber.org/zap"
)

// Pipeline owns every long-lived component and reference a run needs, in
// place of the module-level globals an earlier, simpler version of this
// system used. Construct one at startup and call Run once.
type Pipeline struct {
	cfg       *config.Config
	log       *zap.Logger
	ledger    *ledger.Ledger
	writer    *writer.Writer
	failedLog *failedlog.Logger
	archive   archiveBackend

	workQueue     chan *work.Item
	resultsQueue  chan *work.Result
	progressQueue chan *work.ProgressEvent

	// inFlight counts work items that have been enqueued but whose
	// fetchAll has not yet returned. A buffered channel reading length
	// zero only means an item has been dequeued, not that its download
	// finished, so the drain sequence waits on this instead of polling
	// len(workQueue): Add happens at enqueue time (explorer), Done when
	// a downloader's fetchAll call returns (success, failure, or
	// cancellation all count as "processed").
	inFlight sync.WaitGroup
}

type archiveBackend interface {
	Put(ctx context.Context, key string, body []byte) error
}

// New constructs a Pipeline. It reconstructs the ledger's in-memory state
// synchronously before returning, as required for the producer to start
// with a consistent view of prior progress.
func New(cfg *config.Config, log *zap.Logger, archive archiveBackend) (*Pipeline, error) {
	l, err := ledger.New(cfg.Ledger.Dir, cfg.Ledger.BaseName, cfg.Ledger.MaxRows)
	if err != nil {
		return nil, err
	}
	fl, err := failedlog.New(cfg.FailedLog.Path, cfg.FailedLog.MaxSizeMB, cfg.FailedLog.MaxBackups, cfg.FailedLog.MaxAgeDays)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:           cfg,
		log:           log,
		ledger:        l,
		writer:        writer.New(cfg.Output.Dir),
		failedLog:     fl,
		archive:       archive,
		workQueue:     make(chan *work.Item, cfg.Pipeline.WorkQueueCap),
		resultsQueue:  make(chan *work.Result, cfg.Pipeline.ResultsQueueCap),
		progressQueue: make(chan *work.ProgressEvent, 4096),
	}, nil
}

// Run spawns the producer, N downloaders, one writer and one
// progress-logger, then executes the graceful drain sequence in order:
// producer finishes, every enqueued work item is fully processed (not
// merely dequeued), results_queue drains, progress_queue drains,
// sentinels sent, workers joined with a timeout. Run returns once the
// drain completes, whether triggered by the producer finishing naturally
// or by ctx being cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	defer p.ledger.Close()
	defer p.failedLog.Close()

	threads := p.cfg.Pipeline.Threads

	var downloaderWG sync.WaitGroup
	for i := 0; i < threads; i++ {
		downloaderWG.Add(1)
		client := apiclient.New(p.cfg, p.log)
		dl := downloader.New(workerID(i), client, p.ledger, p.failedLog, p.log, p.resultsQueue, p.progressQueue, &p.inFlight)
		go func() {
			defer downloaderWG.Done()
			dl.Run(ctx, p.workQueue)
		}()
	}

	var writerWG sync.WaitGroup
	writerWG.Add(1)
	go func() {
		defer writerWG.Done()
		p.runWriter(ctx)
	}()

	var progressWG sync.WaitGroup
	progressWG.Add(1)
	go func() {
		defer progressWG.Done()
		p.runProgressLogger(ctx)
	}()

	go p.sampleQueueDepth(ctx)

	exp := explorer.New(p.ledger, apiclient.New(p.cfg, p.log), p.failedLog, p.log, p.cfg.Pipeline.DryRun, p.workQueue, &p.inFlight)
	exp.Run(ctx)

	p.log.Info("producer finished, draining queues")

	// Wait for every enqueued item's fetchAll to return, not merely for
	// the channel buffer to read empty: a worker that dequeued the last
	// item may still be mid-download when len(workQueue) hits zero.
	p.inFlight.Wait()

	for len(p.resultsQueue) > 0 {
		time.Sleep(10 * time.Millisecond)
	}
	for len(p.progressQueue) > 0 {
		time.Sleep(10 * time.Millisecond)
	}

	for i := 0; i < threads; i++ {
		p.workQueue <- nil
	}
	p.resultsQueue <- nil
	p.progressQueue <- nil

	return p.joinWithTimeout(&downloaderWG, &writerWG, &progressWG)
}

func (p *Pipeline) joinWithTimeout(downloaderWG, writerWG, progressWG *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		downloaderWG.Wait()
		writerWG.Wait()
		progressWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(p.cfg.Pipeline.DrainTimeout):
		p.log.Warn("drain timeout exceeded, proceeding with shutdown")
		return nil
	}
}

func (p *Pipeline) runWriter(ctx context.Context) {
	for r := range p.resultsQueue {
		if r == nil {
			return
		}
		path, err := p.writer.Write(r.Body, time.Now())
		if err != nil {
			p.log.Error("failed to write response", obs.Err(err))
			continue
		}
		if p.archive != nil {
			if err := p.archive.Put(ctx, archiveKey(path), r.Body); err != nil {
				p.log.Warn("failed to archive response", obs.String("path", path), obs.Err(err))
			}
		}
	}
}

func (p *Pipeline) runProgressLogger(ctx context.Context) {
	for ev := range p.progressQueue {
		if ev == nil {
			return
		}
		var err error
		switch ev.Kind {
		case work.ProgressPageUpdate:
			err = p.ledger.UpdatePageProgress(ev.ParametersKey, ev.PageNumber)
		case work.ProgressCompleted:
			err = p.ledger.MarkCompleted(ev.ParametersKey)
			obs.QueriesCompleted.Inc()
		case work.ProgressFailed:
			err = p.ledger.MarkFailed(ev.ParametersKey, ev.FailedAtPage)
			obs.QueriesFailed.Inc()
		}
		if err != nil {
			p.log.Error("failed to record ledger event", obs.Err(err))
		}
	}
}

func (p *Pipeline) sampleQueueDepth(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			obs.QueueDepth.WithLabelValues("work").Set(float64(len(p.workQueue)))
			obs.QueueDepth.WithLabelValues("results").Set(float64(len(p.resultsQueue)))
			obs.QueueDepth.WithLabelValues("progress").Set(float64(len(p.progressQueue)))
		}
	}
}

func workerID(i int) string {
	return "downloader-" + strconv.Itoa(i)
}

func archiveKey(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}
