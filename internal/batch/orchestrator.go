// Package batch drives work items through the full pipeline (fetch,
// transform, transcribe, reconcile, persist) under a bounded worker pool,
// recording completion in the progress store after every finished item.
//
// Per-item failures are isolated at the worker boundary; only an expired
// platform session halts intake, and even then in-flight items run to their
// natural end. Partial artifacts left by a crashed attempt are harmless:
// every artifact path derives from the title, so the next successful run
// overwrites them wholesale.
package batch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/media"
	"meeting-insights-go/internal/platform"
	"meeting-insights-go/internal/progress"
	"meeting-insights-go/internal/reconcile"
	"meeting-insights-go/internal/transcribe"
	"meeting-insights-go/internal/types"
)

// DefaultConcurrency matches the platform's tolerated parallel session count.
const DefaultConcurrency = 4

// Transcriber turns a local audio file into a transcription result.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*types.TranscriptionResult, error)
}

// CallStore upserts unified records into the relational collaborator.
// Its failures are logged, never fatal: the record file on disk is the
// authoritative success signal.
type CallStore interface {
	UpsertCall(ctx context.Context, rec *types.UnifiedRecord) error
}

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	Log         *logger.Logger
	Fetcher     platform.Fetcher
	Transformer media.Transformer
	Transcriber Transcriber
	Engine      *reconcile.Engine
	Progress    *progress.Store
	Calls       CallStore
	OutputDir   string
	Speed       float64
}

type outcome struct {
	item      types.WorkItem
	failure   *Failure
	attempted bool
}

// Run processes the work list with at most concurrency workers and returns
// the final report. Items already in the progress store are skipped.
func (o *Orchestrator) Run(ctx context.Context, items []types.WorkItem, concurrency int) *Report {
	start := time.Now()
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	runID := uuid.NewString()
	log := o.Log.WithRun(runID)

	report := &Report{
		RunID:        runID,
		Total:        len(items),
		CompletedIDs: []string{},
		Failures:     []Failure{},
	}

	trk := newTracker(len(items))
	pending := make([]types.WorkItem, 0, len(items))
	for _, item := range items {
		if o.Progress.IsDone(item.ID) {
			trk.skip()
			report.Skipped++
			log.WithFields(logrus.Fields{"item_id": item.ID, "title": item.Title}).Info("already processed, skipping")
			continue
		}
		pending = append(pending, item)
	}

	log.WithFields(logrus.Fields{
		"total":     len(items),
		"skipped":   report.Skipped,
		"remaining": len(pending),
		"workers":   concurrency,
	}).Info("batch starting")

	jobs := make(chan types.WorkItem, len(pending))
	for _, item := range pending {
		jobs <- item
	}
	close(jobs)

	results := make(chan outcome, len(pending))
	var halted atomic.Bool
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			wlog := log.WithField("worker", worker)
			for item := range jobs {
				if halted.Load() {
					results <- outcome{item: item}
					continue
				}
				failure, global := o.processItem(ctx, wlog, item, trk)
				if global {
					halted.Store(true)
				}
				results <- outcome{item: item, failure: failure, attempted: true}
			}
		}(i)
	}
	wg.Wait()
	close(results)

	for res := range results {
		switch {
		case !res.attempted:
			report.NotAttempted++
			log.WithFields(logrus.Fields{"item_id": res.item.ID, "title": res.item.Title}).Warn("not attempted, intake halted")
		case res.failure != nil:
			report.Failures = append(report.Failures, *res.failure)
		default:
			report.Completed++
			report.CompletedIDs = append(report.CompletedIDs, res.item.ID)
		}
	}
	report.Halted = halted.Load()
	report.Elapsed = time.Since(start)

	log.WithFields(logrus.Fields{
		"completed":     report.Completed,
		"failed":        len(report.Failures),
		"skipped":       report.Skipped,
		"not_attempted": report.NotAttempted,
		"halted":        report.Halted,
		"elapsed":       report.Elapsed.String(),
	}).Info("batch finished")
	return report
}

// processItem runs one item through every stage sequentially. It returns the
// failure (nil on success) and whether the failure halts the whole batch.
func (o *Orchestrator) processItem(ctx context.Context, log *logrus.Entry, item types.WorkItem, trk *tracker) (*Failure, bool) {
	ilog := log.WithFields(logrus.Fields{"item_id": item.ID, "title": item.Title})
	trk.start(item.ID, item.Title)
	o.logProgress(log, trk)

	fail := func(stage, state string, err error) (*Failure, bool) {
		trk.finish(item.ID, false)
		o.logProgress(log, trk)
		ilog.WithFields(logrus.Fields{"stage": stage, "error": err.Error()}).Error("item failed")
		if jerr := o.Progress.MarkFailed(item.ID, item.Title, stage, err); jerr != nil {
			ilog.WithField("error", jerr.Error()).Warn("could not journal failure")
		}
		return &Failure{
			ID:     item.ID,
			Title:  item.Title,
			Stage:  stage,
			State:  state,
			Reason: err.Error(),
		}, errors.Is(err, types.ErrAuthExpired)
	}

	paths := itemArtifacts(o.OutputDir, item.Title, o.Speed)

	meta, err := o.Fetcher.Fetch(ctx, item)
	if err != nil {
		return fail(StageFetch, "", err)
	}
	if len(meta.RawPage) > 0 {
		if werr := writeFile(paths.page, meta.RawPage); werr != nil {
			ilog.WithField("error", werr.Error()).Warn("could not write raw page artifact")
		}
	}

	if err := o.Transformer.Transform(ctx, meta.MediaURL, paths.audio, o.Speed); err != nil {
		return fail(StageTransform, "", err)
	}

	tr, err := o.Transcriber.Transcribe(ctx, paths.audio)
	if err != nil {
		state := ""
		var jobFailed *transcribe.JobFailedError
		switch {
		case errors.Is(err, transcribe.ErrTimedOut):
			state = string(transcribe.StateTimedOut)
		case errors.As(err, &jobFailed):
			state = string(transcribe.StateFailed)
		}
		return fail(StageTranscribe, state, err)
	}

	rec, err := o.Engine.Reconcile(meta, tr)
	if err != nil {
		return fail(StageReconcile, "", err)
	}

	// authoritative output: without this file the item is not complete
	if err := writeJSON(paths.record, rec); err != nil {
		return fail(StagePersist, "", err)
	}
	if werr := writeFile(paths.transcript, []byte(rec.TranscriptText)); werr != nil {
		ilog.WithField("error", werr.Error()).Warn("could not write transcript artifact")
	}
	if len(tr.Diagnostic) > 0 {
		if werr := writeFile(paths.diagnostic, tr.Diagnostic); werr != nil {
			ilog.WithField("error", werr.Error()).Warn("could not write diagnostic artifact")
		}
	}

	if o.Calls != nil {
		if uerr := o.Calls.UpsertCall(ctx, rec); uerr != nil {
			ilog.WithField("error", uerr.Error()).Warn("relational upsert failed, record file remains authoritative")
		}
	}

	// durable before the item is reported complete
	if err := o.Progress.MarkDone(item.ID); err != nil {
		return fail(StagePersist, "", err)
	}

	trk.finish(item.ID, true)
	o.logProgress(log, trk)
	ilog.Info("item completed")
	return nil, false
}

func (o *Orchestrator) logProgress(log *logrus.Entry, trk *tracker) {
	completed, failed, inFlight := trk.snapshot()
	log.WithFields(logrus.Fields{
		"completed": completed,
		"failed":    failed,
		"total":     trk.total,
		"in_flight": strings.Join(inFlight, ", "),
	}).Info("batch progress")
}
