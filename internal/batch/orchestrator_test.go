package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/progress"
	"meeting-insights-go/internal/reconcile"
	"meeting-insights-go/internal/transcribe"
	"meeting-insights-go/internal/types"
)

type fetchFunc func(ctx context.Context, item types.WorkItem) (*types.RawMetadata, error)

func (f fetchFunc) Fetch(ctx context.Context, item types.WorkItem) (*types.RawMetadata, error) {
	return f(ctx, item)
}

type transformFunc func(ctx context.Context, mediaURL, outPath string, speed float64) error

func (f transformFunc) Transform(ctx context.Context, mediaURL, outPath string, speed float64) error {
	return f(ctx, mediaURL, outPath, speed)
}

type transcribeFunc func(ctx context.Context, audioPath string) (*types.TranscriptionResult, error)

func (f transcribeFunc) Transcribe(ctx context.Context, audioPath string) (*types.TranscriptionResult, error) {
	return f(ctx, audioPath)
}

type upsertFunc func(ctx context.Context, rec *types.UnifiedRecord) error

func (f upsertFunc) UpsertCall(ctx context.Context, rec *types.UnifiedRecord) error {
	return f(ctx, rec)
}

func metaFor(item types.WorkItem) *types.RawMetadata {
	return &types.RawMetadata{
		ID:       item.ID,
		URL:      item.URL,
		Title:    item.Title,
		Date:     "Tue, Aug 25",
		Duration: "10 mins",
		HostName: "Ana Souza",
		Participants: []types.Participant{
			{SpeakerID: "p1", Name: "Ana Souza", IsHost: true},
		},
		MediaURL: "https://media.example/" + item.ID + "/pl.m3u8",
		RawPage:  []byte("<html>page</html>"),
	}
}

func okTranscription() *types.TranscriptionResult {
	return &types.TranscriptionResult{
		Utterances: []types.Utterance{
			{SpeakerLabel: "A", Text: "Tudo certo?", StartMs: 0, EndMs: 1000, Confidence: 0.9},
		},
		Diagnostic: []byte(`{"status":"completed"}`),
	}
}

func workItems(n int) []types.WorkItem {
	items := make([]types.WorkItem, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, types.WorkItem{
			ID:    fmt.Sprintf("id%d", i),
			URL:   fmt.Sprintf("https://platform.example/calls/%d", i),
			Title: fmt.Sprintf("Call %d", i),
		})
	}
	return items
}

func newOrchestrator(t *testing.T) (*Orchestrator, *progress.Store, string) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	dir := t.TempDir()
	store, err := progress.Open(filepath.Join(dir, "progress.json"))
	if err != nil {
		t.Fatalf("open progress: %v", err)
	}
	o := &Orchestrator{
		Log:      logger.New(),
		Fetcher:  fetchFunc(func(ctx context.Context, item types.WorkItem) (*types.RawMetadata, error) { return metaFor(item), nil }),
		Transformer: transformFunc(func(ctx context.Context, mediaURL, outPath string, speed float64) error {
			return os.WriteFile(outPath, []byte("mp3"), 0o644)
		}),
		Transcriber: transcribeFunc(func(ctx context.Context, audioPath string) (*types.TranscriptionResult, error) {
			return okTranscription(), nil
		}),
		Engine:    reconcile.NewEngine(config.DefaultQuestionPatterns()),
		Progress:  store,
		OutputDir: dir,
		Speed:     1.5,
	}
	return o, store, dir
}

func TestFreshRunProcessesAllItems(t *testing.T) {
	o, store, dir := newOrchestrator(t)
	report := o.Run(context.Background(), workItems(2), 2)

	if report.Completed != 2 || len(report.Failures) != 0 || report.Halted {
		t.Fatalf("unexpected report: %+v", report)
	}
	for _, id := range []string{"id1", "id2"} {
		if !store.IsDone(id) {
			t.Errorf("%s not marked done", id)
		}
	}
	for i := 1; i <= 2; i++ {
		record := filepath.Join(dir, fmt.Sprintf("Call %d_call.json", i))
		if _, err := os.Stat(record); err != nil {
			t.Errorf("missing unified record %s: %v", record, err)
		}
		page := filepath.Join(dir, fmt.Sprintf("Call %d_page.html", i))
		if _, err := os.Stat(page); err != nil {
			t.Errorf("missing page artifact %s: %v", page, err)
		}
	}
}

func TestSecondRunDoesNoWork(t *testing.T) {
	o, store, _ := newOrchestrator(t)
	items := workItems(2)

	var fetches atomic.Int32
	base := o.Fetcher
	o.Fetcher = fetchFunc(func(ctx context.Context, item types.WorkItem) (*types.RawMetadata, error) {
		fetches.Add(1)
		return base.Fetch(ctx, item)
	})

	first := o.Run(context.Background(), items, 2)
	if first.Completed != 2 {
		t.Fatalf("first run: %+v", first)
	}
	before := store.Snapshot()

	second := o.Run(context.Background(), items, 2)
	if second.Completed != 0 || second.Skipped != 2 {
		t.Fatalf("second run should skip everything: %+v", second)
	}
	if got := fetches.Load(); got != 2 {
		t.Fatalf("expected 2 total fetches across both runs, got %d", got)
	}
	after := store.Snapshot()
	if len(before) != len(after) {
		t.Fatalf("progress store changed on idle run: %v -> %v", before, after)
	}
}

func TestPartialResumeProcessesOnlyRemaining(t *testing.T) {
	o, store, dir := newOrchestrator(t)
	if err := store.MarkDone("id1"); err != nil {
		t.Fatalf("seed progress: %v", err)
	}

	var fetched []string
	o.Fetcher = fetchFunc(func(ctx context.Context, item types.WorkItem) (*types.RawMetadata, error) {
		fetched = append(fetched, item.ID)
		return metaFor(item), nil
	})

	report := o.Run(context.Background(), workItems(2), 1)
	if report.Skipped != 1 || report.Completed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(fetched) != 1 || fetched[0] != "id2" {
		t.Fatalf("expected only id2 fetched, got %v", fetched)
	}
	if _, err := os.Stat(filepath.Join(dir, "Call 1_call.json")); err == nil {
		t.Fatal("output for skipped item must not be rewritten")
	}
}

func TestPerItemFailureIsolation(t *testing.T) {
	o, store, _ := newOrchestrator(t)
	o.Transcriber = transcribeFunc(func(ctx context.Context, audioPath string) (*types.TranscriptionResult, error) {
		if filepath.Base(audioPath) == "Call 1_1.5x.mp3" {
			return nil, fmt.Errorf("job x: %w", transcribe.ErrTimedOut)
		}
		return okTranscription(), nil
	})

	report := o.Run(context.Background(), workItems(2), 2)
	if report.Completed != 1 || len(report.Failures) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	f := report.Failures[0]
	if f.ID != "id1" || f.Stage != StageTranscribe || f.State != string(transcribe.StateTimedOut) {
		t.Fatalf("unexpected failure: %+v", f)
	}
	if store.IsDone("id1") {
		t.Fatal("failed item marked done")
	}
	if !store.IsDone("id2") {
		t.Fatal("successful sibling not marked done")
	}
}

func TestAuthExpiryHaltsIntake(t *testing.T) {
	o, store, _ := newOrchestrator(t)
	o.Fetcher = fetchFunc(func(ctx context.Context, item types.WorkItem) (*types.RawMetadata, error) {
		return nil, types.ErrAuthExpired
	})

	report := o.Run(context.Background(), workItems(5), 1)
	if !report.Halted {
		t.Fatal("report not flagged as halted")
	}
	if len(report.Failures) != 1 {
		t.Fatalf("expected exactly one attempted failure, got %+v", report.Failures)
	}
	if report.NotAttempted != 4 {
		t.Fatalf("expected 4 not-attempted items, got %d", report.NotAttempted)
	}
	if store.DoneCount() != 0 {
		t.Fatal("no item may be marked done after auth halt")
	}
}

func TestConcurrencyBound(t *testing.T) {
	o, _, _ := newOrchestrator(t)

	var inFlight, maxSeen atomic.Int32
	o.Transcriber = transcribeFunc(func(ctx context.Context, audioPath string) (*types.TranscriptionResult, error) {
		cur := inFlight.Add(1)
		for {
			prev := maxSeen.Load()
			if cur <= prev || maxSeen.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return okTranscription(), nil
	})

	report := o.Run(context.Background(), workItems(10), 4)
	if report.Completed != 10 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if got := maxSeen.Load(); got > 4 {
		t.Fatalf("concurrency bound exceeded: %d items in flight", got)
	}
}

func TestRelationalUpsertFailureIsNonFatal(t *testing.T) {
	o, store, _ := newOrchestrator(t)
	var upserts atomic.Int32
	o.Calls = upsertFunc(func(ctx context.Context, rec *types.UnifiedRecord) error {
		upserts.Add(1)
		return fmt.Errorf("connection refused")
	})

	report := o.Run(context.Background(), workItems(1), 1)
	if report.Completed != 1 {
		t.Fatalf("upsert failure must not fail the item: %+v", report)
	}
	if upserts.Load() != 1 {
		t.Fatalf("expected 1 upsert attempt, got %d", upserts.Load())
	}
	if !store.IsDone("id1") {
		t.Fatal("item should be done despite upsert failure")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"Weekly Sync":           "Weekly Sync",
		`Plan: Q3/Q4 <review>?`: "Plan_ Q3_Q4 _review__",
		"  padded  ":            "padded",
	}
	for in, want := range cases {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
