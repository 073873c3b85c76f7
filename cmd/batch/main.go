package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"meeting-insights-go/internal/batch"
	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/database"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/media"
	"meeting-insights-go/internal/platform"
	"meeting-insights-go/internal/progress"
	"meeting-insights-go/internal/reconcile"
	"meeting-insights-go/internal/report"
	"meeting-insights-go/internal/transcribe"
	"meeting-insights-go/internal/types"
)

type options struct {
	WorkList    string  `short:"w" long:"work-list" default:"calls.json" description:"JSON work list exported from the platform"`
	OutputDir   string  `short:"o" long:"output-dir" default:"downloads_batch" description:"directory for per-item artifacts"`
	Progress    string  `long:"progress" default:"processing_progress.json" description:"progress file; remove an id from processed_ids to force reprocessing"`
	Cookies     string  `long:"cookies" default:"cookies/cookies.json" description:"browser cookie export for platform auth"`
	Concurrency int     `short:"c" long:"concurrency" default:"4" description:"max items processed in parallel"`
	Speed       float64 `long:"speed" default:"1.5" description:"audio playback speed multiplier before transcription"`
	Language    string  `long:"language" description:"transcription language code (overrides TRANSCRIBE_LANGUAGE)"`
	Patterns    string  `long:"question-patterns" description:"YAML file with interrogative lead words and fillers"`
	ReportPath  string  `long:"report" description:"write an xlsx batch report to this path"`
}

func main() {
	_ = godotenv.Load() // loads .env

	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	log := logger.New()
	log.WithField("service", "meeting-insights-go").Info("starting batch")

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("configuration invalid")
	}
	if opts.Language != "" {
		cfg.Language = opts.Language
	}

	items, err := batch.LoadWorkList(opts.WorkList)
	if err != nil {
		log.WithError(err).Fatal("could not load work list")
	}
	log.WithField("items", len(items)).Info("work list loaded")

	store, err := progress.Open(opts.Progress)
	if err != nil {
		var corrupt *types.StoreCorruptError
		if errors.As(err, &corrupt) {
			log.WithError(err).Warn("progress file unreadable, starting from an empty progress set")
		} else {
			log.WithError(err).Fatal("could not open progress store")
		}
	}
	log.WithField("already_processed", store.DoneCount()).Info("progress loaded")

	cookies, err := platform.LoadCookies(opts.Cookies)
	if err != nil {
		log.WithError(err).Fatal("could not load session cookies")
	}

	patterns := config.DefaultQuestionPatterns()
	if opts.Patterns != "" {
		patterns, err = config.LoadQuestionPatterns(opts.Patterns)
		if err != nil {
			log.WithError(err).Warn("question patterns file unusable, using defaults")
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	orch := &batch.Orchestrator{
		Log:         log,
		Fetcher:     platform.NewHTTPFetcher(cookies, cfg.FetchRetryCeiling, log),
		Transformer: media.NewFFmpeg(platform.CookieHeader(cookies), log),
		Transcriber: transcribe.NewClient(cfg.TranscribeBaseURL, cfg.TranscribeAPIKey, cfg.Language, cfg.PollInterval, cfg.TranscribeTimeout, log),
		Engine:      reconcile.NewEngine(patterns),
		Progress:    store,
		OutputDir:   opts.OutputDir,
		Speed:       opts.Speed,
	}

	if cfg.DatabaseDSN != "" {
		db, err := database.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			log.WithError(err).Warn("database unavailable, continuing without relational persistence")
		} else {
			defer db.Close()
			orch.Calls = db
		}
	}

	rep := orch.Run(ctx, items, opts.Concurrency)

	if opts.ReportPath != "" {
		if err := report.WriteWorkbook(opts.ReportPath, rep); err != nil {
			log.WithError(err).Warn("could not write report workbook")
		} else {
			log.WithField("report", opts.ReportPath).Info("report workbook written")
		}
	}

	if rep.Halted {
		log.Warn("run halted early: platform session expired")
		os.Exit(1)
	}
}
