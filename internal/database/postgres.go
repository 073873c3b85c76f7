// Package database persists unified records into Postgres. This is a side
// channel for reporting; the orchestrator treats its failures as non-fatal
// because the on-disk record file is the authoritative output.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"meeting-insights-go/internal/types"
)

type Store struct {
	db *sql.DB
}

// Open connects and verifies the database is reachable.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UpsertCall writes one unified record keyed by its platform id. A
// reprocessed item replaces the previous row wholesale, no partial merge.
func (s *Store) UpsertCall(ctx context.Context, rec *types.UnifiedRecord) error {
	participants, err := json.Marshal(rec.Participants)
	if err != nil {
		return fmt.Errorf("marshal participants: %w", err)
	}
	summary, err := json.Marshal(rec.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	questions, err := json.Marshal(rec.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calls (
			id, url, share_url, title, call_date, duration_raw,
			host_name, company_domain, participant_count,
			participants_data, summary_data, questions_data,
			transcript_text, extracted_at, status, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())
		ON CONFLICT (id) DO UPDATE SET
			url = EXCLUDED.url,
			share_url = EXCLUDED.share_url,
			title = EXCLUDED.title,
			call_date = EXCLUDED.call_date,
			duration_raw = EXCLUDED.duration_raw,
			host_name = EXCLUDED.host_name,
			company_domain = EXCLUDED.company_domain,
			participant_count = EXCLUDED.participant_count,
			participants_data = EXCLUDED.participants_data,
			summary_data = EXCLUDED.summary_data,
			questions_data = EXCLUDED.questions_data,
			transcript_text = EXCLUDED.transcript_text,
			extracted_at = EXCLUDED.extracted_at,
			status = EXCLUDED.status,
			updated_at = now()`,
		rec.ID, rec.URL, rec.ShareURL, rec.Title, rec.Date, rec.Duration,
		rec.HostName, rec.CompanyDomain, len(rec.Participants),
		participants, summary, questions,
		rec.TranscriptText, rec.ExtractedAt, rec.Status,
	)
	if err != nil {
		return fmt.Errorf("upsert call %s: %w", rec.ID, err)
	}
	return nil
}
