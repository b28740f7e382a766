package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// TranscriptRow is the stored transcript for one media source.
type TranscriptRow struct {
	SourceID    string          `json:"source_id"`
	Text        string          `json:"text"`
	Language    string          `json:"language"`
	Duration    float64         `json:"duration"`
	Provider    string          `json:"provider"`
	Model       *string         `json:"model,omitempty"`
	Segments    json.RawMessage `json:"segments"`
	Diagnostics json.RawMessage `json:"diagnostics,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ReplaceTranscript stores a transcript for a source, replacing any prior
// one wholesale in a single transaction. Retries of the same job therefore
// race as last-writer-wins on the whole document, never as partial field
// interleavings. The source's status and duration are updated in the same
// transaction so callers never observe a transcribed source without its
// transcript.
func (db *DB) ReplaceTranscript(ctx context.Context, row *TranscriptRow) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM transcripts WHERE source_id = $1`, row.SourceID); err != nil {
		return fmt.Errorf("delete prior transcript: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO transcripts (source_id, text, language, duration, provider, model, segments, diagnostics)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, row.SourceID, row.Text, row.Language, row.Duration, row.Provider, row.Model, row.Segments, row.Diagnostics)
	if err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE media_sources
		SET status = $2, duration = GREATEST(COALESCE(duration, 0), $3), failure_reason = NULL, updated_at = now()
		WHERE id = $1
	`, row.SourceID, SourceTranscribed, row.Duration)
	if err != nil {
		return fmt.Errorf("update source: %w", err)
	}

	return tx.Commit(ctx)
}

// GetTranscript fetches the transcript for a source.
func (db *DB) GetTranscript(ctx context.Context, sourceID string) (*TranscriptRow, error) {
	var row TranscriptRow
	err := db.Pool.QueryRow(ctx, `
		SELECT source_id, text, language, duration, provider, model, segments, diagnostics, created_at
		FROM transcripts WHERE source_id = $1
	`, sourceID).Scan(&row.SourceID, &row.Text, &row.Language, &row.Duration,
		&row.Provider, &row.Model, &row.Segments, &row.Diagnostics, &row.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	return &row, nil
}
