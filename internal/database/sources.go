package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Media source lifecycle states.
const (
	SourcePending      = "pending"
	SourceIngested     = "ingested"
	SourceTranscribing = "transcribing"
	SourceTranscribed  = "transcribed"
	SourceFailed       = "failed"
)

// Origin kinds.
const (
	OriginUpload = "upload"
	OriginRemote = "remote-reference"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// MediaSource is one uploaded or referenced video.
type MediaSource struct {
	ID            string    `json:"id"`
	Owner         string    `json:"owner,omitempty"`
	Origin        string    `json:"origin"`
	Locator       string    `json:"locator"`
	Duration      *float64  `json:"duration,omitempty"`
	Status        string    `json:"status"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// InsertMediaSource creates a new media source record.
func (db *DB) InsertMediaSource(ctx context.Context, src *MediaSource) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO media_sources (id, owner, origin, locator, duration, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, src.ID, src.Owner, src.Origin, src.Locator, src.Duration, src.Status)
	if err != nil {
		return fmt.Errorf("insert media source: %w", err)
	}
	return nil
}

// GetMediaSource fetches one media source by id.
func (db *DB) GetMediaSource(ctx context.Context, id string) (*MediaSource, error) {
	var src MediaSource
	err := db.Pool.QueryRow(ctx, `
		SELECT id, owner, origin, locator, duration, status, failure_reason, created_at, updated_at
		FROM media_sources WHERE id = $1
	`, id).Scan(&src.ID, &src.Owner, &src.Origin, &src.Locator, &src.Duration,
		&src.Status, &src.FailureReason, &src.CreatedAt, &src.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get media source: %w", err)
	}
	return &src, nil
}

// ListMediaSources returns sources newest-first.
func (db *DB) ListMediaSources(ctx context.Context, limit, offset int) ([]MediaSource, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, owner, origin, locator, duration, status, failure_reason, created_at, updated_at
		FROM media_sources
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list media sources: %w", err)
	}
	defer rows.Close()

	var out []MediaSource
	for rows.Next() {
		var src MediaSource
		if err := rows.Scan(&src.ID, &src.Owner, &src.Origin, &src.Locator, &src.Duration,
			&src.Status, &src.FailureReason, &src.CreatedAt, &src.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// UpdateSourceStatus transitions a source's lifecycle state. reason is only
// stored for the failed state; any other transition clears it.
func (db *DB) UpdateSourceStatus(ctx context.Context, id, status string, reason string) error {
	var reasonArg *string
	if status == SourceFailed && reason != "" {
		reasonArg = &reason
	}
	tag, err := db.Pool.Exec(ctx, `
		UPDATE media_sources
		SET status = $2, failure_reason = $3, updated_at = now()
		WHERE id = $1
	`, id, status, reasonArg)
	if err != nil {
		return fmt.Errorf("update source status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSourceDuration records the probed media duration.
func (db *DB) SetSourceDuration(ctx context.Context, id string, duration float64) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE media_sources SET duration = $2, updated_at = now() WHERE id = $1
	`, id, duration)
	if err != nil {
		return fmt.Errorf("set source duration: %w", err)
	}
	return nil
}

// SourceDurations returns the known durations keyed by source id for the
// given ids. Sources with no recorded duration map to 0 (known source,
// unknown length); ids with no row are absent from the result.
func (db *DB) SourceDurations(ctx context.Context, ids []string) (map[string]float64, error) {
	if len(ids) == 0 {
		return map[string]float64{}, nil
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT id, duration FROM media_sources WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("source durations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64, len(ids))
	for rows.Next() {
		var id string
		var dur *float64
		if err := rows.Scan(&id, &dur); err != nil {
			return nil, err
		}
		if dur != nil {
			out[id] = *dur
		} else {
			out[id] = 0
		}
	}
	return out, rows.Err()
}

// SourceLocators returns storage locators keyed by source id. Ids with no
// row are absent from the result.
func (db *DB) SourceLocators(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT id, locator FROM media_sources WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("source locators: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string, len(ids))
	for rows.Next() {
		var id, locator string
		if err := rows.Scan(&id, &locator); err != nil {
			return nil, err
		}
		out[id] = locator
	}
	return out, rows.Err()
}
