package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Clip job lifecycle states.
const (
	JobScheduled = "scheduled"
	JobRendering = "rendering"
	JobDone      = "done"
	JobFailed    = "failed"
)

// ClipJob is one scheduled clip batch and its render outcome.
type ClipJob struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	Clips         json.RawMessage `json:"clips"`
	Rejected      json.RawMessage `json:"rejected,omitempty"`
	FailureReason *string         `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// RenderArtifact is the stored record of one finished output video.
type RenderArtifact struct {
	ID         string    `json:"id"`
	JobID      string    `json:"job_id"`
	StorageKey string    `json:"storage_key"`
	URL        *string   `json:"url,omitempty"`
	Duration   *float64  `json:"duration,omitempty"`
	SizeBytes  *int64    `json:"size_bytes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// InsertClipJob stores a freshly scheduled batch.
func (db *DB) InsertClipJob(ctx context.Context, job *ClipJob) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO clip_jobs (id, status, clips, rejected)
		VALUES ($1, $2, $3, $4)
	`, job.ID, job.Status, job.Clips, job.Rejected)
	if err != nil {
		return fmt.Errorf("insert clip job: %w", err)
	}
	return nil
}

// GetClipJob fetches one job by id.
func (db *DB) GetClipJob(ctx context.Context, id string) (*ClipJob, error) {
	var job ClipJob
	err := db.Pool.QueryRow(ctx, `
		SELECT id, status, clips, rejected, failure_reason, created_at, updated_at
		FROM clip_jobs WHERE id = $1
	`, id).Scan(&job.ID, &job.Status, &job.Clips, &job.Rejected, &job.FailureReason,
		&job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get clip job: %w", err)
	}
	return &job, nil
}

// UpdateJobStatus transitions a job's state. reason is stored only for the
// failed state.
func (db *DB) UpdateJobStatus(ctx context.Context, id, status, reason string) error {
	var reasonArg *string
	if status == JobFailed && reason != "" {
		reasonArg = &reason
	}
	tag, err := db.Pool.Exec(ctx, `
		UPDATE clip_jobs SET status = $2, failure_reason = $3, updated_at = now() WHERE id = $1
	`, id, status, reasonArg)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertArtifact records a finished render output and marks the job done in
// one transaction.
func (db *DB) InsertArtifact(ctx context.Context, a *RenderArtifact) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO render_artifacts (id, job_id, storage_key, url, duration, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.ID, a.JobID, a.StorageKey, a.URL, a.Duration, a.SizeBytes)
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE clip_jobs SET status = $2, updated_at = now() WHERE id = $1
	`, a.JobID, JobDone)
	if err != nil {
		return fmt.Errorf("mark job done: %w", err)
	}

	return tx.Commit(ctx)
}

// JobArtifacts lists the artifacts for one job, oldest first.
func (db *DB) JobArtifacts(ctx context.Context, jobID string) ([]RenderArtifact, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, job_id, storage_key, url, duration, size_bytes, created_at
		FROM render_artifacts WHERE job_id = $1 ORDER BY created_at
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("job artifacts: %w", err)
	}
	defer rows.Close()

	var out []RenderArtifact
	for rows.Next() {
		var a RenderArtifact
		if err := rows.Scan(&a.ID, &a.JobID, &a.StorageKey, &a.URL, &a.Duration, &a.SizeBytes, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
