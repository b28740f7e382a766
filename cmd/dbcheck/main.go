package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	pool, err := pgxpool.New(context.Background(), os.Getenv("DATABASE_URL"))
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	ctx := context.Background()

	if len(os.Args) > 1 && os.Args[1] == "stuck" {
		dryRun := !(len(os.Args) > 2 && os.Args[2] == "apply")
		fixStuck(ctx, pool, dryRun)
		return
	}

	if len(os.Args) > 1 && os.Args[1] == "orphans" {
		investigateOrphans(ctx, pool)
		return
	}

	// Default: table counts
	tables := []string{
		"media_sources", "transcripts", "clip_jobs", "render_artifacts",
	}
	fmt.Println("Table                    Count")
	fmt.Println("─────────────────────────────────")
	for _, t := range tables {
		var count int64
		pool.QueryRow(ctx, "SELECT count(*) FROM "+t).Scan(&count)
		fmt.Printf("%-25s %d\n", t, count)
	}

	fmt.Println("\n── Sources By Status ──")
	rows, _ := pool.Query(ctx, "SELECT status, count(*) FROM media_sources GROUP BY status ORDER BY status")
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int64
		rows.Scan(&status, &count)
		fmt.Printf("  %-15s %d\n", status, count)
	}
}

// fixStuck resets sources and jobs that have sat in an in-progress state for
// over an hour, which happens when the process dies mid-job.
func fixStuck(ctx context.Context, pool *pgxpool.Pool, dryRun bool) {
	var stuckSources, stuckJobs int64
	pool.QueryRow(ctx, `SELECT count(*) FROM media_sources WHERE status = 'transcribing' AND updated_at < now() - interval '1 hour'`).Scan(&stuckSources)
	pool.QueryRow(ctx, `SELECT count(*) FROM clip_jobs WHERE status = 'rendering' AND updated_at < now() - interval '1 hour'`).Scan(&stuckJobs)
	fmt.Printf("Stuck transcribing sources: %d\n", stuckSources)
	fmt.Printf("Stuck rendering jobs:       %d\n", stuckJobs)

	if dryRun {
		fmt.Println("\nDry run. Re-run with 'stuck apply' to reset them to failed.")
		return
	}

	tag, _ := pool.Exec(ctx, `
		UPDATE media_sources SET status = 'failed', failure_reason = 'reset by dbcheck', updated_at = now()
		WHERE status = 'transcribing' AND updated_at < now() - interval '1 hour'`)
	fmt.Printf("Reset %d sources\n", tag.RowsAffected())

	tag, _ = pool.Exec(ctx, `
		UPDATE clip_jobs SET status = 'failed', failure_reason = 'reset by dbcheck', updated_at = now()
		WHERE status = 'rendering' AND updated_at < now() - interval '1 hour'`)
	fmt.Printf("Reset %d jobs\n", tag.RowsAffected())
}

func investigateOrphans(ctx context.Context, pool *pgxpool.Pool) {
	// Transcribed sources with no transcript row should not exist; the
	// transcript and the status flip land in one transaction.
	var noTranscript int64
	pool.QueryRow(ctx, `
		SELECT count(*) FROM media_sources m
		WHERE m.status = 'transcribed'
		AND NOT EXISTS (SELECT 1 FROM transcripts t WHERE t.source_id = m.id)
	`).Scan(&noTranscript)
	fmt.Printf("Transcribed sources missing a transcript: %d\n", noTranscript)

	var doneNoArtifact int64
	pool.QueryRow(ctx, `
		SELECT count(*) FROM clip_jobs j
		WHERE j.status = 'done'
		AND NOT EXISTS (SELECT 1 FROM render_artifacts a WHERE a.job_id = j.id)
	`).Scan(&doneNoArtifact)
	fmt.Printf("Done jobs missing an artifact:            %d\n", doneNoArtifact)

	fmt.Println("\n── Clip Count Distribution Per Job ──")
	rows, _ := pool.Query(ctx, `
		SELECT jsonb_array_length(clips) AS n, count(*) FROM clip_jobs GROUP BY n ORDER BY n
	`)
	defer rows.Close()
	for rows.Next() {
		var n, count int
		rows.Scan(&n, &count)
		fmt.Printf("  %d clip(s): %d jobs\n", n, count)
	}
}
