package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Tool drives ffmpeg and ffprobe through os/exec. Context timeouts are the
// hard kill for runaway encodes.
type Tool struct {
	ffmpeg  string
	ffprobe string
}

// NewTool creates a media tool. Empty paths fall back to $PATH lookup.
func NewTool(ffmpegPath, ffprobePath string) *Tool {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Tool{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

// Extract cuts [start, end] seconds out of the source into outPath,
// re-encoding for frame-accurate boundaries.
func (t *Tool) Extract(ctx context.Context, source string, start, end float64, outPath string) error {
	cmd := exec.CommandContext(ctx, t.ffmpeg,
		"-y",
		"-ss", fmtSeconds(start),
		"-to", fmtSeconds(end),
		"-i", source,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "18",
		"-c:a", "aac",
		"-b:a", "192k",
		outPath,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract [%s, %s]: %w\n%s", fmtSeconds(start), fmtSeconds(end), err, string(b))
	}
	return nil
}

// Concatenate joins the clip files in order into outPath using the concat
// demuxer. Inputs must share a codec, which Extract guarantees.
func (t *Tool) Concatenate(ctx context.Context, clipPaths []string, outPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("nothing to concatenate")
	}

	listPath := filepath.Join(filepath.Dir(outPath), "concat.txt")
	if err := os.WriteFile(listPath, []byte(concatList(clipPaths)), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listPath)

	cmd := exec.CommandContext(ctx, t.ffmpeg,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outPath,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg concat %d clips: %w\n%s", len(clipPaths), err, string(b))
	}
	return nil
}

// ProbeDuration returns the container duration in seconds.
func (t *Tool) ProbeDuration(ctx context.Context, source string) (float64, error) {
	cmd := exec.CommandContext(ctx, t.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		source,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return sec, nil
}

// concatList renders the concat demuxer file. Single quotes in paths are
// escaped per the demuxer's quoting rules.
func concatList(paths []string) string {
	var b strings.Builder
	for _, p := range paths {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(p, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

func fmtSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
