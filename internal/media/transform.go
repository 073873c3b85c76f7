// Package media turns the platform's recording stream into the MP3 the
// transcription provider accepts, applying a playback-speed filter so long
// calls transcribe faster.
package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"meeting-insights-go/internal/logger"
)

// Transformer converts a media source into an audio file on disk.
type Transformer interface {
	Transform(ctx context.Context, mediaURL, outPath string, speed float64) error
}

// RunFunc executes an external command and returns its combined output.
// Swappable in tests.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// FFmpeg extracts audio via the ffmpeg binary. The cookie header is forwarded
// so authenticated stream URLs keep working inside the transcoder.
type FFmpeg struct {
	Run          RunFunc
	CookieHeader string
	Log          *logger.Logger
}

func NewFFmpeg(cookieHeader string, log *logger.Logger) *FFmpeg {
	return &FFmpeg{Run: execRun, CookieHeader: cookieHeader, Log: log}
}

// Transform writes outPath from mediaURL. An existing output file is reused
// as-is: artifact names are deterministic, so a file that exists is the
// result of an earlier successful conversion of the same input.
func (f *FFmpeg) Transform(ctx context.Context, mediaURL, outPath string, speed float64) error {
	if _, err := os.Stat(outPath); err == nil {
		if f.Log != nil {
			f.Log.WithField("out", outPath).Info("audio already converted, skipping")
		}
		return nil
	}

	args := []string{"-y"}
	if f.CookieHeader != "" {
		args = append(args, "-headers", "Cookie: "+f.CookieHeader)
	}
	args = append(args,
		"-user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36",
		"-i", mediaURL,
		"-vn",
		"-filter:a", "atempo="+FormatSpeed(speed),
		"-acodec", "libmp3lame",
		"-ab", "192k",
		outPath,
	)

	out, err := f.Run(ctx, "ffmpeg", args...)
	if err != nil {
		// never leave a truncated file behind for a later run to misread
		os.Remove(outPath)
		return fmt.Errorf("ffmpeg audio transform: %w: %s", err, string(out))
	}
	return nil
}

// FormatSpeed renders a speed multiplier without trailing zeros ("1.5", "2").
func FormatSpeed(speed float64) string {
	return strconv.FormatFloat(speed, 'f', -1, 64)
}
