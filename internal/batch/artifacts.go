package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"meeting-insights-go/internal/media"
)

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// SanitizeFilename makes a call title safe to use as a file name. The result
// is deterministic, so reruns overwrite a prior attempt's artifacts wholesale
// instead of leaving mismatched partial files around.
func SanitizeFilename(title string) string {
	return strings.TrimSpace(unsafeFilenameChars.ReplaceAllString(title, "_"))
}

// artifactPaths are the per-item output files, all derived from the title.
type artifactPaths struct {
	audio      string
	transcript string
	diagnostic string
	page       string
	record     string
}

func itemArtifacts(outputDir, title string, speed float64) artifactPaths {
	base := SanitizeFilename(title)
	join := func(suffix string) string { return filepath.Join(outputDir, base+suffix) }
	return artifactPaths{
		audio:      join(fmt.Sprintf("_%sx.mp3", media.FormatSpeed(speed))),
		transcript: join("_transcript.txt"),
		diagnostic: join("_transcript_details.json"),
		page:       join("_page.html"),
		record:     join("_call.json"),
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
