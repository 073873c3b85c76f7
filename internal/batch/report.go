package batch

import "time"

// Stage names used in failure reporting.
const (
	StageFetch      = "fetch"
	StageTransform  = "transform"
	StageTranscribe = "transcribe"
	StageReconcile  = "reconcile"
	StagePersist    = "persist"
)

// Failure describes one item that did not complete, with the stage it died
// in and, for transcription, the terminal job state.
type Failure struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Stage  string `json:"stage"`
	State  string `json:"state,omitempty"`
	Reason string `json:"reason"`
}

// Report is the final outcome of one batch run.
type Report struct {
	RunID        string        `json:"run_id"`
	Total        int           `json:"total"`
	Completed    int           `json:"completed"`
	Skipped      int           `json:"skipped"`
	NotAttempted int           `json:"not_attempted"`
	Halted       bool          `json:"halted"`
	CompletedIDs []string      `json:"completed_ids"`
	Failures     []Failure     `json:"failures"`
	Elapsed      time.Duration `json:"elapsed_ns"`
}
