package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAuthExpired means the platform rejected the session material. Every
// remaining item would fail the same way, so the orchestrator stops taking
// new work when it sees this.
var ErrAuthExpired = errors.New("platform session expired")

// ErrNotFound means the platform has no recording for the item's id.
// Per-item failure only.
var ErrNotFound = errors.New("recording not found")

// StoreCorruptError reports an unreadable progress file. The store recovers
// by starting empty; the caller is expected to surface a warning.
type StoreCorruptError struct {
	Path string
	Err  error
}

func (e *StoreCorruptError) Error() string {
	return fmt.Sprintf("progress file %s is corrupt: %v", e.Path, e.Err)
}

func (e *StoreCorruptError) Unwrap() error { return e.Err }

// ReconciliationError means RawMetadata lacks fields without which no usable
// record can be produced.
type ReconciliationError struct {
	Missing []string
}

func (e *ReconciliationError) Error() string {
	return "metadata missing required fields: " + strings.Join(e.Missing, ", ")
}
