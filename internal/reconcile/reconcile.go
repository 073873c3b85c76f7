// Package reconcile merges the platform's call metadata with the
// transcription provider's output into one normalized record. The merge is a
// pure transformation: identical inputs produce identical output except for
// the extraction timestamp.
package reconcile

import (
	"fmt"
	"strings"
	"time"

	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/types"
)

// Engine holds the reconciliation configuration. Now is injectable so tests
// can pin the extraction timestamp.
type Engine struct {
	Patterns config.QuestionPatterns
	Now      func() time.Time
}

func NewEngine(patterns config.QuestionPatterns) *Engine {
	return &Engine{Patterns: patterns, Now: time.Now}
}

// Reconcile builds the unified record. It fails only when metadata lacks the
// minimum identity fields; everything else degrades to empty values.
func (e *Engine) Reconcile(meta *types.RawMetadata, tr *types.TranscriptionResult) (*types.UnifiedRecord, error) {
	var missing []string
	if meta.ID == "" {
		missing = append(missing, "id")
	}
	if meta.Title == "" {
		missing = append(missing, "title")
	}
	if meta.URL == "" {
		missing = append(missing, "url")
	}
	if len(missing) > 0 {
		return nil, &types.ReconciliationError{Missing: missing}
	}

	names := mapSpeakers(meta.Participants, tr.Utterances)

	rec := &types.UnifiedRecord{
		ID:             meta.ID,
		URL:            meta.URL,
		ShareURL:       meta.ShareURL,
		Title:          meta.Title,
		Date:           meta.Date,
		Duration:       meta.Duration,
		HostName:       meta.HostName,
		CompanyDomain:  meta.CompanyDomain,
		Participants:   buildParticipants(meta.Participants, tr.Utterances, names),
		Summary:        buildSummary(meta.Summary),
		TranscriptText: renderTranscript(tr, names),
		Questions:      detectQuestions(tr.Utterances, e.Patterns),
		ExtractedAt:    e.Now().UTC().Format(time.RFC3339),
		Status:         "extracted",
	}
	return rec, nil
}

// mapSpeakers pairs provider labels with participant names by order of first
// appearance, host first. The mapping is total: labels beyond the roster get
// a synthetic "Speaker <label>" name.
func mapSpeakers(participants []types.Participant, utterances []types.Utterance) map[string]types.Participant {
	ordered := hostFirst(participants)
	names := map[string]types.Participant{}
	next := 0
	for _, u := range utterances {
		if _, seen := names[u.SpeakerLabel]; seen {
			continue
		}
		if next < len(ordered) {
			names[u.SpeakerLabel] = ordered[next]
			next++
		} else {
			names[u.SpeakerLabel] = types.Participant{
				SpeakerID: u.SpeakerLabel,
				Name:      fmt.Sprintf("Speaker %s", u.SpeakerLabel),
			}
		}
	}
	return names
}

func hostFirst(participants []types.Participant) []types.Participant {
	ordered := make([]types.Participant, 0, len(participants))
	for _, p := range participants {
		if p.IsHost {
			ordered = append(ordered, p)
		}
	}
	for _, p := range participants {
		if !p.IsHost {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

// buildParticipants lists one entry per label seen in the transcript (in
// order of first appearance), then appends roster members that never spoke.
func buildParticipants(roster []types.Participant, utterances []types.Utterance, names map[string]types.Participant) []types.Participant {
	out := []types.Participant{}
	matched := map[string]bool{}
	seen := map[string]bool{}
	for _, u := range utterances {
		if seen[u.SpeakerLabel] {
			continue
		}
		seen[u.SpeakerLabel] = true
		p := names[u.SpeakerLabel]
		matched[p.Name] = true
		out = append(out, types.Participant{
			SpeakerID: u.SpeakerLabel,
			Name:      p.Name,
			IsHost:    p.IsHost,
		})
	}
	for _, p := range roster {
		if matched[p.Name] {
			continue
		}
		out = append(out, p)
	}
	return out
}

func buildSummary(s *types.Summary) types.Summary {
	out := types.Summary{
		KeyTakeaways: []string{},
		Topics:       []types.Topic{},
		NextSteps:    []string{},
	}
	if s == nil {
		return out
	}
	out.Purpose = s.Purpose
	if len(s.KeyTakeaways) > 0 {
		out.KeyTakeaways = s.KeyTakeaways
	}
	if len(s.Topics) > 0 {
		out.Topics = s.Topics
	}
	if len(s.NextSteps) > 0 {
		out.NextSteps = s.NextSteps
	}
	return out
}

func renderTranscript(tr *types.TranscriptionResult, names map[string]types.Participant) string {
	if len(tr.Utterances) == 0 {
		return tr.Text
	}
	var b strings.Builder
	for _, u := range tr.Utterances {
		b.WriteString(names[u.SpeakerLabel].Name)
		b.WriteString(": ")
		b.WriteString(u.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// detectQuestions classifies utterances, in transcript order, as questions
// when they end with a question mark or open with an interrogative lead word
// after filler trimming.
func detectQuestions(utterances []types.Utterance, patterns config.QuestionPatterns) []types.Question {
	out := []types.Question{}
	for _, u := range utterances {
		if IsQuestion(u.Text, patterns) {
			out = append(out, types.Question{
				SpeakerID: u.SpeakerLabel,
				Question:  strings.TrimSpace(u.Text),
			})
		}
	}
	return out
}

// IsQuestion reports whether a single utterance reads as interrogative.
func IsQuestion(text string, patterns config.QuestionPatterns) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if strings.HasSuffix(trimmed, "?") {
		return true
	}

	lowered := strings.ToLower(trimmed)
	lowered = strings.TrimRight(lowered, ".!…")
	words := strings.Fields(lowered)

	// strip leading fillers ("so", "então", ...) before matching lead words
	for len(words) > 0 {
		w := strings.Trim(words[0], ",;:")
		if !contains(patterns.Fillers, w) {
			break
		}
		words = words[1:]
	}
	if len(words) == 0 {
		return false
	}

	cleaned := strings.Join(words, " ")
	for _, lead := range patterns.LeadWords {
		if cleaned == lead || strings.HasPrefix(cleaned, lead+" ") {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
