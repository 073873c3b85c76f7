package types

import "encoding/json"

// WorkItem is one entry of the batch work list. Ids are supplied by the
// platform export and are stable across runs.
type WorkItem struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Participant is a named attendee of a recorded call.
type Participant struct {
	SpeakerID string `json:"speaker_id"`
	Name      string `json:"name"`
	IsHost    bool   `json:"is_host"`
}

// Topic is one summary topic with its bullet points.
type Topic struct {
	Title  string   `json:"title"`
	Points []string `json:"points"`
}

// Summary holds the platform-provided call summary. Fields the platform did
// not fill stay as empty slices, never nil in serialized output.
type Summary struct {
	Purpose      string   `json:"purpose"`
	KeyTakeaways []string `json:"key_takeaways"`
	Topics       []Topic  `json:"topics"`
	NextSteps    []string `json:"next_steps"`
}

// Question is one interrogative utterance detected in the transcript.
type Question struct {
	SpeakerID string `json:"speaker_id"`
	Question  string `json:"question"`
}

// RawMetadata is the platform-native view of one recording, as returned by
// the fetcher. RawPage keeps the unparsed page for audit fallback; it is
// written out verbatim and never reinterpreted.
type RawMetadata struct {
	ID            string        `json:"id"`
	URL           string        `json:"url"`
	ShareURL      string        `json:"share_url,omitempty"`
	Title         string        `json:"title"`
	Date          string        `json:"date"`
	Duration      string        `json:"duration"`
	HostName      string        `json:"host_name,omitempty"`
	CompanyDomain string        `json:"company_domain,omitempty"`
	Participants  []Participant `json:"participants"`
	Summary       *Summary      `json:"summary,omitempty"`
	MediaURL      string        `json:"media_url"`
	RawPage       []byte        `json:"-"`
}

// Utterance is a single speaker turn from the transcription provider.
// SpeakerLabel is provider-local ("A", "B", ...), not a real name.
type Utterance struct {
	SpeakerLabel string  `json:"speaker_label"`
	Text         string  `json:"text"`
	StartMs      int64   `json:"start_ms"`
	EndMs        int64   `json:"end_ms"`
	Confidence   float64 `json:"confidence"`
}

// TranscriptionResult is the completed output of one transcription job.
// Diagnostic preserves the provider's final status payload for audit.
type TranscriptionResult struct {
	Utterances []Utterance     `json:"utterances"`
	Text       string          `json:"text"`
	Diagnostic json.RawMessage `json:"-"`
}

// UnifiedRecord is the normalized call record persisted per item, merging
// platform metadata with transcription output.
type UnifiedRecord struct {
	ID             string        `json:"id"`
	URL            string        `json:"url"`
	ShareURL       string        `json:"share_url,omitempty"`
	Title          string        `json:"title"`
	Date           string        `json:"date"`
	Duration       string        `json:"duration"`
	HostName       string        `json:"host_name"`
	CompanyDomain  string        `json:"company_domain,omitempty"`
	Participants   []Participant `json:"participants"`
	Summary        Summary       `json:"summary"`
	TranscriptText string        `json:"transcript_text"`
	Questions      []Question    `json:"questions"`
	ExtractedAt    string        `json:"extracted_at"`
	Status         string        `json:"status"`
}
