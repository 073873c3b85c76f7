package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// QuestionPatterns configures interrogative detection in transcripts.
// LeadWords are lowercase words or phrases that open a question; Fillers are
// discourse words stripped from the front of an utterance before matching.
type QuestionPatterns struct {
	LeadWords []string `yaml:"lead_words"`
	Fillers   []string `yaml:"fillers"`
}

// DefaultQuestionPatterns covers Portuguese (the platform's primary call
// language) plus English.
func DefaultQuestionPatterns() QuestionPatterns {
	return QuestionPatterns{
		LeadWords: []string{
			"o que", "por que", "pra que", "para que", "qual", "quais",
			"quando", "quanto", "quanta", "quantos", "quantas", "quem",
			"como", "onde", "cadê", "será que", "você pode", "vocês podem",
			"what", "why", "which", "when", "who", "how", "where",
			"can you", "could you", "do you", "does", "is there", "are there",
		},
		Fillers: []string{
			"e", "mas", "então", "aí", "bom", "tá", "ok", "olha", "assim",
			"so", "well", "okay", "right", "um", "uh", "hmm",
		},
	}
}

// LoadQuestionPatterns reads a YAML patterns file. Empty sections fall back
// to the defaults so a file can override just one list.
func LoadQuestionPatterns(path string) (QuestionPatterns, error) {
	def := DefaultQuestionPatterns()
	data, err := os.ReadFile(path)
	if err != nil {
		return def, fmt.Errorf("read question patterns: %w", err)
	}
	var p QuestionPatterns
	if err := yaml.Unmarshal(data, &p); err != nil {
		return def, fmt.Errorf("parse question patterns: %w", err)
	}
	if len(p.LeadWords) == 0 {
		p.LeadWords = def.LeadWords
	}
	if len(p.Fillers) == 0 {
		p.Fillers = def.Fillers
	}
	return p, nil
}
