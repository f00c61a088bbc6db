package domain

import (
	"context"
	"strings"
)

// Speaker is the normalized role of a corpus utterance.
type Speaker string

const (
	SpeakerClient    Speaker = "client"
	SpeakerCounselor Speaker = "counselor"
	SpeakerSystem    Speaker = "system"
)

// NormalizeSpeaker maps the role labels found in source datasets onto
// client, counselor or system.
func NormalizeSpeaker(role string) Speaker {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "patient", "seeker", "user", "client", "human":
		return SpeakerClient
	case "counselor", "counsellor", "assistant", "therapist":
		return SpeakerCounselor
	}
	return SpeakerSystem
}

// Utterance is one line of a recorded dialogue.
type Utterance struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// CorpusItem is one recorded dialogue session that raters grade.
type CorpusItem struct {
	ID    string      `json:"id"`
	Turns []Utterance `json:"turns"`
}

// CorpusSource serves the configured datasets, keyed by culture label.
type CorpusSource interface {
	Cultures() []string
	DatasetFile(culture string) (string, error)
	Items(ctx context.Context, culture string) ([]CorpusItem, error)
}
