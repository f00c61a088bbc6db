package domain_test

import (
	"testing"

	"github.com/msomdec/care-practice/internal/domain"
)

func TestNormalizeSpeaker(t *testing.T) {
	cases := map[string]domain.Speaker{
		"patient":   domain.SpeakerClient,
		"Seeker":    domain.SpeakerClient,
		"USER":      domain.SpeakerClient,
		" client ":  domain.SpeakerClient,
		"human":     domain.SpeakerClient,
		"counselor": domain.SpeakerCounselor,
		"assistant": domain.SpeakerCounselor,
		"Therapist": domain.SpeakerCounselor,
		"narrator":  domain.SpeakerSystem,
		"":          domain.SpeakerSystem,
	}
	for in, want := range cases {
		if got := domain.NormalizeSpeaker(in); got != want {
			t.Fatalf("NormalizeSpeaker(%q) = %q, want %q", in, got, want)
		}
	}
}
