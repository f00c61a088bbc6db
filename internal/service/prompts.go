package service

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/msomdec/care-practice/internal/domain"
	"github.com/msomdec/care-practice/internal/llm"
)

const (
	openingMaxTokens   = 140
	nextLineMaxTokens  = 200
	personaTemperature = 0.7

	microMaxTokens   = 220
	microTemperature = 0.3

	sessionFeedbackMaxTokens   = 800
	sessionFeedbackTemperature = 0.4
)

func personaPrompt(scn Scenario) string {
	return fmt.Sprintf(`You are ROLE-PLAYING as a mental health seeker (client).
Background: %s

Guidelines:
- Respond in this style: %s
- Stay in character. Do NOT give advice or diagnoses or analyze the counselor.
- Keep each reply to 1-3 sentences about concrete feelings and situations.
- Do NOT introduce self-harm or violence; if asked, deny imminent danger.
- No medical or legal instruction. You are ONLY the client.
`, scn.Background, scn.Style)
}

func openingPrompt(scn Scenario) string {
	return personaPrompt(scn) + "Task: Start the conversation in 1-2 sentences about how you're feeling."
}

func nextClientPrompt(scn Scenario, prevClient, reply string) string {
	return personaPrompt(scn) +
		"Context: Previous client message: " + prevClient + "\n" +
		"Counselor replied: " + reply + "\n\n" +
		"Task: Reply as the client in 1-3 sentences, staying in character."
}

const microFeedbackInstructions = `You are a counseling skills coach giving quick feedback on ONE counselor message.

Return STRICT JSON with fields:
{
  "strength_title": "Empathy|Reflection|Validation|Open Question|Listening",
  "strength_note": "one short sentence (<=18 words) praising the best thing",
  "feedback_title": "Questions|Validation|Empathy|Refocus|Suggesting",
  "feedback_note": "one short sentence (<=18 words) with a concrete improvement tip",
  "alt_response": "optional 1-2 sentence better rewrite; neutral tone"
}
Output JSON only.`

func microFeedbackPrompt(prior, reply string) string {
	return microFeedbackInstructions + "\n\nClient message:\n\"\"\"" + strings.TrimSpace(prior) +
		"\"\"\"\n\nCounselor message:\n\"\"\"" + strings.TrimSpace(reply) + "\"\"\""
}

// fallbackMicroFeedback is used when the coach reply is missing or unusable.
func fallbackMicroFeedback() *domain.MicroFeedback {
	return &domain.MicroFeedback{
		StrengthTitle: "Strengths",
		StrengthNote:  "Nice listening stance.",
		FeedbackTitle: "Feedback",
		FeedbackNote:  "Ask a gentle open question.",
	}
}

// ParseMicroFeedback reads a coach reply, filling any missing field with
// a default note.
func ParseMicroFeedback(reply string) *domain.MicroFeedback {
	raw := llm.ExtractJSON(reply)
	var data struct {
		StrengthTitle string `json:"strength_title"`
		StrengthNote  string `json:"strength_note"`
		FeedbackTitle string `json:"feedback_title"`
		FeedbackNote  string `json:"feedback_note"`
		AltResponse   string `json:"alt_response"`
	}
	if raw == "" || json.Unmarshal([]byte(raw), &data) != nil {
		return fallbackMicroFeedback()
	}
	return &domain.MicroFeedback{
		StrengthTitle: orDefault(data.StrengthTitle, "Strengths"),
		StrengthNote:  orDefault(data.StrengthNote, "Good use of a client-centered skill."),
		FeedbackTitle: orDefault(data.FeedbackTitle, "Feedback"),
		FeedbackNote:  orDefault(data.FeedbackNote, "Try an open question to invite more detail."),
		AltResponse:   strings.TrimSpace(data.AltResponse),
	}
}

const sessionFeedbackInstructions = `You are a supervisor evaluating the ENTIRE counseling conversation (multiple turns).
Assess ONLY the counselor's replies in aggregate. Provide concise, actionable feedback.

Output STRICTLY in Markdown with:

## Skill Ratings (session-level)
- Empathy (✔/✖, 0–5): <evidence>
- Reflection (✔/✖, 0–5): <evidence>
- Open Questions (✔/✖, 0–5): <evidence>
- Validation / Non-judgment (✔/✖, 0–5): <evidence>
- Advice Timing (OK/Too early, 0–5): <evidence>

## What Worked
- <1–3 bullets>

## What To Improve
- <2–4 bullets>

## Exemplars (rewrite the counselor's MOST RECENT reply)
- Concise: <1–2 sentences>
- Expanded: <3–5 sentences>

## Risk Flag
- Any risk/crisis language? (Yes/No) If yes, explain.`

func sessionFeedbackPrompt(scn Scenario, client, counselor []string) string {
	return sessionFeedbackInstructions + "\n\nScenario: " + scn.Name +
		"\n\nTranscript:\n" + transcript(client, counselor)
}

// transcript numbers each exchange as "Client i" / "Counselor i".
func transcript(client, counselor []string) string {
	var lines []string
	for i, c := range client {
		lines = append(lines, fmt.Sprintf("Client %d: %s", i+1, c))
		if i < len(counselor) {
			lines = append(lines, fmt.Sprintf("Counselor %d: %s", i+1, counselor[i]))
		}
	}
	return strings.Join(lines, "\n")
}

var (
	ratingLine   = regexp.MustCompile(`(?i)^-?\s*(Empathy|Reflection|Open Questions|Validation\s*/\s*Non-judgment)\s*\((✔|✖)(?:\s*,\s*([0-5]))?`)
	adviceLine   = regexp.MustCompile(`(?i)^-?\s*Advice\s*Timing\s*\((OK|Too\s*early)(?:\s*,\s*([0-5]))?`)
	exemplarHead = regexp.MustCompile(`(?i)^##\s*Exemplars`)
)

// ParseSessionFeedback extracts the skill ratings, the advice-timing
// verdict and the exemplar word count from a session report.
func ParseSessionFeedback(md string) *domain.SessionFeedback {
	fb := &domain.SessionFeedback{
		Markdown:    md,
		Ratings:     make(map[string]domain.SkillRating),
		GeneratedAt: time.Now().UTC(),
	}

	capture := false
	for _, raw := range strings.Split(md, "\n") {
		line := strings.TrimSpace(raw)

		if exemplarHead.MatchString(line) {
			capture = true
			continue
		}
		if capture && strings.HasPrefix(line, "## ") {
			capture = false
		}
		if capture {
			fb.ExemplarWords += len(strings.Fields(line))
		}

		if m := ratingLine.FindStringSubmatch(line); m != nil {
			name := m[1]
			if strings.HasPrefix(strings.ToLower(name), "validation") {
				name = "Validation"
			}
			r := domain.SkillRating{Demonstrated: m[2] == "✔"}
			if m[3] != "" {
				r.Score, _ = strconv.Atoi(m[3])
			}
			fb.Ratings[name] = r
			continue
		}
		if m := adviceLine.FindStringSubmatch(line); m != nil {
			ok := strings.HasPrefix(strings.ToLower(m[1]), "ok")
			r := domain.SkillRating{Demonstrated: ok}
			if m[2] != "" {
				r.Score, _ = strconv.Atoi(m[2])
			}
			fb.Ratings["Advice Timing"] = r
			if ok {
				fb.AdviceTiming = "ok"
			} else {
				fb.AdviceTiming = "too_early"
			}
		}
	}
	return fb
}

func orDefault(v, def string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return def
}
