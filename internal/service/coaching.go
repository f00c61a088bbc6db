package service

import (
	"regexp"
	"sort"

	"github.com/msomdec/care-practice/internal/domain"
)

// Warning is a coaching flag attached to a counselor turn.
type Warning string

const (
	WarnMissingSafety     Warning = "missing_safety_response"
	WarnOverAdvice        Warning = "over_advice_streak"
	WarnNoOpenQuestion    Warning = "no_open_question_streak"
	WarnMissingValidation Warning = "missing_validation_after_emotion"
	WarnStereotypeRisk    Warning = "stereotype_risk"
)

// Severity is how prominently a warning is shown.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityAdvisory Severity = "advisory"
)

// Severity returns critical for a missed safety response, advisory otherwise.
func (w Warning) Severity() Severity {
	if w == WarnMissingSafety {
		return SeverityCritical
	}
	return SeverityAdvisory
}

// Message is the coaching text shown to the counselor.
func (w Warning) Message() string {
	switch w {
	case WarnMissingSafety:
		return "The client mentioned risk. Check on safety directly and share crisis resources (US: 988)."
	case WarnOverAdvice:
		return "Several suggestions in a row. Slow down and explore before advising."
	case WarnNoOpenQuestion:
		return "No open question for a while. Invite the client to say more."
	case WarnMissingValidation:
		return "The client expressed emotion. Validate the feeling before moving on."
	case WarnStereotypeRisk:
		return "This reply may rely on a cultural stereotype."
	}
	return string(w)
}

// CoachingRules holds the streak thresholds.
type CoachingRules struct {
	AdviceStreak    int
	OpenQuestionGap int
}

// DefaultCoachingRules returns the standard thresholds.
func DefaultCoachingRules() CoachingRules {
	return CoachingRules{AdviceStreak: 2, OpenQuestionGap: 3}
}

// Heuristic vocabularies. Matching is case-insensitive and whole-word;
// these are deliberately small and will miss paraphrases.
var (
	riskPattern = regexp.MustCompile(
		`(?i)\b(suicide|suicidal|kill myself|self[- ]harm|end it|end my life|overdose|hurt myself)\b`)
	emotionPattern = regexp.MustCompile(
		`(?i)\b(sad|depressed|anxious|angry|lonely|alone|hopeless|overwhelmed|scared|afraid|hurt|upset|` +
			`frustrated|worthless|stressed|crying|ashamed|guilty|abandoned|empty|exhausted|nervous)\b`)
)

// MentionsRisk reports whether text contains self-harm or crisis language.
func MentionsRisk(text string) bool {
	return riskPattern.MatchString(text)
}

// MentionsEmotion reports whether text names an emotional state.
func MentionsEmotion(text string) bool {
	return emotionPattern.MatchString(text)
}

// TurnWarnings computes the warnings for every counselor turn. Turn i is
// paired with client[i], the line it answered. A streak rule tags the
// k-th turn of the streak and every later turn while it continues.
// Each set is ordered with critical warnings first.
func TurnWarnings(client, counselor []string, labels []domain.SkillFlags, rules CoachingRules) [][]Warning {
	if rules.AdviceStreak < 1 {
		rules.AdviceStreak = 1
	}
	if rules.OpenQuestionGap < 1 {
		rules.OpenQuestionGap = 1
	}

	out := make([][]Warning, len(counselor))
	adviceRun, noQuestionRun := 0, 0
	for i := range counselor {
		var flags domain.SkillFlags
		if i < len(labels) {
			flags = labels[i]
		}
		var prior string
		if i < len(client) {
			prior = client[i]
		}

		var ws []Warning

		if flags.Has(domain.SkillSuggestion) {
			adviceRun++
		} else {
			adviceRun = 0
		}
		if adviceRun >= rules.AdviceStreak {
			ws = append(ws, WarnOverAdvice)
		}

		if !flags.Has(domain.SkillOpenQuestion) {
			noQuestionRun++
		} else {
			noQuestionRun = 0
		}
		if noQuestionRun >= rules.OpenQuestionGap {
			ws = append(ws, WarnNoOpenQuestion)
		}

		if MentionsEmotion(prior) && !flags.Has(domain.SkillValidation) {
			ws = append(ws, WarnMissingValidation)
		}
		if MentionsRisk(prior) && !flags.Has(domain.SkillSafetyResponse) {
			ws = append(ws, WarnMissingSafety)
		}
		if flags.Has(domain.SkillStereotypeRisk) {
			ws = append(ws, WarnStereotypeRisk)
		}

		sort.SliceStable(ws, func(a, b int) bool {
			return ws[a].Severity() == SeverityCritical && ws[b].Severity() != SeverityCritical
		})
		out[i] = ws
	}
	return out
}
