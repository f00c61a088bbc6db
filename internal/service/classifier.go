package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/msomdec/care-practice/internal/domain"
	"github.com/msomdec/care-practice/internal/llm"
	"github.com/msomdec/care-practice/internal/telemetry"
)

const (
	classifyMaxTokens   = 120
	classifyTemperature = 0.1
)

// skillAliases maps labels models commonly return onto the vocabulary.
var skillAliases = map[string]domain.Skill{
	"open questions":            domain.SkillOpenQuestion,
	"open question":             domain.SkillOpenQuestion,
	"open_questions":            domain.SkillOpenQuestion,
	"question":                  domain.SkillOpenQuestion,
	"advice":                    domain.SkillSuggestion,
	"suggestions":               domain.SkillSuggestion,
	"suggesting":                domain.SkillSuggestion,
	"culture":                   domain.SkillCulturalResponsive,
	"cultural":                  domain.SkillCulturalResponsive,
	"cultural responsiveness":   domain.SkillCulturalResponsive,
	"stereotype":                domain.SkillStereotypeRisk,
	"stereotyping":              domain.SkillStereotypeRisk,
	"goal":                      domain.SkillGoalAlignment,
	"goals":                     domain.SkillGoalAlignment,
	"safety":                    domain.SkillSafetyResponse,
	"validation / non-judgment": domain.SkillValidation,
	"non-judgment":              domain.SkillValidation,
	"empathic":                  domain.SkillEmpathy,
	"reflections":               domain.SkillReflection,
	"reflective listening":      domain.SkillReflection,
}

// Classification is the outcome of scoring one counselor turn.
// Degraded is set when the flags are the all-zero fallback.
type Classification struct {
	Flags    domain.SkillFlags
	Degraded bool
}

// Classifier scores counselor utterances against the skill vocabulary.
// It never fails: an unusable model reply yields all-zero flags.
type Classifier struct {
	gen    llm.Generator
	logger *slog.Logger
}

// NewClassifier creates a Classifier.
func NewClassifier(gen llm.Generator, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{gen: gen, logger: logger}
}

// Classify scores utterance given the client line it answers.
func (c *Classifier) Classify(ctx context.Context, utterance, priorClientUtterance string) Classification {
	out, err := c.gen.Generate(ctx, classifyPrompt(utterance, priorClientUtterance), classifyMaxTokens, classifyTemperature)
	if err != nil {
		return c.degraded("generation failed", err)
	}

	flags, err := ParseSkillFlags(out)
	if err != nil {
		return c.degraded("unparsable classification", err)
	}
	return Classification{Flags: flags}
}

func (c *Classifier) degraded(reason string, err error) Classification {
	telemetry.ClassificationsDegraded.Inc()
	c.logger.Warn("classification degraded, using all-zero flags", "reason", reason, "error", err)
	return Classification{Flags: domain.NewSkillFlags(), Degraded: true}
}

// ParseSkillFlags reads the first JSON object of a model reply into a
// complete flag set. Keys are matched case-insensitively, aliases are
// resolved and unknown keys dropped. Missing skills are 0.
func ParseSkillFlags(reply string) (domain.SkillFlags, error) {
	raw := llm.ExtractJSON(reply)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in reply")
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}

	flags := domain.NewSkillFlags()
	for key, val := range data {
		skill, ok := resolveSkill(key)
		if !ok {
			continue
		}
		if truthy(val) {
			flags.Set(skill)
		}
	}
	return flags, nil
}

func resolveSkill(key string) (domain.Skill, bool) {
	k := strings.ToLower(strings.TrimSpace(key))
	if domain.IsSkill(k) {
		return domain.Skill(k), true
	}
	if s, ok := skillAliases[k]; ok {
		return s, true
	}
	if u := strings.ReplaceAll(k, " ", "_"); domain.IsSkill(u) {
		return domain.Skill(u), true
	}
	return "", false
}

// truthy accepts only 1, true, "1" and "true". Fractions, negatives
// and other numbers are not set.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t == 1
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s == "1" || s == "true"
	}
	return false
}

func classifyPrompt(utterance, prior string) string {
	keys := make([]string, len(domain.Skills))
	for i, k := range domain.Skills {
		keys[i] = fmt.Sprintf("%q:0", k)
	}
	var b strings.Builder
	b.WriteString("You are rating counseling micro-skills on a single counselor message.\n")
	b.WriteString("Return STRICT JSON with 0/1 flags and no prose.\n")
	b.WriteString("safety_response means the counselor checked on safety or offered crisis resources.\n")
	b.WriteString("stereotype_risk means the reply assumes something about the client from their culture or group.\n")
	b.WriteString("Output ONLY: {" + strings.Join(keys, ",") + "}\n\n")
	if prior != "" {
		b.WriteString("Client: " + prior + "\n")
	}
	b.WriteString("Counselor: " + utterance + "\nJSON:")
	return b.String()
}
