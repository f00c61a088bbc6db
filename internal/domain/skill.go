package domain

// Skill is one key of the fixed counseling skill vocabulary.
type Skill string

const (
	SkillEmpathy            Skill = "empathy"
	SkillReflection         Skill = "reflection"
	SkillValidation         Skill = "validation"
	SkillOpenQuestion       Skill = "open_question"
	SkillSuggestion         Skill = "suggestion"
	SkillCulturalResponsive Skill = "cultural_responsiveness"
	SkillStereotypeRisk     Skill = "stereotype_risk"
	SkillGoalAlignment      Skill = "goal_alignment"
	SkillCoherence          Skill = "coherence"
	SkillSafetyResponse     Skill = "safety_response"
)

// Skills is the full vocabulary in display order.
var Skills = []Skill{
	SkillEmpathy,
	SkillReflection,
	SkillValidation,
	SkillOpenQuestion,
	SkillSuggestion,
	SkillCulturalResponsive,
	SkillStereotypeRisk,
	SkillGoalAlignment,
	SkillCoherence,
	SkillSafetyResponse,
}

// IsSkill reports whether s belongs to the vocabulary.
func IsSkill(s string) bool {
	for _, k := range Skills {
		if string(k) == s {
			return true
		}
	}
	return false
}

// SkillFlags maps each skill to 0 or 1 for a single counselor turn.
type SkillFlags map[Skill]int

// NewSkillFlags returns a flag set with every skill present and set to 0.
func NewSkillFlags() SkillFlags {
	f := make(SkillFlags, len(Skills))
	for _, k := range Skills {
		f[k] = 0
	}
	return f
}

// Has reports whether the skill is flagged. Missing keys count as 0.
func (f SkillFlags) Has(s Skill) bool {
	return f[s] == 1
}

// Set marks the skill as present.
func (f SkillFlags) Set(s Skill) {
	f[s] = 1
}
