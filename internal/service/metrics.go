package service

import "github.com/msomdec/care-practice/internal/domain"

// Rates returns, per skill, the fraction of turns where it was flagged.
// The denominator is max(1, len(seq)), so an empty history yields 0 for
// every key. A nil keys slice means the full vocabulary.
func Rates(seq []domain.SkillFlags, keys []domain.Skill) map[domain.Skill]float64 {
	if keys == nil {
		keys = domain.Skills
	}
	n := max(1, len(seq))
	out := make(map[domain.Skill]float64, len(keys))
	for _, k := range keys {
		out[k] = float64(CountPresent(seq, k)) / float64(n)
	}
	return out
}

// Timeseries returns the running mean of each skill: element i is the
// fraction of turns 0..i where the skill was flagged.
func Timeseries(seq []domain.SkillFlags, keys []domain.Skill) map[domain.Skill][]float64 {
	if keys == nil {
		keys = domain.Skills
	}
	out := make(map[domain.Skill][]float64, len(keys))
	for _, k := range keys {
		series := make([]float64, len(seq))
		sum := 0
		for i, flags := range seq {
			if flags.Has(k) {
				sum++
			}
			series[i] = float64(sum) / float64(i+1)
		}
		out[k] = series
	}
	return out
}

// CountPresent counts turns where the skill was flagged.
func CountPresent(seq []domain.SkillFlags, skill domain.Skill) int {
	n := 0
	for _, flags := range seq {
		if flags.Has(skill) {
			n++
		}
	}
	return n
}

// CountAbsent counts turns where the skill was not flagged. It is a
// separate query, not len(seq) minus CountPresent at the call site.
func CountAbsent(seq []domain.SkillFlags, skill domain.Skill) int {
	n := 0
	for _, flags := range seq {
		if !flags.Has(skill) {
			n++
		}
	}
	return n
}

// SkillTally is the per-skill summary shown on the results view.
type SkillTally struct {
	Skill   domain.Skill
	Rate    float64
	Present int
	Absent  int
}

// Tallies summarizes every skill in vocabulary order.
func Tallies(seq []domain.SkillFlags) []SkillTally {
	rates := Rates(seq, nil)
	out := make([]SkillTally, 0, len(domain.Skills))
	for _, k := range domain.Skills {
		out = append(out, SkillTally{
			Skill:   k,
			Rate:    rates[k],
			Present: CountPresent(seq, k),
			Absent:  CountAbsent(seq, k),
		})
	}
	return out
}
