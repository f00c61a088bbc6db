package service_test

import (
	"testing"

	"github.com/msomdec/care-practice/internal/domain"
	"github.com/msomdec/care-practice/internal/service"
)

func TestRates_EmptyHistory(t *testing.T) {
	rates := service.Rates(nil, nil)
	if len(rates) != len(domain.Skills) {
		t.Fatalf("expected every skill key, got %d", len(rates))
	}
	for k, v := range rates {
		if v != 0 {
			t.Fatalf("expected 0 for %s, got %v", k, v)
		}
	}
}

func TestRates_Fractions(t *testing.T) {
	seq := []domain.SkillFlags{
		flags(domain.SkillEmpathy, domain.SkillOpenQuestion),
		flags(domain.SkillEmpathy),
		flags(),
		flags(domain.SkillSuggestion),
	}
	rates := service.Rates(seq, []domain.Skill{domain.SkillEmpathy, domain.SkillOpenQuestion})
	if len(rates) != 2 {
		t.Fatalf("expected only requested keys, got %v", rates)
	}
	if rates[domain.SkillEmpathy] != 0.5 {
		t.Fatalf("expected empathy 0.5, got %v", rates[domain.SkillEmpathy])
	}
	if rates[domain.SkillOpenQuestion] != 0.25 {
		t.Fatalf("expected open_question 0.25, got %v", rates[domain.SkillOpenQuestion])
	}
}

func TestRates_DoesNotMutateInput(t *testing.T) {
	seq := []domain.SkillFlags{flags(domain.SkillEmpathy)}
	first := service.Rates(seq, nil)
	second := service.Rates(seq, nil)
	if first[domain.SkillEmpathy] != second[domain.SkillEmpathy] {
		t.Fatal("repeated calls disagree")
	}
	if len(seq[0]) != len(domain.Skills) || !seq[0].Has(domain.SkillEmpathy) {
		t.Fatalf("input was modified: %v", seq[0])
	}
}

func TestTimeseries_RunningMean(t *testing.T) {
	seq := []domain.SkillFlags{
		flags(domain.SkillReflection),
		flags(),
		flags(domain.SkillReflection),
		flags(domain.SkillReflection),
	}
	series := service.Timeseries(seq, nil)[domain.SkillReflection]
	want := []float64{1, 0.5, 2.0 / 3.0, 0.75}
	if len(series) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(series))
	}
	for i := range want {
		if series[i] != want[i] {
			t.Fatalf("point %d: expected %v, got %v", i, want[i], series[i])
		}
	}
	if last := series[len(series)-1]; last != service.Rates(seq, nil)[domain.SkillReflection] {
		t.Fatalf("last point %v should equal the overall rate", last)
	}
}

func TestTallies_PresentPlusAbsentCoversHistory(t *testing.T) {
	seq := []domain.SkillFlags{
		flags(domain.SkillValidation),
		{domain.SkillValidation: 0},
		{},
	}
	for _, tally := range service.Tallies(seq) {
		if tally.Present+tally.Absent != len(seq) {
			t.Fatalf("%s: present %d + absent %d != %d", tally.Skill, tally.Present, tally.Absent, len(seq))
		}
	}
	if n := service.CountPresent(seq, domain.SkillValidation); n != 1 {
		t.Fatalf("expected 1 validation, got %d", n)
	}
	if n := service.CountAbsent(seq, domain.SkillValidation); n != 2 {
		t.Fatalf("expected 2 absent, got %d", n)
	}
}
