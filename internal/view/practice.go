package view

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/msomdec/care-practice/internal/domain"
	"github.com/msomdec/care-practice/internal/service"
)

// PracticeView is everything the practice screen shows.
type PracticeView struct {
	State     *domain.SessionState
	Scenario  string
	TurnLimit int
	Hint      string
	Notices   []service.Notice
	Warnings  [][]service.Warning
}

// PracticePage is the full practice screen.
func PracticePage(v PracticeView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<section id="practice" data-signals="{reply: ''}">`)
		h.render(ctx, StatusFragment(v))
		h.render(ctx, TranscriptFragment(v))
		h.render(ctx, NoticesFragment(v.Notices))
		h.raw(`<form data-on:submit__prevent="@post('/practice/send')">`)
		h.raw(`<textarea data-bind:reply rows="3" placeholder="Your reply"></textarea>`)
		h.render(ctx, HintFragment(v.Hint))
		h.raw(`<button type="submit">Send</button></form>`)
		h.raw(`<nav class="actions">`)
		h.raw(`<button data-on:click="@post('/practice/advance')">Next phase</button>`)
		h.raw(`<button data-on:click="@post('/practice/restart')">Start over</button>`)
		h.raw(`<a href="/api/practice/results">Results (JSON)</a></nav></section>`)
		return h.err
	})
}

// StatusFragment shows the phase, persona and turn counter.
func StatusFragment(v PracticeView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		s := v.State
		h.raw(`<div id="status">`)
		h.rawf(`<strong>%s</strong> · `, templ.EscapeString(strings.ToUpper(string(s.Phase))))
		h.text(v.Scenario)
		h.rawf(` · turn %d / %d`, s.TurnCount[s.Phase], v.TurnLimit)
		if s.Phase == domain.PhasePractice {
			h.raw(` · mode: `)
			h.text(string(s.Mode()))
		}
		if s.PhaseCompleted() {
			h.raw(` · <em>phase complete</em>`)
		}
		h.raw(`</div>`)
		return h.err
	})
}

// TranscriptFragment is the conversation so far, with per-turn flags,
// warnings and micro feedback when present.
func TranscriptFragment(v PracticeView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		s := v.State
		h.raw(`<ol id="transcript">`)
		for i, client := range s.ClientTexts {
			h.raw(`<li class="client">`)
			h.text(client)
			h.raw(`</li>`)
			if i >= len(s.CounselorTexts) {
				continue
			}
			h.raw(`<li class="counselor">`)
			h.text(s.CounselorTexts[i])
			if i < len(s.Labels) {
				h.raw(skillChips(s.Labels[i]))
			}
			if i < len(v.Warnings) {
				for _, warn := range v.Warnings[i] {
					h.rawf(`<p class="warn %s">`, warn.Severity())
					h.text(warn.Message())
					h.raw(`</p>`)
				}
			}
			if i < len(s.MicroFeedback) && s.MicroFeedback[i] != nil {
				mf := s.MicroFeedback[i]
				h.raw(`<aside class="micro"><b>`)
				h.text(mf.StrengthTitle)
				h.raw(`</b> `)
				h.text(mf.StrengthNote)
				h.raw(`<br><b>`)
				h.text(mf.FeedbackTitle)
				h.raw(`</b> `)
				h.text(mf.FeedbackNote)
				if mf.AltResponse != "" {
					h.raw(`<br><i>Try: `)
					h.text(mf.AltResponse)
					h.raw(`</i>`)
				}
				h.raw(`</aside>`)
			}
			h.raw(`</li>`)
		}
		h.raw(`</ol>`)
		return h.err
	})
}

// HintFragment is the reply guidance under the input box.
func HintFragment(hint string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<p class="hint" id="hint">`)
		h.text(hint)
		h.raw(`</p>`)
		return h.err
	})
}

// NoticesFragment lists non-blocking notices from the last action.
func NoticesFragment(notices []service.Notice) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<div id="notices">`)
		for _, n := range notices {
			h.rawf(`<p class="notice %s">`, templ.EscapeString(string(n.Kind)))
			h.text(n.Message)
			h.raw(`</p>`)
		}
		h.raw(`</div>`)
		return h.err
	})
}

func skillChips(flags domain.SkillFlags) string {
	var b strings.Builder
	b.WriteString(`<span class="skills">`)
	for _, k := range domain.Skills {
		if flags.Has(k) {
			fmt.Fprintf(&b, `<span class="chip">%s</span>`, templ.EscapeString(string(k)))
		}
	}
	b.WriteString(`</span>`)
	return b.String()
}
