// Package view renders the HTML pages and the fragments patched in over
// server-sent events.
package view

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"

// html accumulates writes and keeps the first error.
type html struct {
	w   io.Writer
	err error
}

func (h *html) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

func (h *html) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *html) rawf(format string, args ...any) {
	h.raw(fmt.Sprintf(format, args...))
}

func (h *html) render(ctx context.Context, c templ.Component) {
	if h.err != nil {
		return
	}
	h.err = c.Render(ctx, h.w)
}

// Layout wraps body in the page chrome. email is empty for anonymous visitors.
func Layout(title, email string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<!doctype html><html lang="en"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.raw(`<title>`)
		h.text(title)
		h.raw(` · Care Practice</title>`)
		h.rawf(`<script type="module" src="%s"></script>`, datastarScript)
		h.raw(`</head><body><header class="nav"><a href="/">Care Practice</a>`)
		if email != "" {
			h.raw(`<a href="/practice">Practice</a><span class="who">`)
			h.text(email)
			h.raw(`</span><button data-on:click="@post('/signout')">Sign out</button>`)
		}
		h.raw(`</header><main>`)
		h.render(ctx, body)
		h.raw(`</main></body></html>`)
		return h.err
	})
}

// SignInPage asks for an institutional email.
func SignInPage() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<section id="signin" data-signals="{email: ''}">`)
		h.raw(`<h1>Sign in</h1><p>Use your institutional email address.</p>`)
		h.raw(`<input type="email" data-bind:email placeholder="you@university.edu">`)
		h.raw(`<button data-on:click="@post('/signin')">Continue</button>`)
		h.raw(`<div id="signin-error"></div></section>`)
		return h.err
	})
}

// ErrorFragment replaces the element with the given id by an error message.
func ErrorFragment(id, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.rawf(`<div id="%s" class="error" role="alert">`, templ.EscapeString(id))
		h.text(message)
		h.raw(`</div>`)
		return h.err
	})
}
