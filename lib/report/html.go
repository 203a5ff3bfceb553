// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// markdownInstance is initialized once and reused. The configuration
// never changes and goldmark.Markdown is safe to share: Convert builds
// per-call parser state.
var (
	markdownInstance goldmark.Markdown
	markdownOnce     sync.Once
)

func getMarkdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		)
	})
	return markdownInstance
}

// HTML renders the summary as a standalone HTML page: the Markdown
// tables converted through goldmark, followed by failed-step excerpts
// highlighted with chroma. Everything is inline-styled so the file
// can be mailed or archived without a stylesheet next to it.
func (s *Summary) HTML() (string, error) {
	var b strings.Builder
	title := fmt.Sprintf("%s: %s", s.Record.Workflow, s.Record.Conclusion)
	fmt.Fprintf(&b, htmlHeader, html.EscapeString(title))

	if err := getMarkdown().Convert([]byte(s.summaryMarkdown()), &b); err != nil {
		return "", fmt.Errorf("rendering summary: %w", err)
	}

	if len(s.Excerpts) > 0 {
		b.WriteString("<h2>Failed steps</h2>\n")
		for _, excerpt := range s.Excerpts {
			fmt.Fprintf(&b, "<h3>%s</h3>\n", html.EscapeString(excerpt.JobKey+": "+excerpt.StepName))
			if excerpt.Message != "" {
				fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(excerpt.Message))
			}
			if excerpt.Log == "" {
				b.WriteString("<p><em>no output captured</em></p>\n")
				continue
			}
			writeHighlightedLog(&b, excerpt.Log)
		}
	}

	b.WriteString(htmlFooter)
	return b.String(), nil
}

// writeHighlightedLog emits a log excerpt as syntax-highlighted HTML.
// The "console" lexer understands shell-session output well enough for
// step logs; chroma's HTML formatter inlines all styles. Falls back to
// an escaped <pre> when highlighting fails.
func writeHighlightedLog(b *strings.Builder, log string) {
	var highlighted strings.Builder
	if err := quick.Highlight(&highlighted, log, "console", "html", "github"); err != nil {
		fmt.Fprintf(b, "<pre>%s</pre>\n", html.EscapeString(log))
		return
	}
	b.WriteString(highlighted.String())
	b.WriteString("\n")
}

// htmlHeader is the page prologue. The stylesheet covers what goldmark
// emits: the GFM tables get borders, code spans get a background, and
// the body gets a readable measure. %s is the escaped page title.
const htmlHeader = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: -apple-system, system-ui, sans-serif; max-width: 56rem; margin: 2rem auto; padding: 0 1rem; color: #1f2328; }
table { border-collapse: collapse; margin: 1rem 0; }
th, td { border: 1px solid #d1d9e0; padding: 0.3rem 0.8rem; text-align: left; }
th { background: #f6f8fa; }
code { background: #f6f8fa; padding: 0.1rem 0.3rem; border-radius: 3px; font-size: 0.9em; }
pre { padding: 0.8rem; border-radius: 6px; overflow-x: auto; }
h1 { border-bottom: 1px solid #d1d9e0; padding-bottom: 0.3rem; }
</style>
</head>
<body>
`

const htmlFooter = `</body>
</html>
`
