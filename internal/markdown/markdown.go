// Package markdown turns MediaWiki markup, plain extracts and HTML extracts
// into Markdown suitable for storage and display.
package markdown

import (
	"net/url"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/go-shiori/go-readability"
)

var (
	refSelfClosing = regexp.MustCompile(`(?i)<ref[^>]*/>`)
	refBlock       = regexp.MustCompile(`(?is)<ref[^>]*>.*?</ref>`)

	listItem = regexp.MustCompile(`(?m)^[ \t]*([*#]+)[ \t]*(.+)$`)
	heading  = regexp.MustCompile(`(?m)^[ \t]*(={2,6})[ \t]*([^=\n]+?)[ \t]*={2,6}[ \t]*$`)

	bold   = regexp.MustCompile(`'''(.+?)'''`)
	italic = regexp.MustCompile(`''(.+?)''`)

	pipedLink    = regexp.MustCompile(`\[\[([^|\]]+)\|([^\]]+)\]\]`)
	internalLink = regexp.MustCompile(`\[\[([^\]]+)\]\]`)
	namedURL     = regexp.MustCompile(`\[(https?://[^\s\]]+)[ \t]+([^\]]+)\]`)
	bareURL      = regexp.MustCompile(`\[(https?://[^\s\]]+)\]`)

	blankRun = regexp.MustCompile(`\n{3,}`)
	fullDoc  = regexp.MustCompile(`(?i)<(html|body)[\s>]`)
)

var readabilityBase = &url.URL{Scheme: "https", Host: "en.wikipedia.org", Path: "/"}

// Convert never fails: input it cannot interpret comes back as-is.
func Convert(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	if strings.HasPrefix(strings.TrimSpace(raw), "<") {
		return fromHTML(raw)
	}
	return fromWikitext(raw)
}

func fromWikitext(text string) string {
	text = refSelfClosing.ReplaceAllString(text, "")
	text = refBlock.ReplaceAllString(text, "")

	// lists go first so that generated "##" headings are not read as items
	text = listItem.ReplaceAllStringFunc(text, func(line string) string {
		m := listItem.FindStringSubmatch(line)
		markers, body := m[1], m[2]
		indent := strings.Repeat("  ", len(markers)-1)
		if markers[len(markers)-1] == '#' {
			return indent + "1. " + body
		}
		return indent + "- " + body
	})

	text = heading.ReplaceAllStringFunc(text, func(line string) string {
		m := heading.FindStringSubmatch(line)
		return strings.Repeat("#", len(m[1])) + " " + m[2]
	})

	text = bold.ReplaceAllString(text, "**$1**")
	text = italic.ReplaceAllString(text, "*$1*")

	text = pipedLink.ReplaceAllStringFunc(text, func(s string) string {
		m := pipedLink.FindStringSubmatch(s)
		return "[" + m[2] + "](" + linkTarget(m[1]) + ")"
	})
	text = internalLink.ReplaceAllStringFunc(text, func(s string) string {
		m := internalLink.FindStringSubmatch(s)
		return "[" + m[1] + "](" + linkTarget(m[1]) + ")"
	})
	text = namedURL.ReplaceAllString(text, "[$2]($1)")
	text = bareURL.ReplaceAllString(text, "<$1>")

	text = blankRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func linkTarget(title string) string {
	return strings.ReplaceAll(strings.TrimSpace(title), " ", "_")
}

func fromHTML(doc string) string {
	body := doc
	if fullDoc.MatchString(doc) {
		article, err := readability.FromReader(strings.NewReader(doc), readabilityBase)
		if err == nil && strings.TrimSpace(article.Content) != "" {
			body = article.Content
		}
	}

	md, err := htmltomarkdown.ConvertString(body)
	if err != nil {
		return doc
	}
	md = blankRun.ReplaceAllString(strings.ReplaceAll(md, "\r\n", "\n"), "\n\n")
	return strings.TrimSpace(md)
}
