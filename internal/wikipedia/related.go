package wikipedia

import (
	"html"
	"regexp"
	"strings"

	"wikicache/internal/model"
)

var (
	seeAlsoHeading = regexp.MustCompile(`(?im)^[ \t]*(?:={2,}[ \t]*See also[ \t]*={2,}|#{1,6}[ \t]*See also)[ \t]*$`)
	anyHeading     = regexp.MustCompile(`(?m)^[ \t]*(?:={2,}[^=\n]+={2,}|#{1,6}[ \t]+\S[^\n]*)[ \t]*$`)
	bullet         = regexp.MustCompile(`^[ \t]*(?:[*#-]+|\d+\.)[ \t]*`)
	markdownLink   = regexp.MustCompile(`^\[([^\]]+)\]\([^)]*\)$`)

	htmlSeeAlso  = regexp.MustCompile(`(?is)<h2[^>]*>.*?See also.*?</h2>(.*?)(?:<h2|\z)`)
	htmlListItem = regexp.MustCompile(`(?is)<li[^>]*>(.*?)</li>`)
	htmlTag      = regexp.MustCompile(`<[^>]+>`)
)

const maxTitleLen = 255

// RelatedTitles extracts the entries of the "See also" section from a
// plain-text extract or from converted Markdown.
func RelatedTitles(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	loc := seeAlsoHeading.FindStringIndex(text)
	if loc == nil {
		return nil
	}
	section := text[loc[1]:]
	if next := anyHeading.FindStringIndex(section); next != nil {
		section = section[:next[0]]
	}

	var lines []string
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(bullet.ReplaceAllString(line, ""))
		if m := markdownLink.FindStringSubmatch(line); m != nil {
			line = m[1]
		}
		lines = append(lines, line)
	}
	return dedupe(lines)
}

// RelatedTitlesHTML extracts list items following a "See also" heading in
// an HTML extract.
func RelatedTitlesHTML(doc string) []string {
	m := htmlSeeAlso.FindStringSubmatch(doc)
	if m == nil {
		return nil
	}

	var items []string
	for _, li := range htmlListItem.FindAllStringSubmatch(m[1], -1) {
		items = append(items, html.UnescapeString(htmlTag.ReplaceAllString(li[1], "")))
	}
	return dedupe(items)
}

func dedupe(titles []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range titles {
		t = model.NormalizeTitle(t)
		if t == "" || len(t) > maxTitleLen {
			continue
		}
		key := model.TitleKey(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
