// Package caption extracts the machine-readable tags embedded in channel post captions.
//
// The grammar is line oriented:
//
//	#Title <free text to end of line>   required
//	#Lang <two-letter code>             required
//	[label](url)                        optional, anywhere, zero or more
//
// Parsing never fails. Missing tags leave the corresponding field empty and
// malformed button definitions are dropped. When a tag repeats, the first
// well-formed occurrence wins; a #Lang followed by anything but exactly two
// letters is not well formed. Button URLs may hold one level of parentheses.
package caption

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"CineIndexBot/internal/models"
)

var (
	linkRe     = regexp.MustCompile(`\[([^\[\]]*)\]\(((?:[^()]|\([^()]*\))*)\)`)
	titleTagRe = regexp.MustCompile(`(?i)#title`)
	langTagRe  = regexp.MustCompile(`(?i)#lang`)
	langCodeRe = regexp.MustCompile(`^[ \t]+([A-Za-z]{2})`)
)

// Parsed is the result of parsing one caption
type Parsed struct {
	Title   string
	Lang    string
	Buttons []models.Button
	Cleaned string
}

// Indexable reports whether both required tags were found.
func (p Parsed) Indexable() bool {
	return p.Title != "" && p.Lang != ""
}

// Key returns the index key, or "" when the caption is not indexable.
func (p Parsed) Key() string {
	if !p.Indexable() {
		return ""
	}
	return models.EntryKey(p.Title, p.Lang)
}

type span struct{ start, end int }

// Parse extracts title, language, buttons and the display caption.
func Parse(text string) Parsed {
	var p Parsed

	for _, m := range linkRe.FindAllStringSubmatch(text, -1) {
		label := strings.TrimSpace(m[1])
		url := strings.TrimSpace(m[2])
		if label == "" || url == "" {
			continue
		}
		p.Buttons = append(p.Buttons, models.Button{Label: label, URL: url})
	}

	// Links go first so a tag hidden inside a URL never counts.
	stripped := strings.ReplaceAll(linkRe.ReplaceAllString(text, ""), "\r\n", "\n")

	var tags []span
	for _, loc := range tagLocations(titleTagRe, stripped) {
		end := len(stripped)
		if i := strings.IndexByte(stripped[loc[1]:], '\n'); i >= 0 {
			end = loc[1] + i
		}
		if title := strings.TrimSpace(stripped[loc[1]:end]); title != "" {
			p.Title = title
			tags = append(tags, span{loc[0], end})
			break
		}
	}
	for _, loc := range tagLocations(langTagRe, stripped) {
		m := langCodeRe.FindStringSubmatchIndex(stripped[loc[1]:])
		if m == nil || isWordRune(stripped, loc[1]+m[1]) {
			continue
		}
		p.Lang = strings.ToLower(stripped[loc[1]+m[2] : loc[1]+m[3]])
		tags = append(tags, span{loc[0], loc[1] + m[1]})
		break
	}

	p.Cleaned = clean(stripped, tags)
	return p
}

// tagLocations returns the matches of re that are not glued to a following
// letter, digit or underscore, so #language is not a #lang tag.
func tagLocations(re *regexp.Regexp, text string) [][]int {
	var out [][]int
	for _, loc := range re.FindAllStringIndex(text, -1) {
		if !isWordRune(text, loc[1]) {
			out = append(out, loc)
		}
	}
	return out
}

func isWordRune(text string, i int) bool {
	if i >= len(text) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// clean removes the tag spans, trims every line and drops lines left empty
// by a removed tag, then strips leading and trailing blank lines.
func clean(text string, tags []span) string {
	removed := make([]bool, len(text))
	for _, t := range tags {
		for i := t.start; i < t.end; i++ {
			removed[i] = true
		}
	}

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	offset := 0
	for _, line := range lines {
		var b strings.Builder
		hadTag := false
		for i := 0; i < len(line); i++ {
			if removed[offset+i] {
				hadTag = true
				continue
			}
			b.WriteByte(line[i])
		}
		offset += len(line) + 1

		kept := strings.TrimSpace(b.String())
		if hadTag && kept == "" {
			continue
		}
		out = append(out, kept)
	}

	start, end := 0, len(out)
	for start < end && out[start] == "" {
		start++
	}
	for end > start && out[end-1] == "" {
		end--
	}
	return strings.Join(out[start:end], "\n")
}
