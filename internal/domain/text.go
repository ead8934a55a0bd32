package domain

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var spaceRunRe = regexp.MustCompile(`[\s\p{Zs}]+`)

// fold lower-cases s and treats ё as е so keyword tables need one spelling.
func fold(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "ё", "е")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// atWordBoundary reports whether s[start:end] is not glued to neighbouring
// letters or digits. RE2's \b only knows ASCII, so Cyrillic needs this check.
// Edges that are punctuation (a trailing "." for example) are not checked.
func atWordBoundary(s string, start, end int) bool {
	if start >= end {
		return false
	}
	first, _ := utf8.DecodeRuneInString(s[start:end])
	if start > 0 && isWordRune(first) {
		prev, _ := utf8.DecodeLastRuneInString(s[:start])
		if isWordRune(prev) {
			return false
		}
	}
	last, _ := utf8.DecodeLastRuneInString(s[start:end])
	if end < len(s) && isWordRune(last) {
		next, _ := utf8.DecodeRuneInString(s[end:])
		if isWordRune(next) {
			return false
		}
	}
	return true
}

// wordRule rewrites whole-word matches of re to replacement.
type wordRule struct {
	re          *regexp.Regexp
	replacement string
}

func newWordRule(pattern, replacement string) wordRule {
	return wordRule{re: regexp.MustCompile(`(?i)` + pattern), replacement: replacement}
}

func (w wordRule) apply(s string) string {
	locs := w.re.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, loc := range locs {
		if !atWordBoundary(s, loc[0], loc[1]) {
			continue
		}
		b.WriteString(s[last:loc[0]])
		b.WriteString(w.replacement)
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

// containsWord reports whether re matches s anywhere on word boundaries.
func containsWord(re *regexp.Regexp, s string) bool {
	for _, loc := range re.FindAllStringIndex(s, -1) {
		if atWordBoundary(s, loc[0], loc[1]) {
			return true
		}
	}
	return false
}

// words splits folded text into letter/digit tokens. Hyphens stay inside a
// token so "пр-т" and "тверская-ямская" survive as one word.
func words(s string) []string {
	return strings.FieldsFunc(fold(s), func(r rune) bool {
		return !isWordRune(r) && r != '-'
	})
}
