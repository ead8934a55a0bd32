package domain

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// ConflictRule rejects a match when the input mentions Input and the resolved
// address mentions Resolved. Both are folded substrings.
type ConflictRule struct {
	Input    string
	Resolved string
}

// DefaultConflictRules cover streets whose short names the provider confuses
// with unrelated objects nearby.
var DefaultConflictRules = []ConflictRule{
	{Input: "соломатина", Resolved: "воскресенские ворота"},
	{Input: "соломатина", Resolved: "воскресенский"},
	{Input: "воскресенские ворота", Resolved: "соломатина"},
}

// DefaultRequiredStreets are recently named streets the provider tends to
// replace with an older neighbour. If the input names one, the resolved
// address must name it too.
var DefaultRequiredStreets = []string{
	"соломатина",
	"космонавта волкова",
	"героя труда",
}

// genericWords carry no street identity: city and region spellings, street
// types, and unit markers. They are dropped before street words are compared.
var genericWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"москва", "мск", "москыв", "масква", "мосвка", "москав",
		"московская", "масковская", "московска", "московской", "область", "обл", "мо",
		"россия", "г", "город", "р-н", "район",
		"ул", "улица", "пр-т", "пр-кт", "прт", "проспект", "пр", "проезд",
		"пер", "переулок", "ш", "шоссе", "б-р", "бульвар", "наб", "набережная",
		"пл", "площадь", "туп", "тупик",
		"д", "дом", "к", "корп", "корпус", "стр", "строение", "кв", "квартира",
	} {
		genericWords[w] = struct{}{}
	}
}

// unitWords mark numbers that belong to a flat, block or floor rather than
// the house.
var unitWords = map[string]struct{}{
	"к": {}, "корп": {}, "корпус": {}, "с": {}, "стр": {}, "строение": {},
	"кв": {}, "квартира": {}, "оф": {}, "офис": {}, "пом": {}, "помещение": {},
	"эт": {}, "этаж": {}, "под": {}, "подъезд": {},
}

var (
	houseNumberRe = regexp.MustCompile(`(?i)(?:^|[^\p{L}\d])((?:д|дом|вл|влд)\.?[\s\p{Zs}]*)?(\d+)`)
	fractionRe    = regexp.MustCompile(`^[\s\p{Zs}]*/[\s\p{Zs}]*(\d+)`)
	blockRe       = regexp.MustCompile(`(?i)^[\s\p{Zs},]*(?:корпус|корп|к)\.?[\s\p{Zs}]*(\d+)`)
	buildingRe    = regexp.MustCompile(`(?i)^[\s\p{Zs},]*(?:строение|стр|с)\.?[\s\p{Zs}]*(\d+)`)

	streetPrefixRe = regexp.MustCompile(`(?i)^(?:россия|город|москва|московская[\s\p{Zs}]+область|улица|ул|г)(?:[\s\p{Zs},.]+|$)`)
)

// houseCandidate is one number of an address read as a full house token.
type houseCandidate struct {
	token  string
	start  int  // byte offset of the marker, or of the digits when unmarked
	marked bool // preceded by "д.", "дом" or "вл."
	street bool // opens a numeric street name such as "1905 года"
}

// ExtractHouseNumber returns the canonical house token of an address: digits,
// optional letter, optional "/fraction", optional block and building, e.g.
// "д. 10А, корп. 2" -> "10ак2". A number after a house marker wins; otherwise
// the last number that is not part of the street name or a flat is used.
// It returns "" when no number qualifies.
func ExtractHouseNumber(address string) string {
	c, ok := locateHouse(fold(address))
	if !ok {
		return ""
	}
	return c.token
}

func locateHouse(s string) (houseCandidate, bool) {
	cands := houseCandidates(s)
	for _, c := range cands {
		if c.marked {
			return c, true
		}
	}
	for i := len(cands) - 1; i >= 0; i-- {
		if !cands[i].street {
			return cands[i], true
		}
	}
	return houseCandidate{}, false
}

// houseCandidates lists the numbers of folded text s left to right. Digits
// swallowed by an earlier token ("12/3", "10 к 2"), ordinals ("2-я") and unit
// numbers ("кв. 12") are not candidates.
func houseCandidates(s string) []houseCandidate {
	var out []houseCandidate
	consumed := 0
	for _, m := range houseNumberRe.FindAllStringSubmatchIndex(s, -1) {
		digits := m[4]
		marked := m[2] >= 0
		if digits < consumed || strings.HasPrefix(s[m[5]:], "-") {
			continue
		}
		if !marked && unitBefore(s[:digits]) {
			continue
		}
		token, n := houseToken(s[digits:])
		consumed = digits + n
		c := houseCandidate{token: token, start: digits, marked: marked}
		if marked {
			c.start = m[2]
		} else {
			c.street = streetWordFollows(s[consumed:])
		}
		out = append(out, c)
	}
	return out
}

// houseToken reads the house token at the start of s and returns it with the
// number of bytes it spans.
func houseToken(s string) (string, int) {
	i := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) })
	if i < 0 {
		return s, len(s)
	}
	var b strings.Builder
	b.WriteString(s[:i])
	rest := s[i:]

	if letter, n := houseLetter(rest); letter != 0 {
		b.WriteRune(letter)
		rest = rest[n:]
	}
	if m := fractionRe.FindStringSubmatchIndex(rest); m != nil {
		b.WriteString("/" + rest[m[2]:m[3]])
		rest = rest[m[1]:]
	}
	if m := blockRe.FindStringSubmatchIndex(rest); m != nil {
		b.WriteString("к" + rest[m[2]:m[3]])
		rest = rest[m[1]:]
	}
	if m := buildingRe.FindStringSubmatchIndex(rest); m != nil {
		b.WriteString("с" + rest[m[2]:m[3]])
		rest = rest[m[1]:]
	}
	return b.String(), len(s) - len(rest)
}

// unitBefore reports whether prefix ends in a unit word such as "кв.".
func unitBefore(prefix string) bool {
	trimmed := strings.TrimRightFunc(prefix, func(r rune) bool { return unicode.IsSpace(r) || r == '.' })
	start := 0
	if i := strings.LastIndexFunc(trimmed, func(r rune) bool { return !unicode.IsLetter(r) }); i >= 0 {
		_, size := utf8.DecodeRuneInString(trimmed[i:])
		start = i + size
	}
	_, ok := unitWords[trimmed[start:]]
	return ok
}

// streetWordFollows reports whether rest opens with a name word, which makes
// the preceding number part of the street ("8 марта", "50 лет октября").
func streetWordFollows(rest string) bool {
	trimmed := strings.TrimLeftFunc(rest, unicode.IsSpace)
	end := strings.IndexFunc(trimmed, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		end = len(trimmed)
	}
	w := trimmed[:end]
	if utf8.RuneCountInString(w) < 2 {
		return false
	}
	if _, ok := unitWords[w]; ok {
		return false
	}
	_, generic := genericWords[w]
	return !generic
}

// houseLetter reads a single Cyrillic letter suffix ("10а", "10 б", "10ак2").
// A "к" or "с" that opens a block or building marker ("10к2", "10 к 2") is
// not a suffix.
func houseLetter(rest string) (rune, int) {
	trimmed := strings.TrimLeft(rest, " ")
	offset := len(rest) - len(trimmed)
	r, size := utf8.DecodeRuneInString(trimmed)
	if size == 0 || !unicode.Is(unicode.Cyrillic, r) {
		return 0, 0
	}
	after := trimmed[size:]
	next, _ := utf8.DecodeRuneInString(after)
	switch {
	case after == "" || (!isWordRune(next) && next != '.'):
	case blockRe.MatchString(after) || buildingRe.MatchString(after):
	default:
		return 0, 0
	}
	if (r == 'к' || r == 'с') && digitFollows(after) {
		return 0, 0
	}
	return r, offset + size
}

func digitFollows(s string) bool {
	r, _ := utf8.DecodeRuneInString(strings.TrimLeft(s, " "))
	return unicode.IsDigit(r)
}

// ExtractStreetPart returns the text before the house number with leading
// city and street-type prefixes removed. Numbers that belong to the street
// name stay in it.
func ExtractStreetPart(address string) string {
	street := address
	folded := fold(address)
	if c, ok := locateHouse(folded); ok {
		// fold maps rune for rune, so the rune index carries over.
		street = address[:runeOffset(address, utf8.RuneCountInString(folded[:c.start]))]
	}
	street = strings.TrimSpace(street)
	for {
		stripped := streetPrefixRe.ReplaceAllString(street, "")
		if stripped == street {
			break
		}
		street = stripped
	}
	return strings.Trim(street, " ,")
}

// runeOffset returns the byte offset of the n-th rune of s.
func runeOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}

// streetKeyWords are the identifying words of the input's street part.
func streetKeyWords(address string) []string {
	var keys []string
	for _, w := range words(ExtractStreetPart(address)) {
		if utf8.RuneCountInString(w) < 2 {
			continue
		}
		if _, generic := genericWords[w]; generic {
			continue
		}
		keys = append(keys, w)
	}
	return keys
}

// MatchDecision records why a resolved address was accepted or rejected.
type MatchDecision struct {
	Accepted       bool
	Reason         string
	HouseInput     string
	HouseResolved  string
	StreetInput    string
	StreetResolved string
}

// Match decision reasons.
const (
	ReasonAccepted        = "accepted"
	ReasonConflict        = "conflicting street"
	ReasonRequiredMissing = "required street missing"
	ReasonHouseMismatch   = "house number mismatch"
	ReasonStreetMismatch  = "street mismatch"
)

// MatchValidator cross-checks a resolved address against the input so a
// plausible coordinate on the wrong street or building is not accepted.
type MatchValidator struct {
	Conflicts       []ConflictRule
	RequiredStreets []string
	// FuzzyWords lets long street words differ by one edit (typos, case endings).
	FuzzyWords bool
}

// NewMatchValidator returns a validator with the default conflict tables.
func NewMatchValidator(fuzzy bool) *MatchValidator {
	return &MatchValidator{
		Conflicts:       DefaultConflictRules,
		RequiredStreets: DefaultRequiredStreets,
		FuzzyWords:      fuzzy,
	}
}

// Accept decides whether resolved plausibly names the same street and house
// as original.
func (v *MatchValidator) Accept(original, resolved string) MatchDecision {
	d := MatchDecision{
		HouseInput:     ExtractHouseNumber(original),
		HouseResolved:  ExtractHouseNumber(resolved),
		StreetInput:    ExtractStreetPart(original),
		StreetResolved: ExtractStreetPart(resolved),
	}

	orig, res := fold(original), fold(resolved)
	for _, rule := range v.Conflicts {
		if strings.Contains(orig, rule.Input) && strings.Contains(res, rule.Resolved) {
			d.Reason = ReasonConflict
			return d
		}
	}
	for _, street := range v.RequiredStreets {
		if strings.Contains(orig, street) && !strings.Contains(res, street) {
			d.Reason = ReasonRequiredMissing
			return d
		}
	}

	if d.HouseInput != "" && d.HouseResolved != "" && d.HouseInput != d.HouseResolved {
		d.Reason = ReasonHouseMismatch
		return d
	}

	if !v.streetWordsMatch(original, resolved) {
		d.Reason = ReasonStreetMismatch
		return d
	}

	d.Accepted = true
	d.Reason = ReasonAccepted
	return d
}

// streetWordsMatch reports whether every key word of the input street occurs
// in the resolved address. An input without key words cannot be checked and passes.
func (v *MatchValidator) streetWordsMatch(original, resolved string) bool {
	keys := streetKeyWords(original)
	if len(keys) == 0 {
		return true
	}
	resolvedWords := make(map[string]struct{})
	for _, w := range words(resolved) {
		resolvedWords[w] = struct{}{}
	}
	for _, k := range keys {
		if _, ok := resolvedWords[k]; ok {
			continue
		}
		if v.FuzzyWords && fuzzyContains(resolvedWords, k) {
			continue
		}
		return false
	}
	return true
}

const fuzzyMinRunes = 6

func fuzzyContains(set map[string]struct{}, word string) bool {
	if utf8.RuneCountInString(word) < fuzzyMinRunes {
		return false
	}
	for candidate := range set {
		if levenshtein.ComputeDistance(word, candidate) <= 1 {
			return true
		}
	}
	return false
}
