package domain

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	cityName   = "Москва"
	regionName = "Московская область"

	cityKey   = "москва"
	regionKey = "московская"
)

// NormalizedAddress is address text after canonicalisation. Normalizing a
// NormalizedAddress again returns it unchanged.
type NormalizedAddress string

func (a NormalizedAddress) String() string { return string(a) }

// abbreviationRules map regional shorthand, misspellings of the city and
// region, and long street-type words to their canonical forms. Every rule
// matches whole words only; the order is significant.
var abbreviationRules = []wordRule{
	newWordRule(`мск`, cityName),
	newWordRule(`г\.москва`, cityName),
	newWordRule(`г москва`, cityName),
	newWordRule(`мос\.обл`, regionName),
	newWordRule(`мо`, regionName),
	newWordRule(`москыв`, cityName),
	newWordRule(`масква`, cityName),
	newWordRule(`мосвка`, cityName),
	newWordRule(`москав`, cityName),
	newWordRule(`масковская`, "Московская"),
	newWordRule(`московска`, "Московская"),
	newWordRule(`московской`, "Московская"),

	newWordRule(`улица`, "ул."),
	newWordRule(`проспект`, "пр-т"),
	newWordRule(`пр-кт`, "пр-т"),
	newWordRule(`прт\.`, "пр-т"),
	newWordRule(`проезд`, "пр."),
	newWordRule(`переулок`, "пер."),
	newWordRule(`шоссе`, "ш."),
	newWordRule(`бульвар`, "б-р"),

	newWordRule(`дом`, "д."),
	newWordRule(`корпус`, "к."),
	newWordRule(`строение`, "стр."),
	newWordRule(`квартира`, "кв."),
}

// streetCorrections force short street references that the provider confuses
// with unrelated objects to their full official names.
var streetCorrections = []wordRule{
	newWordRule(`(?:ул\.?[\s\p{Zs}]*)?(?:героя[\s\p{Zs}]+россии[\s\p{Zs}]+)?соломатина`, "ул. Героя России Соломатина"),
}

var (
	repeatedDotRe   = regexp.MustCompile(`\.(?:[\s\p{Zs}]*\.)+`)
	repeatedCommaRe = regexp.MustCompile(`,(?:[\s\p{Zs}]*,)+`)
)

// cityLandmarks are substrings that only occur in Moscow addresses.
var cityLandmarks = []*regexp.Regexp{
	regexp.MustCompile(`арбат`),
	regexp.MustCompile(`тверская`),
	regexp.MustCompile(`китай-город`),
	regexp.MustCompile(`покровка`),
	regexp.MustCompile(`маяковская`),
	regexp.MustCompile(`красная[\s\p{Zs}]+площадь`),
	regexp.MustCompile(`кремль`),
	regexp.MustCompile(`метро[\s\p{Zs}]+\p{Cyrillic}+`),
}

// okrugCodes are Moscow administrative okrug abbreviations. They are short
// enough to appear inside other words, so they only count as whole words.
var okrugCodes = regexp.MustCompile(`цао|сао|свао|вао|ювао|юао|юзао|зао|сзао|зелао|тинао`)

// satelliteCities are towns of the oblast whose addresses often omit the region.
var satelliteCities = []string{
	"балашиха", "химки", "подольск", "королев", "мытищи",
	"люберцы", "красногорск", "электросталь", "одинцово",
	"домодедово", "щелково", "раменское", "серпухов",
	"долгопрудный", "реутов", "жуковский", "лобня", "дубна",
}

// maxRewritePasses bounds the rewrite loop; real addresses settle in one or two.
const maxRewritePasses = 4

// Normalizer rewrites free-text addresses into a form the provider resolves
// reliably. The rule tables are package-level and shared; a Normalizer only
// carries switches, so it is safe for concurrent use.
type Normalizer struct {
	// StreetCorrections enables the forced street-name rewrites.
	StreetCorrections bool
	// InferRegion appends the city or region name when the text has neither.
	InferRegion bool
}

// NewNormalizer returns a Normalizer with region inference enabled.
func NewNormalizer(streetCorrections bool) *Normalizer {
	return &Normalizer{StreetCorrections: streetCorrections, InferRegion: true}
}

// Normalize canonicalises raw. It never fails; blank input yields "".
func (n *Normalizer) Normalize(raw string) NormalizedAddress {
	s := collapseSpaces(norm.NFC.String(raw))
	if s == "" {
		return ""
	}

	for range maxRewritePasses {
		next := n.rewrite(s)
		if next == s {
			break
		}
		s = next
	}

	if n.InferRegion {
		s = inferRegion(s)
	}
	return NormalizedAddress(s)
}

func (n *Normalizer) rewrite(s string) string {
	for _, rule := range abbreviationRules {
		s = rule.apply(s)
	}
	s = cleanup(s)
	if n.StreetCorrections {
		for _, rule := range streetCorrections {
			s = rule.apply(s)
		}
	}
	return s
}

func cleanup(s string) string {
	s = repeatedDotRe.ReplaceAllString(s, ".")
	s = repeatedCommaRe.ReplaceAllString(s, ",")
	return collapseSpaces(s)
}

func collapseSpaces(s string) string {
	return strings.TrimSpace(spaceRunRe.ReplaceAllString(s, " "))
}

// inferRegion appends the city when a Moscow landmark is mentioned, or the
// region when an oblast town is, and only if neither name is present yet.
func inferRegion(s string) string {
	lower := fold(s)
	if mentionsCity(lower) || mentionsRegion(lower) {
		return s
	}
	if isCityLandmark(lower) {
		return appendPart(s, cityName)
	}
	for _, town := range satelliteCities {
		if strings.Contains(lower, town) {
			return appendPart(s, regionName)
		}
	}
	return s
}

// appendPart adds a comma-separated part, dropping separators already
// trailing s so the result holds no empty parts.
func appendPart(s, part string) string {
	return strings.TrimRight(s, ",; ") + ", " + part
}

func isCityLandmark(lower string) bool {
	for _, re := range cityLandmarks {
		if re.MatchString(lower) {
			return true
		}
	}
	return containsWord(okrugCodes, lower)
}

func mentionsCity(lower string) bool   { return strings.Contains(lower, cityKey) }
func mentionsRegion(lower string) bool { return strings.Contains(lower, regionKey) }
