package domain

import (
	"math"
	"regexp"
	"strings"
)

// GeoCandidate is one location returned by the provider for a query.
type GeoCandidate struct {
	Lat         float64
	Lon         float64
	Name        string
	Description string
	// Address is the provider's full formatted address, when it sends one.
	Address string
	// Kind and Precision are provider hints ("house", "exact", ...).
	Kind      string
	Precision string
	// Rank is the position in the provider response, starting at 0.
	Rank int
}

// Text is the candidate's name and description joined the way scoring reads them.
func (c GeoCandidate) Text() string {
	return c.Name + ", " + c.Description
}

// FullAddress returns the provider address, falling back to name and description.
func (c GeoCandidate) FullAddress() string {
	if c.Address != "" {
		return c.Address
	}
	return c.Text()
}

// ScoredCandidate is a candidate that survived the region filter.
type ScoredCandidate struct {
	GeoCandidate
	Score float64
}

// ScoringWeights are heuristic tuning values for candidate selection.
type ScoringWeights struct {
	CityMatch       float64
	RegionMatch     float64
	HouseMatch      float64
	DistancePenalty float64 // per degree of euclidean distance from the centre
	RankBonus       float64 // multiplied by (MaxCandidates - rank)
	MaxCandidates   int
}

// DefaultWeights returns the weights the journal tools were tuned with.
func DefaultWeights() ScoringWeights {
	return ScoringWeights{
		CityMatch:       10,
		RegionMatch:     10,
		HouseMatch:      5,
		DistancePenalty: 10,
		RankBonus:       2,
		MaxCandidates:   5,
	}
}

var (
	// houseMarkerRe matches a short house/building code followed by digits: "д. 10", "к2", "стр 3".
	houseMarkerRe = regexp.MustCompile(`(?i)(?:^|[^\p{L}\d])(?:д|дом|вл|влд|к|корп|стр)\.?[\s\p{Zs}]*\d+`)

	// trailingHouseRe matches the ", 10" suffix the provider uses for house-level results.
	trailingHouseRe = regexp.MustCompile(`,[\s\p{Zs}]*\d+`)
)

// Selector filters candidates to the region and picks the best-scoring one.
type Selector struct {
	Bounds  RegionBounds
	Center  Point
	Weights ScoringWeights
}

// NewSelector returns a Selector for the Moscow region with the given weights.
func NewSelector(w ScoringWeights) Selector {
	return Selector{Bounds: MoscowRegion, Center: MoscowCenter, Weights: w}
}

// Score computes a candidate's score against the original address text.
func (s Selector) Score(c GeoCandidate, original string) float64 {
	orig := fold(original)
	text := fold(c.Text())

	var score float64
	if mentionsCity(orig) && mentionsCity(text) {
		score += s.Weights.CityMatch
	}
	if mentionsRegion(orig) && mentionsRegion(text) {
		score += s.Weights.RegionMatch
	}
	if houseMarkerRe.MatchString(orig) && hasHouseMarker(text) {
		score += s.Weights.HouseMatch
	}
	score -= math.Hypot(c.Lat-s.Center.Lat, c.Lon-s.Center.Lon) * s.Weights.DistancePenalty
	score += float64(s.Weights.MaxCandidates-c.Rank) * s.Weights.RankBonus
	return score
}

// Select returns the highest-scoring in-region candidate. Ties go to the
// candidate the provider ranked first. ok is false when nothing survives.
func (s Selector) Select(candidates []GeoCandidate, original string) (best ScoredCandidate, ok bool) {
	for _, c := range candidates {
		if s.Weights.MaxCandidates > 0 && c.Rank >= s.Weights.MaxCandidates {
			continue
		}
		if !s.Bounds.Contains(c.Lat, c.Lon) {
			continue
		}
		scored := ScoredCandidate{GeoCandidate: c, Score: s.Score(c, original)}
		if !ok || scored.Score > best.Score || (scored.Score == best.Score && scored.Rank < best.Rank) {
			best, ok = scored, true
		}
	}
	return best, ok
}

func hasHouseMarker(text string) bool {
	return houseMarkerRe.MatchString(text) || trailingHouseRe.MatchString(text) || strings.Contains(text, "дом")
}
