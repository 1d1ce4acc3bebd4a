package domain

import (
	"math"
	"sort"
	"strings"
)

const (
	// Scoring weights
	ScoreExactMatch     = 100.0
	ScorePrefixMatch    = 75.0
	ScoreSubstringMatch = 50.0
	ScoreFuzzyMatch     = 25.0

	// Position bonus (earlier is better)
	ScorePositionBonus = 10.0

	// Matches on the package id weigh more than matches on the title
	ScoreIDWeight    = 1.0
	ScoreTitleWeight = 0.6

	// Recency bonus: newer feed entries win ties
	ScoreRecencyBonus = 5.0
)

// Candidate represents a package candidate with its match score
type Candidate struct {
	Package *Package
	Score   float64
}

// ScorePackage calculates the match score for a package against a query
func ScorePackage(query string, pkg *Package) float64 {
	query = normalizeFragment(query)
	if pkg == nil || query == "" {
		return 0.0
	}

	idScore := scoreFragment(query, pkg.ID, 0) * ScoreIDWeight

	titleScore := 0.0
	for i, word := range strings.Fields(pkg.Title) {
		if s := scoreFragment(query, word, i) * ScoreTitleWeight; s > titleScore {
			titleScore = s
		}
	}
	// Whole-title match, e.g. "docker tools" against "Docker Tools"
	if s := scoreFragment(query, pkg.Title, 0) * ScoreTitleWeight; s > titleScore {
		titleScore = s
	}

	return math.Max(idScore, titleScore)
}

// scoreFragment scores a query against one candidate string
func scoreFragment(query, candidate string, position int) float64 {
	query = normalizeFragment(query)
	candidate = normalizeFragment(candidate)

	if query == "" || candidate == "" {
		return 0.0
	}

	// Exact match
	if query == candidate {
		return ScoreExactMatch + calculatePositionBonus(position)
	}

	// Prefix match
	if strings.HasPrefix(candidate, query) {
		return ScorePrefixMatch + calculatePositionBonus(position)
	}

	// Substring match
	if strings.Contains(candidate, query) {
		index := strings.Index(candidate, query)
		// Earlier substring matches get higher score
		substringBonus := ScorePositionBonus * (1.0 - float64(index)/float64(len(candidate)))
		return ScoreSubstringMatch + substringBonus
	}

	// Fuzzy match
	similarity := calculateSimilarity(query, candidate)
	if similarity > 0.5 {
		return ScoreFuzzyMatch * similarity
	}

	return 0.0
}

// calculatePositionBonus gives bonus for earlier positions
func calculatePositionBonus(position int) float64 {
	return ScorePositionBonus * math.Exp(-float64(position)*0.3)
}

// calculateSimilarity calculates fuzzy similarity between two strings
func calculateSimilarity(s1, s2 string) float64 {
	if s1 == "" || s2 == "" {
		return 0.0
	}

	// Simple similarity: ratio of matching characters
	matches := 0
	for _, c := range s1 {
		if strings.ContainsRune(s2, c) {
			matches++
		}
	}

	return float64(matches) / float64(len([]rune(s1)))
}

func normalizeFragment(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// RankPackages returns the packages matching query, best first.
// Newer feed entries get a small bonus so ties go to the latest publish.
func RankPackages(query string, packages []*Package) []*Candidate {
	candidates := make([]*Candidate, 0, len(packages))

	for _, pkg := range packages {
		score := ScorePackage(query, pkg)
		if score == 0.0 {
			continue
		}
		score += ScoreRecencyBonus / float64(pkg.Position+1)
		candidates = append(candidates, &Candidate{Package: pkg, Score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}
