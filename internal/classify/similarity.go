package classify

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Similarity decides whether two token identities are near-duplicates.
type Similarity interface {
	// Match reports whether (nameA, symbolA) matches (nameB, symbolB).
	Match(nameA, symbolA, nameB, symbolB string) bool
}

// ExactSimilarity matches when either the names or the symbols are equal,
// case-insensitively. This is the default strategy.
type ExactSimilarity struct{}

func (ExactSimilarity) Match(nameA, symbolA, nameB, symbolB string) bool {
	if symbolA != "" && strings.EqualFold(symbolA, symbolB) {
		return true
	}
	return nameA != "" && strings.EqualFold(nameA, nameB)
}

// EditDistanceSimilarity matches when the normalized similarity of the
// names or of the symbols reaches Threshold (0..1, 1 = identical).
type EditDistanceSimilarity struct {
	Threshold float64
}

func (s EditDistanceSimilarity) Match(nameA, symbolA, nameB, symbolB string) bool {
	return similarityRatio(symbolA, symbolB) >= s.Threshold ||
		similarityRatio(nameA, nameB) >= s.Threshold
}

func similarityRatio(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if n := len([]rune(b)); n > longest {
		longest = n
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}
