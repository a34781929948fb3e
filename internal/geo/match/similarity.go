package match

import "strings"

// Empirically tuned against the source dataset's known-duplicate list; not
// universal truths. Containment must outrank any near-miss edit-distance
// score so that directional-suffix variants ("Ekeremor North") beat spelling
// variants ("Bursuari") when both compete for the same canonical record.
const (
	// AcceptFloor is the minimum score the assignment solver considers.
	AcceptFloor = 0.5
	// ContainmentScore is awarded when one strict key contains the other.
	ContainmentScore = 0.85
)

// Similarity scores two display names in [0, 1]. Exact strict-key equality
// scores 1.0, strict-key containment scores ContainmentScore, everything
// else falls back to normalized Levenshtein distance over the strict keys.
func Similarity(a, b string) float64 {
	keyA := StrictKey(a)
	keyB := StrictKey(b)

	if keyA == keyB {
		return 1.0
	}
	if keyA != "" && keyB != "" &&
		(strings.Contains(keyA, keyB) || strings.Contains(keyB, keyA)) {
		return ContainmentScore
	}
	if keyA == "" || keyB == "" {
		return 0
	}

	maxLen := len(keyA)
	if len(keyB) > maxLen {
		maxLen = len(keyB)
	}
	return 1.0 - float64(levenshtein(keyA, keyB))/float64(maxLen)
}
