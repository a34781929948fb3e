package match

import (
	"sort"

	"github.com/google/uuid"

	"geosync/internal/geo/models"
)

// Candidate pairs one canonical record with one store node. Candidates exist
// only for the duration of a solve.
type Candidate struct {
	Canonical int // index into the canonical slice
	Node      int // index into the node slice
	Score     float64
}

// Assignment is the solver's output for one parent scope.
type Assignment struct {
	// Matched maps canonical index to the claimed store node.
	Matched map[int]*models.Node
	// UnmatchedCanonical holds canonical records nothing claimed.
	UnmatchedCanonical []models.CanonicalRecord
	// UnmatchedNodes holds store nodes nothing claimed; these are duplicates
	// of some matched canonical and must be merged away.
	UnmatchedNodes []*models.Node
}

// MatchedNodeByCanonical returns the node claimed by the canonical record at
// index i, if any.
func (a *Assignment) MatchedNodeByCanonical(i int) (*models.Node, bool) {
	n, ok := a.Matched[i]
	return n, ok
}

// Solve computes a partial injective mapping canonical -> store node for one
// parent scope. Greedy maximum-weight approximation: all pairs scoring at
// least AcceptFloor are sorted by score descending (stable, so discovery
// order breaks ties) and accepted while both sides are unclaimed. Duplicate
// counts per scope are single digits in practice, which is why a greedy pass
// is used instead of an optimal assignment algorithm.
func Solve(canonical []models.CanonicalRecord, nodes []*models.Node) *Assignment {
	candidates := make([]Candidate, 0, len(canonical))
	for ci, rec := range canonical {
		for ni, node := range nodes {
			score := Similarity(rec.Name, node.Name)
			if score >= AcceptFloor {
				candidates = append(candidates, Candidate{Canonical: ci, Node: ni, Score: score})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	claimedCanonical := make(map[int]bool, len(canonical))
	claimedNode := make(map[int]bool, len(nodes))
	matched := make(map[int]*models.Node)

	for _, c := range candidates {
		if claimedCanonical[c.Canonical] || claimedNode[c.Node] {
			continue
		}
		claimedCanonical[c.Canonical] = true
		claimedNode[c.Node] = true
		matched[c.Canonical] = nodes[c.Node]
	}

	out := &Assignment{Matched: matched}
	for ci, rec := range canonical {
		if !claimedCanonical[ci] {
			out.UnmatchedCanonical = append(out.UnmatchedCanonical, rec)
		}
	}
	for ni, node := range nodes {
		if !claimedNode[ni] {
			out.UnmatchedNodes = append(out.UnmatchedNodes, node)
		}
	}
	return out
}

// BestTarget picks the matched store node whose canonical name scores highest
// against the duplicate's name. No floor applies: a duplicate is merged into
// the best available target even when its closest canonical match scores low.
func (a *Assignment) BestTarget(canonical []models.CanonicalRecord, dup *models.Node) (uuid.UUID, bool) {
	bestScore := -1.0
	var bestID uuid.UUID
	found := false
	// Walk canonical indices in order so score ties resolve deterministically.
	for ci := range canonical {
		node, ok := a.Matched[ci]
		if !ok {
			continue
		}
		score := Similarity(dup.Name, canonical[ci].Name)
		if score > bestScore {
			bestScore = score
			bestID = node.ID
			found = true
		}
	}
	return bestID, found
}
