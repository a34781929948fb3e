package match

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"geosync/internal/geo/models"
)

type SolverSuite struct {
	suite.Suite
}

func TestSolverSuite(t *testing.T) {
	suite.Run(t, new(SolverSuite))
}

func records(names ...string) []models.CanonicalRecord {
	out := make([]models.CanonicalRecord, len(names))
	for i, name := range names {
		out[i] = models.CanonicalRecord{Name: name, Code: name}
	}
	return out
}

func nodes(level models.Level, names ...string) []*models.Node {
	out := make([]*models.Node, len(names))
	for i, name := range names {
		out[i] = &models.Node{ID: uuid.New(), Level: level, Name: name, Code: name}
	}
	return out
}

func (s *SolverSuite) TestExactMatchesClaimFirst() {
	canonical := records("Ekeremor", "Sagbama")
	existing := nodes(models.LevelLGA, "Ekeremor North", "EKEREMOR", "Sagbama")

	a := Solve(canonical, existing)

	got, ok := a.MatchedNodeByCanonical(0)
	s.Require().True(ok)
	s.Equal("EKEREMOR", got.Name)

	got, ok = a.MatchedNodeByCanonical(1)
	s.Require().True(ok)
	s.Equal("Sagbama", got.Name)

	s.Empty(a.UnmatchedCanonical)
	s.Require().Len(a.UnmatchedNodes, 1)
	s.Equal("Ekeremor North", a.UnmatchedNodes[0].Name)
}

func (s *SolverSuite) TestEachSideClaimedAtMostOnce() {
	canonical := records("Ekeremor")
	existing := nodes(models.LevelLGA, "Ekeremor", "Ekeremor North", "Ekermor")

	a := Solve(canonical, existing)

	s.Len(a.Matched, 1)
	s.Len(a.UnmatchedNodes, 2)
	s.Empty(a.UnmatchedCanonical)
}

func (s *SolverSuite) TestBelowFloorStaysUnmatched() {
	canonical := records("Ekeremor")
	existing := nodes(models.LevelLGA, "Zqx")

	a := Solve(canonical, existing)

	s.Empty(a.Matched)
	s.Len(a.UnmatchedCanonical, 1)
	s.Len(a.UnmatchedNodes, 1)
}

func (s *SolverSuite) TestDeterministicAcrossRuns() {
	canonical := records("Bursari", "Bursuari")
	existing := nodes(models.LevelLGA, "Bursari", "Bursuari", "Bursar")

	first := Solve(canonical, existing)
	for i := 0; i < 20; i++ {
		again := Solve(canonical, existing)
		s.Require().Equal(len(first.Matched), len(again.Matched))
		for ci, node := range first.Matched {
			other, ok := again.Matched[ci]
			s.Require().True(ok)
			s.Require().Equal(node.ID, other.ID)
		}
		s.Require().Equal(first.UnmatchedNodes, again.UnmatchedNodes)
		s.Require().Equal(first.UnmatchedCanonical, again.UnmatchedCanonical)
	}
}

func (s *SolverSuite) TestBestTarget() {
	canonical := records("Ekeremor", "Sagbama")
	existing := nodes(models.LevelLGA, "Ekeremor", "Sagbama")

	a := Solve(canonical, existing)

	s.Run("duplicate lands on its closest matched node", func() {
		dup := &models.Node{ID: uuid.New(), Level: models.LevelLGA, Name: "Ekeremor North"}
		id, ok := a.BestTarget(canonical, dup)
		s.Require().True(ok)
		s.Equal(existing[0].ID, id)
	})

	s.Run("no floor applies", func() {
		dup := &models.Node{ID: uuid.New(), Level: models.LevelLGA, Name: "Zqx"}
		_, ok := a.BestTarget(canonical, dup)
		s.True(ok)
	})

	s.Run("nothing matched means no target", func() {
		empty := &Assignment{Matched: map[int]*models.Node{}}
		dup := &models.Node{ID: uuid.New(), Level: models.LevelLGA, Name: "Ekeremor"}
		_, ok := empty.BestTarget(canonical, dup)
		s.False(ok)
	})
}
