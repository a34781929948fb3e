package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"geosync/internal/geo/models"
)

type MemoryStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemory
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemory()
}

func (s *MemoryStoreSuite) addState(name string) *models.Node {
	node, err := models.NewNode(models.LevelState, nil, name, name)
	s.Require().NoError(err)
	s.store.AddNode(node)
	return node
}

func (s *MemoryStoreSuite) addChild(level models.Level, parent *models.Node, name string) *models.Node {
	node, err := models.NewNode(level, &parent.ID, name, name)
	s.Require().NoError(err)
	s.store.AddNode(node)
	return node
}

func (s *MemoryStoreSuite) TestCreateAndGet() {
	node, err := models.NewNode(models.LevelState, nil, "Bayelsa", "BY")
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateNode(s.ctx, node))

	got, err := s.store.GetNode(s.ctx, models.LevelState, node.ID)
	s.Require().NoError(err)
	s.Equal("Bayelsa", got.Name)
	s.Equal("BY", got.Code)

	_, err = s.store.GetNode(s.ctx, models.LevelLGA, node.ID)
	s.ErrorIs(err, ErrNotFound)
}

func (s *MemoryStoreSuite) TestCreateConflictsOnSiblingCode() {
	state := s.addState("Bayelsa")
	first, err := models.NewNode(models.LevelLGA, &state.ID, "Ekeremor", "EKM")
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateNode(s.ctx, first))

	dup, err := models.NewNode(models.LevelLGA, &state.ID, "Ekeremor Again", "EKM")
	s.Require().NoError(err)
	s.ErrorIs(s.store.CreateNode(s.ctx, dup), ErrConflict)

	// Same code under a different parent is fine.
	other := s.addState("Yobe")
	elsewhere, err := models.NewNode(models.LevelLGA, &other.ID, "Elsewhere", "EKM")
	s.Require().NoError(err)
	s.NoError(s.store.CreateNode(s.ctx, elsewhere))
}

func (s *MemoryStoreSuite) TestRename() {
	state := s.addState("Bayelsa")
	lga := s.addChild(models.LevelLGA, state, "Ekermor")
	s.addChild(models.LevelLGA, state, "Sagbama")

	s.Run("plain rename succeeds", func() {
		s.Require().NoError(s.store.RenameNode(s.ctx, models.LevelLGA, lga.ID, "Ekeremor", "EKM"))
		got, err := s.store.GetNode(s.ctx, models.LevelLGA, lga.ID)
		s.Require().NoError(err)
		s.Equal("Ekeremor", got.Name)
		s.Equal("EKM", got.Code)
	})

	s.Run("sibling name collision conflicts case-insensitively", func() {
		err := s.store.RenameNode(s.ctx, models.LevelLGA, lga.ID, "SAGBAMA", "EKM")
		s.ErrorIs(err, ErrConflict)
	})

	s.Run("missing node", func() {
		err := s.store.RenameNode(s.ctx, models.LevelLGA, uuid.New(), "X", "X")
		s.ErrorIs(err, ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestListNodesScoped() {
	state := s.addState("Bayelsa")
	other := s.addState("Yobe")
	s.addChild(models.LevelLGA, state, "Sagbama")
	s.addChild(models.LevelLGA, state, "Ekeremor")
	s.addChild(models.LevelLGA, other, "Bursari")

	scoped, err := s.store.ListNodes(s.ctx, models.LevelLGA, &state.ID)
	s.Require().NoError(err)
	s.Require().Len(scoped, 2)
	// Sorted by name for deterministic solver input.
	s.Equal("Ekeremor", scoped[0].Name)
	s.Equal("Sagbama", scoped[1].Name)

	all, err := s.store.ListNodes(s.ctx, models.LevelLGA, nil)
	s.Require().NoError(err)
	s.Len(all, 3)
}

func (s *MemoryStoreSuite) TestRepointDependents() {
	state := s.addState("Bayelsa")
	loser := s.addChild(models.LevelLGA, state, "Ekeremor North")
	winner := s.addChild(models.LevelLGA, state, "Ekeremor")

	memberRow := s.store.AddDependent("members", map[string]uuid.UUID{"lga_id": loser.ID})
	taskRow := s.store.AddDependent("micro_tasks", map[string]uuid.UUID{"lga_id": loser.ID})
	untouched := s.store.AddDependent("members", map[string]uuid.UUID{"lga_id": winner.ID})

	moved, err := s.store.RepointDependents(s.ctx, models.LevelLGA, loser.ID, winner.ID)
	s.Require().NoError(err)
	s.Equal(int64(2), moved)

	for _, probe := range []struct {
		table string
		row   uuid.UUID
	}{{"members", memberRow}, {"micro_tasks", taskRow}, {"members", untouched}} {
		fk, ok := s.store.DependentRef(probe.table, probe.row, "lga_id")
		s.Require().True(ok)
		s.Require().NotNil(fk)
		s.Equal(winner.ID, *fk)
	}

	count, err := s.store.CountDependents(s.ctx, models.LevelLGA, winner.ID)
	s.Require().NoError(err)
	s.Equal(int64(3), count)
}

func (s *MemoryStoreSuite) TestRepointMovesPollingUnits() {
	state := s.addState("Bayelsa")
	lga := s.addChild(models.LevelLGA, state, "Ekeremor")
	loser := s.addChild(models.LevelWard, lga, "Ward One Old")
	winner := s.addChild(models.LevelWard, lga, "Ward One")

	pu := &models.PollingUnit{ID: uuid.New(), WardID: loser.ID, Name: "Unit 001", Code: "001"}
	s.store.AddPollingUnit(pu)

	moved, err := s.store.RepointDependents(s.ctx, models.LevelWard, loser.ID, winner.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), moved)

	units, err := s.store.ListPollingUnits(s.ctx, winner.ID)
	s.Require().NoError(err)
	s.Require().Len(units, 1)
	s.Equal("Unit 001", units[0].Name)
}

func (s *MemoryStoreSuite) TestOrphanQueries() {
	state := s.addState("Bayelsa")
	lga := s.addChild(models.LevelLGA, state, "Ekeremor")
	attached := s.addChild(models.LevelWard, lga, "Attached")

	ghostParent := uuid.New()
	orphan, err := models.NewNode(models.LevelWard, &ghostParent, "Adrift", "ADR")
	s.Require().NoError(err)
	s.store.AddNode(orphan)

	orphans, err := s.store.OrphanNodes(s.ctx, models.LevelWard)
	s.Require().NoError(err)
	s.Require().Len(orphans, 1)
	s.Equal("Adrift", orphans[0].Name)

	s.store.AddPollingUnit(&models.PollingUnit{ID: uuid.New(), WardID: attached.ID, Name: "Kept", Code: "K"})
	s.store.AddPollingUnit(&models.PollingUnit{ID: uuid.New(), WardID: uuid.New(), Name: "Lost", Code: "L"})

	lost, err := s.store.OrphanPollingUnits(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(lost, 1)
	s.Equal("Lost", lost[0].Name)
}

func (s *MemoryStoreSuite) TestNullDanglingRefs() {
	state := s.addState("Bayelsa")
	lga := s.addChild(models.LevelLGA, state, "Ekeremor")

	ghost := uuid.New()
	dangling := s.store.AddDependent("members", map[string]uuid.UUID{"lga_id": ghost})
	healthy := s.store.AddDependent("members", map[string]uuid.UUID{"lga_id": lga.ID})

	counts, err := s.store.CountDanglingRefs(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, counts["members.lga_id"])

	cleared, err := s.store.NullDanglingRefs(s.ctx, models.LevelLGA)
	s.Require().NoError(err)
	s.Equal(int64(1), cleared)

	fk, ok := s.store.DependentRef("members", dangling, "lga_id")
	s.Require().True(ok)
	s.Nil(fk)

	fk, ok = s.store.DependentRef("members", healthy, "lga_id")
	s.Require().True(ok)
	s.Require().NotNil(fk)
	s.Equal(lga.ID, *fk)

	counts, err = s.store.CountDanglingRefs(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, counts["members.lga_id"])
}

func (s *MemoryStoreSuite) TestDeletePollingUnitCascadesArtifacts() {
	state := s.addState("Bayelsa")
	lga := s.addChild(models.LevelLGA, state, "Ekeremor")
	ward := s.addChild(models.LevelWard, lga, "Ward One")

	pu := &models.PollingUnit{ID: uuid.New(), WardID: ward.ID, Name: "Unit 001", Code: "001"}
	s.store.AddPollingUnit(pu)
	s.store.AddArtifact("election_results", pu.ID)
	s.store.AddArtifact("incident_reports", pu.ID)

	keeper := &models.PollingUnit{ID: uuid.New(), WardID: ward.ID, Name: "Unit 002", Code: "002"}
	s.store.AddPollingUnit(keeper)
	s.store.AddArtifact("election_results", keeper.ID)

	s.Require().NoError(s.store.DeletePollingUnit(s.ctx, pu.ID))

	s.Equal(1, s.store.CountArtifacts("election_results"))
	s.Equal(0, s.store.CountArtifacts("incident_reports"))
	s.ErrorIs(s.store.DeletePollingUnit(s.ctx, pu.ID), ErrNotFound)
}

func (s *MemoryStoreSuite) TestCounts() {
	state := s.addState("Bayelsa")
	other := s.addState("Yobe")
	s.addChild(models.LevelLGA, state, "Ekeremor")
	s.addChild(models.LevelLGA, state, "Sagbama")
	s.addChild(models.LevelLGA, other, "Bursari")

	total, err := s.store.CountNodes(s.ctx, models.LevelLGA)
	s.Require().NoError(err)
	s.Equal(3, total)

	perParent, err := s.store.CountByParent(s.ctx, models.LevelLGA)
	s.Require().NoError(err)
	s.Equal(2, perParent[state.ID])
	s.Equal(1, perParent[other.ID])
}
