package source

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"geosync/internal/geo/models"
	"geosync/internal/geo/store"
)

type SeedSuite struct {
	suite.Suite
	ctx    context.Context
	store  *store.InMemory
	seeder *Seeder
}

func TestSeedSuite(t *testing.T) {
	suite.Run(t, new(SeedSuite))
}

func (s *SeedSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
	s.seeder = NewSeeder(s.store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const seedDoc = `{
  "states": [
    {
      "name": "Bayelsa",
      "code": "BY",
      "lgas": [
        {
          "name": "Ekeremor",
          "code": "EKM",
          "wards": [
            {"name": "Ward One", "code": "W1"},
            {"name": "Ward Two", "code": "W2"}
          ]
        },
        {"name": "Sagbama", "code": "SGB", "wards": []}
      ]
    }
  ]
}`

func (s *SeedSuite) TestApplyPopulatesEmptyStore() {
	tree, err := LoadSeed(strings.NewReader(seedDoc))
	s.Require().NoError(err)
	s.Require().NoError(s.seeder.Apply(s.ctx, tree))

	states, err := s.store.ListNodes(s.ctx, models.LevelState, nil)
	s.Require().NoError(err)
	s.Require().Len(states, 1)

	lgas, err := s.store.ListNodes(s.ctx, models.LevelLGA, &states[0].ID)
	s.Require().NoError(err)
	s.Require().Len(lgas, 2)
	s.Equal("Ekeremor", lgas[0].Name)

	wards, err := s.store.ListNodes(s.ctx, models.LevelWard, &lgas[0].ID)
	s.Require().NoError(err)
	s.Len(wards, 2)
}

func (s *SeedSuite) TestApplyIsRerunSafe() {
	tree, err := LoadSeed(strings.NewReader(seedDoc))
	s.Require().NoError(err)
	s.Require().NoError(s.seeder.Apply(s.ctx, tree))
	s.Require().NoError(s.seeder.Apply(s.ctx, tree))

	total, err := s.store.CountNodes(s.ctx, models.LevelWard)
	s.Require().NoError(err)
	s.Equal(2, total)
}

func (s *SeedSuite) TestRerunFillsPartialSubtree() {
	// A state left behind by a partial run must not block its children.
	partial := `{"states": [{"name": "Bayelsa", "code": "BY", "lgas": []}]}`
	tree, err := LoadSeed(strings.NewReader(partial))
	s.Require().NoError(err)
	s.Require().NoError(s.seeder.Apply(s.ctx, tree))

	tree, err = LoadSeed(strings.NewReader(seedDoc))
	s.Require().NoError(err)
	s.Require().NoError(s.seeder.Apply(s.ctx, tree))

	states, err := s.store.ListNodes(s.ctx, models.LevelState, nil)
	s.Require().NoError(err)
	s.Require().Len(states, 1)
	lgas, err := s.store.ListNodes(s.ctx, models.LevelLGA, &states[0].ID)
	s.Require().NoError(err)
	s.Len(lgas, 2)
}

func (s *SeedSuite) TestLoadSeedRejectsEmptyTree() {
	_, err := LoadSeed(strings.NewReader(`{"states": []}`))
	var formatErr *FormatError
	s.Require().ErrorAs(err, &formatErr)
	s.Equal("states", formatErr.Section)
}

func (s *SeedSuite) TestLoadSeedRejectsIncompleteWard() {
	doc := `{"states": [{"name": "Bayelsa", "code": "BY", "lgas": [
      {"name": "Ekeremor", "code": "EKM", "wards": [{"name": "Ward One"}]}
    ]}]}`
	_, err := LoadSeed(strings.NewReader(doc))
	var formatErr *FormatError
	s.Require().ErrorAs(err, &formatErr)
	s.Equal("wards", formatErr.Section)
	s.Equal(1, formatErr.Row)
}
