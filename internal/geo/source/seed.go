package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"geosync/internal/geo/models"
	"geosync/internal/geo/store"
)

// The nested seed document carries full state→LGA→ward trees with explicit
// ward lists. It is used once, to populate an empty store; reconciliation
// runs use the flat three-section document instead.

type seedState struct {
	Name string    `json:"name"`
	Code string    `json:"code"`
	LGAs []seedLGA `json:"lgas"`
}

type seedLGA struct {
	Name  string     `json:"name"`
	Code  string     `json:"code"`
	Wards []seedWard `json:"wards"`
}

type seedWard struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type seedDocument struct {
	States []seedState `json:"states"`
}

// SeedTree is one parsed nested seed document.
type SeedTree struct {
	States []seedState
}

// LoadSeed parses and validates a nested seed document.
func LoadSeed(r io.Reader) (*SeedTree, error) {
	var doc seedDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode seed document: %w", err)
	}
	if len(doc.States) == 0 {
		return nil, &FormatError{Section: "states", Reason: "section missing or empty"}
	}
	for i, st := range doc.States {
		if st.Name == "" || st.Code == "" {
			return nil, &FormatError{Section: "states", Row: i + 1, Reason: "name and code are required"}
		}
		for j, lga := range st.LGAs {
			if lga.Name == "" || lga.Code == "" {
				return nil, &FormatError{Section: "lgas", Row: j + 1, Reason: "name and code are required"}
			}
			for k, ward := range lga.Wards {
				if ward.Name == "" || ward.Code == "" {
					return nil, &FormatError{Section: "wards", Row: k + 1, Reason: "name and code are required"}
				}
			}
		}
	}
	return &SeedTree{States: doc.States}, nil
}

// LoadSeedFile loads a nested seed document from disk.
func LoadSeedFile(path string) (*SeedTree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return LoadSeed(f)
}

// Seeder performs first-time population of an empty store from a SeedTree.
type Seeder struct {
	store  store.Store
	logger *slog.Logger
}

func NewSeeder(st store.Store, logger *slog.Logger) *Seeder {
	return &Seeder{store: st, logger: logger}
}

// Apply creates every node in the tree. Code collisions mean the node was
// already seeded by a prior run; the existing node is reused so its subtree
// still gets filled in, making Apply safe to re-run.
func (s *Seeder) Apply(ctx context.Context, tree *SeedTree) error {
	created := 0
	for _, st := range tree.States {
		stateNode, fresh, err := s.ensureNode(ctx, models.LevelState, nil, st.Name, st.Code)
		if err != nil {
			return err
		}
		if fresh {
			created++
		}
		for _, lga := range st.LGAs {
			lgaNode, fresh, err := s.ensureNode(ctx, models.LevelLGA, &stateNode.ID, lga.Name, lga.Code)
			if err != nil {
				return err
			}
			if fresh {
				created++
			}
			for _, ward := range lga.Wards {
				_, fresh, err := s.ensureNode(ctx, models.LevelWard, &lgaNode.ID, ward.Name, ward.Code)
				if err != nil {
					return err
				}
				if fresh {
					created++
				}
			}
		}
	}
	s.logger.Info("seed applied", "nodes_created", created)
	return nil
}

func (s *Seeder) ensureNode(ctx context.Context, level models.Level, parentID *uuid.UUID, name, code string) (*models.Node, bool, error) {
	node, err := models.NewNode(level, parentID, name, code)
	if err != nil {
		return nil, false, err
	}
	if err := s.store.CreateNode(ctx, node); err != nil {
		if errors.Is(err, store.ErrConflict) {
			existing, findErr := s.findByCode(ctx, level, parentID, code)
			if findErr != nil {
				return nil, false, findErr
			}
			s.logger.Warn("seed node already exists, reusing",
				"level", level.String(), "name", name, "code", code)
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("seed %s %q: %w", level, name, err)
	}
	return node, true, nil
}

func (s *Seeder) findByCode(ctx context.Context, level models.Level, parentID *uuid.UUID, code string) (*models.Node, error) {
	siblings, err := s.store.ListNodes(ctx, level, parentID)
	if err != nil {
		return nil, err
	}
	for _, sib := range siblings {
		if sib.Code == code {
			return sib, nil
		}
	}
	return nil, fmt.Errorf("seed %s code %q: conflicting node not found", level, code)
}
