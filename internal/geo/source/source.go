package source

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"geosync/internal/geo/models"
)

// FormatError reports a structurally invalid source document. It is fatal:
// the engine aborts before any mutation when the source cannot be trusted.
type FormatError struct {
	Section string
	Row     int // 1-based, 0 when the section itself is missing
	Reason  string
}

func (e *FormatError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("source section %q: %s", e.Section, e.Reason)
	}
	return fmt.Sprintf("source section %q row %d: %s", e.Section, e.Row, e.Reason)
}

// Dataset is one parsed authoritative source for a reconciliation run.
type Dataset struct {
	States []models.CanonicalRecord
	LGAs   []models.CanonicalRecord
	Wards  []models.CanonicalRecord
}

// Records returns the canonical rows for one hierarchy level.
func (d *Dataset) Records(level models.Level) []models.CanonicalRecord {
	switch level {
	case models.LevelState:
		return d.States
	case models.LevelLGA:
		return d.LGAs
	case models.LevelWard:
		return d.Wards
	}
	return nil
}

// ExpectedCount is the authoritative row count for one level, used by the
// validator as the operator-supplied expected total.
func (d *Dataset) ExpectedCount(level models.Level) int {
	return len(d.Records(level))
}

type document struct {
	States []stateRow `json:"states"`
	LGAs   []lgaRow   `json:"lgas"`
	Wards  []wardRow  `json:"wards"`
}

type stateRow struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type lgaRow struct {
	Name      string `json:"name"`
	Code      string `json:"code"`
	StateCode string `json:"state_code"`
}

type wardRow struct {
	Name    string `json:"name"`
	Code    string `json:"code"`
	LGACode string `json:"lga_code"`
}

// Load parses and validates an authoritative source document.
func Load(r io.Reader) (*Dataset, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode source document: %w", err)
	}

	if len(doc.States) == 0 {
		return nil, &FormatError{Section: "states", Reason: "section missing or empty"}
	}
	if len(doc.LGAs) == 0 {
		return nil, &FormatError{Section: "lgas", Reason: "section missing or empty"}
	}
	if len(doc.Wards) == 0 {
		return nil, &FormatError{Section: "wards", Reason: "section missing or empty"}
	}

	ds := &Dataset{}
	for i, row := range doc.States {
		if row.Name == "" || row.Code == "" {
			return nil, &FormatError{Section: "states", Row: i + 1, Reason: "name and code are required"}
		}
		ds.States = append(ds.States, models.CanonicalRecord{Name: row.Name, Code: row.Code})
	}
	for i, row := range doc.LGAs {
		if row.Name == "" || row.Code == "" {
			return nil, &FormatError{Section: "lgas", Row: i + 1, Reason: "name and code are required"}
		}
		if row.StateCode == "" {
			return nil, &FormatError{Section: "lgas", Row: i + 1, Reason: "state_code is required"}
		}
		ds.LGAs = append(ds.LGAs, models.CanonicalRecord{Name: row.Name, Code: row.Code, ParentCode: row.StateCode})
	}
	for i, row := range doc.Wards {
		if row.Name == "" || row.Code == "" {
			return nil, &FormatError{Section: "wards", Row: i + 1, Reason: "name and code are required"}
		}
		if row.LGACode == "" {
			return nil, &FormatError{Section: "wards", Row: i + 1, Reason: "lga_code is required"}
		}
		ds.Wards = append(ds.Wards, models.CanonicalRecord{Name: row.Name, Code: row.Code, ParentCode: row.LGACode})
	}
	return ds, nil
}

// LoadFile loads an authoritative source document from disk.
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer f.Close()
	return Load(f)
}
