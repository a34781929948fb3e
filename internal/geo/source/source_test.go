package source

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"geosync/internal/geo/models"
)

type SourceSuite struct {
	suite.Suite
}

func TestSourceSuite(t *testing.T) {
	suite.Run(t, new(SourceSuite))
}

const validDocument = `{
  "states": [{"name": "Bayelsa", "code": "BY"}],
  "lgas": [
    {"name": "Ekeremor", "code": "EKM", "state_code": "BY"},
    {"name": "Sagbama", "code": "SGB", "state_code": "BY"}
  ],
  "wards": [{"name": "Ward One", "code": "W1", "lga_code": "EKM"}]
}`

func (s *SourceSuite) TestLoadValidDocument() {
	ds, err := Load(strings.NewReader(validDocument))
	s.Require().NoError(err)

	s.Len(ds.States, 1)
	s.Require().Len(ds.LGAs, 2)
	s.Equal("Ekeremor", ds.LGAs[0].Name)
	s.Equal("BY", ds.LGAs[0].ParentCode)
	s.Require().Len(ds.Wards, 1)
	s.Equal("EKM", ds.Wards[0].ParentCode)

	s.Equal(2, ds.ExpectedCount(models.LevelLGA))
	s.Equal(ds.LGAs, ds.Records(models.LevelLGA))
}

func (s *SourceSuite) TestMissingSectionIsFatal() {
	doc := `{"states": [{"name": "Bayelsa", "code": "BY"}], "lgas": [{"name": "Ekeremor", "code": "EKM", "state_code": "BY"}]}`
	_, err := Load(strings.NewReader(doc))
	s.Require().Error(err)

	var formatErr *FormatError
	s.Require().ErrorAs(err, &formatErr)
	s.Equal("wards", formatErr.Section)
	s.Equal(0, formatErr.Row)
}

func (s *SourceSuite) TestRowMissingRequiredField() {
	doc := `{
      "states": [{"name": "Bayelsa", "code": "BY"}],
      "lgas": [
        {"name": "Ekeremor", "code": "EKM", "state_code": "BY"},
        {"name": "Sagbama", "code": "SGB"}
      ],
      "wards": [{"name": "Ward One", "code": "W1", "lga_code": "EKM"}]
    }`
	_, err := Load(strings.NewReader(doc))

	var formatErr *FormatError
	s.Require().ErrorAs(err, &formatErr)
	s.Equal("lgas", formatErr.Section)
	s.Equal(2, formatErr.Row)
	s.Contains(formatErr.Error(), "state_code")
}

func (s *SourceSuite) TestMalformedJSON() {
	_, err := Load(strings.NewReader(`{"states": [`))
	s.Require().Error(err)
	var formatErr *FormatError
	s.False(strings.Contains(err.Error(), "row"), "decode errors carry no row context")
	s.NotErrorAs(err, &formatErr)
}
