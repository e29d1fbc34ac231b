package lineup

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// RequiredHeaders are the columns a lineup CSV must carry, in canonical
// export order.
var RequiredHeaders = []string{
	"driver_name",
	"team_name",
	"grid_position",
	"qualy_gap_ms",
	"fp_longrun_pace_s",
	"straightline_index",
	"cornering_index",
	"pit_crew_mean_s",
	"dnf_rate",
	"speed_trap_kph",
}

// Optional columns recognised when present.
const (
	colWetSkill       = "wet_skill"
	colConsistency    = "consistency"
	colTyreManagement = "tyre_management"
	colAggression     = "aggression"
	colExperience     = "experience"
	colStandings      = "standings_points"
)

// ParseCSV parses a UTF-8 lineup table into driver rows.
// Missing required headers fail with the full list of absent columns; an
// empty driver_name fails with the 1-based data row index. Numeric cells
// that do not parse become 0 (lenient mode).
func ParseCSV(data string) ([]Driver, error) {
	reader := csv.NewReader(strings.NewReader(strings.TrimPrefix(data, "\uFEFF")))
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("malformed CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty CSV: no header row")
	}

	index := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		index[strings.TrimSpace(h)] = i
	}

	var missing []string
	for _, h := range RequiredHeaders {
		if _, ok := index[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	cell := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	num := func(row []string, col string) float64 {
		return parseNumber(cell(row, col))
	}
	numDefault := func(row []string, col string, fallback float64) float64 {
		s := cell(row, col)
		if s == "" {
			return fallback
		}
		return parseNumber(s)
	}

	drivers := make([]Driver, 0, len(records)-1)
	for r, row := range records[1:] {
		name := cell(row, "driver_name")
		if name == "" {
			return nil, fmt.Errorf("row %d: empty driver_name", r+1)
		}

		grid := int(num(row, "grid_position"))
		if grid < 1 {
			grid = 1
		}

		d := Driver{
			ID:                deriveID(name),
			Code:              deriveCode(name),
			Name:              name,
			Team:              cell(row, "team_name"),
			GridPosition:      grid,
			QualyGapMs:        num(row, "qualy_gap_ms"),
			LongRunPaceDelta:  num(row, "fp_longrun_pace_s"),
			StraightlineIndex: num(row, "straightline_index"),
			CorneringIndex:    num(row, "cornering_index"),
			SpeedTrapKph:      num(row, "speed_trap_kph"),
			PitStopMedian:     num(row, "pit_crew_mean_s"),
			DNFRate:           num(row, "dnf_rate"),
			WetSkill:          numDefault(row, colWetSkill, DefaultWetSkill),
			Consistency:       numDefault(row, colConsistency, DefaultConsistency),
			TyreManagement:    numDefault(row, colTyreManagement, DefaultTyreManagement),
			Aggression:        numDefault(row, colAggression, DefaultAggression),
			Experience:        numDefault(row, colExperience, DefaultExperience),
			StandingsPoints:   numDefault(row, colStandings, 0),
			PaceFactor:        1.0,
		}
		drivers = append(drivers, d)
	}

	log.Debug().Int("drivers", len(drivers)).Msg("Parsed lineup CSV")
	return drivers, nil
}

// parseNumber is the lenient cell parser: anything strconv rejects maps
// to 0 so a single bad cell does not sink a whole import.
func parseNumber(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// deriveID lowercases the name and joins whitespace runs with underscores.
func deriveID(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

// deriveCode takes the first three letters of the last name token,
// uppercased. "Max Verstappen" -> "VER".
func deriveCode(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	last := strings.ToUpper(fields[len(fields)-1])
	if len(last) > 3 {
		last = last[:3]
	}
	return last
}
