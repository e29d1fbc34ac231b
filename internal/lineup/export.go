package lineup

import (
	"strconv"
	"strings"
)

// ExportCSV serialises the active driver columns back to CSV: UTF-8,
// LF line endings, no BOM, canonical header order.
func ExportCSV(drivers []Driver) string {
	var b strings.Builder
	b.WriteString(strings.Join(RequiredHeaders, ","))
	b.WriteByte('\n')

	for _, d := range drivers {
		fields := []string{
			escapeField(d.Name),
			escapeField(d.Team),
			strconv.Itoa(d.GridPosition),
			formatNumber(d.QualyGapMs),
			formatNumber(d.LongRunPaceDelta),
			formatNumber(d.StraightlineIndex),
			formatNumber(d.CorneringIndex),
			formatNumber(d.PitStopMedian),
			formatNumber(d.DNFRate),
			formatNumber(d.SpeedTrapKph),
		}
		b.WriteString(strings.Join(fields, ","))
		b.WriteByte('\n')
	}
	return b.String()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func escapeField(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
