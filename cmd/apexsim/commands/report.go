package commands

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var reportNoOpen bool

const reportTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>apexsim report — run {{.ID}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 4px 10px; text-align: right; }
th { background: #eee; }
td.name { text-align: left; }
</style>
</head>
<body>
<h1>Run {{.ID}} — {{.Status}}</h1>
<p>{{.Context.Weather}} / {{.Context.TrackProfile}} track, tyre stress {{.Context.TyreStress}},
safety car {{.Context.SafetyCar}}, {{.Context.Runs}} samples, seed {{.Seed}}</p>
{{if .Result}}
<p>Predicted winner: <strong>{{.Result.PredictedWinner}}</strong></p>
<table>
<tr><th>#</th><th>Code</th><th>Driver</th><th>Team</th><th>Win %</th><th>Podium %</th><th>DNF %</th><th>Avg finish</th><th>Exp. points</th><th>Consistency</th></tr>
{{range $i, $r := .Result.Results}}
<tr>
<td>{{inc $i}}</td><td>{{$r.Code}}</td>
<td class="name">{{$r.Name}}</td><td class="name">{{$r.Team}}</td>
<td>{{pct $r.WinProbability}}</td><td>{{pct $r.PodiumProbability}}</td><td>{{pct $r.DNFProbability}}</td>
<td>{{printf "%.2f" $r.AverageFinish}}</td><td>{{printf "%.1f" $r.ExpectedPoints}}</td>
<td>{{printf "%.2f" $r.ConsistencyIndex}}</td>
</tr>
{{end}}
</table>
{{else}}
<p>No result: {{.Message}}</p>
{{end}}
</body>
</html>
`

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the most recent run to an HTML report and open it",
	RunE: func(cmd *cobra.Command, args []string) error {
		run := orch.CurrentRun()
		if run == nil {
			return fmt.Errorf("no simulation run on record; run 'apexsim simulate' first")
		}

		tmpl := template.Must(template.New("report").Funcs(template.FuncMap{
			"inc": func(i int) int { return i + 1 },
			"pct": func(v float64) string { return fmt.Sprintf("%.1f", v*100) },
		}).Parse(reportTemplate))

		path := filepath.Join(cfg.CacheDir, fmt.Sprintf("report_%s.html", run.ID))
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create report: %w", err)
		}
		if err := tmpl.Execute(f, run); err != nil {
			f.Close()
			return fmt.Errorf("failed to render report: %w", err)
		}
		f.Close()

		log.Info().Str("path", path).Msg("Report written")
		fmt.Println(path)

		if !reportNoOpen {
			if err := browser.OpenFile(path); err != nil {
				log.Warn().Err(err).Msg("Could not open browser")
			}
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().BoolVar(&reportNoOpen, "no-open", false, "write the report without opening a browser")
	rootCmd.AddCommand(reportCmd)
}
