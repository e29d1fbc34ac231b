package commands

import (
	"apexsim/internal/config"
	"apexsim/internal/factors"
	"apexsim/internal/logging"
	"apexsim/internal/mcp"
	"apexsim/internal/orchestrator"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	cfg     *config.AppConfig

	orch *orchestrator.Orchestrator
)

var rootCmd = &cobra.Command{
	Use:   "apexsim",
	Short: "apexsim is a Monte-Carlo F1 race outcome simulator",
	Long: `A race-prediction toolkit that samples many thousand race outcomes over
per-driver performance metrics and emits calibrated win/podium/points
probabilities, optionally adjusted by news-derived variation factors.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbose)

		var err error
		cfg, err = config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}

		orch = orchestrator.New(orchestrator.Options{
			Timeout:      cfg.SimulationTimeout,
			Cooldown:     cfg.FactorCooldown,
			HistoryLimit: cfg.HistoryLimit,
			Store:        orchestrator.NewFileStore(cfg.CacheDir),
			FactorClient: factors.NewClient(factors.Config{Endpoint: cfg.FactorEndpoint}),
		})

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Msg("apexsim starting")
	},
	Run: func(cmd *cobra.Command, args []string) {
		log.Info().Msg("Tool server starting Stdio loop")
		server := mcp.NewServer(orch)
		if err := server.Serve(); err != nil {
			log.Fatal().Err(err).Msg("Tool server terminated")
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}
