// Command studio-cli runs identity-preserving portrait edits from the
// terminal and keeps a local SQLite history of every run.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/portrait-studio/internal/cli"
	"github.com/fpang/portrait-studio/internal/config"
	"github.com/fpang/portrait-studio/internal/logging"
)

var (
	configFlag string
	jsonFlag   bool
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "studio-cli",
	Short: "Identity-preserving AI portrait edits",
	Long: `studio-cli edits portraits while keeping the subject's face, skin tone and
proportions unchanged. Each studio edits a fixed set of regions; everything
else is preserved, and every result is checked against a quality gate with
automatic retries.

Examples:
  studio-cli edit --image me.jpg --studio garment --param garment="navy suit"
  studio-cli edit --image me.jpg --studio freeform --instruction "give me a denim jacket"
  studio-cli check --instruction "make my nose smaller"
  studio-cli scope --studio hairstyle --edge-risk 0.6
  studio-cli runs list`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cli.LoadDotEnv()
		logging.Init()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", os.Getenv("STUDIO_CONFIG"), "YAML config file")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print JSON instead of text")
	rootCmd.AddCommand(newEditCmd(), newCheckCmd(), newScopeCmd(), newRunsCmd())
}

func loadConfig() config.Config {
	cfg, err := config.Load(configFlag)
	if err != nil {
		log.Fatal().Err(err).Str("path", configFlag).Msg("Failed to load configuration")
	}
	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
