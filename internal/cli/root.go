package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"picquest/internal/config"
	"picquest/internal/logging"
)

var (
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "picquest",
	Short: "Picture gallery with AI descriptions and semantic search",
	Long: `picquest stores uploaded pictures, asks a vision model to title and describe
them, embeds the description and answers free-text searches by cosine similarity.

Example usage:
  picquest serve                        # Start the HTTP API
  picquest import ./photos              # Import every picture below ./photos
  picquest import "shots/**/*.jpg"      # Import by glob`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logging.Init(cfg.LogLevel)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+config.DefaultPath+")")
}
