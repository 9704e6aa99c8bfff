// Package cli provides the command-line interface for the harvester.
package cli

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jobmesh/harvester/internal/app"
	"github.com/jobmesh/harvester/internal/config"
)

// application is shared by all commands after PersistentPreRunE runs.
var application *app.Application

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "harvester",
	Short:   "Acquire and deduplicate job postings from organization boards",
	Long:    `Harvester crawls configured organizations' job boards (rendered or API-backed), filters listings, fetches full descriptions, and merges everything into one canonical record set.`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	config.RegisterFlags(rootCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Lazily initialize the application before running commands (avoid
	// starting anything for -h/help).
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if application != nil {
			return nil
		}
		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}
		application, err = app.New(cmd.Context(), cfg)
		return err
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if application == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), application.Config.HTTPTimeout)
		defer cancel()
		if err := application.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("Shutdown reported errors")
		}
		application = nil
	}
}
