package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/roundtable/internal/client"
	"github.com/alfredjeanlab/roundtable/internal/config"
	"github.com/alfredjeanlab/roundtable/internal/ui"
)

var (
	jsonOutput bool
	noColor    bool
	apiURL     string

	cfg       *config.Config
	logger    *slog.Logger
	apiClient client.SessionClient
)

var rootCmd = &cobra.Command{
	Use:           "rt <command>",
	Short:         "Follow and steer roundtable meeting sessions",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setup(); err != nil {
			return err
		}
		apiClient = client.NewHTTPClient(cfg.APIURL, cfg.Token)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if apiClient != nil {
			apiClient.Close()
		}
	},
}

// setup loads configuration and the logger. Commands that never call the
// API override PersistentPreRunE with it. A .env file in the working
// directory is read first; variables already set win.
func setup() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	if noColor || !ui.ShouldUseColor() {
		ui.ForceNoColor()
	}
	return nil
}

func localOnly(cmd *cobra.Command, args []string) error {
	return setup()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "backend API URL (overrides ROUNDTABLE_API_URL and the active profile)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "sessions", Title: "Sessions:"},
		&cobra.Group{ID: "steering", Title: "Steering:"},
		&cobra.Group{ID: "data", Title: "Data:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Sessions
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(followCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(sendCmd)

	// Steering
	rootCmd.AddCommand(steerCmd)
	rootCmd.AddCommand(factsCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(finalizeCmd)

	// Data
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(feedCmd)

	// System
	rootCmd.AddCommand(profileCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderError("Error: ")+err.Error())
		os.Exit(1)
	}
}
