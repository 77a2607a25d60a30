package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/binder/internal/api"
	"github.com/jackzampolin/binder/internal/config"
	"github.com/jackzampolin/binder/internal/home"
	"github.com/jackzampolin/binder/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "binder",
	Short: "Merge PDF sections into one document with stamped page numbers",
	Long: `Binder merges an ordered list of PDF sections into a single document.

Every page of an enabled section is stamped with a label such as "A-3"
built from the section number and the page index within the section.
Optionally:
  - sources are flattened through Ghostscript (local binary or docker)
  - a blank separator page is inserted between sections
  - the document is kept in portrait or landscape orientation

Run "binder assemble" for a one-shot merge, "binder watch" to rebuild on
every change, or "binder serve" for the HTTP service.`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.binder/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "binder home directory (default: ~/.binder)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable debug logging",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		format, err := api.ParseOutputFormat(outputFormat)
		if err != nil {
			return err
		}
		api.SetOutputFormat(format)
		return nil
	}

	rootCmd.AddCommand(versionCmd)
}

// newLogger returns a text logger writing to w.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadEnv resolves the home directory and loads configuration from it.
func loadEnv(logger *slog.Logger) (*home.Dir, *config.Manager, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, nil, err
	}
	mgr, err := config.NewManager(cfgFile, h.Path())
	if err != nil {
		return nil, nil, err
	}
	mgr.SetLogger(logger)
	return h, mgr, nil
}
