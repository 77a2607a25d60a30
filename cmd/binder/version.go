package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/binder/internal/api"
	"github.com/jackzampolin/binder/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Long: `Version prints the release, commit and toolchain of this binary along
with the module path and the pdfcpu version it was built against.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return api.Output(version.Get())
	},
}
