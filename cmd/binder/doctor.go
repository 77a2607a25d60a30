package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/binder/internal/api"
	"github.com/jackzampolin/binder/internal/flatten"
)

var doctorTimeout time.Duration

// DoctorReport describes which flattening engines can run here.
type DoctorReport struct {
	Configured string       `json:"configured_engine" yaml:"configured_engine"`
	Selected   string       `json:"selected_engine" yaml:"selected_engine"`
	Local      EngineReport `json:"local" yaml:"local"`
	Docker     EngineReport `json:"docker" yaml:"docker"`
	Home       string       `json:"home" yaml:"home"`
	ConfigFile string       `json:"config_file,omitempty" yaml:"config_file,omitempty"`
}

// EngineReport is the probe result for one engine.
type EngineReport struct {
	Available bool   `json:"available" yaml:"available"`
	Detail    string `json:"detail,omitempty" yaml:"detail,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Report Ghostscript and docker availability",
	Long: `Doctor probes both flattening engines and reports which one the
configured engine setting resolves to. Probing docker pulls the
Ghostscript image when it is missing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(os.Stderr)
		h, mgr, err := loadEnv(logger)
		if err != nil {
			return err
		}
		conf := mgr.Get()

		ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
		defer cancel()

		report := DoctorReport{
			Configured: conf.Flatten.Engine,
			Home:       h.Path(),
			ConfigFile: mgr.File(),
		}

		gs := flatten.NewGhostscript(flatten.GhostscriptConfig{Path: conf.Flatten.GhostscriptPath, Logger: logger})
		if path, err := gs.Locate(ctx); err != nil {
			report.Local.Error = err.Error()
		} else {
			report.Local = EngineReport{Available: true, Detail: path}
		}

		d := flatten.NewDocker(flatten.DockerConfig{Image: conf.Flatten.DockerImage, Logger: logger})
		defer d.Close()
		if err := d.Probe(ctx); err != nil {
			report.Docker.Error = err.Error()
		} else {
			report.Docker = EngineReport{Available: true, Detail: d.Image()}
		}

		fl, err := flatten.New(ctx, conf.FlattenerConfig(h.ScratchDir(), logger))
		if err != nil {
			return err
		}
		if c, ok := fl.(interface{ Close() error }); ok {
			defer c.Close()
		}
		report.Selected = fl.Engine()

		return api.Output(report)
	},
}

func init() {
	doctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 2*time.Minute, "overall probe timeout (includes image pull)")

	rootCmd.AddCommand(doctorCmd)
}
