// Package version exposes build metadata set at link time, e.g.
//
//	go build -ldflags "-X github.com/jackzampolin/binder/version.GitRelease=v0.3.0"
package version

import (
	"runtime"
	"runtime/debug"
)

var (
	// GitRelease is the release tag.
	GitRelease = "dev"
	// GitCommit is the commit hash.
	GitCommit = ""
	// GitCommitDate is the commit timestamp.
	GitCommitDate = ""
	// GoInfo is the toolchain the binary was built with.
	GoInfo = runtime.Version() + " " + runtime.GOOS + "/" + runtime.GOARCH
)

// pdfcpuPath is the module that does the PDF work; its version is reported
// alongside binder's.
const pdfcpuPath = "github.com/pdfcpu/pdfcpu"

// Info is the build information printed by "binder version".
type Info struct {
	Release string `json:"release" yaml:"release"`
	Commit  string `json:"commit,omitempty" yaml:"commit,omitempty"`
	Date    string `json:"date,omitempty" yaml:"date,omitempty"`
	Go      string `json:"go" yaml:"go"`
	Module  string `json:"module,omitempty" yaml:"module,omitempty"`
	Pdfcpu  string `json:"pdfcpu,omitempty" yaml:"pdfcpu,omitempty"`
}

// Get returns the build information of the running binary.
func Get() Info {
	info := Info{
		Release: GitRelease,
		Commit:  GitCommit,
		Date:    GitCommitDate,
		Go:      GoInfo,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.addModules(bi)
	}
	return info
}

// addModules fills the main module path and the pdfcpu version.
func (i *Info) addModules(bi *debug.BuildInfo) {
	i.Module = bi.Main.Path
	for _, d := range bi.Deps {
		if d.Path != pdfcpuPath {
			continue
		}
		i.Pdfcpu = d.Version
		if d.Replace != nil {
			i.Pdfcpu = d.Replace.Version
		}
	}
}

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if GitCommit == "" {
				GitCommit = s.Value
			}
		case "vcs.time":
			if GitCommitDate == "" {
				GitCommitDate = s.Value
			}
		}
	}
}
