package process

import (
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/fedsim/fedsim-go/pkg/query"
	"github.com/fedsim/fedsim-go/pkg/version"
)

// Version returns the library version banner.
func Version() string {
	return version.String()
}

// BuildFlags returns the build settings recorded in the binary, such as
// "-tags=... CGO_ENABLED=1 GOARCH=amd64".
func BuildFlags() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(info.Settings))
	for _, s := range info.Settings {
		if strings.HasPrefix(s.Key, "vcs.") {
			continue
		}
		parts = append(parts, s.Key+"="+s.Value)
	}
	return strings.Join(parts, " ")
}

type systemInfo struct {
	Version    string   `json:"version"`
	BuildFlags string   `json:"buildflags"`
	Compiler   string   `json:"compiler"`
	OS         string   `json:"os"`
	CPUType    string   `json:"cputype"`
	CPUCount   int      `json:"cpucount"`
	Hostname   string   `json:"hostname"`
	Cores      []string `json:"cores"`
	Brokers    []string `json:"brokers"`
	Federates  []string `json:"federates"`
}

// SystemInfo returns a JSON document describing the library, the host and
// the objects registered with the context.
func (pc *Context) SystemInfo() string {
	host, _ := os.Hostname()
	cores, brokers, federates := pc.Names()
	return query.JSON(systemInfo{
		Version:    Version(),
		BuildFlags: BuildFlags(),
		Compiler:   runtime.Version(),
		OS:         runtime.GOOS,
		CPUType:    runtime.GOARCH,
		CPUCount:   runtime.NumCPU(),
		Hostname:   host,
		Cores:      cores,
		Brokers:    brokers,
		Federates:  federates,
	})
}
