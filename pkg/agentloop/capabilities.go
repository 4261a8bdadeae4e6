package agentloop

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/codeready-toolchain/kitt/pkg/version"
)

// GPUSummary is deliberately loose — GPU discovery varies too much by
// vendor/driver to normalize here; it is passed through to the server as
// opaque JSON and surfaced to humans, not parsed by it.
type GPUSummary struct {
	Vendor string `json:"vendor,omitempty"`
	Model  string `json:"model,omitempty"`
	VRAMGB float64 `json:"vram_gb,omitempty"`
}

// Capabilities is what the agent reports on every heartbeat.
type Capabilities struct {
	CPUArch     string     `json:"cpu_arch"`
	RAMGB       float64    `json:"ram_gb"`
	Hostname    string     `json:"hostname,omitempty"`
	GPU         GPUSummary `json:"gpu_summary"`
	KittVersion string     `json:"kitt_version"`
}

// NormalizeArch maps Go's GOARCH values to the amd64|arm64|... vocabulary
// used for the agent registry's cpu_arch column.
func NormalizeArch(goarch string) string {
	switch goarch {
	case "amd64", "386":
		return "amd64"
	case "arm64", "arm":
		return "arm64"
	default:
		return goarch
	}
}

// DetectCapabilities reads host CPU architecture, RAM, and hostname via
// gopsutil, which the rest of the host-introspection callers in the
// dependency set already bring in transitively.
func DetectCapabilities(ctx context.Context, gpu GPUSummary) (Capabilities, error) {
	caps := Capabilities{
		CPUArch:     NormalizeArch(runtime.GOARCH),
		GPU:         gpu,
		KittVersion: version.Full(),
	}

	if info, err := host.InfoWithContext(ctx); err == nil {
		caps.Hostname = info.Hostname
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		caps.RAMGB = float64(vm.Total) / (1 << 30)
	}

	return caps, nil
}
