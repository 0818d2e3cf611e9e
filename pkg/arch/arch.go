// Package arch models implementation target architectures and ranks them
// against the host.
//
// An architecture string has the form "OS-CPU", where either half may be "*"
// to mean "any". Two CPU values are special: "src" marks source
// implementations and "missing" marks placeholders for implementations that
// can be built locally. The missing machine is a first-class variant of the
// ranking table: it is compatible with every host and always ranks below
// every real machine.
package arch

import (
	"fmt"
	"runtime"
	"strings"
)

// Wildcard matches any OS or CPU.
const Wildcard = "*"

// Special CPU names.
const (
	CPUSource  = "src"
	CPUMissing = "missing"
)

// Missing is the synthetic "build locally" architecture given to
// placeholder implementations.
var Missing = Arch{OS: Wildcard, CPU: CPUMissing}

// Arch is a parsed "OS-CPU" pair.
type Arch struct {
	OS  string
	CPU string
}

// Any is the architecture of implementations that declare none.
var Any = Arch{OS: Wildcard, CPU: Wildcard}

// Parse splits an "OS-CPU" string. The empty string parses as [Any].
func Parse(s string) (Arch, error) {
	if s == "" {
		return Any, nil
	}
	osName, cpu, ok := strings.Cut(s, "-")
	if !ok || osName == "" || cpu == "" {
		return Arch{}, fmt.Errorf("invalid architecture %q: want OS-CPU", s)
	}
	return Arch{OS: osName, CPU: cpu}, nil
}

// String returns the "OS-CPU" form.
func (a Arch) String() string {
	return a.OS + "-" + a.CPU
}

// IsMissing reports whether a is the placeholder architecture.
func (a Arch) IsMissing() bool { return a.CPU == CPUMissing }

// IsSource reports whether a denotes a source implementation.
func (a Arch) IsSource() bool { return a.CPU == CPUSource }

// Group identifies a family of mutually loadable machines (32 vs 64 bit).
type Group int

const (
	GroupNone Group = iota
	Group32
	Group64
)

// Ranking orders architectures for one host. Lower ranks are preferred.
//
// The zero value is not usable; use [NewRanking] or [Host].
type Ranking struct {
	hostOS   string
	machines map[string]int
	groups   map[string]Group
	// any, source and missing are placed after every real machine, in that
	// order, so a placeholder can never outrank a real binary.
	any, source, missing int
}

var compatibleMachines = map[string][]string{
	"x86_64":  {"x86_64", "i686", "i586", "i486", "i386"},
	"i686":    {"i686", "i586", "i486", "i386"},
	"aarch64": {"aarch64", "armv7l", "armv6l"},
	"armv7l":  {"armv7l", "armv6l"},
	"ppc64":   {"ppc64", "ppc"},
}

var machineGroups = map[string]Group{
	"x86_64":  Group64,
	"aarch64": Group64,
	"ppc64":   Group64,
	"i686":    Group32,
	"i586":    Group32,
	"i486":    Group32,
	"i386":    Group32,
	"armv7l":  Group32,
	"armv6l":  Group32,
	"ppc":     Group32,
}

// NewRanking builds the ranking table for a host OS and CPU.
func NewRanking(hostOS, hostCPU string) *Ranking {
	machines := compatibleMachines[hostCPU]
	if machines == nil {
		machines = []string{hostCPU}
	}
	r := &Ranking{
		hostOS:   hostOS,
		machines: make(map[string]int, len(machines)),
		groups:   make(map[string]Group, len(machines)+1),
	}
	for i, m := range machines {
		r.machines[m] = i
		r.groups[m] = machineGroups[m]
	}
	r.any = len(machines)
	r.source = r.any + 1
	r.missing = r.source + 1
	r.groups[CPUMissing] = machineGroups[hostCPU]
	return r
}

// Host returns the ranking for the running process.
func Host() *Ranking {
	return NewRanking(hostOS(), hostCPU())
}

// Rank returns the preference rank of a on this host. ok is false when a
// cannot run here at all.
func (r *Ranking) Rank(a Arch) (rank int, ok bool) {
	if a.OS != Wildcard && !strings.EqualFold(a.OS, r.hostOS) {
		return 0, false
	}
	switch a.CPU {
	case Wildcard:
		return r.any, true
	case CPUSource:
		return r.source, true
	case CPUMissing:
		return r.missing, true
	}
	rank, ok = r.machines[a.CPU]
	return rank, ok
}

// Group returns the machine group of a CPU name on this host. The missing
// machine belongs to the host's own group.
func (r *Ranking) Group(cpu string) Group {
	return r.groups[cpu]
}

func hostOS() string {
	switch runtime.GOOS {
	case "linux":
		return "Linux"
	case "darwin":
		return "Darwin"
	case "windows":
		return "Windows"
	case "freebsd":
		return "FreeBSD"
	}
	return runtime.GOOS
}

func hostCPU() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "386":
		return "i686"
	case "arm64":
		return "aarch64"
	case "arm":
		return "armv7l"
	case "ppc64", "ppc64le":
		return "ppc64"
	}
	return runtime.GOARCH
}
