//go:build unix

package security

import (
	"os"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// debuggerAttached reports whether a tracer is attached, via the TracerPid
// line of /proc/self/status. Unixes without procfs report false.
func debuggerAttached() bool {
	data, err := os.ReadFile("/proc/self/status")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		if rest, ok := strings.CutPrefix(line, "TracerPid:"); ok {
			rest = strings.TrimSpace(rest)
			return rest != "" && rest != "0"
		}
	}
	return false
}

func setUmask(mask int) int {
	return syscall.Umask(mask)
}

// currentUmask reads the umask; the syscall is destructive, so it is set to
// zero and immediately restored.
func currentUmask() int {
	current := syscall.Umask(0)
	syscall.Umask(current)
	return current
}

func applyResourceLimits(limits *ResourceLimits) error {
	set := func(resource int, v uint64) {
		if v > 0 {
			unix.Setrlimit(resource, &unix.Rlimit{Cur: v, Max: v})
		}
	}
	set(unix.RLIMIT_AS, limits.MaxMemory)
	set(unix.RLIMIT_CPU, limits.MaxCPUTime)
	set(unix.RLIMIT_NOFILE, limits.MaxOpenFiles)
	return setCoreLimit(limits.CoreDumpSize)
}

func setCoreLimit(size uint64) error {
	return unix.Setrlimit(unix.RLIMIT_CORE, &unix.Rlimit{Cur: size, Max: size})
}

func coreDumpsDisabled() bool {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_CORE, &rl); err != nil {
		return false
	}
	return rl.Cur == 0 && rl.Max == 0
}
