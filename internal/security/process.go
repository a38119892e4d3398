package security

import (
	"fmt"
	"os"
)

// WarnIfRoot reports whether the process is running with root privileges,
// printing a warning to stderr when it is. Root is not refused outright —
// some deployments have no alternative — but secrets created as uid 0
// complicate later verification runs.
func WarnIfRoot() bool {
	if os.Geteuid() == 0 {
		fmt.Fprintln(os.Stderr, "warning: running as root; secrets should belong to an unprivileged user")
		return true
	}
	return false
}

// SecureEnvironment strips loader-hijack variables from the environment,
// forces a restrictive umask, and pins a known locale.
func SecureEnvironment() error {
	for _, v := range []string{
		"LD_PRELOAD", "LD_LIBRARY_PATH",
		"DYLD_INSERT_LIBRARIES", "DYLD_LIBRARY_PATH",
		"IFS", "CDPATH", "ENV", "BASH_ENV",
	} {
		os.Unsetenv(v)
	}
	setUmask(0077)
	os.Setenv("LC_ALL", "C.UTF-8")
	os.Setenv("LANG", "C.UTF-8")
	return nil
}

// ResourceLimits bounds the daemon's resource usage. A zero field leaves
// that limit untouched; CoreDumpSize of zero disables core dumps.
type ResourceLimits struct {
	MaxMemory    uint64 // address space, bytes
	MaxCPUTime   uint64 // seconds
	MaxOpenFiles uint64
	CoreDumpSize uint64
}

// DefaultResourceLimits returns conservative limits for a long-running
// capture daemon. No CPU-time limit: the daemon is expected to outlive any
// such budget. Core dumps are off so a crash cannot spill key material.
func DefaultResourceLimits() *ResourceLimits {
	return &ResourceLimits{
		MaxMemory:    2 << 30,
		MaxOpenFiles: 1024,
		CoreDumpSize: 0,
	}
}

// ApplyResourceLimits applies limits to the current process. Limits the
// platform does not support are skipped rather than failing the call.
func ApplyResourceLimits(limits *ResourceLimits) error {
	return applyResourceLimits(limits)
}

// DisableCoreDumps sets the core-dump size limit to zero, preventing a
// crash from writing key material to disk.
func DisableCoreDumps() error {
	return setCoreLimit(0)
}

// SecurityChecklist is the result of the startup self-inspection.
type SecurityChecklist struct {
	Items []ChecklistItem
}

// ChecklistItem is a single startup check.
type ChecklistItem struct {
	Name        string
	Description string
	Passed      bool
	Warning     string
}

// RunSecurityChecklist inspects the process state the daemon should be
// running under. Failures are reported, never enforced.
func RunSecurityChecklist() *SecurityChecklist {
	umask := currentUmask()
	return &SecurityChecklist{Items: []ChecklistItem{
		{
			Name:        "non_root",
			Description: "process is not running as root",
			Passed:      os.Geteuid() != 0,
			Warning:     "running as root increases attack surface",
		},
		{
			Name:        "no_debugger",
			Description: "no debugger is attached",
			Passed:      !debuggerAttached(),
			Warning:     "debugger attached; secrets may be exposed",
		},
		{
			Name:        "secure_umask",
			Description: "umask masks group and other access",
			Passed:      umask&0077 == 0077,
			Warning:     fmt.Sprintf("umask %04o allows group/other access", umask),
		},
		{
			Name:        "core_disabled",
			Description: "core dumps are disabled",
			Passed:      coreDumpsDisabled(),
			Warning:     "core dumps could expose secrets",
		},
	}}
}

// AllPassed reports whether every check passed.
func (c *SecurityChecklist) AllPassed() bool {
	for _, item := range c.Items {
		if !item.Passed {
			return false
		}
	}
	return true
}

// Warnings returns the warning messages of the failed checks.
func (c *SecurityChecklist) Warnings() []string {
	var warnings []string
	for _, item := range c.Items {
		if !item.Passed && item.Warning != "" {
			warnings = append(warnings, item.Warning)
		}
	}
	return warnings
}
