//go:build windows

package security

// Windows has no umask, ptrace, or rlimits; the checks that depend on them
// report their safe value and the limit setters are no-ops.

func debuggerAttached() bool { return false }

func setUmask(mask int) int { return 0 }

func currentUmask() int { return 0077 }

func applyResourceLimits(limits *ResourceLimits) error { return nil }

func setCoreLimit(size uint64) error { return nil }

func coreDumpsDisabled() bool { return true }
