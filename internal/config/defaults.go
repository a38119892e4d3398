// Package config handles configuration loading and validation for inputguardd.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// PlatformDataDir returns the platform-specific data directory, used as the
// parent for the segment store and secrets directory when paths are not
// set explicitly.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/inputguardd/
//   - Linux:   ~/.local/share/inputguardd/
//   - Windows: %APPDATA%\inputguardd\
//
// Falls back to ~/.inputguardd if platform detection fails.
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		return macOSDataDir()
	case "linux":
		return linuxDataDir()
	case "windows":
		return windowsDataDir()
	default:
		return fallbackDataDir()
	}
}

// PlatformConfigDir returns the platform-specific config directory.
func PlatformConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		return macOSDataDir() // macOS uses the same dir for config and data
	case "linux":
		return linuxConfigDir()
	case "windows":
		return windowsDataDir()
	default:
		return fallbackDataDir()
	}
}

// PlatformLogDir returns the platform-specific log directory.
func PlatformLogDir() string {
	switch runtime.GOOS {
	case "darwin":
		return macOSLogDir()
	case "linux":
		return filepath.Join(linuxDataDir(), "logs")
	case "windows":
		return windowsLogDir()
	default:
		return filepath.Join(fallbackDataDir(), "logs")
	}
}

func macOSDataDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, "Library", "Application Support", "inputguardd")
}

func macOSLogDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, "Library", "Logs", "inputguardd")
}

// linuxDataDir resolves XDG_DATA_HOME or ~/.local/share.
func linuxDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "inputguardd")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "inputguardd")
}

// linuxConfigDir resolves XDG_CONFIG_HOME or ~/.config.
func linuxConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "inputguardd")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "inputguardd")
}

func windowsDataDir() string {
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "inputguardd")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "AppData", "Roaming", "inputguardd")
}

func windowsLogDir() string {
	if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
		return filepath.Join(localAppData, "inputguardd", "logs")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "AppData", "Local", "inputguardd", "logs")
}

func fallbackDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".inputguardd")
}

// HasTPMSupport reports whether the current platform may expose a TPM
// device. Nothing in the daemon consults it when choosing secrets_backend;
// the file backend is the default regardless.
func HasTPMSupport() bool {
	switch runtime.GOOS {
	case "linux", "windows":
		return true
	default:
		return false
	}
}

// DefaultPaths bundles the platform-resolved defaults for every path the
// config needs, computed once so Load doesn't repeat GOOS switches.
type DefaultPaths struct {
	ConfigFile   string
	StorePath    string
	SecretsDir   string
	LogPath      string
	AuditLogPath string
}

// GetDefaultPaths returns all default paths for the current platform.
func GetDefaultPaths() DefaultPaths {
	dataDir := PlatformDataDir()
	configDir := PlatformConfigDir()
	logDir := PlatformLogDir()

	return DefaultPaths{
		ConfigFile:   filepath.Join(configDir, "config.toml"),
		StorePath:    filepath.Join(dataDir, "segments.db"),
		SecretsDir:   filepath.Join(dataDir, "secrets"),
		LogPath:      filepath.Join(logDir, "inputguardd.log"),
		AuditLogPath: filepath.Join(logDir, "audit.log"),
	}
}
