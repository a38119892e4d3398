// inputguardd - workstation input-activity integrity monitor
//
//	inputguardd init    Write a default config and create the data directories
//	inputguardd run     Run the capture pipeline in the foreground
//	inputguardd status  Show configuration and store summary
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"inputguard/internal/config"
	"inputguard/internal/keymanager"
	"inputguard/internal/logging"
	"inputguard/internal/runtime"
	"inputguard/internal/security"
	"inputguard/internal/segmentstore"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
	Commit    = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		cmdInit()
	case "run":
		cmdRun()
	case "status":
		cmdStatus()
	case "help", "-h", "--help":
		usage()
	case "version", "-v", "--version":
		fmt.Printf("inputguardd %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`inputguardd - workstation input-activity integrity monitor

USAGE:
    inputguardd <command> [options]

COMMANDS:
    init      Write a default config file and create data directories
    run       Run the capture pipeline in the foreground
    status    Show configuration and segment store summary
    version   Show version information
    help      Show this help message

Run 'inputguardd <command> -h' for command-specific flags.`)
}

func cmdInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path (default: platform config dir)")
	fs.Parse(os.Args[2:])

	cfg, created, err := config.LoadOrCreate(*configPath)
	if err != nil {
		fatal("init: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal("init: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fatal("init: %v", err)
	}

	// Materialize the master secret and signing key now, so the first run
	// doesn't race a slow first unlock and 'verify' works before any capture.
	secretStore, err := keymanager.NewFileSecretStore(cfg.SecretsDir)
	if err != nil {
		fatal("init: %v", err)
	}
	if _, err := keymanager.Load(secretStore); err != nil {
		fatal("init: %v", err)
	}

	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}
	if created {
		fmt.Printf("wrote default config to %s\n", path)
	} else {
		fmt.Printf("config already present at %s\n", path)
	}
	fmt.Printf("secrets dir: %s\n", cfg.SecretsDir)
	fmt.Printf("store path:  %s\n", cfg.StorePath)
}

func cmdRun() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path (default: platform config dir)")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Parse(os.Args[2:])

	crash := logging.DefaultCrashHandler()
	crash.SetVersion(Version)
	defer crash.RecoverGoroutine()

	hardenProcess()

	loader, err := config.NewLoader(*configPath)
	if err != nil {
		fatal("run: %v", err)
	}
	defer loader.Close()
	cfg := loader.Config()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		fatal("run: %v", err)
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = level
	if cfg.LogPath != "" {
		logCfg.Output = "both"
		logCfg.FilePath = cfg.LogPath
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		fatal("run: create logger: %v", err)
	}
	defer logger.Close()

	auditCfg := logging.DefaultAuditConfig()
	if cfg.AuditLogPath != "" {
		auditCfg.FilePath = cfg.AuditLogPath
	}
	audit, err := logging.NewAuditLogger(auditCfg)
	if err != nil {
		fatal("run: create audit logger: %v", err)
	}
	defer audit.Close()

	rt, err := runtime.New(cfg, logger, audit)
	if err != nil {
		fatal("run: %v", err)
	}

	loader.OnChange(func(next *config.Config) {
		logger.Info("config reloaded, applying live thresholds")
		rt.ApplyConfig(next)
	})
	if err := loader.Watch(); err != nil {
		logger.Warn("config watch unavailable, live reload disabled", "error", err)
	}
	go func() {
		for err := range loader.Errors() {
			logger.Warn("config reload failed, keeping previous config", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rt.Start(ctx); err != nil {
		fatal("run: %v", err)
	}
	logger.Info("inputguardd running", "version", Version, "store", cfg.StorePath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	if err := rt.Stop(); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped cleanly", "queue_dropped", rt.QueueDropped())
}

// hardenProcess applies the defensive process settings a daemon holding key
// material should run with. Failures are warnings, not fatal: the operator
// may be running in a container where some of these are unavailable.
func hardenProcess() {
	security.WarnIfRoot()
	if err := security.DisableCoreDumps(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not disable core dumps: %v\n", err)
	}
	if err := security.SecureEnvironment(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not scrub environment: %v\n", err)
	}
	if err := security.ApplyResourceLimits(security.DefaultResourceLimits()); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not apply resource limits: %v\n", err)
	}
	for _, w := range security.RunSecurityChecklist().Warnings() {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
}

func cmdStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path (default: platform config dir)")
	fs.Parse(os.Args[2:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("status: %v", err)
	}

	fmt.Printf("store path:   %s\n", cfg.StorePath)
	fmt.Printf("secrets dir:  %s (%s backend)\n", cfg.SecretsDir, cfg.SecretsBackend)
	fmt.Printf("queue cap:    %d\n", cfg.QueueCapacity)
	fmt.Printf("flush:        every %ds or %d events\n", cfg.Segment.FlushSec, cfg.Segment.MaxEvents)

	store, err := segmentstore.OpenReadOnly(cfg.StorePath)
	if err != nil {
		fmt.Printf("segments:     store not readable (%v)\n", err)
		return
	}
	defer store.Close()
	n, err := store.Count()
	if err != nil {
		fatal("status: %v", err)
	}
	fmt.Printf("segments:     %d\n", n)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "inputguardd: "+format+"\n", args...)
	os.Exit(1)
}
