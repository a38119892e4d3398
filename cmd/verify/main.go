// inputguard-verify - standalone verifier for inputguard segment stores.
//
// Walks every persisted segment in sequence and independently re-checks the
// header signature, the chain HMAC, and AEAD decryption from nothing but the
// store and the master secret. Suitable for offline audits on a copy of the
// database.
//
// Usage:
//
//	inputguard-verify verify [flags]
//	inputguard-verify suites [flags]
package main

import (
	"flag"
	"fmt"
	"os"

	"inputguard/internal/config"
	"inputguard/internal/keymanager"
	"inputguard/internal/segmentstore"
	"inputguard/internal/segmentverify"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	Commit    = "unknown"
)

func main() {
	args := os.Args[1:]
	cmd := "verify"
	if len(args) > 0 {
		switch args[0] {
		case "verify", "suites":
			cmd = args[0]
			args = args[1:]
		case "help", "-h", "--help":
			usage()
			return
		case "version", "--version":
			fmt.Printf("inputguard-verify %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
			return
		}
	}

	switch cmd {
	case "verify":
		os.Exit(cmdVerify(args))
	case "suites":
		os.Exit(cmdSuites(args))
	}
}

func usage() {
	fmt.Println(`inputguard-verify - verify an inputguard segment store

USAGE:
    inputguard-verify verify [--db PATH] [--secrets DIR] [--limit N]
                             [--signatures-only] [--no-decrypt]
                             [--format text|json|markdown] [-v]
    inputguard-verify suites [--db PATH]

Exit code 0 when every check passes, 2 on any verification error.

Unless --signatures-only is given, the verifier re-derives each session's
chain key and segment keys from the master secret in the secrets directory
(--secrets, default: the configured secrets_dir) and checks the chain HMAC
and decryption; if that directory cannot be read, only the header
signatures are checked.`)
}

func cmdVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	dbPath := fs.String("db", "", "segment store database (default: configured store path)")
	secretsDir := fs.String("secrets", "", "secrets directory holding master.key (default: configured)")
	limit := fs.Int("limit", 0, "verify only the first N segments (0 = all)")
	sigOnly := fs.Bool("signatures-only", false, "check header signatures only, no key material needed")
	noDecrypt := fs.Bool("no-decrypt", false, "check signatures and chain but skip decryption")
	format := fs.String("format", "text", "report format: text, json, markdown")
	verbose := fs.Bool("v", false, "verbose output")
	fs.Parse(args)

	db, secrets := resolvePaths(*dbPath, *secretsDir)

	store, err := segmentstore.OpenReadOnly(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "inputguard-verify: %v\n", err)
		return 2
	}
	defer store.Close()

	var km *keymanager.KeyManager
	if !*sigOnly {
		if _, err := os.Stat(secrets); err != nil {
			fmt.Fprintf(os.Stderr, "inputguard-verify: secrets dir %s not readable (%v); falling back to signature checks only\n", secrets, err)
		} else {
			secretStore, err := keymanager.NewFileSecretStore(secrets)
			if err != nil {
				fmt.Fprintf(os.Stderr, "inputguard-verify: %v\n", err)
				return 2
			}
			km, err = keymanager.Load(secretStore)
			if err != nil {
				fmt.Fprintf(os.Stderr, "inputguard-verify: %v\n", err)
				return 2
			}
		}
	}

	verifier := segmentverify.New(store, km, segmentverify.Options{
		SignaturesOnly: *sigOnly,
		NoDecrypt:      *noDecrypt,
		Limit:          *limit,
	})
	report, err := verifier.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "inputguard-verify: %v\n", err)
		return 2
	}

	if !*verbose && *format == "text" {
		// Compact: only the summary line plus failing segments.
		trimmed := *report
		trimmed.Segments = nil
		for _, s := range report.Segments {
			if !s.SchemaOK || !s.SigOK || len(s.Errors) > 0 {
				trimmed.Segments = append(trimmed.Segments, s)
			}
		}
		report = &trimmed
	}

	if err := segmentverify.WriteReport(report, segmentverify.ReportFormat(*format), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "inputguard-verify: %v\n", err)
		return 2
	}

	if !report.Valid() {
		return 2
	}
	return 0
}

func cmdSuites(args []string) int {
	fs := flag.NewFlagSet("suites", flag.ExitOnError)
	dbPath := fs.String("db", "", "segment store database (default: configured store path)")
	fs.Parse(args)

	db, _ := resolvePaths(*dbPath, "")

	store, err := segmentstore.OpenReadOnly(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "inputguard-verify: %v\n", err)
		return 2
	}
	defer store.Close()

	hist, err := segmentverify.SuiteHistogram(store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "inputguard-verify: %v\n", err)
		return 2
	}
	segmentverify.WriteSuiteHistogram(hist, os.Stdout)
	return 0
}

// resolvePaths fills unset flags from the daemon's configuration, so the
// verifier finds the same store and secrets the daemon writes by default.
func resolvePaths(db, secrets string) (string, string) {
	if db != "" && secrets != "" {
		return db, secrets
	}
	cfg, err := config.Load("")
	if err != nil {
		cfg = config.DefaultConfig()
	}
	if db == "" {
		db = cfg.StorePath
	}
	if secrets == "" {
		secrets = cfg.SecretsDir
	}
	return db, secrets
}
