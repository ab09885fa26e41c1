package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/bibsync/bibsync/internal/config"
	"github.com/bibsync/bibsync/internal/crossref"
	"github.com/bibsync/bibsync/internal/identity"
	"github.com/bibsync/bibsync/internal/library"
	"github.com/bibsync/bibsync/internal/logging"
	"github.com/bibsync/bibsync/internal/storage"
)

// app bundles the opened library for one command.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	store  *storage.Store
	svc    *library.Service
}

// Close releases the library.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("closing library")
	}
}

// mustLoadConfig loads configuration, exits on error.
func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// newLogger builds the command logger. Logs go to stderr so they never mix
// with JSON output.
func newLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})
}

// mustOpenApp loads config and opens the library, exits on error.
// The caller is responsible for calling Close() on the returned app.
func mustOpenApp() *app {
	cfg := mustLoadConfig()
	logger := newLogger(cfg)

	store, err := storage.Open(cfg.DataDir, cfg.NotesDir)
	if err != nil {
		exitWithErr("opening library", err)
	}

	fetcher := crossref.NewClient(
		crossref.WithMailto(cfg.CrossrefMailto),
		crossref.WithRateLimit(cfg.CrossrefRateLimit),
	)

	svc := library.New(store, cfg.PapersDir,
		library.WithParser(parserFor(cfg)),
		library.WithFetcher(fetcher),
		library.WithLogger(logger),
	)

	return &app{cfg: cfg, logger: logger, store: store, svc: svc}
}

// resolvePaperID accepts either a paper ID or a path to a PDF file and
// returns the paper ID.
func resolvePaperID(arg string) string {
	if identity.Valid(arg) {
		return arg
	}
	if _, err := os.Stat(arg); err == nil {
		id, _, err := identity.FromFile(arg)
		if err != nil {
			exitWithError(ExitError, "resolving %s: %v", arg, err)
		}
		return id
	}
	exitWithError(ExitDataError, "%q is neither a paper ID nor an existing file", arg)
	return ""
}

// readInput reads path, or stdin when path is empty or "-".
func readInput(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
