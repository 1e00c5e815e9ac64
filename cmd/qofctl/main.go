// Command qofctl inspects and drives qof backends from the shell.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"

	qof "github.com/goliatone/go-qof"
	"github.com/goliatone/go-qof/backends/bolt"
	"github.com/goliatone/go-qof/backends/memory"
	"github.com/goliatone/go-qof/backends/sqlite"
)

// Config is read from the environment.
type Config struct {
	LogLevel   string `env:"QOF_LOG_LEVEL" envDefault:"info"`
	BackendDir string `env:"QOF_BACKEND_DIR" envDefault:"."`
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "qofctl:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	a, err := newApp(cfg, stderr, qof.DefaultProviders(), nil)
	if err != nil {
		return err
	}
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}

// app carries what every command needs.
type app struct {
	cfg      Config
	logger   *slog.Logger
	registry *qof.ProviderRegistry
	loader   *qof.LibraryLoader
}

// newApp registers the built-in providers into registry. A nil loader gets a
// plugin-backed one logging through the app logger.
func newApp(cfg Config, logOut io.Writer, registry *qof.ProviderRegistry, loader *qof.LibraryLoader) (*app, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(cfg.LogLevel))); err != nil {
		return nil, fmt.Errorf("QOF_LOG_LEVEL: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	for _, register := range []func(*qof.ProviderRegistry) error{
		memory.Register,
		bolt.Register,
		sqlite.Register,
	} {
		if err := register(registry); err != nil {
			return nil, err
		}
	}
	if loader == nil {
		loader = qof.NewLibraryLoader(qof.WithLoaderLogger(qof.NewSlogLogger(logger)))
	}
	return &app{cfg: cfg, logger: logger, registry: registry, loader: loader}, nil
}

// backend builds a handle for access with the app logger attached.
func (a *app) backend(access string) (*qof.Backend, error) {
	be, err := a.registry.NewBackend(access)
	if err != nil {
		return nil, err
	}
	qof.WithLogger(qof.NewSlogLogger(a.logger))(be)
	return be, nil
}
