package qof

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"sort"
	"strings"
	"sync"
)

// moduleSuffix is the shared object suffix for the host platform's plugins.
const moduleSuffix = "so"

var (
	ErrModuleNotFound = errors.New("qof: backend module not found")
	ErrModuleOpen     = errors.New("qof: backend module could not be opened")
	ErrSymbolNotFound = errors.New("qof: init symbol not found")
	ErrInitSignature  = errors.New("qof: init symbol is not a func()")
)

// Module is an opened shared object.
type Module interface {
	Lookup(symbol string) (any, error)
}

// ModuleOpener opens the shared object at path.
type ModuleOpener interface {
	Open(path string) (Module, error)
}

// ModuleOpenerFunc adapts a function to ModuleOpener.
type ModuleOpenerFunc func(path string) (Module, error)

// Open implements ModuleOpener.
func (f ModuleOpenerFunc) Open(path string) (Module, error) {
	return f(path)
}

type pluginModule struct {
	p *plugin.Plugin
}

func (m pluginModule) Lookup(symbol string) (any, error) {
	sym, err := m.p.Lookup(symbol)
	if err != nil {
		return nil, err
	}
	return sym, nil
}

func openPlugin(path string) (Module, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	return pluginModule{p: p}, nil
}

// BuildModulePath returns the platform path of a backend module. Names that
// already start with "lib" are used as given; other names become
// lib<name>.so. An empty dir leaves the path relative.
func BuildModulePath(dir, name string) string {
	file := name
	if !strings.HasPrefix(name, "lib") {
		file = "lib" + name + "." + moduleSuffix
	}
	if dir == "" {
		return file
	}
	return filepath.Join(dir, file)
}

// LoaderOption configures a LibraryLoader.
type LoaderOption func(*LibraryLoader)

// WithModuleOpener replaces the plugin opener.
func WithModuleOpener(opener ModuleOpener) LoaderOption {
	return func(l *LibraryLoader) {
		if opener != nil {
			l.opener = opener
		}
	}
}

// WithStat replaces the existence check run before opening.
func WithStat(stat func(path string) error) LoaderOption {
	return func(l *LibraryLoader) {
		if stat != nil {
			l.stat = stat
		}
	}
}

// WithLoaderLogger attaches a logger for load diagnostics.
func WithLoaderLogger(logger Logger) LoaderOption {
	return func(l *LibraryLoader) {
		if logger == nil {
			l.logger = noopLogger{}
			return
		}
		l.logger = logger
	}
}

// LibraryLoader opens backend modules and runs their init symbol. Opened
// modules stay resident for the life of the process.
type LibraryLoader struct {
	opener ModuleOpener
	stat   func(path string) error
	logger Logger

	mu       sync.Mutex
	resident map[string]Module
}

// NewLibraryLoader constructs a loader backed by the Go plugin package.
func NewLibraryLoader(opts ...LoaderOption) *LibraryLoader {
	l := &LibraryLoader{
		opener: ModuleOpenerFunc(openPlugin),
		stat: func(path string) error {
			_, err := os.Stat(path)
			return err
		},
		logger:   noopLogger{},
		resident: make(map[string]Module),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Load opens the module dir/file and calls its init symbol, which must be a
// func() or a *func() variable.
func (l *LibraryLoader) Load(dir, file, symbol string) error {
	path := BuildModulePath(dir, file)
	l.logger.LogBackend(LogEvent{Op: "load_module", Key: path})

	if err := l.stat(path); err != nil {
		return l.fail(path, fmt.Errorf("%w: %s: %v", ErrModuleNotFound, path, err))
	}

	initFn, err := l.resolve(path, symbol)
	if err != nil {
		return l.fail(path, err)
	}
	initFn()
	return nil
}

func (l *LibraryLoader) resolve(path, symbol string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	module, ok := l.resident[path]
	if !ok {
		opened, err := l.opener.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrModuleOpen, path, err)
		}
		if opened == nil {
			return nil, fmt.Errorf("%w: %s", ErrModuleOpen, path)
		}
		module = opened
	}

	sym, err := module.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s in %s: %v", ErrSymbolNotFound, symbol, path, err)
	}
	initFn, err := initFunc(sym)
	if err != nil {
		return nil, fmt.Errorf("%w: %s in %s is %T", err, symbol, path, sym)
	}

	if l.resident == nil {
		l.resident = make(map[string]Module)
	}
	l.resident[path] = module
	return initFn, nil
}

// Resident returns the sorted paths of modules loaded so far.
func (l *LibraryLoader) Resident() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	paths := make([]string, 0, len(l.resident))
	for path := range l.resident {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func (l *LibraryLoader) fail(path string, err error) error {
	l.logger.LogBackend(LogEvent{Op: "load_module", Key: path, Err: err})
	return err
}

func initFunc(sym any) (func(), error) {
	switch fn := sym.(type) {
	case func():
		return fn, nil
	case *func():
		if fn != nil && *fn != nil {
			return *fn, nil
		}
	}
	return nil, ErrInitSignature
}

var (
	defaultLoaderMu sync.Mutex
	defaultLoader   *LibraryLoader
)

// DefaultLoader returns the process-wide loader used by LoadBackendLibrary.
func DefaultLoader() *LibraryLoader {
	defaultLoaderMu.Lock()
	defer defaultLoaderMu.Unlock()
	if defaultLoader == nil {
		defaultLoader = NewLibraryLoader()
	}
	return defaultLoader
}

// SetDefaultLoader replaces the loader used by LoadBackendLibrary. A nil
// loader restores a plugin-backed one on next use.
func SetDefaultLoader(l *LibraryLoader) {
	defaultLoaderMu.Lock()
	defer defaultLoaderMu.Unlock()
	defaultLoader = l
}

// LoadBackendLibrary loads a backend module with the default loader and
// reports success. Failures are logged through the loader's logger.
func LoadBackendLibrary(dir, file, symbol string) bool {
	return DefaultLoader().Load(dir, file, symbol) == nil
}
