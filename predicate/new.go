package predicate

import (
	"fmt"
	"strings"
)

const (
	LanguageExpr = "expr"
	LanguageCEL  = "cel"
	LanguageJS   = "js"
)

// Option configures an evaluator built by New.
type Option func(*config)

type config struct {
	cache    Cache
	registry *FunctionRegistry
	logger   Logger
}

// WithCache shares a program cache with the evaluator.
func WithCache(cache Cache) Option {
	return func(cfg *config) {
		cfg.cache = cache
	}
}

// WithFunctionRegistry exposes registry's functions to predicates.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *config) {
		cfg.registry = registry
	}
}

// WithFunction registers a single function.
func WithFunction(name string, fn Function) Option {
	return func(cfg *config) {
		if cfg.registry == nil {
			cfg.registry = NewFunctionRegistry()
		}
		_ = cfg.registry.Register(name, fn)
	}
}

// WithLogger reports every evaluation to logger.
func WithLogger(logger Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// Languages lists the engines usable in this build.
func Languages() []string {
	languages := []string{LanguageCEL, LanguageExpr}
	if jsEvaluatorAvailable() {
		languages = append(languages, LanguageJS)
	}
	return languages
}

// New returns the evaluator for language. The empty string selects expr;
// "javascript" is accepted for js.
func New(language string, opts ...Option) (Evaluator, error) {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	var (
		engine    string
		evaluator Evaluator
	)
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "", LanguageExpr:
		engine = LanguageExpr
		evaluator = NewExprEvaluator(ExprWithCache(cfg.cache), ExprWithFunctionRegistry(cfg.registry))
	case LanguageCEL:
		engine = LanguageCEL
		evaluator = NewCELEvaluator(CELWithCache(cfg.cache), CELWithFunctionRegistry(cfg.registry))
	case LanguageJS, "javascript":
		engine = LanguageJS
		evaluator = NewJSEvaluator(JSWithCache(cfg.cache), JSWithFunctionRegistry(cfg.registry))
		if evaluator == nil {
			return nil, fmt.Errorf("%w: %s (build with -tags js_eval)", ErrUnavailable, language)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, language)
	}

	if cfg.logger == nil {
		return evaluator, nil
	}
	return &loggedEvaluator{engine: engine, inner: evaluator, logger: cfg.logger}, nil
}
