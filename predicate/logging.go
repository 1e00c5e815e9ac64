package predicate

import "time"

// LogEvent describes an evaluation attempt for logging.
type LogEvent struct {
	Engine   string
	Expr     string
	Subject  string
	Duration time.Duration
	Err      error
}

// Logger records evaluator events.
type Logger interface {
	LogEvaluation(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// LogEvaluation implements Logger.
func (f LoggerFunc) LogEvaluation(event LogEvent) {
	if f != nil {
		f(event)
	}
}

// loggedEvaluator times every evaluation and reports it to a Logger.
type loggedEvaluator struct {
	engine string
	inner  Evaluator
	logger Logger
}

func (e *loggedEvaluator) Evaluate(ctx Context, expr string) (any, error) {
	ctx = ctx.withDefaults()
	start := time.Now()
	value, err := e.inner.Evaluate(ctx, expr)
	e.log(ctx, expr, time.Since(start), err)
	return value, err
}

func (e *loggedEvaluator) Compile(expr string) (Program, error) {
	program, err := e.inner.Compile(expr)
	if err != nil {
		e.logger.LogEvaluation(LogEvent{Engine: e.engine, Expr: expr, Err: err})
		return nil, err
	}
	return &loggedProgram{evaluator: e, expr: expr, inner: program}, nil
}

func (e *loggedEvaluator) log(ctx Context, expr string, duration time.Duration, err error) {
	e.logger.LogEvaluation(LogEvent{
		Engine:   e.engine,
		Expr:     expr,
		Subject:  ctx.subject(),
		Duration: duration,
		Err:      wrapEvaluationError(e.engine, expr, ctx.subject(), err),
	})
}

type loggedProgram struct {
	evaluator *loggedEvaluator
	expr      string
	inner     Program
}

func (p *loggedProgram) Evaluate(ctx Context) (any, error) {
	ctx = ctx.withDefaults()
	start := time.Now()
	value, err := p.inner.Evaluate(ctx)
	p.evaluator.log(ctx, p.expr, time.Since(start), err)
	return value, err
}
