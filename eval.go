package factory

import (
	"context"
	"log/slog"
	"time"
)

const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

// EvalOption configures an expression generator.
type EvalOption func(*Eval)

// EvalArgs binds args, reachable as `args` inside the expression.
func EvalArgs(args map[string]any) EvalOption {
	return func(e *Eval) {
		e.args = args
	}
}

// Eval computes an attribute from an expression. The expression sees the
// build options as `options`, the registry view values as `metadata`, the
// bound `args`, `now` and every registered custom function.
type Eval struct {
	owner  *Registry
	engine string
	expr   string
	args   map[string]any
}

// Expr returns a generator evaluating expression with expr-lang/expr.
func (r *Registry) Expr(expression string, opts ...EvalOption) *Eval {
	return r.eval(EngineExpr, expression, opts)
}

// CEL returns a generator evaluating expression with cel-go.
func (r *Registry) CEL(expression string, opts ...EvalOption) *Eval {
	return r.eval(EngineCEL, expression, opts)
}

// JS returns a generator evaluating expression with goja.
func (r *Registry) JS(expression string, opts ...EvalOption) *Eval {
	return r.eval(EngineJS, expression, opts)
}

func (r *Registry) eval(engine, expression string, opts []EvalOption) *Eval {
	e := &Eval{owner: r, engine: engine, expr: expression}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Evaluator returns the Registry evaluator for engine, built on first use with
// the shared function registry and program cache.
func (r *Registry) Evaluator(engine string) (Evaluator, error) {
	if cached, ok := r.state.evaluators.Load(engine); ok {
		return cached.(Evaluator), nil
	}
	var evaluator Evaluator
	switch engine {
	case EngineExpr:
		evaluator = NewExprEvaluator(
			ExprWithProgramCache(r.state.programCache),
			ExprWithFunctionRegistry(r.state.functions),
		)
	case EngineCEL:
		evaluator = NewCELEvaluator(
			CELWithProgramCache(r.state.programCache),
			CELWithFunctionRegistry(r.state.functions),
		)
	case EngineJS:
		evaluator = NewJSEvaluator(
			JSWithProgramCache(r.state.programCache),
			JSWithFunctionRegistry(r.state.functions),
		)
	default:
		return nil, &NotFoundError{Kind: "expression engine", Name: engine}
	}
	actual, _ := r.state.evaluators.LoadOrStore(engine, evaluator)
	return actual.(Evaluator), nil
}

// Validate compiles the expression so syntax errors surface at Define.
func (e *Eval) Validate() error {
	_, err := e.compile()
	return err
}

func (e *Eval) compile() (CompiledRule, error) {
	evaluator, err := e.owner.Evaluator(e.engine)
	if err != nil {
		return nil, err
	}
	return evaluator.Compile(e.expr)
}

// Generate implements Generator.
func (e *Eval) Generate(ctx context.Context) (any, error) {
	return e.GenerateSync(ctx)
}

// GenerateSync implements SyncGenerator.
func (e *Eval) GenerateSync(ctx context.Context) (any, error) {
	rule, err := e.compile()
	if err != nil {
		return nil, err
	}

	metadata := OptionsFrom(ctx)
	if registryFrom(ctx) == nil {
		metadata = e.owner.options.Values
	}
	started := time.Now()
	value, err := rule.Evaluate(RuleContext{
		Options:  BuildOptionsFrom(ctx),
		Metadata: metadata,
		Args:     e.args,
	}.withDefaults())

	e.owner.state.logger.Debug("expression evaluated",
		slog.String("engine", e.engine),
		slog.String("expr", describeExpression(e.expr)),
		slog.Duration("duration", time.Since(started)),
		slog.Bool("ok", err == nil),
	)
	if err != nil {
		return nil, err
	}
	return value, nil
}
