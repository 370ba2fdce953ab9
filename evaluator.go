package factory

import (
	"fmt"
	"time"
)

// RuleContext carries the inputs available to an attribute expression.
type RuleContext struct {
	// Options are the build options of the current call.
	Options BuildOptions
	// Metadata holds the option values of the registry view.
	Metadata map[string]any
	// Args are bound per generator.
	Args map[string]any
	Now  *time.Time
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Options == nil {
		ctx.Options = BuildOptions{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	if ctx.Now == nil {
		return time.Now()
	}
	return *ctx.Now
}

// variables returns the names bound for every expression.
func (ctx RuleContext) variables() map[string]any {
	return map[string]any{
		"now":      ctx.timestamp(),
		"options":  ctx.Options,
		"metadata": ctx.Metadata,
		"args":     ctx.Args,
	}
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

func errEmptyExpression(engine string) error {
	return &EvaluationError{Engine: engine, Err: fmt.Errorf("expression must not be empty")}
}
