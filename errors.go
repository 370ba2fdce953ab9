package factory

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched by the typed errors below through errors.Is.
var (
	// ErrDefinition marks an invalid model, initializer or duplicate name.
	ErrDefinition = errors.New("factory: invalid definition")

	// ErrNotFound marks an unknown factory, attribute or random method.
	ErrNotFound = errors.New("factory: not found")

	// ErrInvalidValue marks an invalid count, overrides shape or candidate list.
	ErrInvalidValue = errors.New("factory: invalid value")

	// ErrAsyncValue is returned by the synchronous path when a template leaf
	// can only be resolved asynchronously.
	ErrAsyncValue = errors.New("factory: asynchronous value in synchronous build")
)

// DefinitionError reports a factory that cannot be defined.
type DefinitionError struct {
	Factory string
	Reason  string
}

func (e *DefinitionError) Error() string {
	if e.Factory == "" {
		return "factory: " + e.Reason
	}
	return fmt.Sprintf("factory: %q: %s", e.Factory, e.Reason)
}

// Is lets errors.Is(err, ErrDefinition) match.
func (e *DefinitionError) Is(target error) bool {
	return target == ErrDefinition
}

// NotFoundError reports a lookup miss. Kind is "factory", "attribute" or
// "random method".
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("factory: %s %q not found", e.Kind, e.Name)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValueError reports an invalid argument detected before resolution starts.
type ValueError struct {
	Op     string
	Reason string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("factory: %s: %s", e.Op, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidValue) match.
func (e *ValueError) Is(target error) bool {
	return target == ErrInvalidValue
}

// ResolveError wraps the failure of a template leaf with the attribute path
// that produced it, e.g. "duties.cleaning" or "employees[2]".
type ResolveError struct {
	Path string
	Err  error
}

func (e *ResolveError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("factory: resolve %s: %v", e.Path, e.Err)
}

func (e *ResolveError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNotFound reports whether err is a lookup error.
func IsNotFound(err error) bool {
	return err != nil && errors.Is(err, ErrNotFound)
}

// IsDefinitionError reports whether err is a definition error.
func IsDefinitionError(err error) bool {
	return err != nil && errors.Is(err, ErrDefinition)
}

// IsValueError reports whether err is a validation error.
func IsValueError(err error) bool {
	return err != nil && errors.Is(err, ErrInvalidValue)
}

// wrapPath prefixes the path of a nested resolution failure with segment, or
// wraps a leaf failure.
func wrapPath(segment string, err error) error {
	if err == nil {
		return nil
	}
	if nested, ok := err.(*ResolveError); ok {
		return &ResolveError{Path: joinPath(segment, nested.Path), Err: nested.Err}
	}
	return &ResolveError{Path: segment, Err: err}
}

func joinPath(parent, child string) string {
	if strings.HasPrefix(child, "[") {
		return parent + child
	}
	return parent + "." + child
}

// EvaluationError captures expression engine metadata alongside the
// originating error.
type EvaluationError struct {
	Engine string
	Expr   string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("factory: %s evaluator %s: %v", e.Engine, describeExpression(e.Expr), e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluationError(engine, expr string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		return evalErr
	}

	return &EvaluationError{
		Engine: engine,
		Expr:   expr,
		Err:    err,
	}
}
