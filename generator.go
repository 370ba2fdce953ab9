package factory

import "context"

// Generator produces a template value at resolution time. Every generator
// variant in this package implements it; the resolver never inspects which
// variant it holds.
type Generator interface {
	Generate(ctx context.Context) (any, error)
}

// SyncGenerator is a Generator that can also produce its value without
// blocking on other factories. Only these generators are accepted by the
// synchronous build path.
type SyncGenerator interface {
	Generator
	GenerateSync(ctx context.Context) (any, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context) (any, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context) (any, error) {
	return f(ctx)
}

// validator is implemented by generators that can detect a bad configuration
// when the factory is defined.
type validator interface {
	Validate() error
}

// validateTemplate walks a static template and reports the first generator
// that refuses its configuration.
func validateTemplate(node any) error {
	switch value := node.(type) {
	case map[string]any:
		for _, key := range sortedKeys(value) {
			if err := validateTemplate(value[key]); err != nil {
				return wrapPath(key, err)
			}
		}
	case []any:
		for i, item := range value {
			if err := validateTemplate(item); err != nil {
				return wrapPath(indexSegment(i), err)
			}
		}
	case validator:
		return value.Validate()
	}
	return nil
}
