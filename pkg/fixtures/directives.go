package fixtures

import (
	"fmt"

	factory "github.com/goliatone/go-factory"
)

func compileDirective(r *factory.Registry, name string, node map[string]any) (any, error) {
	arg := node[name]
	switch name {
	case "$seq":
		return compileSeq(r, arg)
	case "$fake":
		return compileFake(r, arg)
	case "$oneOf":
		list, ok := arg.([]any)
		if !ok {
			return nil, fmt.Errorf("$oneOf expects a list, got %T", arg)
		}
		candidates := make([]any, len(list))
		for i, item := range list {
			compiled, err := compile(r, item)
			if err != nil {
				return nil, fmt.Errorf("$oneOf[%d]: %w", i, err)
			}
			candidates[i] = compiled
		}
		return r.OneOf(candidates), nil
	case "$assoc", "$assocAttrs", "$assocMany", "$assocAttrsMany":
		return compileAssoc(r, name, node)
	case "$expr", "$cel", "$js":
		expression, ok := arg.(string)
		if !ok {
			return nil, fmt.Errorf("%s expects a string, got %T", name, arg)
		}
		opts, err := evalOptions(node)
		if err != nil {
			return nil, err
		}
		switch name {
		case "$cel":
			return r.CEL(expression, opts...), nil
		case "$js":
			return r.JS(expression, opts...), nil
		default:
			return r.Expr(expression, opts...), nil
		}
	}
	return nil, fmt.Errorf("unknown directive %s", name)
}

// compileSeq accepts a format string, a map with id and format, or null.
func compileSeq(r *factory.Registry, arg any) (any, error) {
	switch value := arg.(type) {
	case nil:
		return r.Seq(), nil
	case string:
		return r.Seq(factory.SeqFormat(value)), nil
	case map[string]any:
		var opts []factory.SeqOption
		if id, ok := value["id"].(string); ok {
			opts = append(opts, factory.SeqID(id))
		}
		if format, ok := value["format"].(string); ok {
			opts = append(opts, factory.SeqFormat(format))
		}
		return r.Seq(opts...), nil
	}
	return nil, fmt.Errorf("$seq expects a format, a map or null, got %T", arg)
}

// compileFake accepts a method name or a list holding the method name and its
// arguments.
func compileFake(r *factory.Registry, arg any) (any, error) {
	switch value := arg.(type) {
	case string:
		return r.Fake(value), nil
	case []any:
		if len(value) == 0 {
			return nil, fmt.Errorf("$fake expects a method name")
		}
		method, ok := value[0].(string)
		if !ok {
			return nil, fmt.Errorf("$fake method must be a string, got %T", value[0])
		}
		return r.Fake(method, value[1:]...), nil
	}
	return nil, fmt.Errorf("$fake expects a method name or a list, got %T", arg)
}

func compileAssoc(r *factory.Registry, directive string, node map[string]any) (any, error) {
	target, ok := node[directive].(string)
	if !ok || target == "" {
		return nil, fmt.Errorf("%s expects a factory name", directive)
	}

	var opts []factory.AssocOption
	if key, ok := node["key"].(string); ok {
		opts = append(opts, factory.WithKey(key))
	}
	if raw, ok := node["overrides"]; ok {
		overrides, err := mapOf("overrides", raw)
		if err != nil {
			return nil, err
		}
		compiled, err := compileMap(r, overrides)
		if err != nil {
			return nil, err
		}
		opts = append(opts, factory.WithOverrides(compiled))
	}
	if raw, ok := node["options"]; ok {
		buildOpts, err := mapOf("options", raw)
		if err != nil {
			return nil, err
		}
		opts = append(opts, factory.WithBuildOptions(buildOpts))
	}

	switch directive {
	case "$assoc":
		return r.Assoc(target, opts...), nil
	case "$assocAttrs":
		return r.AssocAttrs(target, opts...), nil
	}

	count, ok := node["count"].(int)
	if !ok {
		return nil, fmt.Errorf("%s expects an integer count", directive)
	}
	if directive == "$assocMany" {
		return r.AssocMany(target, count, opts...), nil
	}
	return r.AssocAttrsMany(target, count, opts...), nil
}

func evalOptions(node map[string]any) ([]factory.EvalOption, error) {
	raw, ok := node["args"]
	if !ok {
		return nil, nil
	}
	args, err := mapOf("args", raw)
	if err != nil {
		return nil, err
	}
	return []factory.EvalOption{factory.EvalArgs(args)}, nil
}

func mapOf(field string, value any) (map[string]any, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must be a map, got %T", field, value)
	}
	return m, nil
}
