// Package fixtures defines factories from YAML documents.
//
//	factories:
//	  job:
//	    model: job
//	    attrs:
//	      title: Engineer
//	      code: {$seq: "JOB-%d"}
//	      owner: {$fake: Name}
//	      level: {$oneOf: [junior, senior]}
//	      company_id: {$assoc: company, key: id}
//	      label: {$expr: "options.remote ? 'remote' : 'onsite'"}
//
// Every factory builds documents (map[string]any). Attribute values that are
// single-directive maps become generators bound to the target registry.
package fixtures

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	factory "github.com/goliatone/go-factory"
)

// Document is a parsed fixture file.
type Document struct {
	Factories map[string]Definition `yaml:"factories"`
}

// Definition describes one factory.
type Definition struct {
	// Model is the document model name. Defaults to the factory name.
	Model string         `yaml:"model"`
	Attrs map[string]any `yaml:"attrs"`
}

// Parse decodes a fixture document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("fixtures: parse: %w", err)
	}
	if len(doc.Factories) == 0 {
		return nil, fmt.Errorf("fixtures: no factories defined")
	}
	return &doc, nil
}

// LoadFile reads and parses the fixture file at path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixtures: read %s: %w", path, err)
	}
	return Parse(data)
}

// Load parses data and defines its factories on r.
func Load(r *factory.Registry, data []byte) (*Document, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := doc.Apply(r); err != nil {
		return nil, err
	}
	return doc, nil
}

// Names returns the factory names in sorted order.
func (d *Document) Names() []string {
	names := make([]string, 0, len(d.Factories))
	for name := range d.Factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply defines every factory of d on r, in name order.
func (d *Document) Apply(r *factory.Registry) error {
	for _, name := range d.Names() {
		def := d.Factories[name]
		template, err := compileMap(r, def.Attrs)
		if err != nil {
			return fmt.Errorf("fixtures: factory %q: %w", name, err)
		}
		model := def.Model
		if model == "" {
			model = name
		}
		if err := r.Define(name, factory.Doc(model), factory.Template(template)); err != nil {
			return fmt.Errorf("fixtures: %w", err)
		}
	}
	return nil
}

func compileMap(r *factory.Registry, attrs map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(attrs))
	for key, value := range attrs {
		compiled, err := compile(r, value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[key] = compiled
	}
	return out, nil
}

func compile(r *factory.Registry, node any) (any, error) {
	switch value := node.(type) {
	case map[string]any:
		name, ok, err := directiveName(value)
		if err != nil {
			return nil, err
		}
		if ok {
			return compileDirective(r, name, value)
		}
		return compileMap(r, value)
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			compiled, err := compile(r, item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = compiled
		}
		return out, nil
	default:
		return node, nil
	}
}

func directiveName(node map[string]any) (string, bool, error) {
	var found []string
	for key := range node {
		if strings.HasPrefix(key, "$") {
			found = append(found, key)
		}
	}
	switch len(found) {
	case 0:
		return "", false, nil
	case 1:
		return found[0], true, nil
	default:
		sort.Strings(found)
		return "", false, fmt.Errorf("more than one directive: %s", strings.Join(found, ", "))
	}
}
