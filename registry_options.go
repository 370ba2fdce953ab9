package factory

import "github.com/goliatone/go-factory/layering"

// WithOptions returns a view of the registry with its own options bag. The
// view shares factories, adapters, sequences and the created-set with r.
//
// Without merge the view uses options as given. With merge, hooks left nil in
// options fall back to the current ones and Values are combined key by key,
// the new entries replacing existing ones.
func (r *Registry) WithOptions(options Options, merge bool) *Registry {
	next := cloneOptions(options)
	if merge {
		next = layering.MergeLayers(
			Options{AfterBuild: options.AfterBuild, AfterCreate: options.AfterCreate},
			Options{AfterBuild: r.options.AfterBuild, AfterCreate: r.options.AfterCreate},
		)
		next.Values = layering.MergeShallow(options.Values, r.options.Values)
	}
	return &Registry{state: r.state, options: next}
}

// Options returns a copy of the options bag of this view.
func (r *Registry) Options() Options {
	return cloneOptions(r.options)
}
