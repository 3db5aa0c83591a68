// registry.go - Report generators and query builders keyed by model name

package report

import (
	"context"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
)

// Options are the request parameters of one export, such as the query
// string of an HTTP request.
type Options map[string]string

// Payload is what a generator reports on. Models with a data builder get
// Data and a nil Walker; every other model gets a fresh Walker and nil Data.
type Payload struct {
	Walker *Walker
	Data   interface{}
}

// Generator writes one report from its payload.
type Generator interface {
	Generate(ctx context.Context, w io.Writer, payload Payload, opts Options) error
}

// GeneratorFunc adapts a function to the Generator interface
type GeneratorFunc func(ctx context.Context, w io.Writer, payload Payload, opts Options) error

// Generate calls f
func (f GeneratorFunc) Generate(ctx context.Context, w io.Writer, payload Payload, opts Options) error {
	return f(ctx, w, payload, opts)
}

// QueryBuilder builds the traversal query of a model from request options.
type QueryBuilder func(ctx context.Context, opts Options) (Query, error)

// DataBuilder precomputes the report data of a model, such as an
// aggregate, in place of a collection traversal.
type DataBuilder func(ctx context.Context, opts Options) (interface{}, error)

// RegistryOptions lists the generators, query builders and data builders of
// a Registry. Models without a query builder fall back to DefaultQuery;
// models with a data builder are never traversed.
type RegistryOptions struct {
	Generators   map[string]Generator
	Queries      map[string]QueryBuilder
	Data         map[string]DataBuilder
	DefaultQuery QueryBuilder
}

// Registry resolves generators and queries by model name. It is built once
// and never mutated; With derives an extended copy.
type Registry struct {
	generators   map[string]Generator
	queries      map[string]QueryBuilder
	data         map[string]DataBuilder
	defaultQuery QueryBuilder
}

// NewRegistry builds a registry from opts. The maps are copied.
func NewRegistry(opts RegistryOptions) *Registry {
	r := &Registry{
		generators:   make(map[string]Generator, len(opts.Generators)),
		queries:      make(map[string]QueryBuilder, len(opts.Queries)),
		data:         make(map[string]DataBuilder, len(opts.Data)),
		defaultQuery: opts.DefaultQuery,
	}
	for name, gen := range opts.Generators {
		if gen != nil {
			r.generators[name] = gen
		}
	}
	for name, build := range opts.Queries {
		if build != nil {
			r.queries[name] = build
		}
	}
	for name, build := range opts.Data {
		if build != nil {
			r.data[name] = build
		}
	}
	return r
}

// With returns a registry holding r's entries extended, and on conflict
// replaced, by ext. A non-nil ext.DefaultQuery replaces the default.
func (r *Registry) With(ext RegistryOptions) *Registry {
	merged := RegistryOptions{
		Generators: lo.Assign(r.generators, lo.PickBy(ext.Generators, func(_ string, gen Generator) bool {
			return gen != nil
		})),
		Queries: lo.Assign(r.queries, lo.PickBy(ext.Queries, func(_ string, build QueryBuilder) bool {
			return build != nil
		})),
		Data: lo.Assign(r.data, lo.PickBy(ext.Data, func(_ string, build DataBuilder) bool {
			return build != nil
		})),
		DefaultQuery: r.defaultQuery,
	}
	if ext.DefaultQuery != nil {
		merged.DefaultQuery = ext.DefaultQuery
	}
	return NewRegistry(merged)
}

// Is reports whether a generator is registered for model
func (r *Registry) Is(model string) bool {
	_, ok := r.generators[model]
	return ok
}

// Generator returns the generator registered for model.
func (r *Registry) Generator(model string) (Generator, error) {
	gen, ok := r.generators[model]
	if !ok {
		return nil, errors.Wrapf(ErrGeneratorNotFound, "model %q", model)
	}
	return gen, nil
}

// Query builds the query for model with its own builder, or with the
// default builder when it has none.
func (r *Registry) Query(ctx context.Context, model string, opts Options) (Query, error) {
	build, ok := r.queries[model]
	if !ok {
		if r.defaultQuery == nil {
			return Query{}, errors.Wrapf(ErrDefaultQueryBuilderNil, "model %q", model)
		}
		build = r.defaultQuery
	}

	q, err := build(ctx, opts)
	if err != nil {
		return Query{}, errors.Wrapf(err, "failed to build query for model %q", model)
	}
	return q, nil
}

// HasData reports whether model is served by a data builder
func (r *Registry) HasData(model string) bool {
	_, ok := r.data[model]
	return ok
}

// Data runs the data builder of model. It fails when model has none.
func (r *Registry) Data(ctx context.Context, model string, opts Options) (interface{}, error) {
	build, ok := r.data[model]
	if !ok {
		return nil, errors.Wrapf(ErrModelNotFound, "no data builder for model %q", model)
	}
	data, err := build(ctx, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build data for model %q", model)
	}
	return data, nil
}

// Names returns the models with a generator, sorted
func (r *Registry) Names() []string {
	names := lo.Keys(r.generators)
	sort.Strings(names)
	return names
}

// DateRangeQuery is the stock query builder: documents created in
// [from, to), optionally narrowed by the "bot" flag. from and to accept
// RFC 3339 timestamps or YYYY-MM-DD dates; either may be omitted.
func DateRangeQuery(_ context.Context, opts Options) (Query, error) {
	filter := bson.M{}

	createdAt := bson.M{}
	if raw, ok := opts["from"]; ok && raw != "" {
		from, err := parseTime(raw)
		if err != nil {
			return Query{}, errors.Wrapf(ErrInvalidOption, "from: %v", err)
		}
		createdAt["$gte"] = from
	}
	if raw, ok := opts["to"]; ok && raw != "" {
		to, err := parseTime(raw)
		if err != nil {
			return Query{}, errors.Wrapf(ErrInvalidOption, "to: %v", err)
		}
		createdAt["$lt"] = to
	}
	if len(createdAt) > 0 {
		filter["createdAt"] = createdAt
	}

	if raw, ok := opts["bot"]; ok && raw != "" {
		bot, err := strconv.ParseBool(raw)
		if err != nil {
			return Query{}, errors.Wrapf(ErrInvalidOption, "bot: %v", err)
		}
		filter["bot"] = bot
	}

	return NewQuery(filter), nil
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
