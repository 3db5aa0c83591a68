// report.go - Streaming report exports over collection walkers

package report

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// UTF8BOM lets spreadsheet tools detect the encoding of an export.
var UTF8BOM = []byte{0xEF, 0xBB, 0xBF}

// Resolver returns the Source holding the documents of a model.
type Resolver func(model string) (Source, error)

// CollectionResolver resolves models to collections of db. When collections
// is nil every model maps to the collection of the same name; otherwise only
// the listed models resolve, to the named collections.
func CollectionResolver(db *DB, collections map[string]string) Resolver {
	return func(model string) (Source, error) {
		name := model
		if collections != nil {
			mapped, ok := collections[model]
			if !ok {
				return nil, errors.Wrapf(ErrModelNotFound, "model %q", model)
			}
			name = mapped
		}
		if name == "" {
			return nil, errors.Wrapf(ErrModelNotFound, "model %q", model)
		}
		return db.C(name), nil
	}
}

// Exporter writes reports: it resolves the model's generator and payload,
// then runs the generator. Traversed models get a fresh Walker, which is
// always closed when the export returns; models with a data builder get
// their precomputed data instead.
type Exporter struct {
	Resolver Resolver
	Registry *Registry
	Config   Config
	Logger   *slog.Logger
	Metrics  *Metrics

	// NoBOM leaves out the UTF8BOM otherwise written before every report
	NoBOM bool
}

// Is reports whether model can be exported
func (e *Exporter) Is(model string) bool {
	if e.Registry == nil || !e.Registry.Is(model) {
		return false
	}
	if e.Registry.HasData(model) {
		return true
	}
	if e.Resolver == nil {
		return false
	}
	_, err := e.Resolver(model)
	return err == nil
}

// WriteToStream exports model to w. The "direction" option ("asc" or "desc")
// overrides the direction of the built query. Output already written when a
// failure occurs is left in w.
func (e *Exporter) WriteToStream(ctx context.Context, w io.Writer, model string, opts Options) error {
	exportID := uuid.NewString()
	log := e.logger().With("export_id", exportID, "model", model)

	if e.Registry == nil {
		return errors.Wrapf(ErrGeneratorNotFound, "model %q", model)
	}
	gen, err := e.Registry.Generator(model)
	if err != nil {
		return err
	}

	var payload Payload
	if e.Registry.HasData(model) {
		if payload.Data, err = e.Registry.Data(ctx, model, opts); err != nil {
			return err
		}
	} else {
		if payload.Walker, err = e.walker(ctx, model, opts, log); err != nil {
			return err
		}
		defer payload.Walker.Close(ctx)
	}

	if !e.NoBOM {
		if _, err := w.Write(UTF8BOM); err != nil {
			return errors.Wrap(err, "failed to write byte order mark")
		}
	}

	start := time.Now()
	err = gen.Generate(ctx, w, payload, opts)
	if err == nil && payload.Walker != nil {
		err = payload.Walker.Err()
	}

	attrs := []any{"source", "data"}
	if payload.Walker != nil {
		attrs = []any{
			"source", "walker",
			"documents", payload.Walker.Yielded(),
			"mode", payload.Walker.Mode().String(),
		}
	}
	if err != nil {
		log.Error("export failed", append(attrs, "error", err)...)
		return errors.Wrapf(err, "export %s of model %q", exportID, model)
	}

	log.Info("export finished", append(attrs, "duration", time.Since(start))...)
	return nil
}

// walker resolves the source and query of model and returns an
// uninitialized walker over them.
func (e *Exporter) walker(ctx context.Context, model string, opts Options, log *slog.Logger) (*Walker, error) {
	if e.Resolver == nil {
		return nil, errors.Wrapf(ErrModelNotFound, "model %q", model)
	}
	src, err := e.Resolver(model)
	if err != nil {
		return nil, err
	}
	q, err := e.Registry.Query(ctx, model, opts)
	if err != nil {
		return nil, err
	}
	q, err = applyDirection(q, opts)
	if err != nil {
		return nil, err
	}

	return NewWalker(src, q,
		WithConfig(e.Config),
		WithLogger(log),
		WithMetrics(e.Metrics)), nil
}

func (e *Exporter) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func applyDirection(q Query, opts Options) (Query, error) {
	switch strings.ToLower(opts["direction"]) {
	case "":
		return q, nil
	case "asc", "ascending", "1":
		return q.Ascending(), nil
	case "desc", "descending", "-1":
		return q.Descending(), nil
	default:
		return Query{}, errors.Wrapf(ErrInvalidOption, "direction %q", opts["direction"])
	}
}
