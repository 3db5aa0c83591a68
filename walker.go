// walker.go - Adaptive collection traversal over array or cursor pages

package report

import (
	"context"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
)

// Walker traverses every document matching a Query exactly once, in
// identifier order, without holding more than one bounded page at a time.
//
// On the first call to Next it takes a capped count of the matching
// documents. Results above Config.CursorThreshold are streamed through
// server-side cursors of at most Config.CursorPageSize documents; smaller
// results are read in in-memory pages of Config.ArrayPageSize documents.
// Either way, each new page is bounded by the identifier of the last
// document yielded.
//
// A Walker serves a single traversal and is not safe for concurrent use.
// Once exhausted it never touches the source again. Callers that stop
// early must call Close, or use Walk, to release any open cursor.
type Walker struct {
	src     Source
	query   Query
	sort    bson.D
	cfg     Config
	log     *slog.Logger
	metrics *Metrics

	state    State
	mode     Mode
	strat    strategy
	mark     *Watermark
	estimate int64
	yielded  int64
	err      error
}

// WalkerOption configures a Walker
type WalkerOption func(*Walker)

// WithConfig sets the traversal limits. Zero limits take their defaults.
func WithConfig(cfg Config) WalkerOption {
	return func(w *Walker) {
		w.cfg = cfg.withDefaults()
	}
}

// WithLogger sets the logger used for traversal records
func WithLogger(logger *slog.Logger) WalkerOption {
	return func(w *Walker) {
		if logger != nil {
			w.log = logger
		}
	}
}

// WithMetrics records traversal activity in m
func WithMetrics(m *Metrics) WalkerOption {
	return func(w *Walker) {
		w.metrics = m
	}
}

// NewWalker returns an uninitialized walker over the documents of src
// matching q. Nothing is read until the first call to Next.
func NewWalker(src Source, q Query, opts ...WalkerOption) *Walker {
	q = q.normalize()
	w := &Walker{
		src:   src,
		query: q,
		sort:  q.Sort(),
		cfg:   DefaultConfig(),
		log:   slog.Default(),
		mark:  NewWatermark(q.IDField, q.Direction),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Next decodes the next document into result. It returns false at the end
// of the traversal or on failure; Err tells the two apart.
func (w *Walker) Next(ctx context.Context, result interface{}) bool {
	doc, err := w.next(ctx)
	if err != nil || doc == nil {
		return false
	}
	if err := mapStructToInterface(doc, result); err != nil {
		w.fail(ctx, &DataSourceError{Op: "decode", Err: err})
		return false
	}
	return true
}

// Err returns the error that stopped the traversal, if any
func (w *Walker) Err() error {
	return w.err
}

// Close releases any open cursor and makes the walker exhausted. It is safe
// to call more than once and returns the error that stopped the traversal,
// if any.
func (w *Walker) Close(ctx context.Context) error {
	if w.strat != nil {
		if err := w.strat.close(context.WithoutCancel(ctx)); err != nil && w.err == nil {
			w.err = err
		}
	}
	w.state = Exhausted
	return w.err
}

// Walk calls fn for every remaining document and always closes the walker
// before returning. The first error from fn or from the traversal is
// returned.
func (w *Walker) Walk(ctx context.Context, fn func(doc bson.M) error) (err error) {
	defer func() {
		if closeErr := w.Close(ctx); err == nil {
			err = closeErr
		}
	}()

	for {
		var doc bson.M
		if !w.Next(ctx, &doc) {
			return w.Err()
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
}

// Mode returns the selected strategy, or ModeUnset before the first Next
func (w *Walker) Mode() Mode {
	return w.mode
}

// State returns the lifecycle state
func (w *Walker) State() State {
	return w.state
}

// Estimate returns the capped count taken at initialization
func (w *Walker) Estimate() int64 {
	return w.estimate
}

// Yielded returns the number of documents returned so far
func (w *Walker) Yielded() int64 {
	return w.yielded
}

func (w *Walker) next(ctx context.Context) (bson.M, error) {
	if w.state == Exhausted {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, w.fail(ctx, err)
	}

	if w.state == Uninitialized {
		if err := w.init(ctx); err != nil {
			return nil, w.fail(ctx, err)
		}
	}

	doc, ok, err := w.strat.take(ctx)
	if err != nil {
		return nil, w.fail(ctx, err)
	}

	if !ok {
		// Nothing was ever yielded: the first page was empty
		if !w.mark.IsSet() {
			w.finish(ctx)
			return nil, nil
		}

		// The page is drained; resume past the watermark once
		if err := w.loadPage(ctx); err != nil {
			return nil, w.fail(ctx, err)
		}
		doc, ok, err = w.strat.take(ctx)
		if err != nil {
			return nil, w.fail(ctx, err)
		}
		if !ok {
			w.finish(ctx)
			return nil, nil
		}
	}

	if err := w.mark.Advance(doc); err != nil {
		return nil, w.fail(ctx, err)
	}
	w.yielded++
	w.metrics.documentYielded(w.mode)
	return doc, nil
}

// init estimates the result size, selects the mode and loads the first page.
func (w *Walker) init(ctx context.Context) error {
	// A negative threshold always selects cursors; count at most one document
	estimate, err := w.src.CountUpTo(ctx, w.query.Filter, max(w.cfg.CursorThreshold+1, 1))
	if err != nil {
		return wrapSource("count", err)
	}
	w.estimate = estimate
	w.metrics.observeEstimate(estimate)

	if estimate > w.cfg.CursorThreshold {
		w.mode = ModeCursor
		w.strat = newStreamCursor(w.src, w.cfg.CursorPageSize)
	} else {
		w.mode = ModeArray
		w.strat = newBatchFetcher(w.src, w.cfg.ArrayPageSize)
	}
	w.state = ModeSelected
	w.metrics.modeSelected(w.mode)

	w.log.Debug("walker mode selected",
		"mode", w.mode.String(),
		"estimate", estimate,
		"threshold", w.cfg.CursorThreshold,
		"direction", w.query.Direction.String())

	if err := w.loadPage(ctx); err != nil {
		return err
	}
	w.state = Active
	return nil
}

// loadPage replaces the active page with one bounded by the watermark.
func (w *Walker) loadPage(ctx context.Context) error {
	filter := w.mark.Apply(w.query.Filter)
	if err := w.strat.load(ctx, filter, w.sort); err != nil {
		return err
	}
	w.metrics.pageLoaded(w.mode)

	w.log.Debug("walker page loaded",
		"mode", w.mode.String(),
		"watermark", w.mark.Last(),
		"yielded", w.yielded)
	return nil
}

// finish marks a natural end of traversal
func (w *Walker) finish(ctx context.Context) {
	w.Close(ctx)
	w.log.Debug("walker exhausted",
		"mode", w.mode.String(),
		"yielded", w.yielded)
}

// fail stops the traversal on err and returns it.
func (w *Walker) fail(ctx context.Context, err error) error {
	w.err = err
	w.Close(ctx)
	w.metrics.failed(err)
	w.log.Error("walker stopped",
		"mode", w.mode.String(),
		"yielded", w.yielded,
		"error", err)
	return err
}
