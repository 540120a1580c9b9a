package extract

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hcmdata/adp-connector/pkg/clients"
	"github.com/hcmdata/adp-connector/pkg/errors"
	"github.com/hcmdata/adp-connector/pkg/logger"
	"github.com/hcmdata/adp-connector/pkg/pool"
)

// Sink receives every extracted record, tagged with the stream that
// produced it. The record is pooled and the sink takes ownership: it must
// call Release once the record is fully consumed.
type Sink func(stream string, record *pool.Record) error

// Graph holds the stream definitions and their parent/child edges and
// orchestrates a full extraction run. Root streams execute in declaration
// order; each parent record triggers a complete depth-first run of every
// child stream against that record's derived context before the next
// parent record advances.
type Graph struct {
	source   string
	streams  []*Definition
	children map[string][]*Definition

	client   *clients.HTTPClient
	tokens   TokenProvider
	baseURL  string
	pageSize int
	retry    RetryPolicy

	// bookmarks hold the per-stream replication floor for this run.
	// Cross-run persistence is the host pipeline's concern.
	bookmarks map[string]time.Time

	logger *zap.Logger
}

// NewGraph builds a graph over the given definitions. Definitions order is
// the declaration order for root streams. startDate seeds every stream's
// bookmark; zero means full history.
func NewGraph(source string, defs []*Definition, client *clients.HTTPClient,
	tokens TokenProvider, baseURL string, pageSize int, retry RetryPolicy,
	startDate time.Time) (*Graph, error) {
	byName := make(map[string]*Definition, len(defs))
	for _, def := range defs {
		if _, dup := byName[def.Name]; dup {
			return nil, errors.Newf(errors.ErrorTypeValidation,
				"duplicate stream definition %q", def.Name)
		}
		byName[def.Name] = def
	}

	children := make(map[string][]*Definition)
	for _, def := range defs {
		if def.Parent == "" {
			continue
		}
		if _, ok := byName[def.Parent]; !ok {
			return nil, errors.Newf(errors.ErrorTypeValidation,
				"stream %q references unknown parent %q", def.Name, def.Parent)
		}
		children[def.Parent] = append(children[def.Parent], def)
	}

	bookmarks := make(map[string]time.Time, len(defs))
	if !startDate.IsZero() {
		for _, def := range defs {
			if def.ReplicationKey != "" {
				bookmarks[def.Name] = startDate
			}
		}
	}

	return &Graph{
		source:    source,
		streams:   defs,
		children:  children,
		client:    client,
		tokens:    tokens,
		baseURL:   baseURL,
		pageSize:  pageSize,
		retry:     retry,
		bookmarks: bookmarks,
		logger:    logger.Get().With(zap.String("component", "graph")),
	}, nil
}

// Bookmark returns the current replication floor for a stream.
func (g *Graph) Bookmark(stream string) time.Time {
	return g.bookmarks[stream]
}

// Run executes every root stream and, recursively, its descendants. A
// fatal classification aborts the run; records already delivered to the
// sink are not suppressed.
func (g *Graph) Run(ctx context.Context, sink Sink) error {
	runID := uuid.NewString()
	log := g.logger.With(zap.String("run_id", runID))
	log.Info("starting extraction run", zap.Int("streams", len(g.streams)))

	for _, def := range g.streams {
		if def.Parent != "" {
			continue
		}
		log.Info("running stream", zap.String("stream", def.Name))
		if _, err := g.runStream(ctx, def, Context{}, runID, sink); err != nil {
			return err
		}
	}

	log.Info("extraction run complete")
	return nil
}

// runStream executes one stream invocation and, per emitted record, its
// child streams. The returned stopped flag propagates a stop-descendants
// classification to the caller so it can abandon remaining sibling streams
// for the current parent record.
func (g *Graph) runStream(ctx context.Context, def *Definition, streamCtx Context,
	runID string, sink Sink) (bool, error) {
	exec := NewExecutor(def, g.client, g.tokens, g.baseURL, g.pageSize, g.retry)
	childDefs := g.children[def.Name]

	emit := func(record map[string]interface{}) error {
		if err := g.deliver(def, record, streamCtx, runID, sink); err != nil {
			return err
		}
		g.advanceBookmark(def, record)

		if len(childDefs) == 0 || def.ChildContext == nil {
			return nil
		}

		childCtx := streamCtx.Clone()
		for k, v := range def.ChildContext(record) {
			childCtx[k] = v
		}

		for _, child := range childDefs {
			stopped, err := g.runStream(ctx, child, childCtx, runID, sink)
			if err != nil {
				return err
			}
			if stopped {
				// Remaining sibling streams for this parent record are
				// abandoned; the next parent record starts fresh
				break
			}
		}
		return nil
	}

	return exec.Run(ctx, streamCtx, g.bookmarks[def.Name], emit)
}

// deliver wraps a raw record in the pooled record type and hands it to the
// sink. Ownership passes to the sink on success.
func (g *Graph) deliver(def *Definition, record map[string]interface{},
	streamCtx Context, runID string, sink Sink) error {
	rec := pool.NewRecord(g.source, record)
	rec.Metadata.StreamID = def.Name
	rec.Metadata.RunID = runID
	for k, v := range streamCtx {
		rec.SetMetadata(k, v)
	}

	if err := sink(def.Name, rec); err != nil {
		rec.Release()
		return err
	}
	return nil
}

// advanceBookmark raises the stream's replication floor to the record's
// replication value when it is higher.
func (g *Graph) advanceBookmark(def *Definition, record map[string]interface{}) {
	if def.ReplicationKey == "" {
		return
	}

	raw, ok := record[def.ReplicationKey]
	if !ok {
		return
	}

	var value time.Time
	switch v := raw.(type) {
	case time.Time:
		value = v
	case string:
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return
		}
		value = parsed
	default:
		return
	}

	if value.After(g.bookmarks[def.Name]) {
		g.bookmarks[def.Name] = value
	}
}
