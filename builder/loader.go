package builder

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/sqlmap"
	"github.com/syssam/sqlmap/mapping"
)

// Loader loads declaration documents into one Configuration. It owns the
// pending registry of its session: independent loaders never share
// pending declarations.
type Loader struct {
	// ID identifies the load session in logs.
	ID uuid.UUID

	config  *mapping.Configuration
	pending *Pending
	logger  *slog.Logger
	// before holds the result maps registered ahead of this session.
	before map[string]struct{}
}

// NewLoader returns a loader for config.
func NewLoader(config *mapping.Configuration) *Loader {
	id := uuid.New()
	logger := config.Logger.With("loader", id.String())
	before := make(map[string]struct{})
	for _, rm := range config.ResultMapIDs() {
		before[rm] = struct{}{}
	}
	return &Loader{
		ID:      id,
		config:  config,
		pending: NewPending(logger),
		logger:  logger,
		before:  before,
	}
}

// Pending returns the registry of declarations waiting for references.
func (l *Loader) Pending() *Pending { return l.pending }

// Load parses doc, then retries every pending declaration once.
// Documents whose resource was loaded before are skipped.
func (l *Loader) Load(doc *Document) error {
	if err := l.parse(doc); err != nil {
		return err
	}
	return l.pending.Retry()
}

func (l *Loader) parse(doc *Document) error {
	if doc == nil || doc.Root == nil {
		return sqlmap.Builderf("document has no root element")
	}
	resource := doc.Resource
	if resource == "" {
		resource = "namespace:" + doc.Root.Attr("namespace")
	}
	if !l.config.MarkLoaded(resource) {
		l.logger.Debug("resource already loaded", "resource", resource)
		return nil
	}
	root := doc.Root
	if len(l.config.Variables) > 0 {
		root = root.Expand(l.config.Variables)
	}
	if err := newMapperBuilder(l.config, l.pending, resource, root).parse(); err != nil {
		return withResource(err, resource)
	}
	l.logger.Debug("resource loaded", "resource", resource, "namespace", root.Attr("namespace"))
	return nil
}

// LoadAll loads docs concurrently and waits for all of them. The first
// error cancels loads that have not started.
func (l *Loader) LoadAll(ctx context.Context, docs ...*Document) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, doc := range docs {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return l.Load(doc)
			}
		})
	}
	return g.Wait()
}

// Finish retries pending declarations until no more resolve. Every
// declaration still waiting for a reference, and every nested or case
// result map id of this session that names no result map, is then reported
// as an *sqlmap.UnresolvedReferenceError.
func (l *Loader) Finish() error {
	if err := l.pending.Settle(); err != nil {
		return err
	}
	errs := append(l.pending.Unresolved(), l.danglingResultMaps()...)
	for _, err := range errs {
		l.logger.Warn("unresolved declaration", "error", err)
	}
	return sqlmap.NewAggregateError(errs...)
}

// danglingResultMaps checks the nested result map ids of the result maps
// registered by this session. Nested maps may refer to each other, so they
// are checked once everything is registered.
func (l *Loader) danglingResultMaps() []error {
	var errs []error
	for _, id := range l.config.ResultMapIDs() {
		if _, ok := l.before[id]; ok {
			continue
		}
		rm, err := l.config.ResultMap(id)
		if err != nil {
			continue
		}
		check := func(ref string) {
			if ref != "" && !l.config.HasResultMap(ref) {
				errs = append(errs, sqlmap.NewUnresolvedReferenceError(sqlmap.KindResultMap, rm.ID, ref))
			}
		}
		for _, m := range rm.Mappings {
			check(m.NestedResultMapID)
		}
		if d := rm.Discriminator; d != nil {
			for _, value := range slices.Sorted(maps.Keys(d.Cases)) {
				check(d.Cases[value])
			}
		}
	}
	return errs
}

// Load is shorthand for loading docs with a fresh Loader and finishing it.
func Load(ctx context.Context, config *mapping.Configuration, docs ...*Document) error {
	l := NewLoader(config)
	if err := l.LoadAll(ctx, docs...); err != nil {
		return err
	}
	return l.Finish()
}

func withResource(err error, resource string) error {
	if be, ok := err.(*sqlmap.BuilderError); ok {
		if be.Resource == "" {
			be.Resource = resource
		}
		return be
	}
	return &sqlmap.BuilderError{Resource: resource, Message: "invalid mapper", Cause: err}
}
