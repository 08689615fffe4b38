package builder

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/syssam/sqlmap"
)

// Resolver retries a pending declaration. It returns nil once the
// declaration is registered, an *sqlmap.IncompleteElementError while a
// reference is still missing, or any other error when the declaration is
// malformed.
type Resolver func() error

type pendingEntry struct {
	id      string
	resolve Resolver
	last    *sqlmap.IncompleteElementError
}

type pendingSet struct {
	kind    sqlmap.Kind
	mu      sync.Mutex
	entries []*pendingEntry
}

func (s *pendingSet) add(e *pendingEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

// retry runs every entry once with the set locked for the whole pass.
// Resolved and failed entries are removed; incomplete ones stay.
func (s *pendingSet) retry() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		errs     []error
		resolved int
	)
	kept := s.entries[:0]
	for _, e := range s.entries {
		err := e.resolve()
		var inc *sqlmap.IncompleteElementError
		switch {
		case err == nil:
			resolved++
		case errors.As(err, &inc):
			e.last = inc
			kept = append(kept, e)
		default:
			errs = append(errs, err)
		}
	}
	clear(s.entries[len(kept):])
	s.entries = kept
	return resolved, sqlmap.NewAggregateError(errs...)
}

func (s *pendingSet) unresolved() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	errs := make([]error, 0, len(s.entries))
	for _, e := range s.entries {
		var missing string
		if e.last != nil {
			missing = e.last.Missing
		}
		errs = append(errs, sqlmap.NewUnresolvedReferenceError(s.kind, e.id, missing))
	}
	return errs
}

func (s *pendingSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Pending holds the declarations waiting for forward references, in three
// independent sets: result maps, cache references and statements. It is
// owned by one Loader and safe for concurrent use.
type Pending struct {
	resultMaps pendingSet
	cacheRefs  pendingSet
	statements pendingSet
	logger     *slog.Logger
}

// NewPending returns an empty registry. A nil logger discards logs.
func NewPending(logger *slog.Logger) *Pending {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pending{
		resultMaps: pendingSet{kind: sqlmap.KindResultMap},
		cacheRefs:  pendingSet{kind: sqlmap.KindCacheRef},
		statements: pendingSet{kind: sqlmap.KindStatement},
		logger:     logger,
	}
}

func (p *Pending) set(kind sqlmap.Kind) (*pendingSet, error) {
	switch kind {
	case sqlmap.KindResultMap:
		return &p.resultMaps, nil
	case sqlmap.KindCacheRef:
		return &p.cacheRefs, nil
	case sqlmap.KindStatement:
		return &p.statements, nil
	default:
		return nil, sqlmap.Builderf("no pending set for %s declarations", kind)
	}
}

// Add queues a declaration that failed with cause, which must be an
// *sqlmap.IncompleteElementError.
func (p *Pending) Add(kind sqlmap.Kind, id string, cause error, r Resolver) error {
	s, err := p.set(kind)
	if err != nil {
		return err
	}
	var inc *sqlmap.IncompleteElementError
	if !errors.As(cause, &inc) {
		return cause
	}
	p.logger.Debug("declaration pending", "kind", string(kind), "id", id, "missing", inc.Missing)
	s.add(&pendingEntry{id: id, resolve: r, last: inc})
	return nil
}

// Retry runs one pass over each set: result maps, then cache references,
// then statements. Each set is locked for its own pass only. Errors other
// than forward references are returned together.
func (p *Pending) Retry() error {
	_, err := p.pass()
	return err
}

// Settle repeats passes until one resolves nothing, so chains of
// references between pending declarations resolve completely.
func (p *Pending) Settle() error {
	for {
		n, err := p.pass()
		if err != nil || n == 0 {
			return err
		}
	}
}

func (p *Pending) pass() (int, error) {
	var (
		errs  []error
		total int
	)
	for _, s := range []*pendingSet{&p.resultMaps, &p.cacheRefs, &p.statements} {
		n, err := s.retry()
		if n > 0 {
			p.logger.Debug("pending declarations resolved", "kind", string(s.kind), "count", n)
		}
		if err != nil {
			errs = append(errs, err)
		}
		total += n
	}
	return total, sqlmap.NewAggregateError(errs...)
}

// Len returns the number of pending declarations of kind.
func (p *Pending) Len(kind sqlmap.Kind) int {
	s, err := p.set(kind)
	if err != nil {
		return 0
	}
	return s.len()
}

// Unresolved returns an *sqlmap.UnresolvedReferenceError for every pending
// declaration.
func (p *Pending) Unresolved() []error {
	var errs []error
	for _, s := range []*pendingSet{&p.resultMaps, &p.cacheRefs, &p.statements} {
		errs = append(errs, s.unresolved()...)
	}
	return errs
}
