// Package resolve orchestrates DOI resolution for a single citation:
// parse-derived query, lookup against every configured source, scoring,
// and cross-source merge.
package resolve

import (
	"context"
	"log/slog"
	"time"

	"doifind/internal/citation"
	"doifind/internal/match"
	"doifind/internal/source"
)

// DefaultBackoff is the delay before the single retry of a transient
// lookup failure.
const DefaultBackoff = 2 * time.Second

// Outcome is the result of resolving one citation. It is returned to the
// orchestrator, which is the only writer of citation state.
type Outcome struct {
	ID         int
	Status     citation.Status
	DOI        string
	Confidence int
	Source     string
}

// Resolver resolves citations against an ordered list of sources. Source
// order is the tie-break order: on equal scores the earlier source wins.
type Resolver struct {
	sources []source.Source
	scorer  *match.Scorer
	logger  *slog.Logger
	backoff time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithBackoff sets the retry backoff (mainly for tests).
func WithBackoff(d time.Duration) Option {
	return func(r *Resolver) { r.backoff = d }
}

// New creates a Resolver. Sources are tried in the given order.
func New(scorer *match.Scorer, logger *slog.Logger, sources []source.Source, opts ...Option) *Resolver {
	r := &Resolver{
		sources: sources,
		scorer:  scorer,
		logger:  logger,
		backoff: DefaultBackoff,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve produces the terminal outcome for one citation. Citations whose
// text already carried a DOI short-circuit without touching any source.
// Lookup failures degrade to an empty candidate set for that source; they
// never propagate as errors.
func (r *Resolver) Resolve(ctx context.Context, c citation.Citation) Outcome {
	if c.Status == citation.StatusHasDOI {
		return Outcome{ID: c.ID, Status: citation.StatusHasDOI, DOI: c.DOI, Confidence: c.Confidence}
	}

	q := source.Query{
		Title:     c.Parsed.Title,
		Year:      c.Parsed.Year,
		Authors:   c.Parsed.Authors,
		Container: c.Parsed.Container,
		Raw:       c.RawText,
	}

	var (
		bestDOI    string
		bestScore  = -1
		bestSource string
	)
	for _, src := range r.sources {
		cands := r.search(ctx, src, q)
		cand, score, ok := r.scorer.Best(q, cands)
		if !ok {
			continue
		}
		// Strict greater-than keeps the earlier source on ties.
		if score > bestScore {
			bestDOI, bestScore, bestSource = cand.DOI, score, src.Name()
		}
	}

	if bestScore < 0 {
		return Outcome{ID: c.ID, Status: citation.StatusNotFound}
	}
	return Outcome{
		ID:         c.ID,
		Status:     citation.StatusFound,
		DOI:        citation.NormalizeDOI(bestDOI),
		Confidence: bestScore,
		Source:     bestSource,
	}
}

// search performs one lookup with a single bounded retry on transient
// failures. On exhaustion the source contributes an empty candidate set.
func (r *Resolver) search(ctx context.Context, src source.Source, q source.Query) []source.Candidate {
	cands, err := src.Search(ctx, q)
	if err == nil {
		return cands
	}
	if !source.IsTransient(err) {
		r.logger.Warn("lookup failed", "source", src.Name(), "err", err)
		return nil
	}

	r.logger.Debug("transient lookup failure, retrying", "source", src.Name(), "err", err)
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(r.backoff):
	}

	cands, err = src.Search(ctx, q)
	if err != nil {
		r.logger.Warn("lookup failed after retry", "source", src.Name(), "err", err)
		return nil
	}
	return cands
}
