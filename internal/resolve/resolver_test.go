package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"doifind/internal/citation"
	"doifind/internal/match"
	"doifind/internal/source"
)

// fakeSource returns canned candidates and counts its calls.
type fakeSource struct {
	name     string
	cands    []source.Candidate
	err      error
	failures int // fail this many calls before succeeding
	calls    atomic.Int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Search(ctx context.Context, q source.Query) ([]source.Candidate, error) {
	n := f.calls.Add(1)
	if f.err != nil && int(n) <= f.failures {
		return nil, f.err
	}
	if f.err != nil && f.failures == 0 {
		return nil, f.err
	}
	return f.cands, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newResolver(sources ...source.Source) *Resolver {
	return New(match.NewScorer(match.DefaultThreshold), testLogger(), sources, WithBackoff(time.Millisecond))
}

// matching returns a candidate that scores highly for testCitation, with a
// deliberate year offset to separate source scores.
func matching(doi string, year int) source.Candidate {
	return source.Candidate{
		DOI:       doi,
		Title:     "Effects of treatment on recovery outcomes",
		Year:      year,
		Authors:   []string{"Smith John"},
		Container: "Journal of Medicine",
	}
}

var testCitation = citation.New(1, "Smith J. Effects of treatment on recovery outcomes. J Med. 2020.", citation.StyleAMA)

func TestResolve_HasDOIShortCircuits(t *testing.T) {
	pm := &fakeSource{name: source.NamePubMed}
	cr := &fakeSource{name: source.NameCrossRef}
	r := newResolver(pm, cr)

	c := citation.New(7, "Smith J. Title. J Med. 2020. doi:10.1234/already", citation.StyleAMA)
	out := r.Resolve(context.Background(), c)

	if out.Status != citation.StatusHasDOI || out.DOI != "10.1234/already" {
		t.Errorf("outcome = %+v", out)
	}
	if pm.calls.Load() != 0 || cr.calls.Load() != 0 {
		t.Error("has_doi citation must not invoke any source")
	}
}

func TestResolve_HigherScoreWins(t *testing.T) {
	// PubMed's candidate has the exact year, CrossRef's is one off, so
	// PubMed scores strictly higher.
	pm := &fakeSource{name: source.NamePubMed, cands: []source.Candidate{matching("10.1/pm", 2020)}}
	cr := &fakeSource{name: source.NameCrossRef, cands: []source.Candidate{matching("10.1/cr", 2021)}}
	r := newResolver(pm, cr)

	out := r.Resolve(context.Background(), testCitation)
	if out.Status != citation.StatusFound {
		t.Fatalf("status = %s", out.Status)
	}
	if out.DOI != "10.1/pm" || out.Source != source.NamePubMed {
		t.Errorf("outcome = %+v", out)
	}
	if out.Confidence < match.DefaultThreshold || out.Confidence > 100 {
		t.Errorf("confidence = %d", out.Confidence)
	}
}

func TestResolve_CrossRefWinsOnHigherScore(t *testing.T) {
	pm := &fakeSource{name: source.NamePubMed, cands: []source.Candidate{matching("10.1/pm", 2021)}}
	cr := &fakeSource{name: source.NameCrossRef, cands: []source.Candidate{matching("10.1/cr", 2020)}}
	r := newResolver(pm, cr)

	out := r.Resolve(context.Background(), testCitation)
	if out.Source != source.NameCrossRef || out.DOI != "10.1/cr" {
		t.Errorf("outcome = %+v", out)
	}
}

func TestResolve_TieBreakPrefersFirstSource(t *testing.T) {
	pm := &fakeSource{name: source.NamePubMed, cands: []source.Candidate{matching("10.1/pm", 2020)}}
	cr := &fakeSource{name: source.NameCrossRef, cands: []source.Candidate{matching("10.1/cr", 2020)}}
	r := newResolver(pm, cr)

	out := r.Resolve(context.Background(), testCitation)
	if out.Source != source.NamePubMed {
		t.Errorf("tie should go to pubmed, got %s", out.Source)
	}
}

func TestResolve_NotFound(t *testing.T) {
	pm := &fakeSource{name: source.NamePubMed}
	cr := &fakeSource{name: source.NameCrossRef}
	r := newResolver(pm, cr)

	out := r.Resolve(context.Background(), testCitation)
	if out.Status != citation.StatusNotFound {
		t.Errorf("status = %s", out.Status)
	}
	if out.DOI != "" || out.Confidence != 0 || out.Source != "" {
		t.Errorf("not_found outcome should be empty, got %+v", out)
	}
}

func TestResolve_TransientRetriesOnce(t *testing.T) {
	pm := &fakeSource{
		name:     source.NamePubMed,
		cands:    []source.Candidate{matching("10.1/pm", 2020)},
		err:      fmt.Errorf("%w: connection reset", source.ErrTransient),
		failures: 1,
	}
	r := newResolver(pm)

	out := r.Resolve(context.Background(), testCitation)
	if out.Status != citation.StatusFound || out.DOI != "10.1/pm" {
		t.Errorf("outcome = %+v", out)
	}
	if got := pm.calls.Load(); got != 2 {
		t.Errorf("expected 2 calls (1 retry), got %d", got)
	}
}

func TestResolve_TransientExhaustionIsNotFound(t *testing.T) {
	pm := &fakeSource{
		name:     source.NamePubMed,
		err:      fmt.Errorf("%w: still down", source.ErrTransient),
		failures: 10,
	}
	r := newResolver(pm)

	out := r.Resolve(context.Background(), testCitation)
	if out.Status != citation.StatusNotFound {
		t.Errorf("status = %s", out.Status)
	}
	if got := pm.calls.Load(); got != 2 {
		t.Errorf("expected exactly 2 calls, got %d", got)
	}
}

func TestResolve_HardErrorDoesNotRetry(t *testing.T) {
	pm := &fakeSource{name: source.NamePubMed, err: errors.New("bad request"), failures: 10}
	cr := &fakeSource{name: source.NameCrossRef, cands: []source.Candidate{matching("10.1/cr", 2020)}}
	r := newResolver(pm, cr)

	out := r.Resolve(context.Background(), testCitation)
	if got := pm.calls.Load(); got != 1 {
		t.Errorf("hard error should not be retried, got %d calls", got)
	}
	// The other source still resolves the citation.
	if out.Status != citation.StatusFound || out.Source != source.NameCrossRef {
		t.Errorf("outcome = %+v", out)
	}
}
