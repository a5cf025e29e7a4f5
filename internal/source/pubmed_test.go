package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

const efetchBody = `<?xml version="1.0"?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>12345</PMID>
      <Article>
        <Journal>
          <JournalIssue><PubDate><Year>2020</Year></PubDate></JournalIssue>
          <Title>Journal of Medicine</Title>
        </Journal>
        <ArticleTitle>Title A</ArticleTitle>
        <AuthorList>
          <Author><LastName>Smith</LastName><Initials>J</Initials></Author>
          <Author><LastName>Jones</LastName><Initials>AB</Initials></Author>
        </AuthorList>
      </Article>
    </MedlineCitation>
    <PubmedData>
      <ArticleIdList>
        <ArticleId IdType="pubmed">12345</ArticleId>
        <ArticleId IdType="doi">10.1234/abcd</ArticleId>
      </ArticleIdList>
    </PubmedData>
  </PubmedArticle>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>67890</PMID>
      <Article><ArticleTitle>No DOI here</ArticleTitle></Article>
    </MedlineCitation>
  </PubmedArticle>
</PubmedArticleSet>`

func newPubMedStub(t *testing.T) (*PubMed, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/esearch.fcgi"):
			w.Write([]byte(`{"esearchresult":{"idlist":["12345","67890"]}}`))
		case strings.HasPrefix(r.URL.Path, "/efetch.fcgi"):
			w.Write([]byte(efetchBody))
		default:
			http.NotFound(w, r)
		}
	}))
	client := NewPubMed(WithPubMedBaseURL(srv.URL), WithPubMedRate(1000))
	return client, srv
}

func TestPubMedSearch(t *testing.T) {
	client, srv := newPubMedStub(t)
	defer srv.Close()

	candidates, err := client.Search(context.Background(), Query{Title: "Title A"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	// The DOI-less second record must be dropped.
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}

	c := candidates[0]
	if c.DOI != "10.1234/abcd" {
		t.Errorf("doi = %q", c.DOI)
	}
	if c.Title != "Title A" || c.Container != "Journal of Medicine" || c.Year != 2020 {
		t.Errorf("candidate = %+v", c)
	}
	if len(c.Authors) != 2 || c.Authors[0] != "Smith J" {
		t.Errorf("authors = %v", c.Authors)
	}
}

func TestPubMedSearch_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"esearchresult":{"idlist":[]}}`))
	}))
	defer srv.Close()

	client := NewPubMed(WithPubMedBaseURL(srv.URL), WithPubMedRate(1000))
	candidates, err := client.Search(context.Background(), Query{Raw: "anything"})
	if err != nil {
		t.Fatalf("empty result should not be an error, got %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("expected no candidates, got %v", candidates)
	}
}

func TestPubMedSearch_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewPubMed(WithPubMedBaseURL(srv.URL), WithPubMedRate(1000))
	_, err := client.Search(context.Background(), Query{Raw: "anything"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsTransient(err) {
		t.Errorf("expected transient error, got %v", err)
	}
}

func TestPubMedSearch_RateLimitedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewPubMed(WithPubMedBaseURL(srv.URL), WithPubMedRate(1000))
	_, err := client.Search(context.Background(), Query{Raw: "anything"})
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
	if !IsTransient(err) {
		t.Error("rate limit rejection should be retryable")
	}
}

// Concurrent searches must queue behind the shared rate gate rather than
// burst past it.
func TestPubMedSearch_RateFloor(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.Write([]byte(`{"esearchresult":{"idlist":[]}}`))
	}))
	defer srv.Close()

	const rps = 50.0
	client := NewPubMed(WithPubMedBaseURL(srv.URL), WithPubMedRate(rps))

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client.Search(context.Background(), Query{Raw: "q"})
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	// 4 calls at 50/sec with burst 1: the last must wait at least 3 periods.
	if min := 3 * time.Second / 50; elapsed < min {
		t.Errorf("4 concurrent searches finished in %v, floor requires >= %v", elapsed, min)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 4 {
		t.Errorf("expected 4 backend calls, got %d", calls)
	}
}
