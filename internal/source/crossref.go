package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"
)

const (
	// CrossRefBaseURL is the CrossRef REST API works endpoint.
	CrossRefBaseURL = "https://api.crossref.org/works"

	// crossRefMailto identifies us to the polite pool.
	crossRefMailto = "doifind@example.org"

	crossRefMaxQueryLen = 300
)

// CrossRef is a rate-limited client for the CrossRef REST API. Like the
// PubMed client it is shared process-wide so the rate floor holds across
// concurrent jobs.
type CrossRef struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	mailto     string
}

// CrossRefOption configures a CrossRef client.
type CrossRefOption func(*CrossRef)

// WithCrossRefHTTPClient sets a custom HTTP client.
func WithCrossRefHTTPClient(hc *http.Client) CrossRefOption {
	return func(c *CrossRef) { c.httpClient = hc }
}

// WithCrossRefBaseURL sets a custom base URL (for testing).
func WithCrossRefBaseURL(u string) CrossRefOption {
	return func(c *CrossRef) { c.baseURL = u }
}

// WithCrossRefRate sets the requests-per-second floor.
func WithCrossRefRate(rps float64) CrossRefOption {
	return func(c *CrossRef) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithCrossRefMailto sets the polite-pool contact address.
func WithCrossRefMailto(addr string) CrossRefOption {
	return func(c *CrossRef) { c.mailto = addr }
}

// NewCrossRef creates a CrossRef client with the default 1/sec rate floor.
func NewCrossRef(opts ...CrossRefOption) *CrossRef {
	c := &CrossRef{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateFloor), 1),
		baseURL:    CrossRefBaseURL,
		mailto:     crossRefMailto,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Source.
func (c *CrossRef) Name() string { return NameCrossRef }

// Search implements Source.
func (c *CrossRef) Search(ctx context.Context, q Query) ([]Candidate, error) {
	term := q.Text()
	if len(term) > crossRefMaxQueryLen {
		term = term[:crossRefMaxQueryLen]
	}

	params := url.Values{
		"query":  {term},
		"rows":   {strconv.Itoa(MaxCandidates)},
		"mailto": {c.mailto},
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "doifind/1.0 (mailto:"+c.mailto+")")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(NameCrossRef, resp.StatusCode); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrTransient, err)
	}

	var result struct {
		Message struct {
			Items []crossRefWork `json:"items"`
		} `json:"message"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: parsing works result: %v", ErrInvalidResponse, err)
	}

	var candidates []Candidate
	for _, item := range result.Message.Items {
		cand := item.candidate()
		if cand.DOI == "" {
			continue
		}
		candidates = append(candidates, cand)
		if len(candidates) == MaxCandidates {
			break
		}
	}
	return candidates, nil
}

type crossRefWork struct {
	DOI            string     `json:"DOI"`
	Title          []string   `json:"title"`
	ContainerTitle []string   `json:"container-title"`
	Author         []struct { // family/given per CrossRef schema
		Family string `json:"family"`
		Given  string `json:"given"`
	} `json:"author"`
	PublishedPrint  crossRefDate `json:"published-print"`
	PublishedOnline crossRefDate `json:"published-online"`
}

type crossRefDate struct {
	DateParts [][]int `json:"date-parts"`
}

func (d crossRefDate) year() int {
	if len(d.DateParts) > 0 && len(d.DateParts[0]) > 0 {
		return d.DateParts[0][0]
	}
	return 0
}

func (w crossRefWork) candidate() Candidate {
	cand := Candidate{
		ProviderID: w.DOI,
		DOI:        w.DOI,
	}
	if len(w.Title) > 0 {
		cand.Title = strings.TrimSpace(w.Title[0])
	}
	if len(w.ContainerTitle) > 0 {
		cand.Container = strings.TrimSpace(w.ContainerTitle[0])
	}
	if y := w.PublishedPrint.year(); y != 0 {
		cand.Year = y
	} else {
		cand.Year = w.PublishedOnline.year()
	}
	for _, au := range w.Author {
		if au.Family == "" {
			continue
		}
		name := au.Family
		if au.Given != "" {
			name += " " + abbreviate(au.Given)
		}
		cand.Authors = append(cand.Authors, name)
	}
	return cand
}

// abbreviate reduces a given name to initials ("Jane B." -> "JB").
func abbreviate(given string) string {
	var b strings.Builder
	for _, part := range strings.Fields(given) {
		r := []rune(part)
		if len(r) > 0 {
			b.WriteRune(r[0])
		}
	}
	return b.String()
}
