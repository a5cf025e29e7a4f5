package source

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// PubMedBaseURL is the NCBI E-utilities base URL.
	PubMedBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateFloor is the minimum inter-request interval per source,
	// expressed as requests per second. NCBI allows 3/sec without an API
	// key; we stay at 1/sec by default to be polite.
	DefaultRateFloor = 1.0

	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second

	maxQueryLen = 500
)

// PubMed is a rate-limited client for the NCBI E-utilities API. One
// instance is shared process-wide so the rate gate covers concurrent jobs;
// waiting requests are served in FIFO order by the limiter.
type PubMed struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
}

// PubMedOption configures a PubMed client.
type PubMedOption func(*PubMed)

// WithPubMedHTTPClient sets a custom HTTP client.
func WithPubMedHTTPClient(hc *http.Client) PubMedOption {
	return func(c *PubMed) { c.httpClient = hc }
}

// WithPubMedBaseURL sets a custom base URL (for testing).
func WithPubMedBaseURL(u string) PubMedOption {
	return func(c *PubMed) { c.baseURL = u }
}

// WithPubMedRate sets the requests-per-second floor.
func WithPubMedRate(rps float64) PubMedOption {
	return func(c *PubMed) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// NewPubMed creates a PubMed client with the default 1/sec rate floor.
func NewPubMed(opts ...PubMedOption) *PubMed {
	c := &PubMed{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateFloor), 1),
		baseURL:    PubMedBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Source.
func (c *PubMed) Name() string { return NamePubMed }

// Search implements Source. It runs the two-step E-utilities flow: esearch
// for PMIDs, then a single efetch for the metadata of all hits.
func (c *PubMed) Search(ctx context.Context, q Query) ([]Candidate, error) {
	pmids, err := c.search(ctx, q.Text())
	if err != nil {
		return nil, err
	}
	if len(pmids) == 0 {
		return nil, nil
	}
	if len(pmids) > MaxCandidates {
		pmids = pmids[:MaxCandidates]
	}
	return c.fetch(ctx, pmids)
}

func (c *PubMed) search(ctx context.Context, term string) ([]string, error) {
	if len(term) > maxQueryLen {
		term = term[:maxQueryLen]
	}

	params := url.Values{
		"db":      {"pubmed"},
		"term":    {term},
		"retmode": {"json"},
		"retmax":  {strconv.Itoa(MaxCandidates)},
		"sort":    {"relevance"},
	}

	body, err := c.get(ctx, "/esearch.fcgi", params)
	if err != nil {
		return nil, err
	}

	var result struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: parsing esearch result: %v", ErrInvalidResponse, err)
	}

	return result.ESearchResult.IDList, nil
}

func (c *PubMed) fetch(ctx context.Context, pmids []string) ([]Candidate, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(pmids, ",")},
		"retmode": {"xml"},
	}

	body, err := c.get(ctx, "/efetch.fcgi", params)
	if err != nil {
		return nil, err
	}

	var result struct {
		Articles []pubmedArticle `xml:"PubmedArticle"`
	}
	if err := xml.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: parsing efetch result: %v", ErrInvalidResponse, err)
	}

	var candidates []Candidate
	for _, art := range result.Articles {
		cand := art.candidate()
		// Records without a DOI cannot resolve a citation.
		if cand.DOI == "" {
			continue
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// get performs one rate-gated request and returns the body.
func (c *PubMed) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(NamePubMed, resp.StatusCode); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrTransient, err)
	}
	return body, nil
}

// checkStatus maps an HTTP status to the error taxonomy shared by both
// clients: 429 and 5xx are transient, other non-2xx are hard API errors.
func checkStatus(source string, status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, status)
	case status >= 500:
		return fmt.Errorf("%w: status %d", ErrTransient, status)
	case status >= 400:
		return &APIError{Source: source, StatusCode: status, Message: fmt.Sprintf("HTTP %d", status)}
	}
	return nil
}

type pubmedArticle struct {
	PMID    string `xml:"MedlineCitation>PMID"`
	Title   string `xml:"MedlineCitation>Article>ArticleTitle"`
	Journal string `xml:"MedlineCitation>Article>Journal>Title"`
	Year    string `xml:"MedlineCitation>Article>Journal>JournalIssue>PubDate>Year"`
	Authors []struct {
		LastName string `xml:"LastName"`
		Initials string `xml:"Initials"`
	} `xml:"MedlineCitation>Article>AuthorList>Author"`
	IDs []struct {
		Type  string `xml:"IdType,attr"`
		Value string `xml:",chardata"`
	} `xml:"PubmedData>ArticleIdList>ArticleId"`
}

func (a pubmedArticle) candidate() Candidate {
	cand := Candidate{
		ProviderID: a.PMID,
		Title:      strings.TrimSpace(a.Title),
		Container:  strings.TrimSpace(a.Journal),
	}
	if y, err := strconv.Atoi(strings.TrimSpace(a.Year)); err == nil {
		cand.Year = y
	}
	for _, id := range a.IDs {
		if id.Type == "doi" {
			cand.DOI = strings.TrimSpace(id.Value)
			break
		}
	}
	for _, au := range a.Authors {
		if au.LastName == "" {
			continue
		}
		name := au.LastName
		if au.Initials != "" {
			name += " " + au.Initials
		}
		cand.Authors = append(cand.Authors, name)
	}
	return cand
}
