// Package fetcher retrieves public legal pages and extracts a normalized
// record from them. Each fetch is bounded by a timeout, rate-limited per
// host, and optionally checked against the site's robots.txt.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"LegalCorpus/internal/config"
	"LegalCorpus/internal/domain"
	"LegalCorpus/internal/ports"
)

const maxSnippetLen = 3500

// Error kinds distinguished by the pipeline when recording outcomes.
var (
	// ErrFetch covers network errors, timeouts, and non-2xx responses.
	ErrFetch = errors.New("fetch failed")
	// ErrParse covers responses whose body cannot be parsed as HTML.
	ErrParse = errors.New("unparseable content")
	// ErrEmptyContent covers pages with no usable text.
	ErrEmptyContent = errors.New("empty content")
)

// Reason maps a fetch error to the audit-log reason string.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrParse):
		return "parse_error"
	case errors.Is(err, ErrEmptyContent):
		return "empty_content"
	default:
		return "fetch_error"
	}
}

// Fetcher implements ports.PageFetcher over plain HTTP.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxBytes   int64
	perHostRPS rate.Limit
	robots     *robotsChecker

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

var _ ports.PageFetcher = (*Fetcher)(nil)

// New builds a Fetcher from config. A nil client gets a bounded default.
func New(cfg config.FetchConfig, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{
			Timeout: cfg.Timeout(),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		}
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "ButterflyBot/1.0"
	}
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 2 << 20
	}
	rps := cfg.PerHostRPS
	if rps <= 0 {
		rps = 1
	}

	f := &Fetcher{
		client:     client,
		userAgent:  userAgent,
		maxBytes:   maxBytes,
		perHostRPS: rate.Limit(rps),
		limiters:   map[string]*rate.Limiter{},
	}
	if cfg.RespectRobots {
		f.robots = newRobotsChecker(client, userAgent)
	}
	return f
}

// Fetch retrieves the URL and extracts title and snippet. All failures are
// classified under the ErrFetch/ErrParse/ErrEmptyContent taxonomy so the
// caller can record them without aborting its batch.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (domain.ExtractedPage, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return domain.ExtractedPage{}, fmt.Errorf("%w: invalid url %q", ErrFetch, rawURL)
	}

	if err := f.limiter(parsed.Host).Wait(ctx); err != nil {
		return domain.ExtractedPage{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	if f.robots != nil && !f.robots.allowed(ctx, parsed) {
		return domain.ExtractedPage{}, fmt.Errorf("%w: blocked by robots.txt", ErrFetch)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return domain.ExtractedPage{}, fmt.Errorf("%w: build request: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.ExtractedPage{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.ExtractedPage{}, fmt.Errorf("%w: status %s", ErrFetch, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return domain.ExtractedPage{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	page := extract(doc, rawURL)
	if page.Snippet == "" {
		return domain.ExtractedPage{}, fmt.Errorf("%w: %s", ErrEmptyContent, rawURL)
	}
	return page, nil
}

func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(f.perHostRPS, 1)
		f.limiters[host] = lim
	}
	return lim
}

// extract pulls the page title (falling back to the first h1) and a
// whitespace-collapsed body snippet capped at maxSnippetLen.
func extract(doc *goquery.Document, sourceURL string) domain.ExtractedPage {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	doc.Find("script, style, noscript").Remove()
	body := doc.Find("body").Text()
	if body == "" {
		body = doc.Text()
	}
	snippet := strings.Join(strings.Fields(body), " ")
	if len(snippet) > maxSnippetLen {
		// Cut on a rune boundary so multibyte text stays valid UTF-8.
		cut := maxSnippetLen
		for cut > 0 && !utf8.RuneStart(snippet[cut]) {
			cut--
		}
		snippet = snippet[:cut]
	}

	return domain.ExtractedPage{
		Title:     title,
		Snippet:   snippet,
		SourceURL: sourceURL,
	}
}
