// Package fetch provides job posting page retrieval and HTML-to-text processing.
// It is the scraper collaborator consumed by the ingestion service.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultTimeout bounds a single scrape attempt.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (compatible; Applyflow/1.0)"

// Page holds the raw and processed content of a scraped job posting page.
type Page struct {
	URL        string
	HTML       string
	Text       string
	Platform   Platform
	StatusCode int
	FetchedAt  time.Time
}

// Error represents a scrape failure.
type Error struct {
	URL       string
	Message   string
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("scrape error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("scrape error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures scraper behavior.
type Options struct {
	Timeout    time.Duration
	UserAgent  string
	Headers    map[string]string
	UseBrowser bool // fall back to headless rendering for SPA boards
}

// DefaultOptions returns sensible defaults for scraping.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// Scraper retrieves job posting pages over HTTP with an optional
// headless-browser fallback for JavaScript-rendered boards.
type Scraper struct {
	client *http.Client
	opts   *Options
}

// NewScraper creates a scraper with the given options.
func NewScraper(opts *Options) *Scraper {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &Scraper{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
	}
}

// Scrape retrieves a job posting page and extracts its main text using
// platform-specific selectors. The attempt is bounded by Options.Timeout
// and by ctx, whichever fires first.
func (s *Scraper) Scrape(ctx context.Context, urlStr string) (*Page, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, &Error{URL: urlStr, Message: "invalid URL", Cause: err}
	}

	platform := DetectPlatform(urlStr)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)
	for key, value := range s.opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		// Timeouts and connection resets are worth one more attempt;
		// the ingestion service owns the retry budget.
		return nil, &Error{URL: urlStr, Message: "HTTP request failed", Retryable: true, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to read response body", Retryable: true, Cause: err}
	}

	page := &Page{
		URL:        urlStr,
		HTML:       string(bodyBytes),
		Platform:   platform,
		StatusCode: resp.StatusCode,
		FetchedAt:  time.Now().UTC(),
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			URL:       urlStr,
			Message:   fmt.Sprintf("HTTP status %d", resp.StatusCode),
			Retryable: resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
	}

	text, err := ExtractMainText(page.HTML, PlatformContentSelectors(platform), PlatformNoiseSelectors(platform)...)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "text extraction failed", Cause: err}
	}

	// SPA boards serve a near-empty shell over plain HTTP; render with a
	// headless browser and re-extract when the fallback is enabled.
	if s.opts.UseBrowser && ShouldUseBrowser(text) {
		if rendered, rErr := RenderPage(ctx, urlStr, s.opts.Timeout); rErr == nil {
			if renderedText, tErr := ExtractMainText(rendered, PlatformContentSelectors(platform), PlatformNoiseSelectors(platform)...); tErr == nil {
				page.HTML = rendered
				text = renderedText
			}
		}
	}

	page.Text = text
	return page, nil
}

// PageFromHTML builds a Page from caller-supplied HTML, skipping the fetch.
// Used when a browser extension already holds the page content.
func PageFromHTML(html, urlStr string) (*Page, error) {
	platform := DetectPlatform(urlStr)
	text, err := ExtractMainText(html, PlatformContentSelectors(platform), PlatformNoiseSelectors(platform)...)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "text extraction failed", Cause: err}
	}
	return &Page{
		URL:       urlStr,
		HTML:      html,
		Text:      text,
		Platform:  platform,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// ExtractMainText parses HTML and returns the main body text.
// It removes noise elements using noiseSelectors, then finds content using
// contentSelectors, falling back to the body element.
func ExtractMainText(html string, contentSelectors []string, noiseSelectors ...string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	// Remove common unwanted elements (nav, footer, scripts, ads, etc.)
	doc.Find("nav, footer, header, script, style, noscript, .ad, .advertisement, .ads, .sidebar, .cookie-banner, .popup").Remove()

	if len(noiseSelectors) > 0 {
		noiseSelector := strings.Join(noiseSelectors, ", ")
		if noiseSelector != "" {
			doc.Find(noiseSelector).Remove()
		}
	}

	var mainContent *goquery.Selection
	for _, selector := range contentSelectors {
		if selection := doc.Find(selector); selection.Length() > 0 {
			mainContent = selection.First()
			break
		}
	}
	if mainContent == nil {
		mainContent = doc.Find("body")
	}

	return cleanWhitespace(mainContent.Text()), nil
}

// JobPostingSelectors returns content selectors for unrecognized job boards.
func JobPostingSelectors() []string {
	return []string{
		".job-description",
		".job-content",
		"#job-description",
		"#job-content",
		".posting-content",
		".job-details",
		"[data-testid='job-description']",
		"main",
		"article",
		".content",
		"#content",
	}
}

// cleanWhitespace normalizes whitespace in text.
func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
