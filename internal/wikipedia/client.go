// Package wikipedia fetches article extracts from the MediaWiki action API.
package wikipedia

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL   = "https://en.wikipedia.org/w/api.php"
	DefaultUserAgent = "wikicache/1.0 (https://github.com/wikicache/wikicache)"

	maxBodyBytes = 16 << 20
)

// Format selects the extract representation requested from the API.
type Format string

const (
	FormatPlain Format = "plain"
	FormatHTML  Format = "html"
)

var ErrNotFound = errors.New("wikipedia: page not found")

// NotFoundError means the page does not exist remotely. It is not retryable.
type NotFoundError struct {
	Title string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("wikipedia article %q not found", e.Title)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NetworkError covers transport failures, unexpected statuses and
// unreadable responses. Callers may retry it.
type NetworkError struct {
	Title      string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("wikipedia request for %q failed with status %d: %v", e.Title, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("wikipedia request for %q failed: %v", e.Title, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Page is the raw result of one fetch.
type Page struct {
	Title     string
	Markup    string
	Related   []string
	SourceURL string
}

// Client fetches one page. Implementations must return *NotFoundError or
// *NetworkError so callers can tell the two apart.
type Client interface {
	Fetch(ctx context.Context, title string) (*Page, error)
}

type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Format    Format
	HTTP      *http.Client
}

// HTTPClient is the real Client backed by the MediaWiki API.
type HTTPClient struct {
	baseURL   string
	userAgent string
	format    Format
	http      *http.Client
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(opts Options) *HTTPClient {
	c := &HTTPClient{
		baseURL:   opts.BaseURL,
		userAgent: opts.UserAgent,
		format:    opts.Format,
		http:      opts.HTTP,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.format == "" {
		c.format = FormatPlain
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		c.http = &http.Client{Timeout: timeout}
	}
	return c
}

func (c *HTTPClient) Fetch(ctx context.Context, title string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.queryURL(title), nil)
	if err != nil {
		return nil, &NetworkError{Title: title, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Title: title, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &NetworkError{Title: title, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &NetworkError{Title: title, Err: fmt.Errorf("reading response: %w", err)}
	}

	return c.parse(title, body)
}

func (c *HTTPClient) queryURL(title string) string {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("format", "json")
	q.Set("formatversion", "2")
	q.Set("prop", "extracts")
	q.Set("redirects", "1")
	q.Set("titles", title)
	if c.format == FormatPlain {
		q.Set("explaintext", "1")
	}

	sep := "?"
	if strings.Contains(c.baseURL, "?") {
		sep = "&"
	}
	return c.baseURL + sep + q.Encode()
}

func (c *HTTPClient) parse(title string, body []byte) (*Page, error) {
	if !gjson.ValidBytes(body) {
		return nil, &NetworkError{Title: title, Err: errors.New("malformed JSON response")}
	}

	if code := gjson.GetBytes(body, "error.code"); code.Exists() {
		if code.String() == "invalidtitle" || code.String() == "missingtitle" {
			return nil, &NotFoundError{Title: title}
		}
		return nil, &NetworkError{Title: title, Err: fmt.Errorf("api error %s: %s", code.String(), gjson.GetBytes(body, "error.info").String())}
	}

	page := gjson.GetBytes(body, "query.pages.0")
	if !page.Exists() {
		return nil, &NetworkError{Title: title, Err: errors.New("response has no pages")}
	}
	if page.Get("missing").Bool() || page.Get("invalid").Bool() {
		return nil, &NotFoundError{Title: title}
	}

	extract := page.Get("extract")
	if !extract.Exists() {
		return nil, &NetworkError{Title: title, Err: errors.New("response has no extract")}
	}

	canonical := page.Get("title").String()
	if canonical == "" {
		canonical = title
	}

	markup := extract.String()
	related := RelatedTitles(markup)
	if c.format == FormatHTML {
		related = RelatedTitlesHTML(markup)
	}

	return &Page{
		Title:     canonical,
		Markup:    markup,
		Related:   related,
		SourceURL: c.articleURL(canonical),
	}, nil
}

// articleURL derives the human-facing page URL from the API endpoint.
func (c *HTTPClient) articleURL(title string) string {
	u, err := url.Parse(c.baseURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return (&url.URL{
		Scheme: u.Scheme,
		Host:   u.Host,
		Path:   "/wiki/" + strings.ReplaceAll(title, " ", "_"),
	}).String()
}
