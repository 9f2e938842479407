// Package cms implements the client for the external content-management API
// that acts as the authoritative product source. The API is Contentful-shaped:
// entries live in a space/environment, are filtered by content type, and are
// fetched in skip/limit pages with a bearer access token.
package cms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/dnscache"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	catalog "github.com/okozhin/catalogd/internal"
)

const (
	defaultBaseURL  = "https://cdn.contentful.com"
	defaultPageSize = 100
	defaultTimeout  = 30 * time.Second

	// maxEntriesBody caps a single page response to guard against a
	// misbehaving upstream.
	maxEntriesBody = 16 << 20
)

// StatusError reports a non-200 response from the content API.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cms: entries request failed: %d %s", e.Code, e.Message)
}

// HTTPStatus returns the upstream status code.
func (e *StatusError) HTTPStatus() int { return e.Code }

// Config holds the connection parameters for the content API.
type Config struct {
	Space       string
	Environment string
	AccessToken string
	ContentType string
	BaseURL     string        // defaults to the Contentful CDN
	Timeout     time.Duration // per-request timeout
	PageSize    int           // entries per fetch page
}

// Client fetches product entries from the content API.
type Client struct {
	space       string
	environment string
	contentType string
	baseURL     string
	pageSize    int
	http        *http.Client
}

// New creates a content API client. The access token is injected on every
// outbound request through an oauth2 static-token transport layered over a
// pooled, DNS-cached base transport.
func New(cfg Config, resolver *dnscache.Resolver) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})
	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(nil, src),
			Base:   newTransport(resolver),
		},
	}

	return &Client{
		space:       cfg.Space,
		environment: cfg.Environment,
		contentType: cfg.ContentType,
		baseURL:     strings.TrimRight(baseURL, "/"),
		pageSize:    pageSize,
		http:        httpClient,
	}
}

// FetchEntries retrieves the source's full current product listing, walking
// skip/limit pages until the reported total is reached.
func (c *Client) FetchEntries(ctx context.Context) ([]catalog.Entry, error) {
	var entries []catalog.Entry
	skip := 0
	for {
		page, total, err := c.fetchPage(ctx, skip)
		if err != nil {
			return nil, err
		}
		entries = append(entries, page...)
		skip += c.pageSize
		if skip >= total || len(page) == 0 {
			return entries, nil
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, skip int) ([]catalog.Entry, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.entriesURL(skip), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("cms: create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("cms: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEntriesBody))
	if err != nil {
		return nil, 0, fmt.Errorf("cms: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, 0, &StatusError{Code: resp.StatusCode, Message: msg}
	}

	total := int(gjson.GetBytes(body, "total").Int())
	items := gjson.GetBytes(body, "items")
	if !items.Exists() {
		return nil, 0, fmt.Errorf("cms: malformed entries response: no items array")
	}

	var entries []catalog.Entry
	items.ForEach(func(_, item gjson.Result) bool {
		entries = append(entries, catalog.Entry{
			ID:       item.Get("sys.id").String(),
			Name:     item.Get("fields.name").String(),
			Category: item.Get("fields.category").String(),
			Price:    item.Get("fields.price").Float(),
		})
		return true
	})
	return entries, total, nil
}

// entriesURL builds the paged entries endpoint URL.
func (c *Client) entriesURL(skip int) string {
	q := url.Values{}
	q.Set("content_type", c.contentType)
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(c.pageSize))
	return fmt.Sprintf("%s/spaces/%s/environments/%s/entries?%s",
		c.baseURL, url.PathEscape(c.space), url.PathEscape(c.environment), q.Encode())
}
