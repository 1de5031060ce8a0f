package openfda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// MaxSkip is the provider's hard cap on the skip parameter. Windows
// holding more records than this must be narrowed by configuration.
const MaxSkip = 25000

// Meta is the provider's response envelope metadata.
type Meta struct {
	Results MetaResults `json:"results"`
}

// MetaResults carries the pagination state the provider echoes back.
type MetaResults struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// Page is one page of raw reports plus its pagination metadata.
type Page struct {
	Meta    Meta               `json:"meta"`
	Results []models.RawReport `json:"results"`
}

// PageQuery addresses one page within a receive date window.
type PageQuery struct {
	WindowStart string
	WindowEnd   string
	Skip        int
	Limit       int
}

// Client fetches drug event pages from the openFDA API.
type Client struct {
	http    *httpclient.Client
	baseURL string
	apiKey  string
	logger  ectologger.Logger
}

// NewClient creates a provider client for the drug event endpoint.
func NewClient(http *httpclient.Client, baseURL, apiKey string, logger ectologger.Logger) *Client {
	return &Client{
		http:    http,
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  logger,
	}
}

// FetchPage fetches one page. The search term pins the receive date
// window so the result ordering is stable across calls; combined with a
// strictly increasing skip this makes pagination gap and duplicate
// free. A 404 from the provider means zero matches and returns an empty
// page rather than an error.
func (c *Client) FetchPage(ctx context.Context, q PageQuery) (*Page, error) {
	ctx, span := tracing.StartSpan(ctx, "openfda.Client.FetchPage")
	defer span.End()

	reqURL, err := c.buildURL(q)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Get(ctx, reqURL, nil)
	if err != nil {
		return nil, errors.NewTransientError("openfda fetch", err)
	}

	if resp.StatusCode == 404 {
		// The provider 404s a search with zero matches
		c.logger.WithContext(ctx).Debugf("Provider returned 404 for window %s..%s at skip %d", q.WindowStart, q.WindowEnd, q.Skip)
		return &Page{Meta: Meta{Results: MetaResults{Skip: q.Skip, Limit: q.Limit}}}, nil
	}

	if httpclient.IsRetryableStatus(resp.StatusCode) {
		return nil, errors.NewTransientErrorf("openfda fetch", "provider returned status %d", resp.StatusCode)
	}

	if !httpclient.IsSuccessStatus(resp.StatusCode) {
		return nil, fmt.Errorf("provider returned status %d for %s", resp.StatusCode, reqURL)
	}

	var page Page
	if err := json.Unmarshal(resp.Body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode provider response: %w", err)
	}

	c.logger.WithContext(ctx).Debugf("Fetched page: skip=%d limit=%d total=%d records=%d",
		page.Meta.Results.Skip, page.Meta.Results.Limit, page.Meta.Results.Total, len(page.Results))

	return &page, nil
}

// buildURL assembles the search/limit/skip query for a page.
func (c *Client) buildURL(q PageQuery) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid provider base URL %q: %w", c.baseURL, err)
	}

	query := u.Query()
	query.Set("search", fmt.Sprintf("receivedate:[%s TO %s]", q.WindowStart, q.WindowEnd))
	query.Set("limit", fmt.Sprintf("%d", q.Limit))
	query.Set("skip", fmt.Sprintf("%d", q.Skip))
	if c.apiKey != "" {
		query.Set("api_key", c.apiKey)
	}
	u.RawQuery = query.Encode()

	return u.String(), nil
}
