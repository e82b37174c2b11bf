// Package openalex harvests works, institutions and sources (journals)
// from the OpenAlex API using its cursor pagination protocol.
package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ocabr/observatory/internal/domain"
	"github.com/ocabr/observatory/internal/harvest"
	"github.com/ocabr/observatory/internal/observability"
)

const (
	defaultBaseURL = "https://api.openalex.org"
	// maxPerPage is the page size cap dictated by OpenAlex.
	maxPerPage = 200
)

// Config holds settings for the OpenAlex client.
type Config struct {
	// BaseURL is the API root. Defaults to https://api.openalex.org.
	BaseURL string
	// MailTo joins the polite pool when set; sent with every request.
	MailTo string
	// PerPage is the page size, capped at 200.
	PerPage int
	// Timeout is the per-request timeout.
	Timeout time.Duration
	// RateLimit is the maximum requests per second. Zero disables limiting.
	RateLimit float64
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.PerPage <= 0 || c.PerPage > maxPerPage {
		c.PerPage = maxPerPage
	}
}

// Client fetches cursor-paginated pages from OpenAlex list endpoints.
type Client struct {
	http   *harvest.HTTPClient
	config Config
	logger zerolog.Logger
}

// New creates an OpenAlex client with its own HTTP fetch stack.
func New(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()
	httpClient := harvest.NewHTTPClient(harvest.HTTPClientConfig{
		Source:    string(domain.SourceOpenAlex),
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
	}, logger, metrics)
	return NewWithHTTPClient(cfg, httpClient, logger)
}

// NewWithHTTPClient creates a client around an existing fetch stack.
// Used by tests to point at a stub server.
func NewWithHTTPClient(cfg Config, httpClient *harvest.HTTPClient, logger zerolog.Logger) *Client {
	cfg.applyDefaults()
	return &Client{
		http:   httpClient,
		config: cfg,
		logger: logger.With().Str("component", "openalex-client").Logger(),
	}
}

// fetchList retrieves one page of a list endpoint. An empty cursor or
// harvest.CursorStart begins the iteration.
func (c *Client) fetchList(ctx context.Context, endpoint, filter, cursor string) (*listResponse, error) {
	if cursor == "" {
		cursor = harvest.CursorStart
	}
	body, err := c.http.GetJSON(ctx, c.listURL(endpoint, filter, cursor))
	if err != nil {
		return nil, err
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewPermanentFetchError(string(domain.SourceOpenAlex), 0, fmt.Errorf("decoding %s response: %w", endpoint, err))
	}
	return &resp, nil
}

func (c *Client) listURL(endpoint, filter, cursor string) string {
	params := url.Values{}
	if filter != "" {
		params.Set("filter", filter)
	}
	params.Set("per-page", strconv.Itoa(c.config.PerPage))
	params.Set("cursor", cursor)
	if c.config.MailTo != "" {
		params.Set("mailto", c.config.MailTo)
	}
	return c.config.BaseURL + endpoint + "?" + params.Encode()
}

// WorksSource streams work records matching an OpenAlex filter
// expression (e.g. "institutions.country_code:BR").
type WorksSource struct {
	client *Client
	filter string
}

// NewWorksSource creates a harvest source over the /works endpoint.
func NewWorksSource(client *Client, filter string) *WorksSource {
	return &WorksSource{client: client, filter: filter}
}

// Name implements harvest.Source.
func (s *WorksSource) Name() domain.SourceName { return domain.SourceOpenAlex }

// FetchPage implements harvest.Source.
func (s *WorksSource) FetchPage(ctx context.Context, cursor string) (*harvest.Page, error) {
	resp, err := s.client.fetchList(ctx, "/works", s.filter, cursor)
	if err != nil {
		return nil, err
	}

	page := &harvest.Page{NextCursor: resp.Meta.NextCursor}
	for _, data := range resp.Results {
		raw, err := RawArticleFromPayload(data)
		if err != nil {
			s.client.logger.Warn().Err(err).Msg("skipping undecodable work")
			continue
		}
		page.Articles = append(page.Articles, raw)
	}
	return page, nil
}

// InstitutionsSource streams institution records.
type InstitutionsSource struct {
	client *Client
	filter string
}

// NewInstitutionsSource creates a harvest source over the /institutions
// endpoint.
func NewInstitutionsSource(client *Client, filter string) *InstitutionsSource {
	return &InstitutionsSource{client: client, filter: filter}
}

// Name implements harvest.Source.
func (s *InstitutionsSource) Name() domain.SourceName { return domain.SourceOpenAlex }

// FetchPage implements harvest.Source.
func (s *InstitutionsSource) FetchPage(ctx context.Context, cursor string) (*harvest.Page, error) {
	resp, err := s.client.fetchList(ctx, "/institutions", s.filter, cursor)
	if err != nil {
		return nil, err
	}

	page := &harvest.Page{NextCursor: resp.Meta.NextCursor}
	for _, data := range resp.Results {
		raw, err := RawInstitutionFromPayload(data)
		if err != nil {
			s.client.logger.Warn().Err(err).Msg("skipping undecodable institution")
			continue
		}
		page.Institutions = append(page.Institutions, raw)
	}
	return page, nil
}

// VenuesSource streams source (journal) records.
type VenuesSource struct {
	client *Client
	filter string
}

// NewVenuesSource creates a harvest source over the /sources endpoint.
func NewVenuesSource(client *Client, filter string) *VenuesSource {
	return &VenuesSource{client: client, filter: filter}
}

// Name implements harvest.Source.
func (s *VenuesSource) Name() domain.SourceName { return domain.SourceOpenAlex }

// FetchPage implements harvest.Source.
func (s *VenuesSource) FetchPage(ctx context.Context, cursor string) (*harvest.Page, error) {
	resp, err := s.client.fetchList(ctx, "/sources", s.filter, cursor)
	if err != nil {
		return nil, err
	}

	page := &harvest.Page{NextCursor: resp.Meta.NextCursor}
	for _, data := range resp.Results {
		raw, err := RawJournalFromPayload(data)
		if err != nil {
			s.client.logger.Warn().Err(err).Msg("skipping undecodable source record")
			continue
		}
		page.Journals = append(page.Journals, raw)
	}
	return page, nil
}
