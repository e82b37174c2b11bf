// Package crossref harvests work records from the Crossref REST API
// using its deep-paging cursor protocol.
package crossref

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
	defaultBaseURL = "https://api.crossref.org"
	maxRows        = 1000
	defaultRows    = 200
)

// Config holds settings for the Crossref client.
type Config struct {
	// BaseURL is the API root. Defaults to https://api.crossref.org.
	BaseURL string
	// MailTo joins the polite pool when set.
	MailTo string
	// Rows is the page size, capped at 1000.
	Rows int
	// Timeout is the per-request timeout.
	Timeout time.Duration
	// RateLimit is the maximum requests per second.
	RateLimit float64
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Rows <= 0 {
		c.Rows = defaultRows
	}
	if c.Rows > maxRows {
		c.Rows = maxRows
	}
}

// Client fetches cursor-paginated works from Crossref.
type Client struct {
	http   *harvest.HTTPClient
	config Config
	logger zerolog.Logger
}

// New creates a Crossref client with its own HTTP fetch stack.
func New(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()
	httpClient := harvest.NewHTTPClient(harvest.HTTPClientConfig{
		Source:    string(domain.SourceCrossref),
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
	}, logger, metrics)
	return NewWithHTTPClient(cfg, httpClient, logger)
}

// NewWithHTTPClient creates a client around an existing fetch stack.
func NewWithHTTPClient(cfg Config, httpClient *harvest.HTTPClient, logger zerolog.Logger) *Client {
	cfg.applyDefaults()
	return &Client{
		http:   httpClient,
		config: cfg,
		logger: logger.With().Str("component", "crossref-client").Logger(),
	}
}

// worksResponse is the Crossref list envelope.
type worksResponse struct {
	Status  string `json:"status"`
	Message struct {
		NextCursor   string            `json:"next-cursor"`
		TotalResults int               `json:"total-results"`
		Items        []json.RawMessage `json:"items"`
	} `json:"message"`
}

// workItem is the subset of a Crossref work used for the raw snapshot.
type workItem struct {
	DOI     string    `json:"DOI"`
	Titles  []string  `json:"title"`
	Issued  dateParts `json:"issued"`
	Created struct {
		DateTime string `json:"date-time"`
	} `json:"created"`
	Deposited struct {
		DateTime string `json:"date-time"`
	} `json:"deposited"`
}

type dateParts struct {
	DateParts [][]int `json:"date-parts"`
}

func (d dateParts) year() int {
	if len(d.DateParts) > 0 && len(d.DateParts[0]) > 0 {
		return d.DateParts[0][0]
	}
	return 0
}

// WorksSource streams Crossref works matching a filter expression
// (e.g. "from-index-date:2024-01-01,type:journal-article").
type WorksSource struct {
	client *Client
	filter string
}

// NewWorksSource creates a harvest source over the /works endpoint.
func NewWorksSource(client *Client, filter string) *WorksSource {
	return &WorksSource{client: client, filter: filter}
}

// Name implements harvest.Source.
func (s *WorksSource) Name() domain.SourceName { return domain.SourceCrossref }

// FetchPage implements harvest.Source.
func (s *WorksSource) FetchPage(ctx context.Context, cursor string) (*harvest.Page, error) {
	if cursor == "" {
		cursor = harvest.CursorStart
	}

	body, err := s.client.http.GetJSON(ctx, s.client.worksURL(s.filter, cursor))
	if err != nil {
		return nil, err
	}

	var resp worksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewPermanentFetchError(string(domain.SourceCrossref), 0, fmt.Errorf("decoding works response: %w", err))
	}

	page := &harvest.Page{}
	// Crossref keeps returning the same cursor with an empty item list
	// once the result set is exhausted.
	if len(resp.Message.Items) > 0 {
		page.NextCursor = resp.Message.NextCursor
	}

	for _, data := range resp.Message.Items {
		raw, err := rawArticleFromItem(data)
		if err != nil {
			s.client.logger.Warn().Err(err).Msg("skipping undecodable work")
			continue
		}
		page.Articles = append(page.Articles, raw)
	}
	return page, nil
}

func (c *Client) worksURL(filter, cursor string) string {
	params := url.Values{}
	if filter != "" {
		params.Set("filter", filter)
	}
	params.Set("rows", strconv.Itoa(c.config.Rows))
	params.Set("cursor", cursor)
	if c.config.MailTo != "" {
		params.Set("mailto", c.config.MailTo)
	}
	return c.config.BaseURL + "/works?" + params.Encode()
}

func rawArticleFromItem(data json.RawMessage) (*domain.RawArticle, error) {
	var item workItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("decoding work item: %w", err)
	}
	if item.DOI == "" {
		return nil, fmt.Errorf("work item has no DOI")
	}

	raw := &domain.RawArticle{
		SpecificID:    item.DOI,
		Source:        domain.SourceCrossref,
		Payload:       data,
		DOI:           domain.CleanDOI(item.DOI),
		SourceCreated: parseDateTime(item.Created.DateTime),
		SourceUpdated: parseDateTime(item.Deposited.DateTime),
	}
	if len(item.Titles) > 0 {
		raw.Title = item.Titles[0]
	}
	if year := item.Issued.year(); year > 0 {
		raw.Year = &year
	}
	return raw, nil
}

func parseDateTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
