package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/rs/zerolog"

	"github.com/ocabr/observatory/internal/config"
)

// Client wraps the OpenSearch client with JSON body handling and
// error mapping.
type Client struct {
	os      *opensearch.Client
	timeout time.Duration
	logger  zerolog.Logger
}

// NewClient connects to the configured OpenSearch nodes.
func NewClient(cfg config.SearchConfig, logger zerolog.Logger) (*Client, error) {
	osc, err := opensearch.NewClient(opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("creating opensearch client: %w", err)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		os:      osc,
		timeout: timeout,
		logger:  logger.With().Str("component", "search").Logger(),
	}, nil
}

// searchHit is one document from a search response.
type searchHit struct {
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

// searchResponse is the subset of the search payload the gateway
// consumes. Aggregations stay raw; each caller decodes its own shape.
type searchResponse struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations"`
}

// Search runs a query body against an index.
func (c *Client) Search(ctx context.Context, index string, body any) (*searchResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}

	res, err := c.os.Search(
		c.os.Search.WithContext(ctx),
		c.os.Search.WithIndex(index),
		c.os.Search.WithBody(bytes.NewReader(encoded)),
	)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", index, err)
	}
	return decodeSearchResponse(res, index)
}

// SearchScroll opens a scroll over an index. The caller owns the
// scroll id and must clear it through ClearScroll.
func (c *Client) SearchScroll(ctx context.Context, index string, body any, ttl time.Duration) (*searchResponse, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}

	res, err := c.os.Search(
		c.os.Search.WithContext(ctx),
		c.os.Search.WithIndex(index),
		c.os.Search.WithBody(bytes.NewReader(encoded)),
		c.os.Search.WithScroll(ttl),
	)
	if err != nil {
		return nil, fmt.Errorf("opening scroll on %s: %w", index, err)
	}
	return decodeSearchResponse(res, index)
}

// Scroll continues an open scroll.
func (c *Client) Scroll(ctx context.Context, scrollID string, ttl time.Duration) (*searchResponse, error) {
	res, err := c.os.Scroll(
		c.os.Scroll.WithContext(ctx),
		c.os.Scroll.WithScrollID(scrollID),
		c.os.Scroll.WithScroll(ttl),
	)
	if err != nil {
		return nil, fmt.Errorf("continuing scroll: %w", err)
	}
	return decodeSearchResponse(res, "scroll")
}

// ClearScroll releases scroll resources. Errors are logged only; the
// scroll expires on its own after the TTL.
func (c *Client) ClearScroll(ctx context.Context, scrollID string) {
	if scrollID == "" {
		return
	}
	res, err := c.os.ClearScroll(
		c.os.ClearScroll.WithContext(ctx),
		c.os.ClearScroll.WithScrollID(scrollID),
	)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to clear scroll")
		return
	}
	res.Body.Close()
}

// IndexDocument upserts a document. Refresh makes the write visible
// to the next search.
func (c *Client) IndexDocument(ctx context.Context, index, id string, doc any, refresh bool) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	options := []func(*opensearchapi.IndexRequest){
		c.os.Index.WithContext(ctx),
		c.os.Index.WithDocumentID(id),
	}
	if refresh {
		options = append(options, c.os.Index.WithRefresh("true"))
	}

	res, err := c.os.Index(index, bytes.NewReader(encoded), options...)
	if err != nil {
		return fmt.Errorf("indexing into %s: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("indexing into %s: %s", index, res.String())
	}
	return nil
}

// DeleteDocument removes a document. Missing documents are not an
// error; a delete after a never-published record is a no-op.
func (c *Client) DeleteDocument(ctx context.Context, index, id string, refresh bool) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	options := []func(*opensearchapi.DeleteRequest){
		c.os.Delete.WithContext(ctx),
	}
	if refresh {
		options = append(options, c.os.Delete.WithRefresh("true"))
	}

	res, err := c.os.Delete(index, id, options...)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("deleting from %s: %s", index, res.String())
	}
	return nil
}

// Bulk sends a prepared NDJSON bulk body.
func (c *Client) Bulk(ctx context.Context, body io.Reader) error {
	res, err := c.os.Bulk(body, c.os.Bulk.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("bulk request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk request: %s", res.String())
	}

	var report struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&report); err != nil {
		return fmt.Errorf("decoding bulk response: %w", err)
	}
	if report.Errors {
		for _, item := range report.Items {
			for op, detail := range item {
				if detail.Error != nil {
					return fmt.Errorf("bulk %s failed: %s: %s", op, detail.Error.Type, detail.Error.Reason)
				}
			}
		}
		return fmt.Errorf("bulk request reported item errors")
	}
	return nil
}

// CreateIndex creates an index with the given settings and mappings.
// An already-existing index is not an error.
func (c *Client) CreateIndex(ctx context.Context, index string, body any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding index settings: %w", err)
	}

	res, err := c.os.Indices.Create(
		index,
		c.os.Indices.Create.WithContext(ctx),
		c.os.Indices.Create.WithBody(bytes.NewReader(encoded)),
	)
	if err != nil {
		return fmt.Errorf("creating index %s: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 400 {
		return fmt.Errorf("creating index %s: %s", index, res.String())
	}
	return nil
}

func decodeSearchResponse(res *opensearchapi.Response, index string) (*searchResponse, error) {
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search on %s: %s", index, res.String())
	}
	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return &parsed, nil
}
