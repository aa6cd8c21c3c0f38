package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/urban-heat-viewer/internal/domain"
	"github.com/couchcryptid/urban-heat-viewer/internal/observability"
)

// Client implements domain.CatalogSource against the layer catalog endpoint.
type Client struct {
	url        string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a catalog client for the given endpoint.
func NewClient(url string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Fetch issues one GET and decodes the ordered layer list. It does not retry.
func (c *Client) Fetch(ctx context.Context) ([]domain.LayerDescriptor, error) {
	layers, err := c.doRequest(ctx)
	if err != nil {
		c.metrics.CatalogFetches.WithLabelValues("error").Inc()
		return nil, err
	}
	c.metrics.CatalogFetches.WithLabelValues("success").Inc()
	c.logger.Debug("catalog fetched", "url", c.url, "layers", len(layers))
	return layers, nil
}

func (c *Client) doRequest(ctx context.Context) ([]domain.LayerDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("catalog API error: status %d: %s", resp.StatusCode, body)
	}

	var layers []domain.LayerDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&layers); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return layers, nil
}
