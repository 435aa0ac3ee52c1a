package citydata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Client is the Data Service contract the orchestrator consumes. Only the
// status-check path uses it today; search exists for richer flows.
type Client interface {
	LookupByRequestNumber(ctx context.Context, requestNumber string) (*ServiceRequest, error)
	SearchByLocationOrType(ctx context.Context, filter Filter) ([]ServiceRequest, error)
}

// HTTPClient implements Client against the city open-data API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPClient creates a Data Service client for the given API URL.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// LookupByRequestNumber fetches a single record by its request number. A 404
// maps to ErrNotFound; any other failure is a LookupError.
func (c *HTTPClient) LookupByRequestNumber(ctx context.Context, requestNumber string) (*ServiceRequest, error) {
	endpoint := fmt.Sprintf("%s/v1/requests/%s", c.baseURL, url.PathEscape(requestNumber))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, NewLookupError("lookup", "failed to build request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewLookupError("lookup", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewLookupError("lookup", fmt.Sprintf("data service returned status %d", resp.StatusCode), nil)
	}

	var record ServiceRequest
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, NewLookupError("lookup", "failed to decode record", err)
	}

	c.logger.Debug("service request resolved",
		zap.String("request_number", record.RequestNumber),
		zap.String("status", record.Status))

	return &record, nil
}

// SearchByLocationOrType lists records matching the filter.
func (c *HTTPClient) SearchByLocationOrType(ctx context.Context, filter Filter) ([]ServiceRequest, error) {
	query := url.Values{}
	if filter.Location != "" {
		query.Set("location", filter.Location)
	}
	if filter.RequestType != "" {
		query.Set("type", filter.RequestType)
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	endpoint := fmt.Sprintf("%s/v1/requests?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, NewLookupError("search", "failed to build request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewLookupError("search", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewLookupError("search", fmt.Sprintf("data service returned status %d", resp.StatusCode), nil)
	}

	var records []ServiceRequest
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, NewLookupError("search", "failed to decode records", err)
	}

	return records, nil
}
