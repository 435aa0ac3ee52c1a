package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPClassifier calls the external NLP classification service over HTTP.
type HTTPClassifier struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// classifyRequest is the wire request for the classification endpoint.
type classifyRequest struct {
	Text    string `json:"text"`
	History []Turn `json:"history,omitempty"`
}

// classifyResponse is the wire response from the classification endpoint.
type classifyResponse struct {
	Intent     string            `json:"intent"`
	Entities   map[string]string `json:"entities"`
	Confidence float64           `json:"confidence"`
}

// NewHTTPClassifier creates a classifier client for the given service URL.
func NewHTTPClassifier(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPClassifier {
	return &HTTPClassifier{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Classify posts the message and history to the NLP service and returns the
// structured result. Transport failures and non-2xx statuses surface as a
// ClassifierError.
func (c *HTTPClassifier) Classify(ctx context.Context, text string, history []Turn) (*Classification, error) {
	body, err := json.Marshal(classifyRequest{Text: text, History: history})
	if err != nil {
		return nil, NewInvalidResponseError("http", "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/classify", bytes.NewReader(body))
	if err != nil {
		return nil, NewUnavailableError("http", "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewUnavailableError("http", "classification request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewUnavailableError("http", fmt.Sprintf("classification service returned status %d", resp.StatusCode), nil)
	}

	var wire classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, NewInvalidResponseError("http", "failed to decode response", err)
	}

	result := &Classification{
		Intent:     ParseIntent(wire.Intent),
		Entities:   wire.Entities,
		Confidence: clampConfidence(wire.Confidence),
	}

	c.logger.Debug("message classified",
		zap.String("intent", string(result.Intent)),
		zap.Float64("confidence", result.Confidence))

	return result, nil
}

// clampConfidence bounds a confidence score to [0, 1].
func clampConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
