package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Sender delivers an outbound message to a specific user over whatever
// channel the deployment uses.
type Sender interface {
	Send(ctx context.Context, userID string, msg Message) error
}

// HTTPSender posts outbound messages to a channel webhook.
type HTTPSender struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// outboundEnvelope is the wire format for the channel webhook.
type outboundEnvelope struct {
	UserID  string  `json:"user_id"`
	Message Message `json:"message"`
}

// NewHTTPSender creates a sender posting to the given webhook endpoint.
func NewHTTPSender(endpoint string, timeout time.Duration, logger *zap.Logger) *HTTPSender {
	return &HTTPSender{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Send delivers the message to the channel webhook.
func (s *HTTPSender) Send(ctx context.Context, userID string, msg Message) error {
	body, err := json.Marshal(outboundEnvelope{UserID: userID, Message: msg})
	if err != nil {
		return fmt.Errorf("failed to marshal outbound message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delivery request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("delivery channel returned status %d", resp.StatusCode)
	}

	s.logger.Debug("message delivered", zap.String("user_id", userID))
	return nil
}
