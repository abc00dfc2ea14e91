package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// Sender delivers one text message to a normalized phone number.
type Sender interface {
	Send(ctx context.Context, phone, text string) error
}

// HTTPSender calls the text delivery endpoint with a GET request. It does not retry.
type HTTPSender struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewHTTPSender creates an HTTPSender bounded by timeout.
func NewHTTPSender(endpoint, apiKey string, timeout time.Duration, logger zerolog.Logger) *HTTPSender {
	return &HTTPSender{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("sender", "http").Logger(),
	}
}

type deliveryResponse struct {
	Success interface{} `json:"success"`
}

func (s *HTTPSender) Send(ctx context.Context, phone, text string) error {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return fmt.Errorf("invalid messaging endpoint: %w", err)
	}
	q := u.Query()
	q.Set("api_key", s.apiKey)
	q.Set("mobile", phone)
	q.Set("priority", "0")
	q.Set("message", text)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create message request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to contact messaging endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("failed to read messaging response: %w", err)
	}
	var out deliveryResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("failed to parse messaging response (status %d): %w", resp.StatusCode, err)
	}
	// The endpoint reports success as the string "true".
	if v, ok := out.Success.(string); !ok || v != "true" {
		return fmt.Errorf("messaging endpoint rejected message to %s (status %d)", phone, resp.StatusCode)
	}
	s.logger.Info().Str("phone", phone).Msg("message sent")
	return nil
}

// LoggingSender only logs messages. Used when no endpoint is configured.
type LoggingSender struct {
	logger zerolog.Logger
}

func NewLoggingSender(logger zerolog.Logger) *LoggingSender {
	return &LoggingSender{logger: logger.With().Str("sender", "log").Logger()}
}

func (s *LoggingSender) Send(ctx context.Context, phone, text string) error {
	s.logger.Info().Str("phone", phone).Str("text", text).Msg("message (logged)")
	return nil
}
