// Package notifications delivers emails and SMS through the external
// notification service and publishes request lifecycle events to Redis.
package notifications

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"akinmueble/internal/observability"

	"github.com/goccy/go-json"
)

// Channel identifies a delivery channel of the notification service.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

var channelPaths = map[Channel]string{
	ChannelEmail: "/send-email-general",
	ChannelSMS:   "/send-sms",
}

// UpstreamError reports that the notification service did not accept a message.
type UpstreamError struct {
	Channel    Channel
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("notification %s not accepted: %v", e.Channel, e.Err)
	}
	return fmt.Sprintf("notification %s not accepted: status %d", e.Channel, e.StatusCode)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Email is a single message for the general email endpoint.
type Email struct {
	To      string `json:"destinyEmail"`
	ToName  string `json:"destinyName"`
	Subject string `json:"emailSubject"`
	Body    string `json:"emailBody"`
}

// SMS is a single text message.
type SMS struct {
	Phone string `json:"destinyPhone"`
	Body  string `json:"messageBody"`
}

// Sender is anything that can hand a message to the notification service.
type Sender interface {
	SendEmail(ctx context.Context, msg Email) error
	SendSMS(ctx context.Context, msg SMS) error
}

// Client posts messages to the notification service. A nil error means the
// service accepted the message, not that it was delivered. It never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SendEmail posts msg to the general email endpoint.
func (c *Client) SendEmail(ctx context.Context, msg Email) error {
	return c.send(ctx, ChannelEmail, msg)
}

// SendSMS posts msg to the SMS endpoint.
func (c *Client) SendSMS(ctx context.Context, msg SMS) error {
	return c.send(ctx, ChannelSMS, msg)
}

func (c *Client) send(ctx context.Context, channel Channel, payload any) (err error) {
	ctx, span := observability.StartClientSpan(ctx, "notifications", string(channel))
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackUpstream("notifications", string(channel))()

	raw, err := json.Marshal(payload)
	if err != nil {
		return &UpstreamError{Channel: channel, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+channelPaths[channel], bytes.NewReader(raw))
	if err != nil {
		return &UpstreamError{Channel: channel, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UpstreamError{Channel: channel, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{Channel: channel, StatusCode: resp.StatusCode}
	}
	return nil
}
