package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultAPIURL     = "https://graph.facebook.com"
	DefaultAPIVersion = "v12.0"

	defaultTimeout = 15 * time.Second
	// Limit for provider bodies kept in errors and logs.
	maxResponseBodySize = 64 << 10
)

// APIError is returned when the provider answers a send with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp API status %d: %s", e.StatusCode, e.Body)
}

type ClientOption func(*Client)

// WithBaseURL overrides the Graph API host and version.
func WithBaseURL(apiURL, version string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(apiURL, "/") + "/" + version
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit paces outbound calls to perSecond requests. Zero disables pacing.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

type Client struct {
	baseURL       string
	phoneNumberID string
	accessToken   string
	http          *http.Client
	limiter       *rate.Limiter
}

func NewClient(phoneNumberID, accessToken string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:       DefaultAPIURL + "/" + DefaultAPIVersion,
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		http:          &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SendText(ctx context.Context, to, body string) (*SendResponse, error) {
	msg := SendMessageRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             &SendText{Body: body},
	}
	return c.send(ctx, msg)
}

func (c *Client) SendInteractive(ctx context.Context, to string, interactive Interactive) (*SendResponse, error) {
	msg := SendMessageRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "interactive",
		Interactive:      &interactive,
	}
	return c.send(ctx, msg)
}

func (c *Client) send(ctx context.Context, msg SendMessageRequest) (*SendResponse, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshaling message: %w", err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for send slot: %w", err)
		}
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: respBody}
	}

	// The provider accepted the message; an undecodable body only costs the message id.
	out := &SendResponse{Raw: respBody}
	if err := json.Unmarshal(respBody, out); err != nil {
		out = &SendResponse{Raw: respBody}
	}
	return out, nil
}
