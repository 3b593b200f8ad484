package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/pscheid92/shiritori/internal/adapter/metrics"
	"github.com/pscheid92/shiritori/internal/domain"
	apperrors "github.com/pscheid92/shiritori/internal/platform/errors"
	"github.com/pscheid92/shiritori/internal/platform/version"
)

const (
	maxContentRunes  = 2000
	maxErrorBody     = 4 << 10
	breakerThreshold = 5
	breakerTimeout   = 30 * time.Second
)

// APIError carries the status and body of a rejected REST call.
type APIError struct {
	Status     int
	Body       string
	retryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned status %d: %s", e.Status, e.Body)
}

// RetryAfter reports the server-requested delay of a 429 response.
func (e *APIError) RetryAfter() time.Duration {
	return e.retryAfter
}

// Client is the REST side of the chat service.
type Client struct {
	baseURL   string
	lookupURL string
	token     string
	http      *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	metrics   *metrics.RESTMetrics
}

type Option func(*Client)

// WithRateLimit paces outbound calls at perSecond requests with an equal burst.
func WithRateLimit(perSecond int) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
		}
	}
}

func WithMetrics(m *metrics.RESTMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithGatewayLookupURL overrides the endpoint queried for the gateway address.
func WithGatewayLookupURL(u string) Option {
	return func(c *Client) { c.lookupURL = u }
}

func NewClient(baseURL, token string, httpClient *http.Client, opts ...Option) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	c := &Client{
		baseURL:   baseURL,
		lookupURL: baseURL + "/gateway",
		token:     token,
		http:      httpClient,
		limiter:   rate.NewLimiter(rate.Inf, 0),
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "discord-rest",
		Timeout: breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isServerFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
		},
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) CreateMessage(ctx context.Context, channelID, content string) (*domain.Message, error) {
	var out wireMessage
	path := "/channels/" + url.PathEscape(channelID) + "/messages"
	if err := c.do(ctx, "create_message", http.MethodPost, path, messageBody(content), &out); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	msg := out.toDomain()
	return &msg, nil
}

func (c *Client) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	path := "/channels/" + url.PathEscape(channelID) + "/messages/" + url.PathEscape(messageID)
	if err := c.do(ctx, "edit_message", http.MethodPatch, path, messageBody(content), nil); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

func (c *Client) GetMessage(ctx context.Context, channelID, messageID string) (*domain.Message, error) {
	var out wireMessage
	path := "/channels/" + url.PathEscape(channelID) + "/messages/" + url.PathEscape(messageID)
	if err := c.do(ctx, "get_message", http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	msg := out.toDomain()
	return &msg, nil
}

func (c *Client) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	path := "/channels/" + url.PathEscape(channelID) + "/messages/" + url.PathEscape(messageID) +
		"/reactions/" + url.PathEscape(emoji) + "/@me"
	if err := c.do(ctx, "add_reaction", http.MethodPut, path, nil, nil); err != nil {
		return fmt.Errorf("failed to add reaction: %w", err)
	}
	return nil
}

func (c *Client) DeleteAllReactions(ctx context.Context, channelID, messageID string) error {
	path := "/channels/" + url.PathEscape(channelID) + "/messages/" + url.PathEscape(messageID) + "/reactions"
	if err := c.do(ctx, "delete_reactions", http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed to delete reactions: %w", err)
	}
	return nil
}

// GatewayURL asks the service where to open the gateway socket.
func (c *Client) GatewayURL(ctx context.Context) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.doURL(ctx, "gateway", http.MethodGet, c.lookupURL, nil, &out); err != nil {
		return "", fmt.Errorf("failed to look up gateway: %w", err)
	}
	if out.URL == "" {
		return "", apperrors.ParseError("gateway lookup returned no url", nil)
	}
	return out.URL, nil
}

// BulkOverwriteCommands replaces the application's global command set.
func (c *Client) BulkOverwriteCommands(ctx context.Context, appID string, commands json.RawMessage) error {
	path := "/applications/" + url.PathEscape(appID) + "/commands"
	if err := c.do(ctx, "commands", http.MethodPut, path, commands, nil); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, route, method, path string, body, out any) error {
	return c.doURL(ctx, route, method, c.baseURL+path, body, out)
}

func (c *Client) doURL(ctx context.Context, route, method, target string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return apperrors.TransportError("rate limiter wait aborted", err).WithField("route", route)
	}

	var payload []byte
	if body != nil {
		var err error
		if raw, ok := body.(json.RawMessage); ok {
			payload = raw
		} else if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	start := time.Now()
	result, err := c.breaker.Execute(func() (any, error) {
		return c.send(ctx, method, target, payload)
	})
	c.observe(route, start, err)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return apperrors.TransportError("circuit breaker open", err).WithField("route", route)
		}
		return err
	}

	data, _ := result.([]byte)
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.ParseError("failed to decode response", err).WithField("route", route)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("User-Agent", version.UserAgent())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.TransportError("request failed", err).WithField("method", method)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{
			Status:     resp.StatusCode,
			Body:       string(raw),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
		return nil, apperrors.TransportError("request rejected", apiErr).
			WithField("method", method).
			WithField("status", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.TransportError("failed to read response", err)
	}
	return data, nil
}

func (c *Client) observe(route string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "2xx"
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		status = strconv.Itoa(apiErr.Status)
	case err != nil:
		status = "error"
	}
	c.metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	c.metrics.RequestsTotal.WithLabelValues(route, status).Inc()
}

// isServerFailure reports whether err should count against the breaker.
// Client-side rejections (4xx) mean the service is healthy.
func isServerFailure(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError
	}
	return true
}

func messageBody(content string) map[string]string {
	return map[string]string{"content": truncateRunes(content, maxContentRunes)}
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
