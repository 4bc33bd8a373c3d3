package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HerbigniauxBenoit/spsync/internal/logging"
	"github.com/HerbigniauxBenoit/spsync/internal/types"
	"github.com/HerbigniauxBenoit/spsync/internal/utils"
)

// Client wraps the Graph REST API with auth, retry logic and request shaping
type Client struct {
	httpClient *http.Client
	tokens     TokenProvider
	baseURL    string
	maxRetries int
	retryDelay time.Duration
	logger     logging.Logger
}

// NewClient creates a new Graph API client
func NewClient(tokens TokenProvider, maxRetries int, retryDelayMs int, logger logging.Logger) *Client {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &Client{
		httpClient: &http.Client{Timeout: time.Duration(utils.DefaultRequestTimeoutSeconds) * time.Second},
		tokens:     tokens,
		baseURL:    utils.GraphAPIBase,
		maxRetries: maxRetries,
		retryDelay: time.Duration(retryDelayMs) * time.Millisecond,
		logger:     logger,
	}
}

// WithHTTPClient replaces the underlying HTTP client, e.g. to install a
// debug transport or a custom timeout.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithBaseURL points the client at a different Graph endpoint. Used by tests
// and sovereign clouds.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimSuffix(u, "/")
	return c
}

// NewRequestContext creates a new request context with trace ID
func NewRequestContext(operation, siteID, driveID string) *types.RequestContext {
	return &types.RequestContext{
		TraceID:   uuid.New().String(),
		Operation: operation,
		SiteID:    siteID,
		DriveID:   driveID,
	}
}

// GraphError is a non-2xx response from the Graph API.
type GraphError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter string
}

func (e *GraphError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("graph: HTTP %d", e.StatusCode)
}

// IsNotFound reports whether err is a Graph 404.
func IsNotFound(err error) bool {
	var ge *GraphError
	return errors.As(err, &ge) && ge.StatusCode == http.StatusNotFound
}

// IsGone reports whether err is a Graph 410, which signals an expired delta
// token.
func IsGone(err error) bool {
	var ge *GraphError
	return errors.As(err, &ge) && ge.StatusCode == http.StatusGone
}

// parseGraphError reads the OData error envelope from a failed response.
func parseGraphError(resp *http.Response) *GraphError {
	ge := &GraphError{
		StatusCode: resp.StatusCode,
		RetryAfter: resp.Header.Get("Retry-After"),
	}

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err == nil && json.Unmarshal(body, &envelope) == nil {
		ge.Code = envelope.Error.Code
		ge.Message = envelope.Error.Message
	}
	return ge
}

// absURL resolves a path against the Graph base URL. Delta and paging links
// arrive absolute and are used as-is.
func (c *Client) absURL(u string) string {
	if strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://") {
		return u
	}
	return c.baseURL + u
}

// doJSON performs one GET and decodes the JSON response.
func (c *Client) doJSON(ctx context.Context, url string, out any) error {
	resp, err := c.do(ctx, url, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

// do performs one authenticated GET and returns the open response. The
// caller owns the body.
func (c *Client) do(ctx context.Context, url string, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.absURL(url), nil)
	if err != nil {
		return nil, err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, parseGraphError(resp)
	}
	return resp, nil
}

// GetJSON fetches url and decodes the response into T, with retry logic.
func GetJSON[T any](ctx context.Context, c *Client, reqCtx *types.RequestContext, url string) (T, error) {
	return ExecuteWithRetry(ctx, c, reqCtx, func() (T, error) {
		var out T
		err := c.doJSON(ctx, url, &out)
		return out, err
	})
}

// Download streams an item's content. Graph answers /content with a 302 to a
// pre-authenticated URL; the HTTP client follows it, dropping the
// Authorization header on the cross-origin hop. Retry covers connection
// setup only, not mid-stream read failures.
func (c *Client) Download(ctx context.Context, reqCtx *types.RequestContext, url string) (io.ReadCloser, int64, error) {
	resp, err := ExecuteWithRetry(ctx, c, reqCtx, func() (*http.Response, error) {
		return c.do(ctx, url, "")
	})
	if err != nil {
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}

// ExecuteWithRetry executes an API call with retry logic
func ExecuteWithRetry[T any](ctx context.Context, client *Client, reqCtx *types.RequestContext, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	logger := client.logger.WithTraceID(reqCtx.TraceID)
	logger.Debug("Graph operation starting",
		logging.F("operation", reqCtx.Operation),
		logging.F("driveId", reqCtx.DriveID),
	)

	start := time.Now()

	for attempt := 0; attempt <= client.maxRetries; attempt++ {
		result, lastErr = fn()
		if lastErr == nil {
			logger.Debug("Graph operation completed",
				logging.F("operation", reqCtx.Operation),
				logging.F("duration_ms", time.Since(start).Milliseconds()),
				logging.F("attempts", attempt+1),
			)
			return result, nil
		}

		if !isRetryable(lastErr) {
			logger.Error("Graph operation failed (non-retryable)",
				logging.F("operation", reqCtx.Operation),
				logging.F("duration_ms", time.Since(start).Milliseconds()),
				logging.F("error", lastErr.Error()),
				logging.F("attempts", attempt+1),
			)
			return result, classifyError(lastErr)
		}

		if attempt < client.maxRetries {
			delay := calculateBackoff(client.retryDelay, attempt, lastErr)
			logger.Warn("Graph operation failed (retryable)",
				logging.F("operation", reqCtx.Operation),
				logging.F("attempt", attempt+1),
				logging.F("delay_ms", delay.Milliseconds()),
				logging.F("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	logger.Error("Graph operation failed after max retries",
		logging.F("operation", reqCtx.Operation),
		logging.F("duration_ms", time.Since(start).Milliseconds()),
		logging.F("attempts", client.maxRetries+1),
		logging.F("error", lastErr.Error()),
	)

	return result, classifyError(lastErr)
}

// isRetryable checks if an error is retryable
func isRetryable(err error) bool {
	var ge *GraphError
	if errors.As(err, &ge) {
		switch ge.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return false
}

// calculateBackoff calculates the retry delay with exponential backoff
func calculateBackoff(baseDelay time.Duration, attempt int, err error) time.Duration {
	// Honor Retry-After when throttled
	var ge *GraphError
	if errors.As(err, &ge) && ge.RetryAfter != "" {
		if seconds, err := strconv.Atoi(ge.RetryAfter); err == nil {
			delay := time.Duration(seconds) * time.Second
			if delay > time.Duration(utils.MaxRetryDelayMs)*time.Millisecond {
				return time.Duration(utils.MaxRetryDelayMs) * time.Millisecond
			}
			return delay
		}
	}

	// Exponential backoff: base * 2^attempt
	delay := baseDelay * time.Duration(math.Pow(2, float64(attempt)))

	if delay > time.Duration(utils.MaxRetryDelayMs)*time.Millisecond {
		delay = time.Duration(utils.MaxRetryDelayMs) * time.Millisecond
	}

	// Add jitter (±25% of delay)
	jitterRange := delay / 4
	if jitterRange > 0 {
		jitter := time.Duration(rand.Int63n(int64(jitterRange*2))) - jitterRange
		delay = delay + jitter
	}

	if delay < 0 {
		delay = baseDelay
	}

	return delay
}

// classifyError converts Graph errors to application errors. The original
// GraphError stays in the chain so callers can still inspect the status.
func classifyError(err error) error {
	var ge *GraphError
	if !errors.As(err, &ge) {
		return err
	}
	switch {
	case ge.StatusCode == http.StatusUnauthorized || ge.StatusCode == http.StatusForbidden:
		return utils.NewAppError(utils.ErrCodeAuthFailed, "Graph request was rejected", err)
	case ge.StatusCode == http.StatusTooManyRequests:
		return utils.NewAppError(utils.ErrCodeRateLimited, "Graph request was throttled", err)
	case ge.StatusCode >= 500:
		return utils.NewAppError(utils.ErrCodeRemoteUnavailable, "Graph service error", err)
	default:
		return err
	}
}
