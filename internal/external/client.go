// Package external routes outbound HTTP downloads through BaseClient, which
// applies a circuit breaker, bounded retries with backoff, request-ID
// propagation and error mapping onto types.AppError.
package external

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"snowdensity/internal/types"
)

// RetryPolicy configures the retry behavior for the BaseClient.
type RetryPolicy struct {
	MaxRetries int           `envconfig:"MAX_RETRIES" default:"3" validate:"gte=0,lte=10"`
	MinWait    time.Duration `envconfig:"MIN_WAIT" default:"500ms"`
	MaxWait    time.Duration `envconfig:"MAX_WAIT" default:"10s"`
}

// DefaultRetryPolicy returns the policy used for artifact downloads.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		MinWait:    500 * time.Millisecond,
		MaxWait:    10 * time.Second,
	}
}

// BaseClient wraps an *http.Client and a circuit breaker. Only idempotent,
// body-less requests are supported since every attempt replays the request.
type BaseClient struct {
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	retryPolicy RetryPolicy
	userAgent   string
	sleepFn     func(context.Context, time.Duration) error
}

// BaseClientOption is a functional option for configuring a BaseClient.
type BaseClientOption func(*BaseClient)

// WithSleepFunc overrides the wait between retries. Tests use it to avoid
// real delays.
func WithSleepFunc(fn func(context.Context, time.Duration) error) BaseClientOption {
	return func(c *BaseClient) {
		c.sleepFn = fn
	}
}

// WithBreaker replaces the default circuit breaker, e.g. to share one breaker
// across clients that hit the same host.
func WithBreaker(cb *gobreaker.CircuitBreaker[*http.Response]) BaseClientOption {
	return func(c *BaseClient) {
		c.breaker = cb
	}
}

// NewBreaker returns the default breaker: it opens after more than five
// consecutive failures and probes again after 30 seconds.
func NewBreaker(name string) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
}

// NewBaseClient creates a BaseClient. A nil httpClient uses http.DefaultClient.
func NewBaseClient(httpClient *http.Client, breakerName string, retryPolicy RetryPolicy, userAgent string, opts ...BaseClientOption) *BaseClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	bc := &BaseClient{
		client:      httpClient,
		breaker:     NewBreaker(breakerName),
		retryPolicy: retryPolicy,
		userAgent:   userAgent,
		sleepFn:     sleepContext,
	}
	for _, opt := range opts {
		opt(bc)
	}
	return bc
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do executes req, retrying on transport errors, 429 and 5xx responses. Any
// other response is returned as-is and the caller must close its body.
// Exhausted retries, an open breaker or a cancelled context yield an AppError.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if req.Body != nil && req.Body != http.NoBody {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			"base client does not replay request bodies", nil)
	}
	c.decorate(req)

	ctx := req.Context()
	var (
		failed *http.Response
		err    error
	)
	for attempt := 0; ; attempt++ {
		var resp *http.Response
		resp, err = c.breaker.Execute(func() (*http.Response, error) { return c.roundTrip(req) })
		if err == nil {
			return resp, nil
		}
		drain(failed)
		failed = resp

		if breakerRejected(err) || ctx.Err() != nil || attempt >= c.retryPolicy.MaxRetries {
			break
		}
		if werr := c.sleepFn(ctx, c.computeBackoff(attempt, resp)); werr != nil {
			err = werr
			break
		}
	}
	drain(failed)
	return nil, c.mapError(failed, err)
}

func (c *BaseClient) decorate(req *http.Request) {
	if id := types.GetRequestID(req.Context()); id != "" {
		req.Header.Set("X-Request-Id", id)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

// roundTrip reports 429 and 5xx as failures so the breaker counts them. The
// response is still returned so its status can be inspected.
func (c *BaseClient) roundTrip(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return resp, fmt.Errorf("upstream returned %d", resp.StatusCode)
	}
	return resp, nil
}

func breakerRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func drain(resp *http.Response) {
	if resp != nil {
		resp.Body.Close()
	}
}

// Get downloads url and returns the body of a 2xx response. Non-2xx
// responses become an upstream_unavailable AppError carrying the status.
func (c *BaseClient) Get(ctx context.Context, url string, header http.Header) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "invalid request url", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, types.NewAppErrorWithDetails(types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("GET %s returned %d", url, resp.StatusCode), nil,
			map[string]any{"status": resp.StatusCode})
	}
	return resp.Body, nil
}

// computeBackoff honours Retry-After when present, otherwise uses exponential
// backoff with jitter. The result stays within [MinWait, MaxWait].
func (c *BaseClient) computeBackoff(attempt int, resp *http.Response) time.Duration {
	lo, hi := c.retryPolicy.MinWait, c.retryPolicy.MaxWait
	if wait, ok := retryAfter(resp); ok {
		return max(lo, min(wait, hi))
	}

	ceiling := min(float64(lo)*math.Pow(2, float64(attempt)), float64(hi))
	if ceiling <= float64(lo) {
		return lo
	}
	return lo + time.Duration(rand.Float64()*(ceiling-float64(lo)))
}

// retryAfter parses a Retry-After header given either as seconds or as an
// HTTP date.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		return time.Until(at), true
	}
	return 0, false
}

func (c *BaseClient) mapError(resp *http.Response, err error) *types.AppError {
	switch {
	case breakerRejected(err):
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "artifact host circuit is open", err)
	case resp == nil:
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "upstream request failed", err)
	case resp.StatusCode == http.StatusTooManyRequests:
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "upstream is throttling requests", err)
	default:
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("upstream still returned %d after %d attempts", resp.StatusCode, 1+c.retryPolicy.MaxRetries), err,
			map[string]any{"status": resp.StatusCode})
	}
}
