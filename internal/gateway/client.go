// Package gateway holds the outbound HTTP clients one service uses to reach
// another. Every call is bounded by a bulkhead, a client-side circuit
// breaker, a per-attempt timeout and a single retry on transient failure.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ashendes/order-fulfillment/internal/models"
	"github.com/ashendes/order-fulfillment/internal/patterns"
	"github.com/go-resty/resty/v2"
)

// StatusError is a 4xx answer from the remote service.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Options configures a remote client.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	BulkheadSize int
	// Service is the calling service, used as a metrics label.
	Service string
}

// Client is the shared plumbing behind each gateway
type Client struct {
	name     string
	http     *resty.Client
	breaker  *patterns.ClientBreaker
	bulkhead *patterns.Bulkhead
}

func newClient(name string, opts Options, defaultTimeout time.Duration) *Client {
	size := opts.BulkheadSize
	if size <= 0 {
		size = 10
	}
	httpClient := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(patterns.OrDefault(opts.Timeout, defaultTimeout)).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(1).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &Client{
		name:     name,
		http:     httpClient,
		breaker:  patterns.NewClientBreaker(name, opts.Service),
		bulkhead: patterns.NewBulkhead(size, name, opts.Service),
	}
}

// call performs one request. A 2xx answer is decoded into result, a 4xx
// answer comes back as *StatusError, and anything else is an error that
// counts against the breaker.
func (c *Client) call(ctx context.Context, method, path string, body, result any) error {
	return c.bulkhead.Execute(ctx, func() error {
		return c.breaker.Do(func() error {
			req := c.http.R().SetContext(ctx)
			if body != nil {
				req.SetBody(body)
			}
			if result != nil {
				req.SetResult(result)
			}

			resp, err := req.Execute(method, path)
			if err != nil {
				return fmt.Errorf("%s %s: %w", method, path, err)
			}
			if resp.StatusCode() >= http.StatusInternalServerError {
				return fmt.Errorf("%s %s returned status %d", method, path, resp.StatusCode())
			}
			if resp.IsError() {
				return patterns.Permanent(&StatusError{
					Method: method,
					Path:   path,
					Code:   resp.StatusCode(),
					Body:   resp.String(),
				})
			}
			return nil
		})
	})
}

// Status reports the client breaker state.
func (c *Client) Status() patterns.ClientBreakerStatus {
	return c.breaker.Status()
}

func isStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// unavailable wraps err so callers can match models.ErrServiceUnavailable.
func unavailable(op string, err error) error {
	if errors.Is(err, models.ErrServiceUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %v: %w", op, err, models.ErrServiceUnavailable)
}
