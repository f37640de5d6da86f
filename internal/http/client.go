package httpclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pweiskircher/build-changes/internal/contracts"
)

type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Options struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client performs a single attempt per request, bounded by a per-request timeout.
// The timeout stays armed until the response body is closed.
type Client struct {
	doer    Doer
	timeout time.Duration
	logger  *slog.Logger
}

func NewClient(doer Doer, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = contracts.DefaultHTTPTimeout
	}
	if doer == nil {
		doer = &http.Client{Timeout: timeout}
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{doer: doer, timeout: timeout, logger: logger}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c == nil {
		return nil, errors.New("http client is nil")
	}
	if req == nil {
		return nil, errors.New("request is nil")
	}

	timedReq, cancel := withRequestTimeout(req, c.timeout)
	started := time.Now()

	resp, err := c.doer.Do(timedReq)
	if err != nil {
		cancel()
		c.logger.Debug("http request failed", "method", req.Method, "path", req.URL.Path, "error", err)
		return nil, err
	}

	c.logger.Debug("http request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)

	if resp.Body != nil {
		resp.Body = &cancelOnCloseReadCloser{ReadCloser: resp.Body, cancel: cancel}
	} else {
		cancel()
	}
	return resp, nil
}

func withRequestTimeout(req *http.Request, timeout time.Duration) (*http.Request, context.CancelFunc) {
	if timeout <= 0 {
		return req, func() {}
	}

	ctx, cancel := context.WithTimeout(req.Context(), timeout)
	return req.Clone(ctx), cancel
}

type cancelOnCloseReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnCloseReadCloser) Close() error {
	if c == nil {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.ReadCloser == nil {
		return nil
	}
	return c.ReadCloser.Close()
}
