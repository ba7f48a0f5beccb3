// Package httpx builds outbound HTTP clients with retry and backoff.
package httpx

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// LeveledZap adapts a zap logger to retryablehttp.
type LeveledZap struct {
	inner *zap.SugaredLogger
}

// Error is logged at WARN because the request is usually retried.
func (l LeveledZap) Error(msg string, keysAndValues ...interface{}) {
	l.inner.Warnw(msg, keysAndValues...)
}

func (l LeveledZap) Warn(msg string, keysAndValues ...interface{}) {
	l.inner.Warnw(msg, keysAndValues...)
}

func (l LeveledZap) Info(msg string, keysAndValues ...interface{}) {
	l.inner.Debugw(msg, keysAndValues...)
}

func (l LeveledZap) Debug(msg string, keysAndValues ...interface{}) {
	l.inner.Debugw(msg, keysAndValues...)
}

type Option func(*retryablehttp.Client)

func WithMaxRetries(maxRetries int) Option {
	return func(client *retryablehttp.Client) {
		client.RetryMax = maxRetries
	}
}

func WithRetryWait(waitMin, waitMax time.Duration) Option {
	return func(client *retryablehttp.Client) {
		client.RetryWaitMin = waitMin
		client.RetryWaitMax = waitMax
	}
}

// NewClient retries connection errors, 5xx (except 501) and 429 responses,
// honoring Retry-After.
func NewClient(logger *zap.Logger, opts ...Option) *http.Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(LeveledZap{inner: logger.Sugar()})
	for _, opt := range opts {
		opt(retryClient)
	}
	client := retryClient.StandardClient()
	client.Timeout = 20 * time.Second
	return client
}
