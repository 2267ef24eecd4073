package llm

import (
	"context"
	"errors"
	"time"
)

// RetryClient decora un Client con timeout por llamada y reintentos acotados.
// Cada llamada al gateway lleva su propio deadline; agotados los reintentos el
// error se propaga para que cada etapa aplique su propia politica de fallback.
type RetryClient struct {
	inner       Client
	maxRetries  int
	baseDelay   time.Duration
	callTimeout time.Duration
}

func NewRetryClient(inner Client, maxRetries int, callTimeout time.Duration) *RetryClient {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	return &RetryClient{
		inner:       inner,
		maxRetries:  maxRetries,
		baseDelay:   300 * time.Millisecond,
		callTimeout: callTimeout,
	}
}

func (c *RetryClient) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	var out string
	err := c.do(ctx, func(callCtx context.Context) error {
		var innerErr error
		out, innerErr = c.inner.Complete(callCtx, prompt, opts)
		return innerErr
	})
	return out, err
}

func (c *RetryClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := c.do(ctx, func(callCtx context.Context) error {
		var innerErr error
		out, innerErr = c.inner.CreateEmbedding(callCtx, text)
		return innerErr
	})
	return out, err
}

func (c *RetryClient) do(ctx context.Context, call func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		err := call(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		var gwErr *GatewayError
		if errors.As(err, &gwErr) && !gwErr.Retryable() {
			return err
		}
	}
	return lastErr
}
