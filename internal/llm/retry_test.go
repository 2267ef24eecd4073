package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

type flakyClient struct {
	errs  []error
	calls int
}

func (c *flakyClient) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	idx := c.calls
	c.calls++
	if idx < len(c.errs) && c.errs[idx] != nil {
		return "", c.errs[idx]
	}
	return "ok", nil
}

func (c *flakyClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	idx := c.calls
	c.calls++
	if idx < len(c.errs) && c.errs[idx] != nil {
		return nil, c.errs[idx]
	}
	return []float32{1}, nil
}

func newFastRetryClient(inner Client, maxRetries int) *RetryClient {
	c := NewRetryClient(inner, maxRetries, time.Second)
	c.baseDelay = time.Millisecond
	return c
}

func TestRetryClientRecoversFromTransientFailure(t *testing.T) {
	inner := &flakyClient{errs: []error{
		&GatewayError{StatusCode: http.StatusInternalServerError, Err: errors.New("boom")},
	}}
	client := newFastRetryClient(inner, 2)

	out, err := client.Complete(context.Background(), "hola", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" {
		t.Fatalf("out = %q", out)
	}
	if inner.calls != 2 {
		t.Fatalf("calls = %d, want 2", inner.calls)
	}
}

func TestRetryClientStopsOnNonRetryableStatus(t *testing.T) {
	inner := &flakyClient{errs: []error{
		&GatewayError{StatusCode: http.StatusBadRequest, Err: errors.New("bad request")},
		nil,
	}}
	client := newFastRetryClient(inner, 3)

	_, err := client.Complete(context.Background(), "hola", Options{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if inner.calls != 1 {
		t.Fatalf("calls = %d, want 1", inner.calls)
	}
}

func TestRetryClientRetriesOnRateLimit(t *testing.T) {
	inner := &flakyClient{errs: []error{
		&GatewayError{StatusCode: http.StatusTooManyRequests, Err: errors.New("rate limited")},
		&GatewayError{StatusCode: http.StatusTooManyRequests, Err: errors.New("rate limited")},
	}}
	client := newFastRetryClient(inner, 2)

	out, err := client.Complete(context.Background(), "hola", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" || inner.calls != 3 {
		t.Fatalf("out = %q, calls = %d", out, inner.calls)
	}
}

func TestRetryClientExhaustsRetries(t *testing.T) {
	gwErr := &GatewayError{StatusCode: http.StatusInternalServerError, Err: errors.New("boom")}
	inner := &flakyClient{errs: []error{gwErr, gwErr, gwErr}}
	client := newFastRetryClient(inner, 2)

	_, err := client.Complete(context.Background(), "hola", Options{})
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if inner.calls != 3 {
		t.Fatalf("calls = %d, want 3", inner.calls)
	}
}

func TestRetryClientHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inner := &flakyClient{errs: []error{
		&GatewayError{StatusCode: http.StatusInternalServerError, Err: errors.New("boom")},
	}}
	client := newFastRetryClient(inner, 5)

	_, err := client.Complete(ctx, "hola", Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRetryClientEmbeddings(t *testing.T) {
	inner := &flakyClient{errs: []error{
		&GatewayError{Err: errors.New("network reset")},
	}}
	client := newFastRetryClient(inner, 1)

	out, err := client.CreateEmbedding(context.Background(), "texto")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("embedding = %v", out)
	}
}

func TestGatewayErrorRetryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{0, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusNotFound, false},
	}

	for _, tt := range tests {
		err := &GatewayError{StatusCode: tt.status, Err: errors.New("x")}
		if got := err.Retryable(); got != tt.want {
			t.Fatalf("Retryable(status=%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
