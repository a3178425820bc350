package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetryDoRetriesServerError(t *testing.T) {
	attempts := 0
	got, err := RetryDo(context.Background(), fastRetry(), func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", &apiError{status: 500, body: "upstream"}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("RetryDo error: %v", err)
	}
	if got != "ok" || attempts != 3 {
		t.Errorf("got %q after %d attempts", got, attempts)
	}
}

func TestRetryDoClientErrorIsPermanent(t *testing.T) {
	attempts := 0
	_, err := RetryDo(context.Background(), fastRetry(), func() (string, error) {
		attempts++
		return "", &apiError{status: 400, body: "bad request"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetryDoDecodeErrorIsPermanent(t *testing.T) {
	// A garbled body on a 200 will not get better on a second read.
	attempts := 0
	_, err := RetryDo(context.Background(), fastRetry(), func() (string, error) {
		attempts++
		return "", fmt.Errorf("openai: decode response: %w", errors.New("invalid character 'x'"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetryDoTransportErrorRetries(t *testing.T) {
	attempts := 0
	got, err := RetryDo(context.Background(), fastRetry(), func() (int, error) {
		attempts++
		if attempts == 1 {
			return 0, fmt.Errorf("request failed: %w", &net.DNSError{Err: "timeout", IsTimeout: true})
		}
		return 7, nil
	})
	if err != nil {
		t.Fatalf("RetryDo error: %v", err)
	}
	if got != 7 || attempts != 2 {
		t.Errorf("got %d after %d attempts", got, attempts)
	}
}

func TestRetryDoStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts := 0
	_, err := RetryDo(ctx, fastRetry(), func() (string, error) {
		attempts++
		return "", &apiError{status: 500, body: "upstream"}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}
