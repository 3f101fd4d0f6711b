package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/go-rod/rod"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil", err: nil, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, expected: "timeout"},
		{name: "wrapped context timeout", err: fmt.Errorf("wait load: %w", context.DeadlineExceeded), expected: "timeout"},
		{name: "dns timeout", err: &net.DNSError{IsTimeout: true}, expected: "timeout"},
		{name: "read deadline", err: &net.OpError{Op: "read", Err: os.ErrDeadlineExceeded}, expected: "timeout"},
		{name: "dns not found", err: &url.Error{Op: "Get", URL: "https://x", Err: &net.DNSError{Err: "no such host", IsNotFound: true}}, expected: "unresolvable"},
		{name: "bad url", err: &url.Error{Op: "parse", URL: "%zz", Err: errors.New("invalid escape")}, expected: "unresolvable"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, expected: "connection"},
		{name: "rod name not resolved", err: &rod.NavigationError{Reason: "net::ERR_NAME_NOT_RESOLVED"}, expected: "unresolvable"},
		{name: "rod timed out", err: &rod.NavigationError{Reason: "net::ERR_TIMED_OUT"}, expected: "timeout"},
		{name: "rod refused", err: &rod.NavigationError{Reason: "net::ERR_CONNECTION_REFUSED"}, expected: "connection"},
		{name: "rod other", err: &rod.NavigationError{Reason: "net::ERR_ABORTED"}, expected: "navigation"},
		{name: "other", err: errors.New("some other error"), expected: "navigation"},
		{name: "canceled", err: context.Canceled, expected: "canceled"},
		{name: "already classified", err: ErrConnection{Err: errors.New("x")}, expected: "connection"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err)); got != tt.expected {
				t.Fatalf("classifyError(%v) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}

func TestRecoverableAndSkippable(t *testing.T) {
	tests := []struct {
		err         error
		recoverable bool
		skippable   bool
	}{
		{err: ErrTimeout{Err: context.DeadlineExceeded}, recoverable: true},
		{err: ErrUnresolvable{Err: errors.New("dns")}, recoverable: true, skippable: true},
		{err: ErrConnection{Err: errors.New("refused")}, skippable: true},
		{err: ErrNavigation{Err: errors.New("boom")}},
		{err: fmt.Errorf("detail: %w", ErrTimeout{Err: context.DeadlineExceeded}), recoverable: true},
	}

	for _, tt := range tests {
		if got := recoverable(tt.err); got != tt.recoverable {
			t.Errorf("recoverable(%v)=%v, want %v", tt.err, got, tt.recoverable)
		}
		if got := skippable(tt.err); got != tt.skippable {
			t.Errorf("skippable(%v)=%v, want %v", tt.err, got, tt.skippable)
		}
	}
}

func TestRetryPolicy(t *testing.T) {
	cfg := testConfig("A")
	cfg.MaxRetries = 2
	cfg.RetryBackoff = 200 * time.Millisecond
	cfg.RetryBackoffMax = 500 * time.Millisecond

	rp := newRetryPolicy(cfg, NewMetrics())

	if d, ok := rp.next(1); !ok || d != 200*time.Millisecond {
		t.Fatalf("first retry = %v/%v", d, ok)
	}
	if d, ok := rp.next(2); !ok || d != 400*time.Millisecond {
		t.Fatalf("second retry = %v/%v", d, ok)
	}
	if _, ok := rp.next(3); ok {
		t.Fatalf("third retry should not be scheduled")
	}
	if got := rp.total(); got != 2 {
		t.Fatalf("total retries = %d, want 2", got)
	}
	if delay := rp.backoff(6); delay > cfg.RetryBackoffMax {
		t.Fatalf("delay %v exceeds max %v", delay, cfg.RetryBackoffMax)
	}
}

func TestCheckURL(t *testing.T) {
	for _, raw := range []string{"", "contractorInfo.do?x=1", "https://%zz", "mailto"} {
		err := checkURL(raw)
		if err == nil {
			t.Fatalf("checkURL(%q) should fail", raw)
		}
		if got := errorTypeLabel(classifyError(err)); got != "unresolvable" {
			t.Fatalf("checkURL(%q) classified %q, want unresolvable", raw, got)
		}
	}
	if err := checkURL("https://elib.test/ElibMain/contractorInfo.do?contractorName=A"); err != nil {
		t.Fatalf("valid url rejected: %v", err)
	}
}

func TestRetryBackoffCappedForLargeAttempts(t *testing.T) {
	cfg := testConfig("A")
	cfg.RetryBackoff = 500 * time.Millisecond
	cfg.RetryBackoffMax = 5 * time.Second
	rp := newRetryPolicy(cfg, nil)

	for _, attempt := range []int{5, 36, 63, 64, 100, 1000} {
		if got := rp.backoff(attempt); got != cfg.RetryBackoffMax {
			t.Fatalf("backoff(%d) = %v, want %v", attempt, got, cfg.RetryBackoffMax)
		}
	}

	cfg.RetryBackoffMax = 0
	for _, attempt := range []int{36, 64, 1000} {
		if got := rp.backoff(attempt); got <= 0 {
			t.Fatalf("uncapped backoff(%d) = %v, want positive", attempt, got)
		}
	}
}

func TestRodSessionRejectsBadURLBeforeNavigating(t *testing.T) {
	sess := &rodSession{timeout: time.Second}
	_, err := sess.Navigate(context.Background(), "contractorInfo.do?x=1")
	if got := errorTypeLabel(classifyError(err)); got != "unresolvable" {
		t.Fatalf("error %v classified %q, want unresolvable", err, got)
	}
}
