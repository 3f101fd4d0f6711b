package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/go-rod/rod"
)

// ErrTimeout indicates a navigation that did not settle in time.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrUnresolvable indicates a host that does not resolve or a URL that cannot
// be navigated to at all.
type ErrUnresolvable struct {
	Err error
}

func (e ErrUnresolvable) Error() string {
	return fmt.Errorf("unresolvable: %w", e.Err).Error()
}

func (e ErrUnresolvable) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrNavigation is any other navigation failure.
type ErrNavigation struct {
	Err error
}

func (e ErrNavigation) Error() string {
	return fmt.Errorf("navigation: %w", e.Err).Error()
}

func (e ErrNavigation) Unwrap() error {
	return e.Err
}

// Chromium net error codes reported by rod.NavigationError.
var (
	unresolvableReasons = []string{
		"ERR_NAME_NOT_RESOLVED",
		"ERR_NAME_RESOLUTION_FAILED",
		"ERR_INVALID_URL",
		"ERR_UNKNOWN_URL_SCHEME",
		"Cannot navigate to invalid URL",
	}
	timeoutReasons = []string{
		"ERR_TIMED_OUT",
		"ERR_CONNECTION_TIMED_OUT",
	}
	connectionReasons = []string{
		"ERR_CONNECTION_REFUSED",
		"ERR_CONNECTION_RESET",
		"ERR_CONNECTION_CLOSED",
		"ERR_ADDRESS_UNREACHABLE",
		"ERR_INTERNET_DISCONNECTED",
		"ERR_NETWORK_CHANGED",
		"ERR_PROXY_CONNECTION_FAILED",
	}
)

// classifyError maps a driver error onto the navigation taxonomy.
// Cancellation of the run is returned unchanged.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	switch err.(type) {
	case ErrTimeout, ErrUnresolvable, ErrConnection, ErrNavigation:
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrUnresolvable{Err: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Op == "parse" {
		return ErrUnresolvable{Err: err}
	}
	var navErr *rod.NavigationError
	if errors.As(err, &navErr) {
		switch {
		case containsAny(navErr.Reason, unresolvableReasons):
			return ErrUnresolvable{Err: err}
		case containsAny(navErr.Reason, timeoutReasons):
			return ErrTimeout{Err: err}
		case containsAny(navErr.Reason, connectionReasons):
			return ErrConnection{Err: err}
		}
		return ErrNavigation{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}
	return ErrNavigation{Err: err}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// recoverable reports whether a detail-link failure is logged and skipped
// rather than aborting the letter.
func recoverable(err error) bool {
	var timeout ErrTimeout
	var unresolvable ErrUnresolvable
	return errors.As(err, &timeout) || errors.As(err, &unresolvable)
}

// skippable reports whether a listing failure skips the letter.
func skippable(err error) bool {
	var unresolvable ErrUnresolvable
	var conn ErrConnection
	return errors.As(err, &unresolvable) || errors.As(err, &conn)
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var unresolvable ErrUnresolvable
	if errors.As(err, &unresolvable) {
		return "unresolvable"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var nav ErrNavigation
	if errors.As(err, &nav) {
		return "navigation"
	}
	var p panicError
	if errors.As(err, &p) {
		return "panic"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "other"
}

// panicError carries a value recovered from a worker.
type panicError struct {
	Value any
}

func (e panicError) Error() string {
	return fmt.Sprintf("unexpected panic: %v", e.Value)
}
