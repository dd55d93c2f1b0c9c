package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
)

const (
	FallbackTimeout     = "AI response timed out. Please try again."
	FallbackHighDemand  = "Our AI is experiencing high demand. Please try again in a moment."
	FallbackUnavailable = "AI service is temporarily unavailable. Please try again."
	FallbackGeneric     = "Failed to generate AI response. Please try again."
)

var ErrEmptyCompletion = errors.New("no response from llm")

// ProviderError carries the HTTP status returned by an llm provider, if any.
type ProviderError struct {
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm provider returned status %d: %v", e.StatusCode, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func statusCode(err error) int {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.StatusCode
	}
	return 0
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// FallbackFor maps a failed completion to the reply shown to the customer.
func FallbackFor(err error) string {
	if err == nil {
		return FallbackGeneric
	}

	code := statusCode(err)
	msg := err.Error()

	switch {
	case isTimeout(err):
		return FallbackTimeout

	case code == http.StatusTooManyRequests || strings.Contains(strings.ToLower(msg), "quota"):
		return FallbackHighDemand

	case code == http.StatusUnauthorized || code == http.StatusForbidden || strings.Contains(msg, "API key"):
		slog.Error("llm provider rejected the configured api key", "status_code", code)
		return FallbackGeneric

	case code == http.StatusInternalServerError || code == http.StatusServiceUnavailable:
		return FallbackUnavailable
	}

	return FallbackGeneric
}
