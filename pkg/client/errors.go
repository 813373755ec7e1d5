package client

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrClosed is returned by requests issued after Close.
	ErrClosed = errors.New("client is closed")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents connection failures and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassPayload represents undecodable bodies and errors reported inside a 2xx body.
	ErrorClassPayload ErrorClass = "payload"
)

// APIError represents a failed USAspending request.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	// Detail is the message the API put in the error body, if any.
	Detail string
	Message string
	// RetryAfter is the server-requested wait for 429 responses.
	RetryAfter time.Duration
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "usaspending %s error", e.ErrorClass)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient.
func (e *APIError) Retryable() bool {
	return shouldRetry(e.ErrorClass)
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		// client and payload errors repeat identically on retry
		return false
	}
}

// classifyStatus maps a non-2xx status code to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	case status >= 400:
		return ErrorClassClient
	default:
		return ErrorClassPayload
	}
}

// classOf returns the class of err. Errors that are not *APIError are network failures.
func classOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ErrorClassNetwork
}

// newStatusError builds the error for a non-2xx response, pulling the message
// out of the JSON error body when there is one.
func newStatusError(status int, header http.Header, body []byte) *APIError {
	e := &APIError{
		StatusCode: status,
		ErrorClass: classifyStatus(status),
		Message:    http.StatusText(status),
		Detail:     errorDetail(body),
	}
	if e.ErrorClass == ErrorClassRateLimit {
		e.RetryAfter = parseRetryAfter(header.Get("Retry-After"), time.Now())
	}
	return e
}

// errorDetail returns the first of detail, error or message in a JSON body.
func errorDetail(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	for _, key := range []string{"detail", "error", "message"} {
		if v := gjson.GetBytes(body, key); v.Exists() && v.Type != gjson.Null {
			return v.String()
		}
	}
	return ""
}

// checkPayload reports 2xx bodies that are not JSON or that carry an "error" key.
func checkPayload(status int, body []byte) *APIError {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if !gjson.ValidBytes(body) {
		return &APIError{
			StatusCode: status,
			ErrorClass: ErrorClassPayload,
			Message:    "invalid JSON response",
		}
	}
	if v := gjson.GetBytes(body, "error"); v.Exists() && v.Type != gjson.Null {
		return &APIError{
			StatusCode: status,
			ErrorClass: ErrorClassPayload,
			Message:    "API reported an error",
			Detail:     v.String(),
		}
	}
	return nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
