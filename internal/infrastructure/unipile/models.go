package unipile

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// PostDetails is the provider's view of a post, fetched at submission time to
// resolve the canonical URN and snapshot the content.
type PostDetails struct {
	URN        string    `json:"social_id"`
	ShareURL   string    `json:"share_url"`
	Text       string    `json:"text"`
	AuthorName string    `json:"author_name"`
	PostedAt   time.Time `json:"posted_at"`
}

// PostStats carries the provider's engagement counters for a post.
type PostStats struct {
	Reactions   int `json:"reaction_counter"`
	Comments    int `json:"comment_counter"`
	Reposts     int `json:"repost_counter"`
	Impressions int `json:"impressions_counter"`
}

// errorBody is the provider's error payload shape.
type errorBody struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// ErrorTypeDisconnected is the provider error type reported when the linked
// account's session is no longer valid.
const ErrorTypeDisconnected = "errors/disconnected_account"

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("provider api error %d (%s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("provider api error %d: %s", e.StatusCode, e.Message)
}

// Transient reports whether the failure is worth retrying.
func (e *APIError) Transient() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Disconnected reports whether the provider flagged the account as
// disconnected.
func (e *APIError) Disconnected() bool {
	return e.Type == ErrorTypeDisconnected
}

// IsTransient classifies err as retryable. Network-level failures (no HTTP
// response at all) are treated as transient.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	return err != nil
}

// IsDisconnected reports whether err carries the disconnected-account type.
func IsDisconnected(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Disconnected()
}
