package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDuplicatePost is returned when a URN already resolved to a post
	ErrDuplicatePost = errors.New("post already submitted")

	// ErrAccountNotEngageable is returned when an account is not healthy
	ErrAccountNotEngageable = errors.New("account is not engageable")

	// ErrNotPodMember is returned when the submitter does not belong to the pod
	ErrNotPodMember = errors.New("user is not a member of the pod")

	// ErrPodTooSmall is returned when a pod has no candidate engagers
	ErrPodTooSmall = errors.New("pod has no other members to engage")
)

// RateLimitError reports a rate-limit denial with the time to wait.
// It is a scheduling delay, not a failure.
type RateLimitError struct {
	Key        string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit reached for %s, retry after %s", e.Key, e.RetryAfter.Round(time.Second))
}

// IsRateLimited reports whether err wraps a rate-limit denial and returns it.
func IsRateLimited(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}
