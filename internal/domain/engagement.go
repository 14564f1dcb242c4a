package domain

import "time"

// Engagement is the durable execution record for one (post, account) pair.
// At most one row exists per pair; retries and resumes patch in place.
type Engagement struct {
	// ID is the unique identifier for the engagement record
	ID string

	// PostID is the boosted post
	PostID string

	// AccountID is the engaging account
	AccountID string

	// Reaction is the reaction type that was (or would be) applied
	Reaction ReactionType

	// Success reports whether the provider call ultimately succeeded
	Success bool

	// Error holds the failure message for unsuccessful attempts
	Error string

	// CreatedAt is the timestamp of the first recorded attempt
	CreatedAt time.Time

	// UpdatedAt is the timestamp of the latest patch
	UpdatedAt time.Time
}

// EngagementRepository is the ledger of engagement outcomes
type EngagementRepository interface {
	// Upsert finds-or-creates the row for (postID, accountID) and patches it
	Upsert(postID, accountID string, reaction ReactionType, success bool, errMsg string) (string, error)

	// GetByPostAndAccount returns the row for the pair, or nil if absent
	GetByPostAndAccount(postID, accountID string) (*Engagement, error)

	// GetByPost returns all rows for a post
	GetByPost(postID string) ([]*Engagement, error)

	// CountByPost counts rows recorded for a post
	CountByPost(postID string) (int, error)

	// CountSuccessByPost counts successful rows for a post
	CountSuccessByPost(postID string) (int, error)

	// CountByAccountSince counts rows for an account after the cutoff
	CountByAccountSince(accountID string, since time.Time) (int, error)

	// DeleteByAccount removes all rows for an account (cascade on disconnect)
	DeleteByAccount(accountID string) error
}
