package domain

import "time"

// PostStatus represents the processing status of a submitted post
type PostStatus string

const (
	// PostStatusPending indicates the plan is computed but no step has run
	PostStatusPending PostStatus = "pending"

	// PostStatusProcessing indicates at least one step has been attempted
	PostStatusProcessing PostStatus = "processing"

	// PostStatusSuccess indicates every step reached a terminal state
	PostStatusSuccess PostStatus = "success"

	// PostStatusFailed indicates the run aborted on an unrecoverable error
	PostStatusFailed PostStatus = "failed"

	// PostStatusCanceled indicates the run was externally aborted
	PostStatusCanceled PostStatus = "canceled"
)

// Post represents a submitted post to be boosted by the pod
type Post struct {
	// ID is the unique identifier for the post record
	ID string

	// PodID is the pod the post was submitted to
	PodID string

	// SubmitterID is the member who submitted the post
	SubmitterID string

	// URN is the provider's canonical post identifier, globally unique
	URN string

	// URL is the post URL as submitted
	URL string

	// Text is a snapshot of the post body at submission time
	Text string

	// AuthorName is a snapshot of the post author's display name
	AuthorName string

	// PostedAt is when the post was published on the platform
	PostedAt time.Time

	// Status is the current processing status
	Status PostStatus

	// ErrorMessage contains details if the run failed
	ErrorMessage string

	// CreatedAt is the timestamp when the post was submitted
	CreatedAt time.Time

	// UpdatedAt is the timestamp when the post was last updated
	UpdatedAt time.Time
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	// GetByID returns a post by its ID
	GetByID(id string) (*Post, error)

	// GetByURN returns a post by its canonical provider identifier
	GetByURN(urn string) (*Post, error)

	// GetActive returns posts still pending or processing
	GetActive(limit int) ([]*Post, error)

	// CountBySubmitterSince counts posts a member submitted after the cutoff
	CountBySubmitterSince(submitterID string, since time.Time) (int, error)

	// Save creates or updates a post
	Save(post *Post) error

	// UpdateStatus updates the post status and optional error message
	UpdateStatus(id string, status PostStatus, errorMsg string) error

	// Delete removes a post and cascades dependent rows
	Delete(id string) error
}
