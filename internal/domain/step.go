package domain

import "time"

// StepStatus represents the state of one persisted workflow step
type StepStatus string

const (
	// StepStatusPending indicates the step waits for its scheduled time
	StepStatusPending StepStatus = "pending"

	// StepStatusWaiting indicates the step was deferred by a gate
	// (working hours or rate limit) and waits for NextAttemptAt
	StepStatusWaiting StepStatus = "waiting"

	// StepStatusExecuting indicates a worker has claimed the step
	StepStatusExecuting StepStatus = "executing"

	// StepStatusDone indicates the step reached a terminal outcome
	StepStatusDone StepStatus = "done"

	// StepStatusCanceled indicates the step was aborted before executing
	StepStatusCanceled StepStatus = "canceled"
)

// Terminal reports whether the status is final.
func (s StepStatus) Terminal() bool {
	return s == StepStatusDone || s == StepStatusCanceled
}

// EngagementStep is one persisted entry of a post's engagement plan. The step
// table is the durable state machine: every suspension (scheduled delay,
// working-hours deferral, rate-limit retry, transient backoff) is stored as a
// future NextAttemptAt, so a restarted process resumes exactly where it left.
type EngagementStep struct {
	// ID is the unique identifier for the step
	ID string

	// PostID is the post this step belongs to
	PostID string

	// AccountID is the engaging account
	AccountID string

	// Reaction is the reaction to apply
	Reaction ReactionType

	// ScheduledAt is the planned execution time
	ScheduledAt time.Time

	// Status is the current step state
	Status StepStatus

	// Attempts counts provider invocations so far
	Attempts int

	// NextAttemptAt is when the step becomes due again; zero means ScheduledAt
	NextAttemptAt time.Time

	// LastError holds the most recent failure message
	LastError string

	// CreatedAt is the timestamp when the step was planned
	CreatedAt time.Time

	// UpdatedAt is the timestamp when the step was last updated
	UpdatedAt time.Time
}

// DueAt returns the instant the step becomes eligible to run.
func (s *EngagementStep) DueAt() time.Time {
	if !s.NextAttemptAt.IsZero() {
		return s.NextAttemptAt
	}
	return s.ScheduledAt
}

// StepRepository persists the executor's step state machine
type StepRepository interface {
	// SaveAll persists a batch of planned steps
	SaveAll(steps []*EngagementStep) error

	// Save persists a single step
	Save(step *EngagementStep) error

	// GetByID returns a step by ID
	GetByID(id string) (*EngagementStep, error)

	// GetByPost returns all steps for a post
	GetByPost(postID string) ([]*EngagementStep, error)

	// DueSteps returns claimable steps whose due time is at or before now,
	// oldest first
	DueSteps(now time.Time, limit int) ([]*EngagementStep, error)

	// Claim transitions a step to executing if it is still claimable.
	// Returns false when another worker already claimed it.
	Claim(id string, now time.Time) (bool, error)

	// CountOpenByPost counts steps for a post that are not yet terminal
	CountOpenByPost(postID string) (int, error)

	// CancelByAccount cancels all non-terminal steps for an account across
	// every post and returns the affected steps
	CancelByAccount(accountID string) ([]*EngagementStep, error)

	// ReleaseStale returns steps stuck in executing longer than cutoff back
	// to pending (crash recovery)
	ReleaseStale(cutoff time.Time) (int, error)
}
