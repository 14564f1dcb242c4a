package domain

import (
	"fmt"
	"time"
)

// AccountStatus represents the lifecycle status of a linked provider account
type AccountStatus string

const (
	// AccountStatusConnecting indicates the external link flow is still in progress
	AccountStatusConnecting AccountStatus = "connecting"

	// AccountStatusHealthy indicates the account is connected and usable
	AccountStatusHealthy AccountStatus = "healthy"

	// AccountStatusCredentialsInvalid indicates the provider rejected the stored credentials
	AccountStatusCredentialsInvalid AccountStatus = "credentials_invalid"

	// AccountStatusSyncError indicates the provider reported a sync failure
	AccountStatusSyncError AccountStatus = "sync_error"

	// AccountStatusStopped indicates the account was paused by the provider
	AccountStatusStopped AccountStatus = "stopped"

	// AccountStatusDeleted indicates the account was disconnected and soft-deleted
	AccountStatusDeleted AccountStatus = "deleted"
)

// Account represents a member's linked provider account
type Account struct {
	// ID is the unique identifier for the account record
	ID string

	// ProviderAccountID is the opaque account id assigned by the provider
	ProviderAccountID string

	// OwnerID is the member that owns this account
	OwnerID string

	// Status is the current connection status
	Status AccountStatus

	// MaxDailyActions caps engagement actions per rolling day (1-25)
	MaxDailyActions int

	// Timezone is the IANA timezone used for working-hours checks
	Timezone string

	// WorkingHoursStart and WorkingHoursEnd bound the local hours (0-23) during
	// which actions may run. Nil means always open. The window may wrap midnight.
	WorkingHoursStart *int
	WorkingHoursEnd   *int

	// CreatedAt is the timestamp when the account was linked
	CreatedAt time.Time

	// UpdatedAt is the timestamp when the account was last updated
	UpdatedAt time.Time
}

// Engageable reports whether the account may perform engagement actions.
func (a *Account) Engageable() bool {
	return a.Status == AccountStatusHealthy
}

// Location resolves the account timezone, falling back to UTC.
func (a *Account) Location() *time.Location {
	if a.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// InWorkingHours reports whether t falls inside the account's local working
// window. The window is half-open [start, end) and may wrap midnight.
func (a *Account) InWorkingHours(t time.Time) bool {
	if a.WorkingHoursStart == nil || a.WorkingHoursEnd == nil {
		return true
	}
	start, end := *a.WorkingHoursStart, *a.WorkingHoursEnd
	if start == end {
		// Degenerate window, treated as always open (full-day default)
		return true
	}

	hour := t.In(a.Location()).Hour()
	if start < end {
		return hour >= start && hour < end
	}
	// Wrapping window, e.g. 22 -> 6
	return hour >= start || hour < end
}

// NextWorkingInstant returns the earliest instant at or after t that falls
// inside the working window.
func (a *Account) NextWorkingInstant(t time.Time) time.Time {
	if a.InWorkingHours(t) {
		return t
	}

	start := *a.WorkingHoursStart
	local := t.In(a.Location())
	next := time.Date(local.Year(), local.Month(), local.Day(), start, 0, 0, 0, a.Location())
	if !next.After(local) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// Validate checks structural invariants on the account record.
func (a *Account) Validate() error {
	if a.ProviderAccountID == "" {
		return fmt.Errorf("provider account id is required")
	}
	if a.OwnerID == "" {
		return fmt.Errorf("owner id is required")
	}
	if a.MaxDailyActions < 1 || a.MaxDailyActions > 25 {
		return fmt.Errorf("max daily actions must be between 1 and 25, got %d", a.MaxDailyActions)
	}
	for _, h := range []*int{a.WorkingHoursStart, a.WorkingHoursEnd} {
		if h != nil && (*h < 0 || *h > 23) {
			return fmt.Errorf("working hour must be between 0 and 23, got %d", *h)
		}
	}
	if (a.WorkingHoursStart == nil) != (a.WorkingHoursEnd == nil) {
		return fmt.Errorf("working hours must set both start and end or neither")
	}
	return nil
}

// AccountRepository defines the interface for account data operations
type AccountRepository interface {
	// GetAll returns all accounts
	GetAll() ([]*Account, error)

	// GetByID returns an account by its ID
	GetByID(id string) (*Account, error)

	// GetByProviderID returns an account by its provider-assigned id
	GetByProviderID(providerID string) (*Account, error)

	// GetByOwner returns the account owned by the given member
	GetByOwner(ownerID string) (*Account, error)

	// UpdateStatus transitions the account status
	UpdateStatus(id string, status AccountStatus) error

	// Save creates or updates an account
	Save(account *Account) error

	// Delete removes an account and cascades dependent rows
	Delete(id string) error
}
