package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zenbase-ai/tech-for-iran-sub001/internal/domain"
)

type pairKey struct {
	postID    string
	accountID string
}

// EngagementRepository is an in-memory ledger of engagement outcomes.
// Reads return detached copies so callers cannot mutate stored rows in place.
type EngagementRepository struct {
	mu   sync.RWMutex
	rows map[pairKey]*domain.Engagement
}

// NewEngagementRepository creates a new in-memory engagement repository
func NewEngagementRepository() *EngagementRepository {
	return &EngagementRepository{
		rows: make(map[pairKey]*domain.Engagement),
	}
}

func cloneEngagement(e *domain.Engagement) *domain.Engagement {
	c := *e
	return &c
}

// Upsert finds-or-creates the row for (postID, accountID) and patches it
func (r *EngagementRepository) Upsert(postID, accountID string, reaction domain.ReactionType, success bool, errMsg string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{postID, accountID}
	now := time.Now()

	if existing, exists := r.rows[key]; exists {
		existing.Reaction = reaction
		existing.Success = success
		existing.Error = errMsg
		existing.UpdatedAt = now
		return existing.ID, nil
	}

	row := &domain.Engagement{
		ID:        uuid.NewString(),
		PostID:    postID,
		AccountID: accountID,
		Reaction:  reaction,
		Success:   success,
		Error:     errMsg,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.rows[key] = row
	return row.ID, nil
}

// GetByPostAndAccount returns the row for the pair, or nil if absent
func (r *EngagementRepository) GetByPostAndAccount(postID, accountID string) (*domain.Engagement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, exists := r.rows[pairKey{postID, accountID}]
	if !exists {
		return nil, nil
	}
	return cloneEngagement(row), nil
}

// GetByPost returns all rows for a post
func (r *EngagementRepository) GetByPost(postID string) ([]*domain.Engagement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rows []*domain.Engagement
	for key, row := range r.rows {
		if key.postID == postID {
			rows = append(rows, cloneEngagement(row))
		}
	}
	return rows, nil
}

// CountByPost counts rows recorded for a post
func (r *EngagementRepository) CountByPost(postID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for key := range r.rows {
		if key.postID == postID {
			count++
		}
	}
	return count, nil
}

// CountSuccessByPost counts successful rows for a post
func (r *EngagementRepository) CountSuccessByPost(postID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for key, row := range r.rows {
		if key.postID == postID && row.Success {
			count++
		}
	}
	return count, nil
}

// CountByAccountSince counts rows for an account after the cutoff
func (r *EngagementRepository) CountByAccountSince(accountID string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for key, row := range r.rows {
		if key.accountID == accountID && !row.UpdatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// DeleteByAccount removes all rows for an account
func (r *EngagementRepository) DeleteByAccount(accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.rows {
		if key.accountID == accountID {
			delete(r.rows, key)
		}
	}
	return nil
}
