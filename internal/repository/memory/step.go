package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zenbase-ai/tech-for-iran-sub001/internal/domain"
)

// StepRepository is an in-memory store of the executor's step state machine.
// Reads return detached copies so callers cannot mutate stored rows in place.
type StepRepository struct {
	mu    sync.RWMutex
	steps map[string]*domain.EngagementStep
}

// NewStepRepository creates a new in-memory step repository
func NewStepRepository() *StepRepository {
	return &StepRepository{
		steps: make(map[string]*domain.EngagementStep),
	}
}

func cloneStep(s *domain.EngagementStep) *domain.EngagementStep {
	c := *s
	return &c
}

// SaveAll persists a batch of planned steps
func (r *StepRepository) SaveAll(steps []*domain.EngagementStep) error {
	for _, step := range steps {
		if err := r.Save(step); err != nil {
			return err
		}
	}
	return nil
}

// Save persists a single step
func (r *StepRepository) Save(step *domain.EngagementStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if step.ID == "" {
		step.ID = uuid.NewString()
		step.CreatedAt = time.Now()
	}
	if step.Status == "" {
		step.Status = domain.StepStatusPending
	}
	step.UpdatedAt = time.Now()

	r.steps[step.ID] = cloneStep(step)
	return nil
}

// GetByID returns a step by ID
func (r *StepRepository) GetByID(id string) (*domain.EngagementStep, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	step, exists := r.steps[id]
	if !exists {
		return nil, nil
	}
	return cloneStep(step), nil
}

// GetByPost returns all steps for a post ordered by scheduled time
func (r *StepRepository) GetByPost(postID string) ([]*domain.EngagementStep, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var steps []*domain.EngagementStep
	for _, step := range r.steps {
		if step.PostID == postID {
			steps = append(steps, cloneStep(step))
		}
	}
	sort.Slice(steps, func(i, j int) bool {
		return steps[i].ScheduledAt.Before(steps[j].ScheduledAt)
	})
	return steps, nil
}

// DueSteps returns claimable steps whose due time is at or before now
func (r *StepRepository) DueSteps(now time.Time, limit int) ([]*domain.EngagementStep, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var due []*domain.EngagementStep
	for _, step := range r.steps {
		claimable := step.Status == domain.StepStatusPending || step.Status == domain.StepStatusWaiting
		if claimable && !step.DueAt().After(now) {
			due = append(due, cloneStep(step))
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].DueAt().Before(due[j].DueAt())
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// Claim transitions a step to executing if it is still claimable
func (r *StepRepository) Claim(id string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	step, exists := r.steps[id]
	if !exists {
		return false, nil
	}
	if step.Status != domain.StepStatusPending && step.Status != domain.StepStatusWaiting {
		return false, nil
	}
	step.Status = domain.StepStatusExecuting
	step.UpdatedAt = now
	return true, nil
}

// CountOpenByPost counts steps for a post that are not yet terminal
func (r *StepRepository) CountOpenByPost(postID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, step := range r.steps {
		if step.PostID == postID && !step.Status.Terminal() {
			count++
		}
	}
	return count, nil
}

// CancelByAccount cancels all non-terminal steps for an account
func (r *StepRepository) CancelByAccount(accountID string) ([]*domain.EngagementStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var canceled []*domain.EngagementStep
	for _, step := range r.steps {
		if step.AccountID == accountID && !step.Status.Terminal() {
			step.Status = domain.StepStatusCanceled
			step.UpdatedAt = time.Now()
			canceled = append(canceled, cloneStep(step))
		}
	}
	return canceled, nil
}

// ReleaseStale returns steps stuck in executing since before cutoff to pending
func (r *StepRepository) ReleaseStale(cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	released := 0
	for _, step := range r.steps {
		if step.Status == domain.StepStatusExecuting && step.UpdatedAt.Before(cutoff) {
			step.Status = domain.StepStatusPending
			step.UpdatedAt = time.Now()
			released++
		}
	}
	return released, nil
}
