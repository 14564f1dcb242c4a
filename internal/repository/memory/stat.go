package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zenbase-ai/tech-for-iran-sub001/internal/domain"
)

// StatRepository is an in-memory implementation of domain.StatRepository.
// Reads return detached copies so callers cannot mutate stored rows in place.
type StatRepository struct {
	mu        sync.RWMutex
	snapshots []*domain.StatSnapshot
}

// NewStatRepository creates a new in-memory stat repository
func NewStatRepository() *StatRepository {
	return &StatRepository{}
}

func cloneSnapshot(s *domain.StatSnapshot) *domain.StatSnapshot {
	c := *s
	return &c
}

// Append records a new snapshot
func (r *StatRepository) Append(snapshot *domain.StatSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	if snapshot.CapturedAt.IsZero() {
		snapshot.CapturedAt = time.Now()
	}
	r.snapshots = append(r.snapshots, cloneSnapshot(snapshot))
	return nil
}

// GetByPost returns a post's snapshots ordered by capture time ascending
func (r *StatRepository) GetByPost(postID string) ([]*domain.StatSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rows []*domain.StatSnapshot
	for _, s := range r.snapshots {
		if s.PostID == postID {
			rows = append(rows, cloneSnapshot(s))
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CapturedAt.Before(rows[j].CapturedAt)
	})
	return rows, nil
}

// Earliest returns the first snapshot for a post, or nil
func (r *StatRepository) Earliest(postID string) (*domain.StatSnapshot, error) {
	rows, err := r.GetByPost(postID)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Latest returns the most recent snapshot for a post, or nil
func (r *StatRepository) Latest(postID string) (*domain.StatSnapshot, error) {
	rows, err := r.GetByPost(postID)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[len(rows)-1], nil
}
