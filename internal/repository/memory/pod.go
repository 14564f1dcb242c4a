package memory

import (
	"sync"
	"time"

	"github.com/zenbase-ai/tech-for-iran-sub001/internal/domain"
)

type memberKey struct {
	podID  string
	userID string
}

// PodRepository is an in-memory implementation of domain.PodRepository
type PodRepository struct {
	mu      sync.RWMutex
	pods    map[string]*domain.Pod
	members map[memberKey]*domain.Membership
}

// NewPodRepository creates a new in-memory pod repository
func NewPodRepository() *PodRepository {
	return &PodRepository{
		pods:    make(map[string]*domain.Pod),
		members: make(map[memberKey]*domain.Membership),
	}
}

// GetPod returns a pod by ID
func (r *PodRepository) GetPod(id string) (*domain.Pod, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pod, exists := r.pods[id]
	if !exists {
		return nil, nil
	}
	c := *pod
	return &c, nil
}

// SavePod creates or updates a pod
func (r *PodRepository) SavePod(pod *domain.Pod) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pod.CreatedAt.IsZero() {
		pod.CreatedAt = time.Now()
	}
	r.pods[pod.ID] = pod
	return nil
}

// GetMembers returns the user IDs belonging to a pod
func (r *PodRepository) GetMembers(podID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var users []string
	for key := range r.members {
		if key.podID == podID {
			users = append(users, key.userID)
		}
	}
	return users, nil
}

// IsMember reports whether the user belongs to the pod
func (r *PodRepository) IsMember(podID, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.members[memberKey{podID, userID}]
	return exists, nil
}

// AddMember joins a user to a pod; duplicate joins are no-ops
func (r *PodRepository) AddMember(m *domain.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memberKey{m.PodID, m.UserID}
	if _, exists := r.members[key]; exists {
		return nil
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now()
	}
	r.members[key] = m
	return nil
}

// RemoveMember removes a user from a pod
func (r *PodRepository) RemoveMember(podID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.members, memberKey{podID, userID})
	return nil
}

// RemoveUser removes a user from every pod
func (r *PodRepository) RemoveUser(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.members {
		if key.userID == userID {
			delete(r.members, key)
		}
	}
	return nil
}
