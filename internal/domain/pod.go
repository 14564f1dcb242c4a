package domain

import "time"

// Pod represents a small group of members who boost each other's posts
type Pod struct {
	// ID is the unique identifier for the pod
	ID string

	// Name is the pod's display name
	Name string

	// CreatedAt is the timestamp when the pod was created
	CreatedAt time.Time
}

// Membership links a member to a pod. Unique per (PodID, UserID).
type Membership struct {
	PodID    string
	UserID   string
	JoinedAt time.Time
}

// PodRepository defines the interface for pod and membership operations
type PodRepository interface {
	// GetPod returns a pod by ID
	GetPod(id string) (*Pod, error)

	// SavePod creates or updates a pod
	SavePod(pod *Pod) error

	// GetMembers returns the user IDs belonging to a pod
	GetMembers(podID string) ([]string, error)

	// IsMember reports whether the user belongs to the pod
	IsMember(podID, userID string) (bool, error)

	// AddMember joins a user to a pod; idempotent per (pod, user)
	AddMember(m *Membership) error

	// RemoveMember removes a user from a pod
	RemoveMember(podID, userID string) error

	// RemoveUser removes a user from every pod
	RemoveUser(userID string) error
}
