package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/zenbase-ai/tech-for-iran-sub001/internal/domain"
)

// PodRepository is a SQLite implementation of domain.PodRepository.
type PodRepository struct {
	db *sql.DB
}

// NewPodRepository creates a new PodRepository backed by SQLite.
func NewPodRepository(db *sql.DB) *PodRepository {
	return &PodRepository{db: db}
}

// GetPod returns a pod by ID.
func (r *PodRepository) GetPod(id string) (*domain.Pod, error) {
	row := r.db.QueryRow(`SELECT id, name, created_at FROM pods WHERE id = ?`, id)

	var pod domain.Pod
	if err := row.Scan(&pod.ID, &pod.Name, &pod.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &pod, nil
}

// SavePod inserts or updates a pod.
func (r *PodRepository) SavePod(pod *domain.Pod) error {
	if pod.CreatedAt.IsZero() {
		pod.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(`INSERT INTO pods (id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		pod.ID, pod.Name, pod.CreatedAt.UTC())
	return err
}

// GetMembers returns the user IDs belonging to a pod.
func (r *PodRepository) GetMembers(podID string) ([]string, error) {
	rows, err := r.db.Query(`SELECT user_id FROM pod_members WHERE pod_id = ? ORDER BY joined_at ASC`, podID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		members = append(members, userID)
	}
	return members, rows.Err()
}

// IsMember reports whether the user belongs to the pod.
func (r *PodRepository) IsMember(podID, userID string) (bool, error) {
	row := r.db.QueryRow(`SELECT COUNT(*) FROM pod_members WHERE pod_id = ? AND user_id = ?`, podID, userID)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddMember joins a user to a pod; duplicate joins are no-ops.
func (r *PodRepository) AddMember(m *domain.Membership) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(`INSERT INTO pod_members (pod_id, user_id, joined_at) VALUES (?, ?, ?)
		ON CONFLICT(pod_id, user_id) DO NOTHING`,
		m.PodID, m.UserID, m.JoinedAt.UTC())
	return err
}

// RemoveMember removes a user from a pod.
func (r *PodRepository) RemoveMember(podID, userID string) error {
	_, err := r.db.Exec(`DELETE FROM pod_members WHERE pod_id = ? AND user_id = ?`, podID, userID)
	return err
}

// RemoveUser removes a user from every pod.
func (r *PodRepository) RemoveUser(userID string) error {
	_, err := r.db.Exec(`DELETE FROM pod_members WHERE user_id = ?`, userID)
	return err
}
