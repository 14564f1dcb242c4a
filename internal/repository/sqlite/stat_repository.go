package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zenbase-ai/tech-for-iran-sub001/internal/domain"
)

const snapshotColumns = `id, post_id, reactions, comments, reposts, impressions, captured_at`

// StatRepository is a SQLite implementation of domain.StatRepository.
type StatRepository struct {
	db *sql.DB
}

// NewStatRepository creates a new StatRepository backed by SQLite.
func NewStatRepository(db *sql.DB) *StatRepository {
	return &StatRepository{db: db}
}

// Append records a new snapshot. Rows are never updated.
func (r *StatRepository) Append(snapshot *domain.StatSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	if snapshot.CapturedAt.IsZero() {
		snapshot.CapturedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(`INSERT INTO stat_snapshots
		(id, post_id, reactions, comments, reposts, impressions, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snapshot.ID, snapshot.PostID, snapshot.Reactions, snapshot.Comments,
		snapshot.Reposts, snapshot.Impressions, snapshot.CapturedAt.UTC())
	return err
}

// GetByPost returns a post's snapshots ordered by capture time ascending.
func (r *StatRepository) GetByPost(postID string) ([]*domain.StatSnapshot, error) {
	rows, err := r.db.Query(`SELECT `+snapshotColumns+` FROM stat_snapshots
		WHERE post_id = ? ORDER BY captured_at ASC`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []*domain.StatSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// Earliest returns the first snapshot for a post, or nil.
func (r *StatRepository) Earliest(postID string) (*domain.StatSnapshot, error) {
	row := r.db.QueryRow(`SELECT `+snapshotColumns+` FROM stat_snapshots
		WHERE post_id = ? ORDER BY captured_at ASC LIMIT 1`, postID)
	return scanSnapshot(row)
}

// Latest returns the most recent snapshot for a post, or nil.
func (r *StatRepository) Latest(postID string) (*domain.StatSnapshot, error) {
	row := r.db.QueryRow(`SELECT `+snapshotColumns+` FROM stat_snapshots
		WHERE post_id = ? ORDER BY captured_at DESC LIMIT 1`, postID)
	return scanSnapshot(row)
}

func scanSnapshot(scanner interface {
	Scan(dest ...any) error
}) (*domain.StatSnapshot, error) {
	var s domain.StatSnapshot
	if err := scanner.Scan(
		&s.ID,
		&s.PostID,
		&s.Reactions,
		&s.Comments,
		&s.Reposts,
		&s.Impressions,
		&s.CapturedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}
