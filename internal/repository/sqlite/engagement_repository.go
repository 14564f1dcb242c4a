package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zenbase-ai/tech-for-iran-sub001/internal/domain"
)

const engagementColumns = `id, post_id, account_id, reaction, success, error, created_at, updated_at`

// EngagementRepository is the SQLite ledger of engagement outcomes.
type EngagementRepository struct {
	db *sql.DB
}

// NewEngagementRepository creates a new EngagementRepository backed by SQLite.
func NewEngagementRepository(db *sql.DB) *EngagementRepository {
	return &EngagementRepository{db: db}
}

// Upsert finds-or-creates the row for (postID, accountID) and patches it in
// place. The UNIQUE(post_id, account_id) index guarantees at most one row
// per pair regardless of retries or resumes.
func (r *EngagementRepository) Upsert(postID, accountID string, reaction domain.ReactionType, success bool, errMsg string) (string, error) {
	now := time.Now().UTC()
	id := uuid.NewString()

	_, err := r.db.Exec(`INSERT INTO engagements
		(id, post_id, account_id, reaction, success, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(post_id, account_id) DO UPDATE SET
			reaction = excluded.reaction,
			success = excluded.success,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		id, postID, accountID, string(reaction), boolToInt(success), errMsg, now, now)
	if err != nil {
		return "", err
	}

	// The conflict path keeps the original row id; read it back.
	row := r.db.QueryRow(`SELECT id FROM engagements WHERE post_id = ? AND account_id = ?`, postID, accountID)
	if err := row.Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// GetByPostAndAccount returns the row for the pair, or nil if absent.
func (r *EngagementRepository) GetByPostAndAccount(postID, accountID string) (*domain.Engagement, error) {
	row := r.db.QueryRow(`SELECT `+engagementColumns+` FROM engagements
		WHERE post_id = ? AND account_id = ?`, postID, accountID)
	return scanEngagement(row)
}

// GetByPost returns all rows for a post.
func (r *EngagementRepository) GetByPost(postID string) ([]*domain.Engagement, error) {
	rows, err := r.db.Query(`SELECT `+engagementColumns+` FROM engagements
		WHERE post_id = ? ORDER BY created_at ASC`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var engagements []*domain.Engagement
	for rows.Next() {
		e, err := scanEngagement(rows)
		if err != nil {
			return nil, err
		}
		engagements = append(engagements, e)
	}
	return engagements, rows.Err()
}

// CountByPost counts rows recorded for a post.
func (r *EngagementRepository) CountByPost(postID string) (int, error) {
	return r.count(`SELECT COUNT(*) FROM engagements WHERE post_id = ?`, postID)
}

// CountSuccessByPost counts successful rows for a post.
func (r *EngagementRepository) CountSuccessByPost(postID string) (int, error) {
	return r.count(`SELECT COUNT(*) FROM engagements WHERE post_id = ? AND success = 1`, postID)
}

// CountByAccountSince counts rows for an account after the cutoff.
func (r *EngagementRepository) CountByAccountSince(accountID string, since time.Time) (int, error) {
	return r.count(`SELECT COUNT(*) FROM engagements WHERE account_id = ? AND updated_at >= ?`,
		accountID, since.UTC())
}

// DeleteByAccount removes all rows for an account.
func (r *EngagementRepository) DeleteByAccount(accountID string) error {
	_, err := r.db.Exec(`DELETE FROM engagements WHERE account_id = ?`, accountID)
	return err
}

func (r *EngagementRepository) count(query string, args ...any) (int, error) {
	row := r.db.QueryRow(query, args...)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanEngagement(scanner interface {
	Scan(dest ...any) error
}) (*domain.Engagement, error) {
	var (
		e       domain.Engagement
		success int
		errMsg  sql.NullString
	)

	if err := scanner.Scan(
		&e.ID,
		&e.PostID,
		&e.AccountID,
		&e.Reaction,
		&success,
		&errMsg,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	e.Success = success == 1
	if errMsg.Valid {
		e.Error = errMsg.String
	}
	return &e, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
