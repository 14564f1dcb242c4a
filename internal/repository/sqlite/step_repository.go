package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zenbase-ai/tech-for-iran-sub001/internal/domain"
)

const stepColumns = `id, post_id, account_id, reaction, scheduled_at, status,
	attempts, next_attempt_at, last_error, created_at, updated_at`

// StepRepository is the SQLite store of the executor's step state machine.
type StepRepository struct {
	db *sql.DB
}

// NewStepRepository creates a new StepRepository backed by SQLite.
func NewStepRepository(db *sql.DB) *StepRepository {
	return &StepRepository{db: db}
}

// SaveAll persists a batch of planned steps in one transaction.
func (r *StepRepository) SaveAll(steps []*domain.EngagementStep) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	for _, step := range steps {
		if err := saveStep(tx, step); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Save persists a single step.
func (r *StepRepository) Save(step *domain.EngagementStep) error {
	return saveStep(r.db, step)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func saveStep(db execer, step *domain.EngagementStep) error {
	now := time.Now().UTC()
	if step.ID == "" {
		step.ID = uuid.NewString()
		step.CreatedAt = now
	}
	if step.Status == "" {
		step.Status = domain.StepStatusPending
	}
	step.UpdatedAt = now

	_, err := db.Exec(`INSERT INTO engagement_steps
		(id, post_id, account_id, reaction, scheduled_at, status, attempts,
		next_attempt_at, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			attempts = excluded.attempts,
			next_attempt_at = excluded.next_attempt_at,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at`,
		step.ID, step.PostID, step.AccountID, string(step.Reaction),
		step.ScheduledAt.UTC(), string(step.Status), step.Attempts,
		nullableTime(step.NextAttemptAt), step.LastError,
		step.CreatedAt.UTC(), step.UpdatedAt.UTC())
	return err
}

// GetByID returns a step by ID.
func (r *StepRepository) GetByID(id string) (*domain.EngagementStep, error) {
	row := r.db.QueryRow(`SELECT `+stepColumns+` FROM engagement_steps WHERE id = ?`, id)
	return scanStep(row)
}

// GetByPost returns all steps for a post ordered by scheduled time.
func (r *StepRepository) GetByPost(postID string) ([]*domain.EngagementStep, error) {
	rows, err := r.db.Query(`SELECT `+stepColumns+` FROM engagement_steps
		WHERE post_id = ? ORDER BY scheduled_at ASC`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSteps(rows)
}

// DueSteps returns claimable steps whose due time is at or before now.
func (r *StepRepository) DueSteps(now time.Time, limit int) ([]*domain.EngagementStep, error) {
	rows, err := r.db.Query(`SELECT `+stepColumns+` FROM engagement_steps
		WHERE status IN (?, ?) AND COALESCE(next_attempt_at, scheduled_at) <= ?
		ORDER BY COALESCE(next_attempt_at, scheduled_at) ASC LIMIT ?`,
		string(domain.StepStatusPending), string(domain.StepStatusWaiting), now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSteps(rows)
}

// Claim transitions a step to executing if it is still claimable. The guarded
// UPDATE makes the claim atomic across concurrent dispatch workers.
func (r *StepRepository) Claim(id string, now time.Time) (bool, error) {
	res, err := r.db.Exec(`UPDATE engagement_steps SET status = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		string(domain.StepStatusExecuting), now.UTC(), id,
		string(domain.StepStatusPending), string(domain.StepStatusWaiting))
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CountOpenByPost counts steps for a post that are not yet terminal.
func (r *StepRepository) CountOpenByPost(postID string) (int, error) {
	row := r.db.QueryRow(`SELECT COUNT(*) FROM engagement_steps
		WHERE post_id = ? AND status NOT IN (?, ?)`,
		postID, string(domain.StepStatusDone), string(domain.StepStatusCanceled))
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CancelByAccount cancels all non-terminal steps for an account across every
// post and returns the affected steps.
func (r *StepRepository) CancelByAccount(accountID string) ([]*domain.EngagementStep, error) {
	rows, err := r.db.Query(`SELECT `+stepColumns+` FROM engagement_steps
		WHERE account_id = ? AND status NOT IN (?, ?)`,
		accountID, string(domain.StepStatusDone), string(domain.StepStatusCanceled))
	if err != nil {
		return nil, err
	}
	steps, err := collectSteps(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for _, step := range steps {
		if _, err := r.db.Exec(`UPDATE engagement_steps SET status = ?, updated_at = ?
			WHERE id = ? AND status NOT IN (?, ?)`,
			string(domain.StepStatusCanceled), now, step.ID,
			string(domain.StepStatusDone), string(domain.StepStatusCanceled)); err != nil {
			return nil, err
		}
		step.Status = domain.StepStatusCanceled
	}
	return steps, nil
}

// ReleaseStale returns steps stuck in executing since before cutoff back to
// pending so a restarted process can pick them up.
func (r *StepRepository) ReleaseStale(cutoff time.Time) (int, error) {
	res, err := r.db.Exec(`UPDATE engagement_steps SET status = ?, updated_at = ?
		WHERE status = ? AND updated_at < ?`,
		string(domain.StepStatusPending), time.Now().UTC(),
		string(domain.StepStatusExecuting), cutoff.UTC())
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func collectSteps(rows *sql.Rows) ([]*domain.EngagementStep, error) {
	var steps []*domain.EngagementStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func scanStep(scanner interface {
	Scan(dest ...any) error
}) (*domain.EngagementStep, error) {
	var (
		step        domain.EngagementStep
		nextAttempt sql.NullTime
		lastError   sql.NullString
	)

	if err := scanner.Scan(
		&step.ID,
		&step.PostID,
		&step.AccountID,
		&step.Reaction,
		&step.ScheduledAt,
		&step.Status,
		&step.Attempts,
		&nextAttempt,
		&lastError,
		&step.CreatedAt,
		&step.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if nextAttempt.Valid {
		step.NextAttemptAt = nextAttempt.Time
	}
	if lastError.Valid {
		step.LastError = lastError.String
	}
	return &step, nil
}
