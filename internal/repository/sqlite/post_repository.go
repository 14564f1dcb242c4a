package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zenbase-ai/tech-for-iran-sub001/internal/domain"
)

const postColumns = `id, pod_id, submitter_id, urn, url, text, author_name,
	posted_at, status, error_message, created_at, updated_at`

// PostRepository is a SQLite implementation of domain.PostRepository.
type PostRepository struct {
	db *sql.DB
}

// NewPostRepository creates a new PostRepository backed by SQLite.
func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

// GetByID returns a post by ID.
func (r *PostRepository) GetByID(id string) (*domain.Post, error) {
	row := r.db.QueryRow(`SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	return scanPost(row)
}

// GetByURN returns a post by its canonical provider identifier.
func (r *PostRepository) GetByURN(urn string) (*domain.Post, error) {
	row := r.db.QueryRow(`SELECT `+postColumns+` FROM posts WHERE urn = ?`, urn)
	return scanPost(row)
}

// GetActive returns posts still pending or processing, oldest first.
func (r *PostRepository) GetActive(limit int) ([]*domain.Post, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	rows, err := r.db.Query(`SELECT `+postColumns+` FROM posts
		WHERE status IN (?, ?) ORDER BY created_at ASC LIMIT ?`,
		string(domain.PostStatusPending), string(domain.PostStatusProcessing), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []*domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// CountBySubmitterSince counts posts a member submitted after the cutoff.
func (r *PostRepository) CountBySubmitterSince(submitterID string, since time.Time) (int, error) {
	row := r.db.QueryRow(`SELECT COUNT(*) FROM posts WHERE submitter_id = ? AND created_at >= ?`,
		submitterID, since.UTC())
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Save inserts or updates a post.
func (r *PostRepository) Save(post *domain.Post) error {
	now := time.Now().UTC()
	if post.ID == "" {
		post.ID = uuid.NewString()
		post.CreatedAt = now
	}
	if post.Status == "" {
		post.Status = domain.PostStatusPending
	}
	post.UpdatedAt = now

	_, err := r.db.Exec(`INSERT INTO posts
		(id, pod_id, submitter_id, urn, url, text, author_name, posted_at,
		status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at`,
		post.ID, post.PodID, post.SubmitterID, post.URN, post.URL, post.Text,
		post.AuthorName, nullableTime(post.PostedAt), string(post.Status),
		post.ErrorMessage, post.CreatedAt.UTC(), post.UpdatedAt.UTC())
	return err
}

// UpdateStatus updates the post status and optional error message.
func (r *PostRepository) UpdateStatus(id string, status domain.PostStatus, errorMsg string) error {
	_, err := r.db.Exec(`UPDATE posts SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(status), errorMsg, time.Now().UTC(), id)
	return err
}

// Delete removes a post; engagements, steps and snapshots cascade.
func (r *PostRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM posts WHERE id = ?`, id)
	return err
}

func scanPost(scanner interface {
	Scan(dest ...any) error
}) (*domain.Post, error) {
	var (
		post     domain.Post
		text     sql.NullString
		author   sql.NullString
		postedAt sql.NullTime
		errMsg   sql.NullString
	)

	if err := scanner.Scan(
		&post.ID,
		&post.PodID,
		&post.SubmitterID,
		&post.URN,
		&post.URL,
		&text,
		&author,
		&postedAt,
		&post.Status,
		&errMsg,
		&post.CreatedAt,
		&post.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if text.Valid {
		post.Text = text.String
	}
	if author.Valid {
		post.AuthorName = author.String
	}
	if postedAt.Valid {
		post.PostedAt = postedAt.Time
	}
	if errMsg.Valid {
		post.ErrorMessage = errMsg.String
	}
	return &post, nil
}
