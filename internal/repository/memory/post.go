package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zenbase-ai/tech-for-iran-sub001/internal/domain"
)

// PostRepository is an in-memory implementation of domain.PostRepository.
// Reads return detached copies so callers cannot mutate stored rows in place.
type PostRepository struct {
	mu    sync.RWMutex
	posts map[string]*domain.Post
}

// NewPostRepository creates a new in-memory post repository
func NewPostRepository() *PostRepository {
	return &PostRepository{
		posts: make(map[string]*domain.Post),
	}
}

func clonePost(p *domain.Post) *domain.Post {
	c := *p
	return &c
}

// GetByID returns a post by its ID
func (r *PostRepository) GetByID(id string) (*domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	post, exists := r.posts[id]
	if !exists {
		return nil, nil
	}
	return clonePost(post), nil
}

// GetByURN returns a post by its canonical provider identifier
func (r *PostRepository) GetByURN(urn string) (*domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, post := range r.posts {
		if post.URN == urn {
			return clonePost(post), nil
		}
	}
	return nil, nil
}

// GetActive returns posts still pending or processing, oldest first
func (r *PostRepository) GetActive(limit int) ([]*domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []*domain.Post
	for _, post := range r.posts {
		if post.Status == domain.PostStatusPending || post.Status == domain.PostStatusProcessing {
			active = append(active, clonePost(post))
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	if limit > 0 && len(active) > limit {
		active = active[:limit]
	}
	return active, nil
}

// CountBySubmitterSince counts posts a member submitted after the cutoff
func (r *PostRepository) CountBySubmitterSince(submitterID string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, post := range r.posts {
		if post.SubmitterID == submitterID && !post.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// Save creates or updates a post
func (r *PostRepository) Save(post *domain.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if post.ID == "" {
		post.ID = uuid.NewString()
		post.CreatedAt = time.Now()
	}
	if post.Status == "" {
		post.Status = domain.PostStatusPending
	}
	post.UpdatedAt = time.Now()

	r.posts[post.ID] = clonePost(post)
	return nil
}

// UpdateStatus updates the post status
func (r *PostRepository) UpdateStatus(id string, status domain.PostStatus, errorMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, exists := r.posts[id]
	if !exists {
		return nil
	}
	post.Status = status
	post.ErrorMessage = errorMsg
	post.UpdatedAt = time.Now()
	return nil
}

// Delete removes a post
func (r *PostRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.posts, id)
	return nil
}
