package usecase

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"github.com/zenbase-ai/tech-for-iran-sub001/config"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/domain"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/infrastructure/unipile"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/logger"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/ratelimit"
)

// PostResolver resolves a post URL into the provider's canonical record.
type PostResolver interface {
	ResolvePost(ctx context.Context, accountID, postURL string) (*unipile.PostDetails, error)
}

// SubmitRequest is a member's boost request as it arrives at the API edge.
type SubmitRequest struct {
	PodID           string   `json:"pod_id"`
	SubmitterID     string   `json:"submitter_id"`
	URL             string   `json:"url"`
	TargetCount     int      `json:"target_count"`
	Reactions       []string `json:"reactions"`
	MinDelayMinutes int      `json:"min_delay_minutes"`
	MaxDelayMinutes int      `json:"max_delay_minutes"`
}

// Validate checks field-level constraints before any storage or provider
// call happens.
func (r SubmitRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PodID, validation.Required),
		validation.Field(&r.SubmitterID, validation.Required),
		validation.Field(&r.URL, validation.Required, is.URL),
		validation.Field(&r.TargetCount, validation.Min(0)),
		validation.Field(&r.MinDelayMinutes, validation.Min(0)),
		validation.Field(&r.MaxDelayMinutes, validation.Min(0)),
	)
}

// SubmissionService accepts boost requests: validates, rate-limits the
// submitter, resolves the post through the provider, plans the run, and
// hands it to the executor.
type SubmissionService struct {
	config    *config.Config
	podRepo   domain.PodRepository
	postRepo  domain.PostRepository
	accounts  domain.AccountRepository
	resolver  PostResolver
	planner   *Planner
	executor  *Executor
	submitLim *ratelimit.Limiter
	now       func() time.Time
}

// NewSubmissionService wires the submission pipeline.
func NewSubmissionService(
	cfg *config.Config,
	podRepo domain.PodRepository,
	postRepo domain.PostRepository,
	accounts domain.AccountRepository,
	resolver PostResolver,
	planner *Planner,
	executor *Executor,
	submitLim *ratelimit.Limiter,
) *SubmissionService {
	return &SubmissionService{
		config:    cfg,
		podRepo:   podRepo,
		postRepo:  postRepo,
		accounts:  accounts,
		resolver:  resolver,
		planner:   planner,
		executor:  executor,
		submitLim: submitLim,
		now:       time.Now,
	}
}

// Submit runs the full submission pipeline. On a duplicate URN the existing
// post is returned together with domain.ErrDuplicatePost.
func (s *SubmissionService) Submit(ctx context.Context, req SubmitRequest) (*domain.Post, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid submission: %w", err)
	}

	reactions := make([]domain.ReactionType, 0, len(req.Reactions))
	for _, raw := range req.Reactions {
		r, err := domain.ParseReaction(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid submission: %w", validation.Errors{"reactions": err})
		}
		reactions = append(reactions, r)
	}

	member, err := s.podRepo.IsMember(req.PodID, req.SubmitterID)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if !member {
		return nil, domain.ErrNotPodMember
	}

	acct, err := s.accounts.GetByOwner(req.SubmitterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load submitter account: %w", err)
	}
	if acct == nil || !acct.Engageable() {
		return nil, domain.ErrAccountNotEngageable
	}

	decision, err := s.submitLim.TryConsume(ctx, "submissions:"+req.SubmitterID, s.config.SubmissionsPerWindow)
	if err != nil {
		return nil, fmt.Errorf("submission limit check failed: %w", err)
	}
	if !decision.Allowed {
		return nil, &domain.RateLimitError{Key: req.SubmitterID, RetryAfter: decision.RetryAfter}
	}

	details, err := s.resolver.ResolvePost(ctx, acct.ProviderAccountID, req.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve post: %w", err)
	}

	existing, err := s.postRepo.GetByURN(details.URN)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicate: %w", err)
	}
	if existing != nil {
		return existing, domain.ErrDuplicatePost
	}

	post := &domain.Post{
		ID:          uuid.New().String(),
		PodID:       req.PodID,
		SubmitterID: req.SubmitterID,
		URN:         details.URN,
		URL:         req.URL,
		Text:        details.Text,
		AuthorName:  details.AuthorName,
		PostedAt:    details.PostedAt,
		CreatedAt:   s.now(),
	}

	plan, err := s.planner.Plan(PlanRequest{
		PodID:           req.PodID,
		PostID:          post.ID,
		SubmitterID:     req.SubmitterID,
		TargetCount:     req.TargetCount,
		Reactions:       reactions,
		MinDelayMinutes: req.MinDelayMinutes,
		MaxDelayMinutes: req.MaxDelayMinutes,
	})
	if err != nil {
		return nil, err
	}

	if err := s.executor.StartPost(post, plan); err != nil {
		return nil, err
	}

	logger.Info().Printf("Member %s submitted post %s to pod %s (%d steps planned)", req.SubmitterID, post.ID, req.PodID, len(plan.Entries))
	return post, nil
}
