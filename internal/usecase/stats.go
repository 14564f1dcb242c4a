package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zenbase-ai/tech-for-iran-sub001/config"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/domain"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/infrastructure/unipile"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/logger"
)

// StatsFetcher reads a post's engagement counters from the provider.
type StatsFetcher interface {
	FetchStats(ctx context.Context, accountID, urn string) (*unipile.PostStats, error)
}

// PostSummary is the read model for one boost run: execution progress from
// the ledger and step table, plus the externally observed counter movement.
type PostSummary struct {
	Post      *domain.Post         `json:"post"`
	OpenSteps int                  `json:"open_steps"`
	Recorded  int                  `json:"recorded_engagements"`
	Succeeded int                  `json:"succeeded_engagements"`
	Latest    *domain.StatSnapshot `json:"latest_snapshot,omitempty"`
	Boost     *domain.StatDelta    `json:"boost,omitempty"`
}

// StatsService captures periodic counter snapshots for active posts and
// serves run summaries.
type StatsService struct {
	config   *config.Config
	postRepo domain.PostRepository
	statRepo domain.StatRepository
	stepRepo domain.StepRepository
	ledger   domain.EngagementRepository
	accounts domain.AccountRepository
	fetcher  StatsFetcher
	now      func() time.Time
}

// NewStatsService creates the stats collector.
func NewStatsService(
	cfg *config.Config,
	postRepo domain.PostRepository,
	statRepo domain.StatRepository,
	stepRepo domain.StepRepository,
	ledger domain.EngagementRepository,
	accounts domain.AccountRepository,
	fetcher StatsFetcher,
) *StatsService {
	return &StatsService{
		config:   cfg,
		postRepo: postRepo,
		statRepo: statRepo,
		stepRepo: stepRepo,
		ledger:   ledger,
		accounts: accounts,
		fetcher:  fetcher,
		now:      time.Now,
	}
}

// CollectActive snapshots counters for every pending or processing post.
// Fetch failures are logged per post and do not stop the sweep.
func (s *StatsService) CollectActive(ctx context.Context) error {
	posts, err := s.postRepo.GetActive(0)
	if err != nil {
		return fmt.Errorf("failed to load active posts: %w", err)
	}

	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.snapshot(ctx, post); err != nil {
			logger.Error().Printf("Snapshot failed for post %s: %v", post.ID, err)
		}
	}
	return nil
}

func (s *StatsService) snapshot(ctx context.Context, post *domain.Post) error {
	acct, err := s.accounts.GetByOwner(post.SubmitterID)
	if err != nil {
		return fmt.Errorf("failed to load submitter account: %w", err)
	}
	if acct == nil || !acct.Engageable() {
		return fmt.Errorf("submitter has no usable account")
	}

	stats, err := s.fetcher.FetchStats(ctx, acct.ProviderAccountID, post.URN)
	if err != nil {
		return err
	}

	return s.statRepo.Append(&domain.StatSnapshot{
		ID:          uuid.New().String(),
		PostID:      post.ID,
		Reactions:   stats.Reactions,
		Comments:    stats.Comments,
		Reposts:     stats.Reposts,
		Impressions: stats.Impressions,
		CapturedAt:  s.now(),
	})
}

// Summary builds the read model for one post. Counts come from the ledger
// and step table at read time rather than from counters kept on the post.
func (s *StatsService) Summary(postID string) (*PostSummary, error) {
	post, err := s.postRepo.GetByID(postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}
	if post == nil {
		return nil, nil
	}

	open, err := s.stepRepo.CountOpenByPost(postID)
	if err != nil {
		return nil, fmt.Errorf("failed to count open steps: %w", err)
	}
	recorded, err := s.ledger.CountByPost(postID)
	if err != nil {
		return nil, fmt.Errorf("failed to count engagements: %w", err)
	}
	succeeded, err := s.ledger.CountSuccessByPost(postID)
	if err != nil {
		return nil, fmt.Errorf("failed to count successes: %w", err)
	}

	summary := &PostSummary{
		Post:      post,
		OpenSteps: open,
		Recorded:  recorded,
		Succeeded: succeeded,
	}

	earliest, err := s.statRepo.Earliest(postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load first snapshot: %w", err)
	}
	latest, err := s.statRepo.Latest(postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	if latest != nil {
		summary.Latest = latest
		if earliest != nil && earliest.ID != latest.ID {
			delta := domain.Delta(earliest, latest)
			summary.Boost = &delta
		}
	}

	return summary, nil
}
