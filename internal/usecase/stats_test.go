package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenbase-ai/tech-for-iran-sub001/internal/domain"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/infrastructure/unipile"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/repository/memory"
)

type fakeFetcher struct {
	calls int
	stats unipile.PostStats
	err   error
}

func (f *fakeFetcher) FetchStats(_ context.Context, _, _ string) (*unipile.PostStats, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	s := f.stats
	return &s, nil
}

type statsEnv struct {
	t        *testing.T
	posts    *memory.PostRepository
	stats    *memory.StatRepository
	steps    *memory.StepRepository
	ledger   *memory.EngagementRepository
	accounts *memory.AccountRepository
	fetcher  *fakeFetcher
	svc      *StatsService
}

func newStatsEnv(t *testing.T, fetcher *fakeFetcher) *statsEnv {
	env := &statsEnv{
		t:        t,
		posts:    memory.NewPostRepository(),
		stats:    memory.NewStatRepository(),
		steps:    memory.NewStepRepository(),
		ledger:   memory.NewEngagementRepository(),
		accounts: memory.NewAccountRepository(),
		fetcher:  fetcher,
	}
	env.svc = NewStatsService(testConfig(), env.posts, env.stats, env.steps, env.ledger, env.accounts, fetcher)

	require.NoError(t, env.accounts.Save(&domain.Account{
		ID: "acct-1", OwnerID: "user-1", ProviderAccountID: "prov-1",
		Status: domain.AccountStatusHealthy, MaxDailyActions: 10,
	}))
	return env
}

func TestCollectActiveSnapshotsActivePosts(t *testing.T) {
	fetcher := &fakeFetcher{stats: unipile.PostStats{Reactions: 12, Comments: 3}}
	env := newStatsEnv(t, fetcher)

	require.NoError(t, env.posts.Save(&domain.Post{
		ID: "post-1", SubmitterID: "user-1", URN: "urn:li:activity:1",
		Status: domain.PostStatusProcessing,
	}))
	require.NoError(t, env.posts.Save(&domain.Post{
		ID: "post-2", SubmitterID: "user-1", URN: "urn:li:activity:2",
		Status: domain.PostStatusSuccess,
	}))

	require.NoError(t, env.svc.CollectActive(context.Background()))

	assert.Equal(t, 1, fetcher.calls, "finished posts are not snapshotted")

	snaps, err := env.stats.GetByPost("post-1")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 12, snaps[0].Reactions)
	assert.Equal(t, 3, snaps[0].Comments)
}

func TestSummaryReportsProgressAndBoost(t *testing.T) {
	env := newStatsEnv(t, &fakeFetcher{})

	require.NoError(t, env.posts.Save(&domain.Post{
		ID: "post-1", SubmitterID: "user-1", URN: "urn:li:activity:1",
		Status: domain.PostStatusProcessing,
	}))
	require.NoError(t, env.steps.Save(&domain.EngagementStep{
		ID: "step-1", PostID: "post-1", AccountID: "acct-2",
		Reaction: domain.ReactionLike, Status: domain.StepStatusPending,
	}))
	_, err := env.ledger.Upsert("post-1", "acct-3", domain.ReactionLove, true, "")
	require.NoError(t, err)
	_, err = env.ledger.Upsert("post-1", "acct-4", domain.ReactionLike, false, "provider api error 400")
	require.NoError(t, err)

	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	require.NoError(t, env.stats.Append(&domain.StatSnapshot{
		ID: "snap-1", PostID: "post-1", Reactions: 10, Impressions: 100, CapturedAt: base,
	}))
	require.NoError(t, env.stats.Append(&domain.StatSnapshot{
		ID: "snap-2", PostID: "post-1", Reactions: 25, Comments: 4, Impressions: 900, CapturedAt: base.Add(time.Hour),
	}))

	summary, err := env.svc.Summary("post-1")
	require.NoError(t, err)
	require.NotNil(t, summary)

	assert.Equal(t, 1, summary.OpenSteps)
	assert.Equal(t, 2, summary.Recorded)
	assert.Equal(t, 1, summary.Succeeded)
	require.NotNil(t, summary.Latest)
	assert.Equal(t, "snap-2", summary.Latest.ID)
	require.NotNil(t, summary.Boost)
	assert.Equal(t, 15, summary.Boost.Reactions)
	assert.Equal(t, 4, summary.Boost.Comments)
	assert.Equal(t, 800, summary.Boost.Impressions)
}

func TestSummaryUnknownPost(t *testing.T) {
	env := newStatsEnv(t, &fakeFetcher{})

	summary, err := env.svc.Summary("missing")
	require.NoError(t, err)
	assert.Nil(t, summary)
}
