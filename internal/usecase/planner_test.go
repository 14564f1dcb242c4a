package usecase

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenbase-ai/tech-for-iran-sub001/config"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/domain"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/repository/memory"
)

func testConfig() *config.Config {
	return &config.Config{
		DelayFloorMinutes:    1,
		DelayCeilingMinutes:  90,
		MaxTargetCount:       50,
		DefaultDailyActions:  10,
		MaxDailyActions:      25,
		SubmissionsPerWindow: 2,
		SubmissionWindow:     24 * time.Hour,
		MaxAttempts:          4,
		RetryBackoff:         30 * time.Second,
		WorkerPoolSize:       10,
		MaxConcurrentActions: 4,
		StaleClaimAge:        10 * time.Minute,
	}
}

// seedPod creates a pod with n members; every member except those listed in
// unhealthy gets a healthy linked account.
func seedPod(t *testing.T, podRepo *memory.PodRepository, accountRepo *memory.AccountRepository, n int, unhealthy map[int]domain.AccountStatus) {
	t.Helper()
	require.NoError(t, podRepo.SavePod(&domain.Pod{ID: "pod-1", Name: "test pod"}))
	for i := 1; i <= n; i++ {
		userID := fmt.Sprintf("user-%d", i)
		require.NoError(t, podRepo.AddMember(&domain.Membership{PodID: "pod-1", UserID: userID}))

		status := domain.AccountStatusHealthy
		if s, ok := unhealthy[i]; ok {
			status = s
		}
		require.NoError(t, accountRepo.Save(&domain.Account{
			ID:                fmt.Sprintf("acct-%d", i),
			OwnerID:           userID,
			ProviderAccountID: fmt.Sprintf("prov-%d", i),
			Status:            status,
			MaxDailyActions:   10,
		}))
	}
}

func newTestPlanner(accountRepo *memory.AccountRepository, podRepo *memory.PodRepository, now time.Time) *Planner {
	p := NewPlanner(testConfig(), accountRepo, podRepo)
	p.rng = rand.New(rand.NewSource(42))
	p.now = func() time.Time { return now }
	return p
}

func TestPlanExcludesSubmitterAndUnhealthy(t *testing.T) {
	podRepo := memory.NewPodRepository()
	accountRepo := memory.NewAccountRepository()
	seedPod(t, podRepo, accountRepo, 6, map[int]domain.AccountStatus{
		3: domain.AccountStatusCredentialsInvalid,
		4: domain.AccountStatusStopped,
	})

	planner := newTestPlanner(accountRepo, podRepo, time.Now())
	plan, err := planner.Plan(PlanRequest{
		PodID:       "pod-1",
		PostID:      "post-1",
		SubmitterID: "user-1",
		TargetCount: 10,
	})
	require.NoError(t, err)

	for _, entry := range plan.Entries {
		assert.NotEqual(t, "user-1", entry.OwnerID, "submitter must never engage their own post")
		assert.NotEqual(t, "acct-3", entry.AccountID)
		assert.NotEqual(t, "acct-4", entry.AccountID)
	}
}

func TestPlanClampsToHalfOfOtherMembers(t *testing.T) {
	podRepo := memory.NewPodRepository()
	accountRepo := memory.NewAccountRepository()
	seedPod(t, podRepo, accountRepo, 11, nil) // 10 other members

	planner := newTestPlanner(accountRepo, podRepo, time.Now())
	plan, err := planner.Plan(PlanRequest{
		PodID:       "pod-1",
		PostID:      "post-1",
		SubmitterID: "user-1",
		TargetCount: 100,
	})
	require.NoError(t, err)
	assert.Len(t, plan.Entries, 5)
}

func TestPlanUniqueAccountsPerRun(t *testing.T) {
	podRepo := memory.NewPodRepository()
	accountRepo := memory.NewAccountRepository()
	seedPod(t, podRepo, accountRepo, 21, nil)

	planner := newTestPlanner(accountRepo, podRepo, time.Now())
	plan, err := planner.Plan(PlanRequest{
		PodID:       "pod-1",
		PostID:      "post-1",
		SubmitterID: "user-1",
		TargetCount: 10,
	})
	require.NoError(t, err)
	require.Len(t, plan.Entries, 10)

	seen := map[string]bool{}
	for _, entry := range plan.Entries {
		assert.False(t, seen[entry.AccountID], "account %s planned twice", entry.AccountID)
		seen[entry.AccountID] = true
	}
}

func TestPlanDelaysWithinBoundsAndSorted(t *testing.T) {
	podRepo := memory.NewPodRepository()
	accountRepo := memory.NewAccountRepository()
	seedPod(t, podRepo, accountRepo, 41, nil)

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	planner := newTestPlanner(accountRepo, podRepo, now)
	plan, err := planner.Plan(PlanRequest{
		PodID:           "pod-1",
		PostID:          "post-1",
		SubmitterID:     "user-1",
		TargetCount:     20,
		MinDelayMinutes: 5,
		MaxDelayMinutes: 30,
	})
	require.NoError(t, err)
	require.Len(t, plan.Entries, 20)

	for i, entry := range plan.Entries {
		delay := entry.ScheduledAt.Sub(now)
		assert.GreaterOrEqual(t, delay, 5*time.Minute)
		assert.LessOrEqual(t, delay, 30*time.Minute)
		if i > 0 {
			assert.False(t, entry.ScheduledAt.Before(plan.Entries[i-1].ScheduledAt), "entries must be sorted by scheduled time")
		}
	}
}

func TestPlanDelayCeilingEnforced(t *testing.T) {
	podRepo := memory.NewPodRepository()
	accountRepo := memory.NewAccountRepository()
	seedPod(t, podRepo, accountRepo, 11, nil)

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	planner := newTestPlanner(accountRepo, podRepo, now)
	plan, err := planner.Plan(PlanRequest{
		PodID:           "pod-1",
		PostID:          "post-1",
		SubmitterID:     "user-1",
		TargetCount:     5,
		MinDelayMinutes: 0,
		MaxDelayMinutes: 600,
	})
	require.NoError(t, err)

	for _, entry := range plan.Entries {
		delay := entry.ScheduledAt.Sub(now)
		assert.GreaterOrEqual(t, delay, 1*time.Minute)
		assert.LessOrEqual(t, delay, 90*time.Minute)
	}
}

func TestPlanReactionsDrawnFromRequestedSet(t *testing.T) {
	podRepo := memory.NewPodRepository()
	accountRepo := memory.NewAccountRepository()
	seedPod(t, podRepo, accountRepo, 21, nil)

	planner := newTestPlanner(accountRepo, podRepo, time.Now())
	allowed := []domain.ReactionType{domain.ReactionLike, domain.ReactionCelebrate}
	plan, err := planner.Plan(PlanRequest{
		PodID:       "pod-1",
		PostID:      "post-1",
		SubmitterID: "user-1",
		TargetCount: 10,
		Reactions:   allowed,
	})
	require.NoError(t, err)

	for _, entry := range plan.Entries {
		assert.Contains(t, allowed, entry.Reaction)
	}
}

func TestPlanPodTooSmall(t *testing.T) {
	podRepo := memory.NewPodRepository()
	accountRepo := memory.NewAccountRepository()
	seedPod(t, podRepo, accountRepo, 1, nil)

	planner := newTestPlanner(accountRepo, podRepo, time.Now())
	_, err := planner.Plan(PlanRequest{
		PodID:       "pod-1",
		PostID:      "post-1",
		SubmitterID: "user-1",
		TargetCount: 3,
	})
	assert.ErrorIs(t, err, domain.ErrPodTooSmall)
}

func TestPlanNoHealthyCandidates(t *testing.T) {
	podRepo := memory.NewPodRepository()
	accountRepo := memory.NewAccountRepository()
	seedPod(t, podRepo, accountRepo, 3, map[int]domain.AccountStatus{
		2: domain.AccountStatusSyncError,
		3: domain.AccountStatusDeleted,
	})

	planner := newTestPlanner(accountRepo, podRepo, time.Now())
	_, err := planner.Plan(PlanRequest{
		PodID:       "pod-1",
		PostID:      "post-1",
		SubmitterID: "user-1",
		TargetCount: 2,
	})
	assert.ErrorIs(t, err, domain.ErrPodTooSmall)
}
