package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenbase-ai/tech-for-iran-sub001/internal/domain"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open("sqlite3:" + filepath.Join(t.TempDir(), "pods.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// seedGraph inserts a pod, an account, and a post so that rows with foreign
// keys can be written against them.
func seedGraph(t *testing.T, db *sql.DB) {
	t.Helper()
	require.NoError(t, NewPodRepository(db).SavePod(&domain.Pod{ID: "pod-1", Name: "growth pod"}))
	require.NoError(t, NewAccountRepository(db).Save(&domain.Account{
		ID:                "acct-1",
		OwnerID:           "user-1",
		ProviderAccountID: "prov-1",
		Status:            domain.AccountStatusHealthy,
		MaxDailyActions:   10,
	}))
	require.NoError(t, NewPostRepository(db).Save(&domain.Post{
		ID:          "post-1",
		PodID:       "pod-1",
		SubmitterID: "user-1",
		URN:         "urn:li:activity:1",
		URL:         "https://www.linkedin.com/posts/1",
		Status:      domain.PostStatusPending,
	}))
}

func TestEngagementUpsertKeepsOneRowPerPair(t *testing.T) {
	db := newTestDB(t)
	seedGraph(t, db)
	repo := NewEngagementRepository(db)

	firstID, err := repo.Upsert("post-1", "acct-1", domain.ReactionLike, false, "http 500")
	require.NoError(t, err)
	require.NotEmpty(t, firstID)

	secondID, err := repo.Upsert("post-1", "acct-1", domain.ReactionLove, true, "")
	require.NoError(t, err)
	assert.Equal(t, firstID, secondID, "the pair keeps its original row id")

	count, err := repo.CountByPost("post-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	row, err := repo.GetByPostAndAccount("post-1", "acct-1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, domain.ReactionLove, row.Reaction)
	assert.True(t, row.Success)
	assert.Empty(t, row.Error)
}

func TestStepClaimIsExclusive(t *testing.T) {
	db := newTestDB(t)
	seedGraph(t, db)
	repo := NewStepRepository(db)

	require.NoError(t, repo.Save(&domain.EngagementStep{
		ID:          "step-1",
		PostID:      "post-1",
		AccountID:   "acct-1",
		Reaction:    domain.ReactionLike,
		ScheduledAt: time.Now(),
		Status:      domain.StepStatusPending,
	}))

	claimed, err := repo.Claim("step-1", time.Now())
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.Claim("step-1", time.Now())
	require.NoError(t, err)
	assert.False(t, claimed, "a claimed step must not be claimable again")

	step, err := repo.GetByID("step-1")
	require.NoError(t, err)
	require.NotNil(t, step)
	assert.Equal(t, domain.StepStatusExecuting, step.Status)
}

func TestStepClaimUnknownIDReturnsFalse(t *testing.T) {
	db := newTestDB(t)
	repo := NewStepRepository(db)

	claimed, err := repo.Claim("missing", time.Now())
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestAccountDeleteCascadesDependentRows(t *testing.T) {
	db := newTestDB(t)
	seedGraph(t, db)

	steps := NewStepRepository(db)
	ledger := NewEngagementRepository(db)
	require.NoError(t, steps.Save(&domain.EngagementStep{
		ID:          "step-1",
		PostID:      "post-1",
		AccountID:   "acct-1",
		Reaction:    domain.ReactionLike,
		ScheduledAt: time.Now(),
		Status:      domain.StepStatusPending,
	}))
	_, err := ledger.Upsert("post-1", "acct-1", domain.ReactionLike, true, "")
	require.NoError(t, err)

	require.NoError(t, NewAccountRepository(db).Delete("acct-1"))

	step, err := steps.GetByID("step-1")
	require.NoError(t, err)
	assert.Nil(t, step)

	row, err := ledger.GetByPostAndAccount("post-1", "acct-1")
	require.NoError(t, err)
	assert.Nil(t, row)

	// The post itself is untouched
	post, err := NewPostRepository(db).GetByID("post-1")
	require.NoError(t, err)
	assert.NotNil(t, post)
}

func TestPostDeleteCascadesDependentRows(t *testing.T) {
	db := newTestDB(t)
	seedGraph(t, db)

	steps := NewStepRepository(db)
	ledger := NewEngagementRepository(db)
	stats := NewStatRepository(db)
	require.NoError(t, steps.Save(&domain.EngagementStep{
		ID:          "step-1",
		PostID:      "post-1",
		AccountID:   "acct-1",
		Reaction:    domain.ReactionLike,
		ScheduledAt: time.Now(),
		Status:      domain.StepStatusWaiting,
	}))
	_, err := ledger.Upsert("post-1", "acct-1", domain.ReactionLike, false, "http 400")
	require.NoError(t, err)
	require.NoError(t, stats.Append(&domain.StatSnapshot{PostID: "post-1", Reactions: 3}))

	require.NoError(t, NewPostRepository(db).Delete("post-1"))

	step, err := steps.GetByID("step-1")
	require.NoError(t, err)
	assert.Nil(t, step)

	count, err := ledger.CountByPost("post-1")
	require.NoError(t, err)
	assert.Zero(t, count)

	snapshots, err := stats.GetByPost("post-1")
	require.NoError(t, err)
	assert.Empty(t, snapshots)
}

func TestAccountSaveUpdatesInPlace(t *testing.T) {
	db := newTestDB(t)
	repo := NewAccountRepository(db)

	require.NoError(t, repo.Save(&domain.Account{
		ID:                "acct-1",
		OwnerID:           "user-1",
		ProviderAccountID: "prov-1",
		Status:            domain.AccountStatusConnecting,
		MaxDailyActions:   10,
	}))
	require.NoError(t, repo.Save(&domain.Account{
		ID:                "acct-1",
		OwnerID:           "user-1",
		ProviderAccountID: "prov-2",
		Status:            domain.AccountStatusHealthy,
		MaxDailyActions:   15,
	}))

	all, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "prov-2", all[0].ProviderAccountID)
	assert.Equal(t, 15, all[0].MaxDailyActions)
}
