package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenbase-ai/tech-for-iran-sub001/internal/domain"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/infrastructure/unipile"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/ratelimit"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/repository/memory"
)

// fakeInvoker records reaction calls and serves scripted errors in order.
type fakeInvoker struct {
	mu     sync.Mutex
	calls  int
	byAcct map[string]int
	script []error
}

func newFakeInvoker(script ...error) *fakeInvoker {
	return &fakeInvoker{byAcct: map[string]int{}, script: script}
}

func (f *fakeInvoker) AddReaction(_ context.Context, accountID, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.byAcct[accountID]++
	if len(f.script) > 0 {
		err := f.script[0]
		f.script = f.script[1:]
		return err
	}
	return nil
}

func (f *fakeInvoker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type execEnv struct {
	t        *testing.T
	now      time.Time
	posts    *memory.PostRepository
	steps    *memory.StepRepository
	accounts *memory.AccountRepository
	ledger   *memory.EngagementRepository
	invoker  *fakeInvoker
	exec     *Executor
}

func newExecEnv(t *testing.T, invoker *fakeInvoker) *execEnv {
	env := &execEnv{
		t:        t,
		now:      time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
		posts:    memory.NewPostRepository(),
		steps:    memory.NewStepRepository(),
		accounts: memory.NewAccountRepository(),
		ledger:   memory.NewEngagementRepository(),
		invoker:  invoker,
	}

	limiter := ratelimit.New(ratelimit.NewMemoryStore(), 24*time.Hour)
	env.exec = NewExecutor(testConfig(), env.posts, env.steps, env.accounts, env.ledger, invoker, limiter)
	env.exec.now = func() time.Time { return env.now }
	return env
}

func (env *execEnv) addAccount(id, owner string, opts ...func(*domain.Account)) {
	env.t.Helper()
	acct := &domain.Account{
		ID:                id,
		OwnerID:           owner,
		ProviderAccountID: "prov-" + id,
		Status:            domain.AccountStatusHealthy,
		MaxDailyActions:   10,
	}
	for _, opt := range opts {
		opt(acct)
	}
	require.NoError(env.t, env.accounts.Save(acct))
}

func (env *execEnv) addPost(id string) {
	env.t.Helper()
	require.NoError(env.t, env.posts.Save(&domain.Post{
		ID:          id,
		PodID:       "pod-1",
		SubmitterID: "submitter",
		URN:         "urn:li:activity:" + id,
		Status:      domain.PostStatusPending,
		CreatedAt:   env.now,
	}))
}

func (env *execEnv) addStep(id, postID, accountID string, due time.Time) {
	env.t.Helper()
	require.NoError(env.t, env.steps.Save(&domain.EngagementStep{
		ID:          id,
		PostID:      postID,
		AccountID:   accountID,
		Reaction:    domain.ReactionLike,
		ScheduledAt: due,
		Status:      domain.StepStatusPending,
	}))
}

func (env *execEnv) step(id string) *domain.EngagementStep {
	env.t.Helper()
	step, err := env.steps.GetByID(id)
	require.NoError(env.t, err)
	require.NotNil(env.t, step)
	return step
}

func (env *execEnv) post(id string) *domain.Post {
	env.t.Helper()
	post, err := env.posts.GetByID(id)
	require.NoError(env.t, err)
	require.NotNil(env.t, post)
	return post
}

func TestExecutorRunsDueStepAndFinalizesPost(t *testing.T) {
	env := newExecEnv(t, newFakeInvoker())
	env.addAccount("acct-1", "user-1")
	env.addPost("post-1")
	env.addStep("step-1", "post-1", "acct-1", env.now.Add(-time.Minute))

	require.NoError(t, env.exec.RunDue(context.Background()))

	assert.Equal(t, 1, env.invoker.callCount())
	assert.Equal(t, domain.StepStatusDone, env.step("step-1").Status)
	assert.Equal(t, domain.PostStatusSuccess, env.post("post-1").Status)

	row, err := env.ledger.GetByPostAndAccount("post-1", "acct-1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.True(t, row.Success)
}

func TestExecutorIgnoresStepsNotYetDue(t *testing.T) {
	env := newExecEnv(t, newFakeInvoker())
	env.addAccount("acct-1", "user-1")
	env.addPost("post-1")
	env.addStep("step-1", "post-1", "acct-1", env.now.Add(time.Hour))

	require.NoError(t, env.exec.RunDue(context.Background()))

	assert.Zero(t, env.invoker.callCount())
	assert.Equal(t, domain.StepStatusPending, env.step("step-1").Status)
}

func TestExecutorSkipsAlreadyRecordedSuccess(t *testing.T) {
	env := newExecEnv(t, newFakeInvoker())
	env.addAccount("acct-1", "user-1")
	env.addPost("post-1")
	env.addStep("step-1", "post-1", "acct-1", env.now.Add(-time.Minute))

	// Simulates a resume after the process died between the provider call
	// and the step update.
	_, err := env.ledger.Upsert("post-1", "acct-1", domain.ReactionLike, true, "")
	require.NoError(t, err)

	require.NoError(t, env.exec.RunDue(context.Background()))

	assert.Zero(t, env.invoker.callCount(), "recorded success must not be re-invoked")
	assert.Equal(t, domain.StepStatusDone, env.step("step-1").Status)
	assert.Equal(t, domain.PostStatusSuccess, env.post("post-1").Status)
}

func TestExecutorTransientFailureRetriesWithBackoff(t *testing.T) {
	env := newExecEnv(t, newFakeInvoker(&unipile.APIError{StatusCode: 503, Message: "unavailable"}))
	env.addAccount("acct-1", "user-1")
	env.addPost("post-1")
	env.addStep("step-1", "post-1", "acct-1", env.now.Add(-time.Minute))

	require.NoError(t, env.exec.RunDue(context.Background()))

	step := env.step("step-1")
	assert.Equal(t, domain.StepStatusWaiting, step.Status)
	assert.Equal(t, 1, step.Attempts)
	assert.Equal(t, env.now.Add(30*time.Second), step.NextAttemptAt)

	// Not due again until the backoff elapses
	require.NoError(t, env.exec.RunDue(context.Background()))
	assert.Equal(t, 1, env.invoker.callCount())

	// Second attempt succeeds
	env.now = env.now.Add(time.Minute)
	require.NoError(t, env.exec.RunDue(context.Background()))

	assert.Equal(t, 2, env.invoker.callCount())
	assert.Equal(t, domain.StepStatusDone, env.step("step-1").Status)
	assert.Equal(t, domain.PostStatusSuccess, env.post("post-1").Status)
}

func TestExecutorGivesUpAfterMaxAttempts(t *testing.T) {
	script := []error{
		&unipile.APIError{StatusCode: 500, Message: "boom"},
		&unipile.APIError{StatusCode: 500, Message: "boom"},
		&unipile.APIError{StatusCode: 500, Message: "boom"},
		&unipile.APIError{StatusCode: 500, Message: "boom"},
		&unipile.APIError{StatusCode: 500, Message: "boom"},
	}
	env := newExecEnv(t, newFakeInvoker(script...))
	env.addAccount("acct-1", "user-1")
	env.addPost("post-1")
	env.addStep("step-1", "post-1", "acct-1", env.now.Add(-time.Minute))

	for i := 0; i < 6; i++ {
		require.NoError(t, env.exec.RunDue(context.Background()))
		env.now = env.now.Add(time.Hour)
	}

	assert.Equal(t, 4, env.invoker.callCount(), "attempts must stop at the configured maximum")
	assert.Equal(t, domain.StepStatusDone, env.step("step-1").Status)

	// The run completed even though every engagement failed; the ledger,
	// not the post status, carries the per-account outcomes.
	assert.Equal(t, domain.PostStatusSuccess, env.post("post-1").Status)

	row, err := env.ledger.GetByPostAndAccount("post-1", "acct-1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.False(t, row.Success)
}

func TestExecutorPermanentFailureEndsStep(t *testing.T) {
	env := newExecEnv(t, newFakeInvoker(&unipile.APIError{StatusCode: 400, Message: "bad request"}))
	env.addAccount("acct-1", "user-1")
	env.addAccount("acct-2", "user-2")
	env.addPost("post-1")
	env.addStep("step-1", "post-1", "acct-1", env.now.Add(-time.Minute))
	env.addStep("step-2", "post-1", "acct-2", env.now.Add(time.Hour))

	require.NoError(t, env.exec.RunDue(context.Background()))

	// One step failed permanently, but the run carries on with the rest
	assert.Equal(t, domain.StepStatusDone, env.step("step-1").Status)
	assert.Equal(t, domain.StepStatusPending, env.step("step-2").Status)
	assert.Equal(t, domain.PostStatusProcessing, env.post("post-1").Status)

	env.now = env.now.Add(2 * time.Hour)
	require.NoError(t, env.exec.RunDue(context.Background()))
	assert.Equal(t, domain.PostStatusSuccess, env.post("post-1").Status)
}

func TestExecutorDisconnectedAccountCancelsRemainingSteps(t *testing.T) {
	disconnected := &unipile.APIError{StatusCode: 401, Type: unipile.ErrorTypeDisconnected, Message: "session expired"}
	env := newExecEnv(t, newFakeInvoker(disconnected))
	env.addAccount("acct-1", "user-1")
	env.addPost("post-1")
	env.addPost("post-2")
	env.addStep("step-1", "post-1", "acct-1", env.now.Add(-time.Minute))
	env.addStep("step-2", "post-2", "acct-1", env.now.Add(time.Hour))

	require.NoError(t, env.exec.RunDue(context.Background()))

	acct, err := env.accounts.GetByID("acct-1")
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusCredentialsInvalid, acct.Status)

	assert.Equal(t, domain.StepStatusDone, env.step("step-1").Status)
	assert.Equal(t, domain.StepStatusCanceled, env.step("step-2").Status)

	// Both posts lost their only step; each run still completes
	assert.Equal(t, domain.PostStatusSuccess, env.post("post-1").Status)
	assert.Equal(t, domain.PostStatusSuccess, env.post("post-2").Status)

	// The canceled step leaves a failure row so reporting sees why the
	// account never reacted
	row, err := env.ledger.GetByPostAndAccount("post-2", "acct-1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.False(t, row.Success)
}

func TestExecutorDefersOutsideWorkingHours(t *testing.T) {
	env := newExecEnv(t, newFakeInvoker())
	start, end := 9, 17
	env.addAccount("acct-1", "user-1", func(a *domain.Account) {
		a.Timezone = "UTC"
		a.WorkingHoursStart = &start
		a.WorkingHoursEnd = &end
	})
	env.addPost("post-1")

	env.now = time.Date(2026, 8, 28, 20, 0, 0, 0, time.UTC)
	env.addStep("step-1", "post-1", "acct-1", env.now.Add(-time.Minute))

	require.NoError(t, env.exec.RunDue(context.Background()))

	assert.Zero(t, env.invoker.callCount())
	step := env.step("step-1")
	assert.Equal(t, domain.StepStatusWaiting, step.Status)
	assert.Equal(t, time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC), step.NextAttemptAt.UTC())
	assert.Zero(t, step.Attempts, "deferral must not count as an attempt")
}

func TestExecutorEnforcesDailyActionQuota(t *testing.T) {
	env := newExecEnv(t, newFakeInvoker())
	env.addAccount("acct-1", "user-1", func(a *domain.Account) {
		a.MaxDailyActions = 1
	})
	env.addPost("post-1")
	env.addPost("post-2")
	env.addStep("step-1", "post-1", "acct-1", env.now.Add(-2*time.Minute))
	env.addStep("step-2", "post-2", "acct-1", env.now.Add(-time.Minute))

	require.NoError(t, env.exec.RunDue(context.Background()))

	assert.Equal(t, 1, env.invoker.callCount(), "quota of one allows exactly one call")

	var done, waiting int
	for _, id := range []string{"step-1", "step-2"} {
		switch env.step(id).Status {
		case domain.StepStatusDone:
			done++
		case domain.StepStatusWaiting:
			waiting++
		}
	}
	assert.Equal(t, 1, done)
	assert.Equal(t, 1, waiting)
}

func TestExecutorCancelsStepForUnusableAccount(t *testing.T) {
	env := newExecEnv(t, newFakeInvoker())
	env.addAccount("acct-1", "user-1", func(a *domain.Account) {
		a.Status = domain.AccountStatusStopped
	})
	env.addPost("post-1")
	env.addStep("step-1", "post-1", "acct-1", env.now.Add(-time.Minute))

	require.NoError(t, env.exec.RunDue(context.Background()))

	assert.Zero(t, env.invoker.callCount())
	assert.Equal(t, domain.StepStatusCanceled, env.step("step-1").Status)
	assert.Equal(t, domain.PostStatusSuccess, env.post("post-1").Status)

	row, err := env.ledger.GetByPostAndAccount("post-1", "acct-1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.False(t, row.Success)
}

func TestExecutorStartPostPersistsPlan(t *testing.T) {
	env := newExecEnv(t, newFakeInvoker())
	post := &domain.Post{ID: "post-1", PodID: "pod-1", SubmitterID: "user-1", URN: "urn:li:activity:1"}
	plan := &domain.EngagementPlan{
		PostID: "post-1",
		Entries: []domain.PlanEntry{
			{AccountID: "acct-1", OwnerID: "user-2", Reaction: domain.ReactionLike, ScheduledAt: env.now.Add(5 * time.Minute)},
			{AccountID: "acct-2", OwnerID: "user-3", Reaction: domain.ReactionLove, ScheduledAt: env.now.Add(10 * time.Minute)},
		},
	}

	require.NoError(t, env.exec.StartPost(post, plan))

	assert.Equal(t, domain.PostStatusPending, env.post("post-1").Status)
	steps, err := env.steps.GetByPost("post-1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	for _, step := range steps {
		assert.Equal(t, domain.StepStatusPending, step.Status)
		assert.Equal(t, "post-1", step.PostID)
	}
}

// failingStepRepo rejects batch writes, simulating a storage fault between
// the post insert and the plan insert.
type failingStepRepo struct {
	*memory.StepRepository
}

func (r *failingStepRepo) SaveAll([]*domain.EngagementStep) error {
	return assert.AnError
}

func TestExecutorStartPostFailsPostWhenPlanCannotPersist(t *testing.T) {
	env := newExecEnv(t, newFakeInvoker())
	env.exec.stepRepo = &failingStepRepo{env.steps}

	post := &domain.Post{ID: "post-1", PodID: "pod-1", SubmitterID: "user-1", URN: "urn:li:activity:1"}
	plan := &domain.EngagementPlan{
		PostID: "post-1",
		Entries: []domain.PlanEntry{
			{AccountID: "acct-1", OwnerID: "user-2", Reaction: domain.ReactionLike, ScheduledAt: env.now},
		},
	}

	err := env.exec.StartPost(post, plan)
	require.Error(t, err)

	// With no steps to drive it the post must not linger in pending
	assert.Equal(t, domain.PostStatusFailed, env.post("post-1").Status)
	assert.Equal(t, domain.PostStatusFailed, post.Status)
}

func TestExecutorRecoverStaleReleasesClaims(t *testing.T) {
	env := newExecEnv(t, newFakeInvoker())
	env.addPost("post-1")
	env.addStep("step-1", "post-1", "acct-1", env.now.Add(-time.Minute))

	claimed, err := env.steps.Claim("step-1", time.Now())
	require.NoError(t, err)
	require.True(t, claimed)

	// A fresh claim is not stale yet
	env.now = time.Now().Add(time.Minute)
	require.NoError(t, env.exec.RecoverStale())
	assert.Equal(t, domain.StepStatusExecuting, env.step("step-1").Status)

	// Past the stale-claim age the step goes back to the pool
	env.now = time.Now().Add(time.Hour)
	require.NoError(t, env.exec.RecoverStale())
	assert.Equal(t, domain.StepStatusPending, env.step("step-1").Status)
}
