package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zenbase-ai/tech-for-iran-sub001/config"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/domain"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/infrastructure/unipile"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/logger"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/ratelimit"
)

// ReactionInvoker performs the actual provider reaction call.
type ReactionInvoker interface {
	AddReaction(ctx context.Context, accountID, urn, reaction string) error
}

// Executor drives the persisted engagement workflow. Steps live in the
// database; every poll cycle picks up whatever is due, claims it, and runs
// it through the gates (ledger dedup, account health, working hours, daily
// quota) before invoking the provider. Any suspension is written back as a
// future NextAttemptAt, so a restarted process resumes without losing or
// repeating work.
type Executor struct {
	config        *config.Config
	postRepo      domain.PostRepository
	stepRepo      domain.StepRepository
	accountRepo   domain.AccountRepository
	ledger        domain.EngagementRepository
	invoker       ReactionInvoker
	actionLimiter *ratelimit.Limiter

	workerPool chan struct{} // General worker pool
	actionSem  chan struct{} // Semaphore for in-flight provider calls
	now        func() time.Time
}

// NewExecutor creates an executor with bounded concurrency.
func NewExecutor(
	cfg *config.Config,
	postRepo domain.PostRepository,
	stepRepo domain.StepRepository,
	accountRepo domain.AccountRepository,
	ledger domain.EngagementRepository,
	invoker ReactionInvoker,
	actionLimiter *ratelimit.Limiter,
) *Executor {
	return &Executor{
		config:        cfg,
		postRepo:      postRepo,
		stepRepo:      stepRepo,
		accountRepo:   accountRepo,
		ledger:        ledger,
		invoker:       invoker,
		actionLimiter: actionLimiter,
		workerPool:    make(chan struct{}, cfg.WorkerPoolSize),
		actionSem:     make(chan struct{}, cfg.MaxConcurrentActions),
		now:           time.Now,
	}
}

// StartPost persists a submitted post together with its planned steps. Once
// this returns, the run survives restarts: the dispatcher will pick the
// steps up as they come due.
func (e *Executor) StartPost(post *domain.Post, plan *domain.EngagementPlan) error {
	post.Status = domain.PostStatusPending
	if err := e.postRepo.Save(post); err != nil {
		return fmt.Errorf("failed to save post: %w", err)
	}

	steps := plan.Steps()
	for _, s := range steps {
		s.PostID = post.ID
	}
	if err := e.stepRepo.SaveAll(steps); err != nil {
		// The post row exists but has no steps to drive it; without this it
		// would sit in pending forever.
		if uerr := e.postRepo.UpdateStatus(post.ID, domain.PostStatusFailed, "failed to persist engagement steps"); uerr != nil {
			logger.Error().Printf("Failed to mark post %s failed: %v", post.ID, uerr)
		}
		post.Status = domain.PostStatusFailed
		return fmt.Errorf("failed to save plan steps: %w", err)
	}

	logger.Info().Printf("Post %s queued with %d engagement steps", post.ID, len(steps))
	return nil
}

// RunDue claims and executes every step whose due time has passed. Called
// from the dispatch cron; safe to run concurrently with itself because
// claiming is an atomic guarded update.
func (e *Executor) RunDue(ctx context.Context) error {
	now := e.now()
	steps, err := e.stepRepo.DueSteps(now, e.config.WorkerPoolSize)
	if err != nil {
		return fmt.Errorf("failed to load due steps: %w", err)
	}
	if len(steps) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	for _, step := range steps {
		claimed, err := e.stepRepo.Claim(step.ID, now)
		if err != nil {
			logger.Error().Printf("Failed to claim step %s: %v", step.ID, err)
			continue
		}
		if !claimed {
			continue
		}

		wg.Add(1)
		go func(s *domain.EngagementStep) {
			defer wg.Done()

			e.workerPool <- struct{}{}
			defer func() { <-e.workerPool }()

			if err := e.executeStep(ctx, s); err != nil {
				logger.Error().Printf("Step %s failed: %v", s.ID, err)
			}
		}(step)
	}
	wg.Wait()
	return nil
}

// RecoverStale returns steps stuck in executing (a worker died mid-flight)
// back to the claimable pool.
func (e *Executor) RecoverStale() error {
	cutoff := e.now().Add(-e.config.StaleClaimAge)
	n, err := e.stepRepo.ReleaseStale(cutoff)
	if err != nil {
		return fmt.Errorf("failed to release stale steps: %w", err)
	}
	if n > 0 {
		logger.Info().Printf("Released %d stale engagement steps", n)
	}
	return nil
}

// FinalizeIfComplete closes the post if no open steps remain. Used after
// cancellation cascades that may have removed a post's last open steps.
func (e *Executor) FinalizeIfComplete(postID string) {
	post, err := e.postRepo.GetByID(postID)
	if err != nil || post == nil {
		return
	}
	if post.Status == domain.PostStatusPending || post.Status == domain.PostStatusProcessing {
		e.maybeFinalizePost(context.Background(), post)
	}
}

// executeStep runs one claimed step through the gates and the provider call.
func (e *Executor) executeStep(ctx context.Context, step *domain.EngagementStep) error {
	post, err := e.postRepo.GetByID(step.PostID)
	if err != nil {
		return e.deferStep(step, e.config.RetryBackoff, fmt.Sprintf("load post: %v", err))
	}
	if post == nil || post.Status == domain.PostStatusCanceled || post.Status == domain.PostStatusFailed {
		return e.cancelStep(step, "post no longer active")
	}

	// Ledger dedup: a recorded success means the reaction already happened,
	// possibly in a previous process life. Never invoke twice.
	prior, err := e.ledger.GetByPostAndAccount(step.PostID, step.AccountID)
	if err != nil {
		return e.deferStep(step, e.config.RetryBackoff, fmt.Sprintf("ledger lookup: %v", err))
	}
	if prior != nil && prior.Success {
		return e.finishStep(ctx, step, post, "")
	}

	acct, err := e.accountRepo.GetByID(step.AccountID)
	if err != nil {
		return e.deferStep(step, e.config.RetryBackoff, fmt.Sprintf("load account: %v", err))
	}
	if acct == nil || !acct.Engageable() {
		if _, err := e.ledger.Upsert(step.PostID, step.AccountID, step.Reaction, false, domain.ErrAccountNotEngageable.Error()); err != nil {
			logger.Error().Printf("Ledger upsert failed for step %s: %v", step.ID, err)
		}
		if err := e.cancelStep(step, domain.ErrAccountNotEngageable.Error()); err != nil {
			return err
		}
		e.maybeFinalizePost(ctx, post)
		return nil
	}

	now := e.now()

	// Working-hours gate. Deferral consumes no quota.
	if !acct.InWorkingHours(now) {
		resume := acct.NextWorkingInstant(now)
		logger.Info().Printf("Step %s outside working hours for account %s, resuming at %s", step.ID, acct.ID, resume.Format(time.RFC3339))
		return e.deferUntil(step, resume, "outside working hours")
	}

	// Daily action quota, shared across every post the account engages.
	decision, err := e.actionLimiter.TryConsume(ctx, "actions:"+acct.ID, acct.MaxDailyActions)
	if err != nil {
		return e.deferStep(step, e.config.RetryBackoff, fmt.Sprintf("rate limit check: %v", err))
	}
	if !decision.Allowed {
		rle := &domain.RateLimitError{Key: acct.ID, RetryAfter: decision.RetryAfter}
		logger.Info().Printf("Step %s deferred: %v", step.ID, rle)
		return e.deferStep(step, decision.RetryAfter, rle.Error())
	}

	if post.Status == domain.PostStatusPending {
		if err := e.postRepo.UpdateStatus(post.ID, domain.PostStatusProcessing, ""); err != nil {
			logger.Error().Printf("Failed to mark post %s processing: %v", post.ID, err)
		}
	}

	step.Attempts++
	err = e.invoke(ctx, acct.ProviderAccountID, post.URN, string(step.Reaction))
	if err == nil {
		if _, err := e.ledger.Upsert(step.PostID, step.AccountID, step.Reaction, true, ""); err != nil {
			logger.Error().Printf("Ledger upsert failed for step %s: %v", step.ID, err)
		}
		logger.Info().Printf("Account %s reacted %s on post %s", acct.ID, step.Reaction, post.ID)
		return e.finishStep(ctx, step, post, "")
	}

	return e.classifyFailure(ctx, step, post, acct, err)
}

func (e *Executor) invoke(ctx context.Context, providerAccountID, urn, reaction string) error {
	e.actionSem <- struct{}{}
	defer func() { <-e.actionSem }()
	return e.invoker.AddReaction(ctx, providerAccountID, urn, reaction)
}

// classifyFailure routes a provider error into retry, abort, or disconnect
// handling.
func (e *Executor) classifyFailure(ctx context.Context, step *domain.EngagementStep, post *domain.Post, acct *domain.Account, cause error) error {
	if unipile.IsDisconnected(cause) {
		return e.handleDisconnect(ctx, step, post, acct, cause)
	}

	if unipile.IsTransient(cause) && step.Attempts < e.config.MaxAttempts {
		backoff := e.config.RetryBackoff << (step.Attempts - 1)
		logger.Error().Printf("Step %s attempt %d failed transiently, retrying in %s: %v", step.ID, step.Attempts, backoff, cause)
		return e.deferStep(step, backoff, cause.Error())
	}

	// Permanent failure, or retry allowance exhausted. The step ends; the
	// run carries on with the remaining accounts.
	if _, err := e.ledger.Upsert(step.PostID, step.AccountID, step.Reaction, false, cause.Error()); err != nil {
		logger.Error().Printf("Ledger upsert failed for step %s: %v", step.ID, err)
	}
	logger.Error().Printf("Step %s failed permanently after %d attempts: %v", step.ID, step.Attempts, cause)
	return e.finishStep(ctx, step, post, cause.Error())
}

// handleDisconnect records the failure, marks the account unusable, and
// cancels the account's remaining steps across every active post.
func (e *Executor) handleDisconnect(ctx context.Context, step *domain.EngagementStep, post *domain.Post, acct *domain.Account, cause error) error {
	logger.Error().Printf("Account %s reported disconnected, canceling its remaining steps", acct.ID)

	if _, err := e.ledger.Upsert(step.PostID, step.AccountID, step.Reaction, false, cause.Error()); err != nil {
		logger.Error().Printf("Ledger upsert failed for step %s: %v", step.ID, err)
	}
	if err := e.accountRepo.UpdateStatus(acct.ID, domain.AccountStatusCredentialsInvalid); err != nil {
		logger.Error().Printf("Failed to mark account %s invalid: %v", acct.ID, err)
	}

	canceled, err := e.stepRepo.CancelByAccount(acct.ID)
	if err != nil {
		logger.Error().Printf("Failed to cancel steps for account %s: %v", acct.ID, err)
	}
	// Canceled steps still get a ledger row so reporting sees why the
	// account never reacted. Canceling may also finish other posts whose
	// only open steps belonged to this account.
	touched := map[string]bool{}
	for _, c := range canceled {
		if c.ID != step.ID {
			e.recordCancellation(c, "account disconnected")
		}
		if c.PostID != post.ID && !touched[c.PostID] {
			touched[c.PostID] = true
			if other, err := e.postRepo.GetByID(c.PostID); err == nil && other != nil {
				e.maybeFinalizePost(ctx, other)
			}
		}
	}

	return e.finishStep(ctx, step, post, cause.Error())
}

// finishStep marks the step done and finalizes the post if it was the last
// open step.
func (e *Executor) finishStep(ctx context.Context, step *domain.EngagementStep, post *domain.Post, errMsg string) error {
	step.Status = domain.StepStatusDone
	step.LastError = errMsg
	step.NextAttemptAt = time.Time{}
	if err := e.stepRepo.Save(step); err != nil {
		return fmt.Errorf("failed to save step: %w", err)
	}
	e.maybeFinalizePost(ctx, post)
	return nil
}

// recordCancellation writes a failure row for a canceled step unless the
// pair already has an outcome. A recorded success must never be overwritten
// by a later cancellation.
func (e *Executor) recordCancellation(step *domain.EngagementStep, reason string) {
	prior, err := e.ledger.GetByPostAndAccount(step.PostID, step.AccountID)
	if err != nil {
		logger.Error().Printf("Ledger lookup failed for step %s: %v", step.ID, err)
		return
	}
	if prior != nil {
		return
	}
	if _, err := e.ledger.Upsert(step.PostID, step.AccountID, step.Reaction, false, reason); err != nil {
		logger.Error().Printf("Ledger upsert failed for step %s: %v", step.ID, err)
	}
}

func (e *Executor) cancelStep(step *domain.EngagementStep, reason string) error {
	step.Status = domain.StepStatusCanceled
	step.LastError = reason
	step.NextAttemptAt = time.Time{}
	if err := e.stepRepo.Save(step); err != nil {
		return fmt.Errorf("failed to save step: %w", err)
	}
	return nil
}

// deferStep pushes the step back to waiting with a relative backoff.
func (e *Executor) deferStep(step *domain.EngagementStep, wait time.Duration, reason string) error {
	return e.deferUntil(step, e.now().Add(wait), reason)
}

func (e *Executor) deferUntil(step *domain.EngagementStep, at time.Time, reason string) error {
	step.Status = domain.StepStatusWaiting
	step.NextAttemptAt = at
	step.LastError = reason
	if err := e.stepRepo.Save(step); err != nil {
		return fmt.Errorf("failed to save step: %w", err)
	}
	return nil
}

// maybeFinalizePost closes the post once no open steps remain. The run
// itself succeeded: the post was recorded and every step reached a terminal
// state. Per-account outcomes live in the ledger; failed is reserved for
// runs that could not even be set up.
func (e *Executor) maybeFinalizePost(_ context.Context, post *domain.Post) {
	open, err := e.stepRepo.CountOpenByPost(post.ID)
	if err != nil {
		logger.Error().Printf("Failed to count open steps for post %s: %v", post.ID, err)
		return
	}
	if open > 0 {
		return
	}

	succeeded, err := e.ledger.CountSuccessByPost(post.ID)
	if err != nil {
		logger.Error().Printf("Failed to count successes for post %s: %v", post.ID, err)
		return
	}

	if err := e.postRepo.UpdateStatus(post.ID, domain.PostStatusSuccess, ""); err != nil {
		logger.Error().Printf("Failed to finalize post %s: %v", post.ID, err)
	}
	logger.Info().Printf("Post %s completed with %d successful engagements", post.ID, succeeded)
}
