package usecase

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zenbase-ai/tech-for-iran-sub001/config"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/domain"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/logger"
)

// PostFinalizer closes a post once its last open step is gone.
type PostFinalizer interface {
	FinalizeIfComplete(postID string)
}

// Registry manages pods, memberships, and linked provider accounts. Status
// changes flow in through provider webhooks; leaving the healthy state
// cancels the account's scheduled work, and a disconnect removes the member's
// footprint entirely.
type Registry struct {
	config      *config.Config
	accountRepo domain.AccountRepository
	podRepo     domain.PodRepository
	stepRepo    domain.StepRepository
	ledger      domain.EngagementRepository
	finalizer   PostFinalizer
	now         func() time.Time
}

// NewRegistry creates the account registry.
func NewRegistry(
	cfg *config.Config,
	accountRepo domain.AccountRepository,
	podRepo domain.PodRepository,
	stepRepo domain.StepRepository,
	ledger domain.EngagementRepository,
	finalizer PostFinalizer,
) *Registry {
	return &Registry{
		config:      cfg,
		accountRepo: accountRepo,
		podRepo:     podRepo,
		stepRepo:    stepRepo,
		ledger:      ledger,
		finalizer:   finalizer,
		now:         time.Now,
	}
}

// LinkAccount registers a member's provider account. Each member has at most
// one linked account; re-linking updates the existing record.
func (r *Registry) LinkAccount(acct *domain.Account) error {
	if acct.ID == "" {
		acct.ID = uuid.New().String()
	}
	if acct.Status == "" {
		acct.Status = domain.AccountStatusConnecting
	}
	if acct.MaxDailyActions == 0 {
		acct.MaxDailyActions = r.config.DefaultDailyActions
	}
	if acct.MaxDailyActions > r.config.MaxDailyActions {
		acct.MaxDailyActions = r.config.MaxDailyActions
	}
	if err := acct.Validate(); err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}

	existing, err := r.accountRepo.GetByOwner(acct.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to look up existing account: %w", err)
	}
	if existing != nil {
		acct.ID = existing.ID
		acct.CreatedAt = existing.CreatedAt
	}
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = r.now()
	}

	if err := r.accountRepo.Save(acct); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	logger.Info().Printf("Linked account %s for member %s (status %s)", acct.ProviderAccountID, acct.OwnerID, acct.Status)
	return nil
}

// HandleStatusWebhook applies a provider status notification. Unknown
// provider account ids are ignored with a log line; the provider may notify
// about accounts the engine never registered.
func (r *Registry) HandleStatusWebhook(providerAccountID, rawStatus string) error {
	status, err := mapProviderStatus(rawStatus)
	if err != nil {
		return err
	}

	acct, err := r.accountRepo.GetByProviderID(providerAccountID)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if acct == nil {
		logger.Info().Printf("Status webhook for unknown account %s ignored", providerAccountID)
		return nil
	}
	prior := acct.Status
	if prior == status {
		return nil
	}

	logger.Info().Printf("Account %s status %s -> %s", acct.ID, prior, status)

	if status == domain.AccountStatusDeleted {
		return r.disconnect(acct)
	}

	if err := r.accountRepo.UpdateStatus(acct.ID, status); err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}

	// Leaving healthy strands any scheduled work for this account.
	if prior == domain.AccountStatusHealthy && status != domain.AccountStatusHealthy {
		r.cancelScheduledWork(acct.ID, "account no longer healthy")
	}
	return nil
}

// Disconnect removes an account and every trace of its scheduled and
// recorded activity, then drops the owner from their pods.
func (r *Registry) Disconnect(accountID string) error {
	acct, err := r.accountRepo.GetByID(accountID)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if acct == nil {
		return fmt.Errorf("account %s not found", accountID)
	}
	return r.disconnect(acct)
}

func (r *Registry) disconnect(acct *domain.Account) error {
	r.cancelScheduledWork(acct.ID, "account disconnected")

	if err := r.ledger.DeleteByAccount(acct.ID); err != nil {
		return fmt.Errorf("failed to delete engagement records: %w", err)
	}
	if err := r.podRepo.RemoveUser(acct.OwnerID); err != nil {
		return fmt.Errorf("failed to remove pod memberships: %w", err)
	}
	if err := r.accountRepo.Delete(acct.ID); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	logger.Info().Printf("Account %s disconnected, member %s removed from pods", acct.ID, acct.OwnerID)
	return nil
}

// cancelScheduledWork cancels the account's open steps across every post,
// records a failure row for each so reporting sees why the account never
// reacted, and finalizes posts whose last open steps just went away.
func (r *Registry) cancelScheduledWork(accountID, reason string) {
	canceled, err := r.stepRepo.CancelByAccount(accountID)
	if err != nil {
		logger.Error().Printf("Failed to cancel steps for account %s: %v", accountID, err)
		return
	}
	if len(canceled) == 0 {
		return
	}
	logger.Info().Printf("Canceled %d scheduled steps for account %s", len(canceled), accountID)

	touched := map[string]bool{}
	for _, step := range canceled {
		prior, err := r.ledger.GetByPostAndAccount(step.PostID, step.AccountID)
		if err != nil {
			logger.Error().Printf("Ledger lookup failed for step %s: %v", step.ID, err)
		} else if prior == nil {
			if _, err := r.ledger.Upsert(step.PostID, step.AccountID, step.Reaction, false, reason); err != nil {
				logger.Error().Printf("Ledger upsert failed for step %s: %v", step.ID, err)
			}
		}

		if touched[step.PostID] {
			continue
		}
		touched[step.PostID] = true
		r.finalizer.FinalizeIfComplete(step.PostID)
	}
}

// Bootstrap seeds pods, memberships, and healthy accounts from configuration.
// Re-running is idempotent; existing records are updated in place.
func (r *Registry) Bootstrap() error {
	for _, pb := range r.config.BootstrapPods {
		pod := &domain.Pod{ID: pb.PodID, Name: pb.Name, CreatedAt: r.now()}
		if err := r.podRepo.SavePod(pod); err != nil {
			return fmt.Errorf("failed to save pod %s: %w", pb.PodID, err)
		}

		for _, mb := range pb.Members {
			if err := r.podRepo.AddMember(&domain.Membership{
				PodID:    pb.PodID,
				UserID:   mb.UserID,
				JoinedAt: r.now(),
			}); err != nil {
				return fmt.Errorf("failed to add member %s to pod %s: %w", mb.UserID, pb.PodID, err)
			}

			acct := &domain.Account{
				OwnerID:           mb.UserID,
				ProviderAccountID: mb.ProviderAccountID,
				Status:            domain.AccountStatusHealthy,
				MaxDailyActions:   mb.MaxDailyActions,
				Timezone:          mb.Timezone,
				WorkingHoursStart: mb.WorkingHoursStart,
				WorkingHoursEnd:   mb.WorkingHoursEnd,
			}
			if err := r.LinkAccount(acct); err != nil {
				return fmt.Errorf("failed to link account for %s: %w", mb.UserID, err)
			}
		}
		logger.Info().Printf("Bootstrapped pod %s with %d members", pb.PodID, len(pb.Members))
	}
	return nil
}

// mapProviderStatus translates provider webhook status codes into account
// statuses. Unknown codes are rejected at the boundary.
func mapProviderStatus(raw string) (domain.AccountStatus, error) {
	switch raw {
	case "OK", "CREATION_SUCCESS", "RECONNECTED":
		return domain.AccountStatusHealthy, nil
	case "CONNECTING", "SYNCING":
		return domain.AccountStatusConnecting, nil
	case "CREDENTIALS", "PERMISSIONS":
		return domain.AccountStatusCredentialsInvalid, nil
	case "ERROR", "SYNC_ERROR":
		return domain.AccountStatusSyncError, nil
	case "STOPPED":
		return domain.AccountStatusStopped, nil
	case "DELETED":
		return domain.AccountStatusDeleted, nil
	}
	return "", fmt.Errorf("unknown provider status %q", raw)
}
