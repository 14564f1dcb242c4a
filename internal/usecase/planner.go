package usecase

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/zenbase-ai/tech-for-iran-sub001/config"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/domain"
)

// PlanRequest carries the submitter's wishes for one boost run. Zero values
// fall back to configured defaults.
type PlanRequest struct {
	PodID       string
	PostID      string
	SubmitterID string

	// TargetCount is the desired number of engaging accounts
	TargetCount int

	// Reactions restricts the reaction types to draw from; empty means all
	Reactions []domain.ReactionType

	// MinDelayMinutes and MaxDelayMinutes bound the random per-step delay
	MinDelayMinutes int
	MaxDelayMinutes int
}

// Planner computes randomized engagement plans: which healthy accounts react
// to a post, with what reaction, and after what delay.
type Planner struct {
	config      *config.Config
	accountRepo domain.AccountRepository
	podRepo     domain.PodRepository

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewPlanner creates a planner seeded from the wall clock.
func NewPlanner(cfg *config.Config, accountRepo domain.AccountRepository, podRepo domain.PodRepository) *Planner {
	return &Planner{
		config:      cfg,
		accountRepo: accountRepo,
		podRepo:     podRepo,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
	}
}

// Plan selects the engaging accounts for a post and assigns each a reaction
// and a scheduled time. The submitter never engages their own post.
func (p *Planner) Plan(req PlanRequest) (*domain.EngagementPlan, error) {
	members, err := p.podRepo.GetMembers(req.PodID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pod members: %w", err)
	}

	candidates, err := p.candidateAccounts(members, req.SubmitterID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, domain.ErrPodTooSmall
	}

	others := len(members) - 1
	if others < 1 {
		return nil, domain.ErrPodTooSmall
	}
	target := p.clampTarget(req.TargetCount, others)
	if target > len(candidates) {
		target = len(candidates)
	}

	reactions := req.Reactions
	if len(reactions) == 0 {
		reactions = domain.AllReactions
	}
	minDelay, maxDelay := p.clampDelays(req.MinDelayMinutes, req.MaxDelayMinutes)

	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	entries := make([]domain.PlanEntry, 0, target)
	for _, acct := range candidates[:target] {
		delay := minDelay
		if maxDelay > minDelay {
			delay += p.rng.Intn(maxDelay - minDelay + 1)
		}
		entries = append(entries, domain.PlanEntry{
			AccountID:   acct.ID,
			OwnerID:     acct.OwnerID,
			Reaction:    reactions[p.rng.Intn(len(reactions))],
			ScheduledAt: now.Add(time.Duration(delay) * time.Minute),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ScheduledAt.Before(entries[j].ScheduledAt)
	})

	return &domain.EngagementPlan{
		PostID:    req.PostID,
		Entries:   entries,
		CreatedAt: now,
	}, nil
}

// candidateAccounts resolves each member's linked account and keeps only the
// healthy ones. Members without a linked account are skipped silently.
func (p *Planner) candidateAccounts(members []string, submitterID string) ([]*domain.Account, error) {
	candidates := make([]*domain.Account, 0, len(members))
	for _, userID := range members {
		if userID == submitterID {
			continue
		}
		acct, err := p.accountRepo.GetByOwner(userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load account for member %s: %w", userID, err)
		}
		if acct == nil || !acct.Engageable() {
			continue
		}
		candidates = append(candidates, acct)
	}
	return candidates, nil
}

// clampTarget bounds the requested count so a run never drafts more than
// half the other members (rounded up) and never exceeds the global cap.
func (p *Planner) clampTarget(requested, others int) int {
	max := (others + 1) / 2
	if max > p.config.MaxTargetCount {
		max = p.config.MaxTargetCount
	}
	if max < 1 {
		max = 1
	}
	target := requested
	if target < 1 {
		target = 1
	}
	if target > max {
		target = max
	}
	return target
}

func (p *Planner) clampDelays(min, max int) (int, int) {
	floor, ceiling := p.config.DelayFloorMinutes, p.config.DelayCeilingMinutes
	if min < floor {
		min = floor
	}
	if min > ceiling {
		min = ceiling
	}
	if max <= 0 || max > ceiling {
		max = ceiling
	}
	if max < min {
		max = min
	}
	return min, max
}
