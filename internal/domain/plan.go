package domain

import "time"

// PlanEntry is one planned engagement: which account reacts, how, and when.
type PlanEntry struct {
	AccountID   string
	OwnerID     string
	Reaction    ReactionType
	ScheduledAt time.Time
}

// EngagementPlan is the ordered output of the planner for a single post.
// Entries are sorted by ScheduledAt ascending. The plan itself is transient;
// the executor persists it as EngagementStep rows.
type EngagementPlan struct {
	PostID    string
	Entries   []PlanEntry
	CreatedAt time.Time
}

// Steps converts the plan into persistable step rows.
func (p *EngagementPlan) Steps() []*EngagementStep {
	steps := make([]*EngagementStep, 0, len(p.Entries))
	for _, e := range p.Entries {
		steps = append(steps, &EngagementStep{
			PostID:      p.PostID,
			AccountID:   e.AccountID,
			Reaction:    e.Reaction,
			ScheduledAt: e.ScheduledAt,
			Status:      StepStatusPending,
		})
	}
	return steps
}
