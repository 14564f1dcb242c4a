package domain

import "time"

// StatSnapshot is a point-in-time capture of a post's external counters.
// Rows are append-only and ordered by CapturedAt.
type StatSnapshot struct {
	ID          string
	PostID      string
	Reactions   int
	Comments    int
	Reposts     int
	Impressions int
	CapturedAt  time.Time
}

// StatDelta is the difference between two snapshots of the same post.
type StatDelta struct {
	Reactions   int
	Comments    int
	Reposts     int
	Impressions int
}

// Delta computes after minus before.
func Delta(before, after *StatSnapshot) StatDelta {
	return StatDelta{
		Reactions:   after.Reactions - before.Reactions,
		Comments:    after.Comments - before.Comments,
		Reposts:     after.Reposts - before.Reposts,
		Impressions: after.Impressions - before.Impressions,
	}
}

// StatRepository stores engagement counter snapshots
type StatRepository interface {
	// Append records a new snapshot
	Append(snapshot *StatSnapshot) error

	// GetByPost returns a post's snapshots ordered by capture time ascending
	GetByPost(postID string) ([]*StatSnapshot, error)

	// Earliest returns the first snapshot for a post, or nil
	Earliest(postID string) (*StatSnapshot, error)

	// Latest returns the most recent snapshot for a post, or nil
	Latest(postID string) (*StatSnapshot, error)
}
