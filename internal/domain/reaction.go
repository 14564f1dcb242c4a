package domain

import "fmt"

// ReactionType is the closed set of reactions the provider accepts
type ReactionType string

const (
	ReactionLike       ReactionType = "like"
	ReactionCelebrate  ReactionType = "celebrate"
	ReactionSupport    ReactionType = "support"
	ReactionLove       ReactionType = "love"
	ReactionInsightful ReactionType = "insightful"
	ReactionFunny      ReactionType = "funny"
)

// AllReactions lists every valid reaction type.
var AllReactions = []ReactionType{
	ReactionLike,
	ReactionCelebrate,
	ReactionSupport,
	ReactionLove,
	ReactionInsightful,
	ReactionFunny,
}

// ParseReaction validates a raw string against the closed reaction set.
// Unknown values are rejected at the boundary and never forwarded to the
// provider API.
func ParseReaction(raw string) (ReactionType, error) {
	r := ReactionType(raw)
	for _, known := range AllReactions {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown reaction type %q", raw)
}
