package main

import (
	"time"

	"github.com/google/uuid"
)

// Profile carries the matching-relevant slice of a user's profile.
// The copy embedded in a Post is the author snapshot taken when the feed
// batch was assembled, not a live join.
type Profile struct {
	UserID           int       `json:"user_id"`
	DisplayName      string    `json:"display_name"`
	Birthdate        time.Time `json:"-"` // zero value means the user never set one
	Gender           string    `json:"gender"`
	LookingForGender string    `json:"looking_for_gender"` // "any" is a wildcard
	LookingForAgeMin int       `json:"looking_for_age_min"`
	LookingForAgeMax int       `json:"looking_for_age_max"`
	Interests        []string  `json:"interests"`
	Plan             string    `json:"plan"` // "free" | "premium"
}

// Post is a feed candidate.
type Post struct {
	ID        uuid.UUID `json:"id"`
	UserID    int       `json:"user_id"`
	Body      string    `json:"body"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	Author    Profile   `json:"author"`
}

// ScoredPost is a Post with its relevance for one viewer attached.
// Never persisted; recomputed on every feed request.
type ScoredPost struct {
	Post
	RelevanceScore float64 `json:"relevance_score"`
}

// ScoringWeights are the multipliers applied to each component score before
// summation. Overriding is all-or-nothing: callers supply all four or rely
// on the defaults.
type ScoringWeights struct {
	TagMatches          float64 `json:"tag_matches"`
	RecencyScore        float64 `json:"recency_score"`
	MutualInterestBoost float64 `json:"mutual_interest_boost"`
	AuthorBoost         float64 `json:"author_boost"`
}
