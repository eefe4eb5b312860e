package main

import (
	"sort"
	"strings"
	"time"
)

// Default multipliers for the four scoring components. Deployments can swap
// in their own set via SCORING_WEIGHT_* (see config.go); request paths never
// override per-call.
var defaultScoringWeights = ScoringWeights{
	TagMatches:          10,
	RecencyScore:        5,
	MutualInterestBoost: 5,
	AuthorBoost:         10,
}

const (
	// Recency decays linearly to zero across this window.
	recencyWindowHours = 48.0
	recencyMaxScore    = 5.0

	// Flat bonuses, applied before weighting.
	mutualInterestBonus = 5.0
	premiumAuthorBonus  = 10.0

	genderWildcard = "any"
	planPremium    = "premium"
)

// calculateAge returns the whole-year age for a birthdate, counting the
// birthday itself as already turned. Callers validate the date at the HTTP
// boundary; a future birthdate comes out negative and simply fails every
// age-window check downstream.
func calculateAge(birthdate time.Time) int {
	return ageAt(birthdate, time.Now())
}

func ageAt(birthdate, now time.Time) int {
	age := now.Year() - birthdate.Year()
	if now.Month() < birthdate.Month() ||
		(now.Month() == birthdate.Month() && now.Day() < birthdate.Day()) {
		age--
	}
	return age
}

// fuzzyMatch reports whether two free-text labels refer to the same thing,
// loosely: case-insensitive, and either side may contain the other, so
// "food" matches "street food" and vice versa.
func fuzzyMatch(a, b string) bool {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// calculateTagMatches counts the post tags that fuzzy-match at least one of
// the given interests. Each tag counts once no matter how many interests it
// hits. Deliberately uncapped, unlike the other components; the weight keeps
// it in proportion.
func calculateTagMatches(tags, interests []string) int {
	if len(tags) == 0 || len(interests) == 0 {
		return 0
	}
	matches := 0
	for _, tag := range tags {
		for _, interest := range interests {
			if fuzzyMatch(tag, interest) {
				matches++
				break
			}
		}
	}
	return matches
}

// calculateRecencyScore is a linear decay from recencyMaxScore at the moment
// of posting down to zero at the 48-hour mark. Older posts score zero on
// this component but are not excluded outright.
func calculateRecencyScore(createdAt, now time.Time) float64 {
	hours := now.Sub(createdAt).Hours()
	if hours < 0 {
		hours = 0 // clock skew; treat as brand new
	}
	if hours >= recencyWindowHours {
		return 0
	}
	return (recencyWindowHours - hours) / recencyWindowHours * recencyMaxScore
}

// areProfilesCompatible is the one-directional eligibility gate: may this
// author's content appear in this viewer's feed. It is recomputed on every
// feed request; nothing about it is persisted, and it is not a mutual-match
// record.
//
// Note the two directions are not symmetric: the reverse age check is
// skipped when the author's gender preference is the wildcard, but the
// forward gender check never skips. That is the shipped behavior and the
// tests pin it down.
func areProfilesCompatible(viewer, author *Profile) bool {
	// Viewer's declared gender preference is strict unless wildcarded.
	if viewer.LookingForGender != genderWildcard && author.Gender != viewer.LookingForGender {
		return false
	}

	// Author must fall inside the viewer's age window, when their age is
	// known. Authors without a birthdate pass this dimension.
	if !author.Birthdate.IsZero() {
		age := calculateAge(author.Birthdate)
		if age < viewer.LookingForAgeMin || age > viewer.LookingForAgeMax {
			return false
		}
	}

	// Reverse direction: the viewer must fall inside the author's age
	// window, unless the author is open to anyone.
	if !viewer.Birthdate.IsZero() && author.LookingForGender != genderWildcard {
		age := calculateAge(viewer.Birthdate)
		if age < author.LookingForAgeMin || age > author.LookingForAgeMax {
			return false
		}
	}

	return true
}

// scoreComponents holds the raw (pre-weight) component scores for one
// (viewer, post) pair. All components are non-negative by construction.
type scoreComponents struct {
	TagMatches     float64 `json:"tag_matches"`
	Recency        float64 `json:"recency"`
	MutualInterest float64 `json:"mutual_interest"`
	AuthorBoost    float64 `json:"author_boost"`
}

func (c scoreComponents) total(w ScoringWeights) float64 {
	total := c.TagMatches*w.TagMatches +
		c.Recency*w.RecencyScore +
		c.MutualInterest*w.MutualInterestBoost +
		c.AuthorBoost*w.AuthorBoost
	if total < 0 {
		return 0
	}
	return total
}

func computeComponents(post Post, viewer Profile, now time.Time) scoreComponents {
	var c scoreComponents

	viewerMatches := calculateTagMatches(post.Tags, viewer.Interests)
	c.TagMatches = float64(viewerMatches)
	c.Recency = calculateRecencyScore(post.CreatedAt, now)

	// Mutual interest: the post's tags must resonate with interests declared
	// by BOTH parties, not just the viewer.
	if viewerMatches > 0 && calculateTagMatches(post.Tags, post.Author.Interests) > 0 {
		c.MutualInterest = mutualInterestBonus
	}

	if post.Author.Plan == planPremium {
		c.AuthorBoost = premiumAuthorBonus
	}

	return c
}

// computeScore runs the full pipeline for a single post: compatibility gate,
// then the weighted component sum. Incompatible authors score exactly zero,
// never negative, regardless of tag overlap. A nil weights pointer selects
// the defaults.
func computeScore(post Post, viewer Profile, weights *ScoringWeights) float64 {
	w := defaultScoringWeights
	if weights != nil {
		w = *weights
	}
	if !areProfilesCompatible(&viewer, &post.Author) {
		return 0
	}
	return computeComponents(post, viewer, time.Now()).total(w)
}

// attachScores is the ranking entry point: score a batch of candidate posts
// for one viewer, drop everything that scored zero (incompatible authors
// included), and sort the survivors by score descending with newest-first
// tie-breaks. The stable sort makes repeat runs over identical input produce
// identical order.
func attachScores(posts []Post, viewer Profile, weights *ScoringWeights) []ScoredPost {
	scored := make([]ScoredPost, 0, len(posts))
	for _, post := range posts {
		total := computeScore(post, viewer, weights)
		if total <= 0 {
			continue
		}
		scored = append(scored, ScoredPost{Post: post, RelevanceScore: total})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].RelevanceScore != scored[j].RelevanceScore {
			return scored[i].RelevanceScore > scored[j].RelevanceScore
		}
		return scored[i].CreatedAt.After(scored[j].CreatedAt)
	})
	return scored
}
