package main

import (
	"database/sql"
	"log"
	"net/http"
	"time"
)

// How many of the newest candidate posts enter scoring per request. This is
// candidate selection, not result pagination; the ranked output is returned
// whole.
const feedCandidateLimit = 200

// loadFeedCandidates pulls the newest posts that could appear in this
// viewer's feed (not their own, not hidden) and attaches author snapshots
// via the batched loader. Compatibility and relevance are decided afterwards
// by the scoring pipeline, in memory.
func loadFeedCandidates(db *sql.DB, r *http.Request, viewerID int) ([]Post, error) {
	rows, err := db.Query(`
        SELECT p.id, p.user_id, p.body, p.tags, p.created_at
        FROM posts p
        WHERE p.user_id <> $1
          AND NOT EXISTS (
              SELECT 1 FROM hidden_posts h
              WHERE h.user_id = $1 AND h.post_id = p.id
          )
        ORDER BY p.created_at DESC
        LIMIT $2
    `, viewerID, feedCandidateLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var post Post
		var tags []byte
		if err := rows.Scan(&post.ID, &post.UserID, &post.Body, &tags, &post.CreatedAt); err != nil {
			continue
		}
		post.Tags = decodeStringList(tags)
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Batch-load the author snapshots; duplicate authors cost one lookup.
	loader := newAuthorLoader(db)
	thunks := make([]func() (*Profile, error), len(posts))
	for i, post := range posts {
		thunks[i] = loader.Load(r.Context(), post.UserID)
	}

	candidates := make([]Post, 0, len(posts))
	for i, thunk := range thunks {
		author, err := thunk()
		if err != nil {
			// Orphaned post (author profile gone); skip it.
			continue
		}
		post := posts[i]
		post.Author = *author
		candidates = append(candidates, post)
	}
	return candidates, nil
}

// loadViewer returns the viewer's profile, writing the error response itself
// when the viewer cannot be fed (no profile yet, or incomplete).
func loadViewer(db *sql.DB, w http.ResponseWriter, viewerID int) (Profile, bool) {
	viewer, isComplete, err := fetchProfile(db, viewerID)
	if err == sql.ErrNoRows || (err == nil && !isComplete) {
		writeError(w, http.StatusForbidden, "incomplete_profile")
		return Profile{}, false
	} else if err != nil {
		log.Println("Error loading viewer profile:", err)
		writeError(w, http.StatusInternalServerError, "db_error")
		return Profile{}, false
	}
	return viewer, true
}

// GET /feed - the ranked feed for the logged-in viewer
func feedHandler(db *sql.DB, weights *ScoringWeights) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		viewerID := r.Context().Value(userIDKey).(int)

		viewer, ok := loadViewer(db, w, viewerID)
		if !ok {
			return
		}
		candidates, err := loadFeedCandidates(db, r, viewerID)
		if err != nil {
			log.Println("Error loading feed candidates:", err)
			writeError(w, http.StatusInternalServerError, "feed_error")
			return
		}

		writeJSON(w, http.StatusOK, map[string][]ScoredPost{
			"feed": attachScores(candidates, viewer, weights),
		})
	})
}

// GET /feed/detailed - ranked feed plus the per-component score breakdown
func feedDetailedHandler(db *sql.DB, weights *ScoringWeights) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		viewerID := r.Context().Value(userIDKey).(int)

		viewer, ok := loadViewer(db, w, viewerID)
		if !ok {
			return
		}
		candidates, err := loadFeedCandidates(db, r, viewerID)
		if err != nil {
			log.Println("Error loading feed candidates:", err)
			writeError(w, http.StatusInternalServerError, "feed_error")
			return
		}

		type detailedEntry struct {
			ScoredPost
			Components scoreComponents `json:"components"`
		}

		ranked := attachScores(candidates, viewer, weights)
		now := time.Now()
		entries := make([]detailedEntry, 0, len(ranked))
		for _, sp := range ranked {
			entries = append(entries, detailedEntry{
				ScoredPost: sp,
				Components: computeComponents(sp.Post, viewer, now),
			})
		}

		writeJSON(w, http.StatusOK, map[string][]detailedEntry{"feed": entries})
	})
}
