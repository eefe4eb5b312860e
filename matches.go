package main

import (
	"database/sql"
	"log"
	"net/http"
)

// A "match" is not a stored record of its own: it is the existence of
// profile_likes rows in both directions. Matching gates chat and full
// profile visibility, nothing else.

// POST /users/{id}/like - like a profile; reports whether that completed a match
func likeProfileHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		targetID, ok := userIDFromPath(r, 3)
		if !ok {
			http.NotFound(w, r)
			return
		}
		userID := r.Context().Value(userIDKey).(int)
		if targetID == userID {
			writeError(w, http.StatusBadRequest, "cannot_like_self")
			return
		}

		var exists bool
		err := db.QueryRow(
			"SELECT EXISTS (SELECT 1 FROM profiles WHERE user_id = $1 AND is_complete = TRUE)",
			targetID).Scan(&exists)
		if err != nil || !exists {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		matched := false
		err = withTx(r.Context(), db, func(tx *sql.Tx) error {
			if _, err := tx.Exec(
				"INSERT INTO profile_likes (user_id, liked_user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
				userID, targetID); err != nil {
				return err
			}
			return tx.QueryRow(
				"SELECT EXISTS (SELECT 1 FROM profile_likes WHERE user_id = $1 AND liked_user_id = $2)",
				targetID, userID).Scan(&matched)
		})
		if err != nil {
			log.Println("Error recording profile like:", err)
			writeError(w, http.StatusInternalServerError, "like_error")
			return
		}

		writeJSON(w, http.StatusCreated, map[string]bool{"liked": true, "matched": matched})
	})
}

// areMatched reports whether both users have liked each other.
func areMatched(db *sql.DB, a, b int) (bool, error) {
	var matched bool
	err := db.QueryRow(`
		SELECT EXISTS (SELECT 1 FROM profile_likes WHERE user_id = $1 AND liked_user_id = $2)
		   AND EXISTS (SELECT 1 FROM profile_likes WHERE user_id = $2 AND liked_user_id = $1)
	`, a, b).Scan(&matched)
	return matched, err
}

// GET /matches - everyone the logged-in user has mutually liked
func matchesHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		rows, err := db.Query(`
			SELECT ml.liked_user_id, COALESCE(p.display_name, ''), ml.created_at
			FROM profile_likes ml
			JOIN profile_likes back ON back.user_id = ml.liked_user_id AND back.liked_user_id = ml.user_id
			LEFT JOIN profiles p ON p.user_id = ml.liked_user_id
			WHERE ml.user_id = $1
			ORDER BY GREATEST(ml.created_at, back.created_at) DESC
		`, userID)
		if err != nil {
			log.Println("Error listing matches:", err)
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		defer rows.Close()

		type matchEntry struct {
			UserID      int    `json:"user_id"`
			DisplayName string `json:"display_name"`
		}
		matches := make([]matchEntry, 0)
		for rows.Next() {
			var m matchEntry
			var likedAt sql.NullTime
			if err := rows.Scan(&m.UserID, &m.DisplayName, &likedAt); err != nil {
				continue
			}
			matches = append(matches, m)
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"matches": matches})
	})
}
