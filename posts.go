package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxPostTags = 10

// POST /posts - create a post for the logged-in user
func createPostHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		type PostRequest struct {
			Body string   `json:"body"`
			Tags []string `json:"tags"`
		}
		var req PostRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		req.Body = strings.TrimSpace(req.Body)
		if req.Body == "" {
			writeError(w, http.StatusBadRequest, "missing_body")
			return
		}

		// Normalize tags: trim, drop empties, cap the count.
		tags := make([]string, 0, len(req.Tags))
		for _, tag := range req.Tags {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			tags = append(tags, tag)
			if len(tags) == maxPostTags {
				break
			}
		}
		tagsJSON, _ := json.Marshal(tags)

		postID := uuid.New()
		var createdAt time.Time
		err := db.QueryRow(
			"INSERT INTO posts (id, user_id, body, tags) VALUES ($1, $2, $3, $4) RETURNING created_at",
			postID, userID, req.Body, tagsJSON,
		).Scan(&createdAt)
		if err != nil {
			log.Println("Error inserting post:", err)
			writeError(w, http.StatusInternalServerError, "post_create_error")
			return
		}

		writeJSON(w, http.StatusCreated, Post{
			ID: postID, UserID: userID, Body: req.Body, Tags: tags, CreatedAt: createdAt,
		})
	})
}

// Dispatcher for /posts/{id} and /posts/{id}/{like|hide}
func postsDispatcher(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) < 2 || parts[0] != "posts" {
			http.NotFound(w, r)
			return
		}
		postID, err := uuid.Parse(parts[1])
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		switch {
		case len(parts) == 2:
			postHandler(db, postID).ServeHTTP(w, r)
		case len(parts) == 3 && parts[2] == "like":
			likePostHandler(db, postID).ServeHTTP(w, r)
		case len(parts) == 3 && parts[2] == "hide":
			hidePostHandler(db, postID).ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	}
}

// GET/DELETE /posts/{id}
func postHandler(db *sql.DB, postID uuid.UUID) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(userIDKey).(int)

		switch r.Method {
		case http.MethodGet:
			var post Post
			var tags []byte
			err := db.QueryRow("SELECT id, user_id, body, tags, created_at FROM posts WHERE id = $1", postID).
				Scan(&post.ID, &post.UserID, &post.Body, &tags, &post.CreatedAt)
			if err != nil {
				writeError(w, http.StatusNotFound, "not_found")
				return
			}
			post.Tags = decodeStringList(tags)

			var likes int
			_ = db.QueryRow("SELECT COUNT(*) FROM post_likes WHERE post_id = $1", postID).Scan(&likes)

			writeJSON(w, http.StatusOK, map[string]interface{}{"post": post, "likes": likes})

		case http.MethodDelete:
			// Only the author can delete.
			res, err := db.Exec("DELETE FROM posts WHERE id = $1 AND user_id = $2", postID, userID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "post_delete_error")
				return
			}
			if n, _ := res.RowsAffected(); n == 0 {
				writeError(w, http.StatusNotFound, "not_found")
				return
			}
			writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})

		default:
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
		}
	})
}

// POST/DELETE /posts/{id}/like
func likePostHandler(db *sql.DB, postID uuid.UUID) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(userIDKey).(int)

		switch r.Method {
		case http.MethodPost:
			var exists bool
			err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)", postID).Scan(&exists)
			if err != nil || !exists {
				writeError(w, http.StatusNotFound, "not_found")
				return
			}
			_, err = db.Exec(
				"INSERT INTO post_likes (user_id, post_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
				userID, postID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "like_error")
				return
			}
			writeJSON(w, http.StatusCreated, map[string]bool{"liked": true})

		case http.MethodDelete:
			_, err := db.Exec("DELETE FROM post_likes WHERE user_id = $1 AND post_id = $2", userID, postID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "unlike_error")
				return
			}
			writeJSON(w, http.StatusOK, map[string]bool{"liked": false})

		default:
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
		}
	})
}

// POST /posts/{id}/hide - dismiss a post from this viewer's feed
func hidePostHandler(db *sql.DB, postID uuid.UUID) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		var exists bool
		err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1 AND user_id <> $2)", postID, userID).Scan(&exists)
		if err != nil || !exists {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		_, err = db.Exec(
			"INSERT INTO hidden_posts (user_id, post_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			userID, postID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "hide_error")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]bool{"hidden": true})
	})
}
