package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const birthdateLayout = "2006-01-02"

// profileColumns is the canonical SELECT list for everything scoring needs.
// Keep in sync with scanProfile.
const profileColumns = `user_id, display_name, COALESCE(about_me, ''), birthdate, COALESCE(gender, ''),
       COALESCE(looking_for_gender, 'any'), COALESCE(looking_for_age_min, 18), COALESCE(looking_for_age_max, 99),
       COALESCE(interests, '[]'::jsonb), COALESCE(plan, 'free'), COALESCE(is_complete, FALSE)`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanProfile reads one profiles row (in profileColumns order) into a
// Profile plus the about_me / is_complete extras the API layer wants.
func scanProfile(row rowScanner) (Profile, string, bool, error) {
	var (
		p          Profile
		aboutMe    string
		birthdate  sql.NullTime
		interests  []byte
		isComplete bool
	)
	err := row.Scan(&p.UserID, &p.DisplayName, &aboutMe, &birthdate, &p.Gender,
		&p.LookingForGender, &p.LookingForAgeMin, &p.LookingForAgeMax,
		&interests, &p.Plan, &isComplete)
	if err != nil {
		return Profile{}, "", false, err
	}
	if birthdate.Valid {
		p.Birthdate = birthdate.Time
	}
	p.Interests = decodeStringList(interests)
	return p, aboutMe, isComplete, nil
}

func fetchProfile(db *sql.DB, userID int) (Profile, bool, error) {
	row := db.QueryRow("SELECT "+profileColumns+" FROM profiles WHERE user_id = $1", userID)
	p, _, isComplete, err := scanProfile(row)
	return p, isComplete, err
}

// GET /me - account basics for the logged-in user
func meHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		var email string
		var createdAt, lastOnline sql.NullTime
		err := db.QueryRow("SELECT email, created_at, last_online FROM users WHERE id = $1", userID).
			Scan(&email, &createdAt, &lastOnline)
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		resp := map[string]interface{}{"id": userID, "email": email}
		if createdAt.Valid {
			resp["created_at"] = createdAt.Time
		}
		if lastOnline.Valid {
			resp["last_online"] = lastOnline.Time
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

// GET/PUT /me/profile
func meProfileHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(userIDKey).(int)

		switch r.Method {
		case http.MethodGet:
			row := db.QueryRow("SELECT "+profileColumns+" FROM profiles WHERE user_id = $1", userID)
			p, aboutMe, isComplete, err := scanProfile(row)
			if err != nil {
				writeError(w, http.StatusNotFound, "not_found")
				return
			}
			writeJSON(w, http.StatusOK, profileResponse(p, aboutMe, isComplete))

		case http.MethodPut:
			type ProfileUpdate struct {
				DisplayName      string   `json:"display_name"`
				AboutMe          string   `json:"about_me"`
				Birthdate        string   `json:"birthdate"` // "2006-01-02", empty clears
				Gender           string   `json:"gender"`
				LookingForGender string   `json:"looking_for_gender"`
				LookingForAgeMin int      `json:"looking_for_age_min"`
				LookingForAgeMax int      `json:"looking_for_age_max"`
				Interests        []string `json:"interests"`
			}
			var req ProfileUpdate
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_json")
				return
			}

			// The scoring core trusts its inputs, so everything gets
			// validated here at the boundary.
			var birthdate sql.NullTime
			if req.Birthdate != "" {
				parsed, err := time.Parse(birthdateLayout, req.Birthdate)
				if err != nil {
					writeError(w, http.StatusBadRequest, "invalid_birthdate")
					return
				}
				if parsed.After(time.Now()) {
					writeError(w, http.StatusBadRequest, "birthdate_in_future")
					return
				}
				birthdate = sql.NullTime{Time: parsed, Valid: true}
			}
			if req.LookingForGender == "" {
				req.LookingForGender = genderWildcard
			}
			if req.LookingForAgeMin <= 0 {
				req.LookingForAgeMin = 18
			}
			if req.LookingForAgeMax <= 0 {
				req.LookingForAgeMax = 99
			}
			if req.LookingForAgeMin > req.LookingForAgeMax {
				writeError(w, http.StatusBadRequest, "invalid_age_range")
				return
			}
			if req.Interests == nil {
				req.Interests = []string{}
			}
			interestsJSON, _ := json.Marshal(req.Interests)

			// Complete enough to be scored and fed: name, gender, some interests.
			isComplete := strings.TrimSpace(req.DisplayName) != "" &&
				strings.TrimSpace(req.Gender) != "" &&
				len(req.Interests) > 0

			_, err := db.Exec(`UPDATE profiles SET display_name = $2, about_me = $3, birthdate = $4, gender = $5,
				looking_for_gender = $6, looking_for_age_min = $7, looking_for_age_max = $8,
				interests = $9, is_complete = $10 WHERE user_id = $1`,
				userID, req.DisplayName, req.AboutMe, birthdate, req.Gender,
				req.LookingForGender, req.LookingForAgeMin, req.LookingForAgeMax,
				interestsJSON, isComplete)
			if err != nil {
				log.Println("Error updating profile:", err)
				writeError(w, http.StatusInternalServerError, "profile_update_error")
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"updated": true, "is_complete": isComplete})

		default:
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
		}
	})
}

func profileResponse(p Profile, aboutMe string, isComplete bool) map[string]interface{} {
	resp := map[string]interface{}{
		"user_id":             p.UserID,
		"display_name":        p.DisplayName,
		"about_me":            aboutMe,
		"gender":              p.Gender,
		"looking_for_gender":  p.LookingForGender,
		"looking_for_age_min": p.LookingForAgeMin,
		"looking_for_age_max": p.LookingForAgeMax,
		"interests":           p.Interests,
		"plan":                p.Plan,
		"is_complete":         isComplete,
	}
	if !p.Birthdate.IsZero() {
		resp["birthdate"] = p.Birthdate.Format(birthdateLayout)
		resp["age"] = calculateAge(p.Birthdate)
	}
	return resp
}

// Dispatcher for /users/* to route summary/profile/like
func usersDispatcher(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.Trim(r.URL.Path, "/")
		parts := strings.Split(path, "/")
		if len(parts) < 2 || parts[0] != "users" {
			http.NotFound(w, r)
			return
		}
		if len(parts) == 2 {
			userSummaryHandler(db).ServeHTTP(w, r)
			return
		}
		if len(parts) == 3 {
			switch parts[2] {
			case "profile":
				userProfileHandler(db).ServeHTTP(w, r)
			case "like":
				likeProfileHandler(db).ServeHTTP(w, r)
			default:
				http.NotFound(w, r)
			}
			return
		}
		http.NotFound(w, r)
	}
}

func userIDFromPath(r *http.Request, wantParts int) (int, bool) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != wantParts || parts[0] != "users" {
		return 0, false
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

// GET /users/{id} - public summary with online flag
func userSummaryHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		targetID, ok := userIDFromPath(r, 2)
		if !ok {
			http.NotFound(w, r)
			return
		}

		var displayName, plan string
		err := db.QueryRow(`SELECT COALESCE(p.display_name, 'User ' || u.id::text), COALESCE(p.plan, 'free')
			FROM users u LEFT JOIN profiles p ON p.user_id = u.id WHERE u.id = $1`, targetID).
			Scan(&displayName, &plan)
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		online, err := isOnlineNow(db, targetID)
		if err != nil {
			// Not critical; assume offline.
			online = false
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id":           targetID,
			"display_name": displayName,
			"plan":         plan,
			"is_online":    online,
		})
	})
}

// GET /users/{id}/profile - full profile, visible to matched users only
func userProfileHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		targetID, ok := userIDFromPath(r, 3)
		if !ok {
			http.NotFound(w, r)
			return
		}
		requesterID := r.Context().Value(userIDKey).(int)

		matched, err := areMatched(db, requesterID, targetID)
		if err != nil || !matched {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		row := db.QueryRow("SELECT "+profileColumns+" FROM profiles WHERE user_id = $1", targetID)
		p, aboutMe, isComplete, err := scanProfile(row)
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		writeJSON(w, http.StatusOK, profileResponse(p, aboutMe, isComplete))
	})
}
