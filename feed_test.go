package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

var feedProfileCols = []string{
	"user_id", "display_name", "about_me", "birthdate", "gender",
	"looking_for_gender", "looking_for_age_min", "looking_for_age_max",
	"interests", "plan", "is_complete",
}

func viewerProfileRow(mock sqlmock.Sqlmock, viewerID int, interests string, complete bool) {
	mock.ExpectQuery(`SELECT (.+) FROM profiles WHERE user_id = \$1`).
		WithArgs(viewerID).
		WillReturnRows(sqlmock.NewRows(feedProfileCols).
			AddRow(viewerID, "Viewer", "", nil, "female", "any", 18, 99, []byte(interests), "free", complete))
}

func TestFeedHandler(t *testing.T) {
	t.Run("Ranked feed comes back sorted by relevance", func(t *testing.T) {
		mock := newMockDB(t)
		now := time.Now()

		hotID := uuid.New()   // premium author, full tag overlap, fresh
		boostID := uuid.New() // same premium author, nothing but the tier boost
		plainID := uuid.New() // free author, one tag, one hour old

		expectPresenceTouch(mock)
		viewerProfileRow(mock, 1, `["travel","food"]`, true)

		mock.ExpectQuery(`SELECT p.id, p.user_id, p.body, p.tags, p.created_at FROM posts`).
			WithArgs(1, feedCandidateLimit).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "body", "tags", "created_at"}).
				AddRow(hotID.String(), 2, "hot", []byte(`["travel","food"]`), now).
				AddRow(plainID.String(), 3, "plain", []byte(`["travel"]`), now.Add(-time.Hour)).
				AddRow(boostID.String(), 2, "boost", []byte(`[]`), now.Add(-72*time.Hour)))

		// Author snapshots, batched: user 2 appears twice but loads once.
		mock.ExpectQuery(`SELECT (.+) FROM profiles WHERE user_id IN`).
			WithArgs(2, 3).
			WillReturnRows(sqlmock.NewRows(feedProfileCols).
				AddRow(2, "Premium Pat", "", nil, "male", "any", 18, 99, []byte(`["travel"]`), "premium", true).
				AddRow(3, "Free Fred", "", nil, "male", "any", 18, 99, []byte(`[]`), "free", true))

		w := httptest.NewRecorder()
		feedHandler(db, nil).ServeHTTP(w, authedRequest(t, http.MethodGet, "/feed", 1))

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
		}

		var resp struct {
			Feed []ScoredPost `json:"feed"`
		}
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode feed response: %v", err)
		}
		if len(resp.Feed) != 3 {
			t.Fatalf("expected 3 feed entries, got %d", len(resp.Feed))
		}

		wantOrder := []uuid.UUID{hotID, boostID, plainID}
		for i, want := range wantOrder {
			if resp.Feed[i].ID != want {
				t.Errorf("position %d: expected %v, got %v", i, want, resp.Feed[i].ID)
			}
		}
		for i := 1; i < len(resp.Feed); i++ {
			if resp.Feed[i].RelevanceScore > resp.Feed[i-1].RelevanceScore {
				t.Errorf("feed not sorted: %v before %v",
					resp.Feed[i-1].RelevanceScore, resp.Feed[i].RelevanceScore)
			}
		}
		if resp.Feed[0].Author.Plan != "premium" {
			t.Errorf("author snapshot missing: %+v", resp.Feed[0].Author)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sql expectations: %v", err)
		}
	})

	t.Run("Incompatible authors never reach the response", func(t *testing.T) {
		mock := newMockDB(t)
		now := time.Now()
		postID := uuid.New()

		expectPresenceTouch(mock)

		// Viewer only wants women; the single candidate author is a man.
		mock.ExpectQuery(`SELECT (.+) FROM profiles WHERE user_id = \$1`).
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows(feedProfileCols).
				AddRow(1, "Viewer", "", nil, "female", "female", 18, 99, []byte(`["travel"]`), "free", true))

		mock.ExpectQuery(`SELECT p.id, p.user_id, p.body, p.tags, p.created_at FROM posts`).
			WithArgs(1, feedCandidateLimit).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "body", "tags", "created_at"}).
				AddRow(postID.String(), 2, "body", []byte(`["travel"]`), now))

		mock.ExpectQuery(`SELECT (.+) FROM profiles WHERE user_id IN`).
			WithArgs(2).
			WillReturnRows(sqlmock.NewRows(feedProfileCols).
				AddRow(2, "Author", "", nil, "male", "any", 18, 99, []byte(`["travel"]`), "premium", true))

		w := httptest.NewRecorder()
		feedHandler(db, nil).ServeHTTP(w, authedRequest(t, http.MethodGet, "/feed", 1))

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var resp struct {
			Feed []ScoredPost `json:"feed"`
		}
		json.NewDecoder(w.Body).Decode(&resp)
		if len(resp.Feed) != 0 {
			t.Errorf("expected an empty feed, got %d entries", len(resp.Feed))
		}
	})

	t.Run("Incomplete profile gating", func(t *testing.T) {
		mock := newMockDB(t)

		expectPresenceTouch(mock)
		viewerProfileRow(mock, 1, `[]`, false)

		w := httptest.NewRecorder()
		feedHandler(db, nil).ServeHTTP(w, authedRequest(t, http.MethodGet, "/feed", 1))

		if w.Code != http.StatusForbidden {
			t.Fatalf("expected 403 for incomplete profile, got %d", w.Code)
		}
		var resp map[string]string
		json.NewDecoder(w.Body).Decode(&resp)
		if resp["error"] != "incomplete_profile" {
			t.Errorf("expected incomplete_profile error, got %v", resp)
		}
	})

	t.Run("Unauthenticated requests are rejected", func(t *testing.T) {
		newMockDB(t)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/feed", nil)
		feedHandler(db, nil).ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})
}

func TestFeedDetailedHandler(t *testing.T) {
	mock := newMockDB(t)
	now := time.Now()
	postID := uuid.New()

	expectPresenceTouch(mock)
	viewerProfileRow(mock, 1, `["travel"]`, true)

	mock.ExpectQuery(`SELECT p.id, p.user_id, p.body, p.tags, p.created_at FROM posts`).
		WithArgs(1, feedCandidateLimit).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "body", "tags", "created_at"}).
			AddRow(postID.String(), 2, "body", []byte(`["travel"]`), now))

	mock.ExpectQuery(`SELECT (.+) FROM profiles WHERE user_id IN`).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(feedProfileCols).
			AddRow(2, "Author", "", nil, "male", "any", 18, 99, []byte(`["travel"]`), "premium", true))

	w := httptest.NewRecorder()
	feedDetailedHandler(db, nil).ServeHTTP(w, authedRequest(t, http.MethodGet, "/feed/detailed", 1))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	var resp struct {
		Feed []struct {
			ScoredPost
			Components scoreComponents `json:"components"`
		} `json:"feed"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Feed) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(resp.Feed))
	}

	entry := resp.Feed[0]
	if entry.Components.TagMatches != 1 {
		t.Errorf("expected 1 tag match in the breakdown, got %v", entry.Components.TagMatches)
	}
	if entry.Components.AuthorBoost != premiumAuthorBonus {
		t.Errorf("expected author boost %v, got %v", premiumAuthorBonus, entry.Components.AuthorBoost)
	}
	if entry.Components.MutualInterest != mutualInterestBonus {
		t.Errorf("expected mutual bonus %v, got %v", mutualInterestBonus, entry.Components.MutualInterest)
	}
	if entry.RelevanceScore <= 0 {
		t.Errorf("expected a positive total, got %v", entry.RelevanceScore)
	}
}
