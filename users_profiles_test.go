package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestMeProfileHandler(t *testing.T) {
	t.Run("GET returns the stored profile with derived age", func(t *testing.T) {
		mock := newMockDB(t)
		expectPresenceTouch(mock)

		birthdate := time.Now().AddDate(-28, -1, 0)
		mock.ExpectQuery(`SELECT (.+) FROM profiles WHERE user_id = \$1`).
			WithArgs(5).
			WillReturnRows(sqlmock.NewRows(feedProfileCols).
				AddRow(5, "Sam", "hi there", birthdate, "male", "female", 20, 40,
					[]byte(`["hiking","coffee"]`), "premium", true))

		w := httptest.NewRecorder()
		meProfileHandler(db).ServeHTTP(w, authedRequest(t, http.MethodGet, "/me/profile", 5))

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
		}
		var resp map[string]interface{}
		json.NewDecoder(w.Body).Decode(&resp)

		if resp["display_name"] != "Sam" || resp["plan"] != "premium" {
			t.Errorf("unexpected profile payload: %v", resp)
		}
		if age, _ := resp["age"].(float64); int(age) != 28 {
			t.Errorf("expected derived age 28, got %v", resp["age"])
		}
		if interests, _ := resp["interests"].([]interface{}); len(interests) != 2 {
			t.Errorf("expected 2 interests, got %v", resp["interests"])
		}
	})

	t.Run("PUT with valid data marks the profile complete", func(t *testing.T) {
		mock := newMockDB(t)
		expectPresenceTouch(mock)

		mock.ExpectExec("UPDATE profiles SET display_name").
			WillReturnResult(sqlmock.NewResult(0, 1))

		body := []byte(`{
			"display_name": "Sam",
			"about_me": "hi",
			"birthdate": "1996-05-20",
			"gender": "male",
			"looking_for_gender": "female",
			"looking_for_age_min": 20,
			"looking_for_age_max": 40,
			"interests": ["hiking"]
		}`)
		req := authedRequestBody(t, http.MethodPut, "/me/profile", 5, body)

		w := httptest.NewRecorder()
		meProfileHandler(db).ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
		}
		var resp map[string]interface{}
		json.NewDecoder(w.Body).Decode(&resp)
		if complete, _ := resp["is_complete"].(bool); !complete {
			t.Errorf("expected is_complete true, got %v", resp)
		}
	})

	t.Run("PUT rejects a malformed birthdate", func(t *testing.T) {
		mock := newMockDB(t)
		expectPresenceTouch(mock)

		body := []byte(`{"display_name":"Sam","gender":"male","birthdate":"20-05-1996","interests":["x"]}`)
		req := authedRequestBody(t, http.MethodPut, "/me/profile", 5, body)

		w := httptest.NewRecorder()
		meProfileHandler(db).ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
		var resp map[string]string
		json.NewDecoder(w.Body).Decode(&resp)
		if resp["error"] != "invalid_birthdate" {
			t.Errorf("expected invalid_birthdate, got %v", resp)
		}
	})

	t.Run("PUT rejects an inverted age range", func(t *testing.T) {
		mock := newMockDB(t)
		expectPresenceTouch(mock)

		body := []byte(`{"display_name":"Sam","gender":"male","looking_for_age_min":40,"looking_for_age_max":20,"interests":["x"]}`)
		req := authedRequestBody(t, http.MethodPut, "/me/profile", 5, body)

		w := httptest.NewRecorder()
		meProfileHandler(db).ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("PUT rejects a future birthdate", func(t *testing.T) {
		mock := newMockDB(t)
		expectPresenceTouch(mock)

		future := time.Now().AddDate(1, 0, 0).Format(birthdateLayout)
		body := []byte(`{"display_name":"Sam","gender":"male","birthdate":"` + future + `","interests":["x"]}`)
		req := authedRequestBody(t, http.MethodPut, "/me/profile", 5, body)

		w := httptest.NewRecorder()
		meProfileHandler(db).ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})
}

func TestUserSummaryHandler(t *testing.T) {
	mock := newMockDB(t)
	expectPresenceTouch(mock)

	mock.ExpectQuery("FROM users u LEFT JOIN profiles p").
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"display_name", "plan"}).AddRow("Niko", "free"))
	mock.ExpectQuery("SELECT COALESCE\\(last_online").
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"online"}).AddRow(true))

	w := httptest.NewRecorder()
	usersDispatcher(db).ServeHTTP(w, authedRequest(t, http.MethodGet, "/users/9", 5))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var resp map[string]interface{}
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["display_name"] != "Niko" {
		t.Errorf("unexpected summary: %v", resp)
	}
	if online, _ := resp["is_online"].(bool); !online {
		t.Errorf("expected is_online true, got %v", resp)
	}
}

func TestUserProfileHandlerRequiresMatch(t *testing.T) {
	mock := newMockDB(t)
	expectPresenceTouch(mock)

	// Not mutually liked: the full profile stays hidden.
	mock.ExpectQuery("SELECT EXISTS \\(SELECT 1 FROM profile_likes").
		WithArgs(5, 9).
		WillReturnRows(sqlmock.NewRows([]string{"matched"}).AddRow(false))

	w := httptest.NewRecorder()
	usersDispatcher(db).ServeHTTP(w, authedRequest(t, http.MethodGet, "/users/9/profile", 5))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unmatched users, got %d", w.Code)
	}
}
