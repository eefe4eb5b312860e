package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

// Fixed JWT secret for the whole test binary.
func init() {
	jwtSecret = []byte("test-secret-key-for-testing")
}

// newMockDB swaps the package-global db for a sqlmock instance (the
// authenticate middleware reads the global) and restores it on cleanup.
func newMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}

	prev := db
	db = mockDB
	t.Cleanup(func() {
		db = prev
		mockDB.Close()
	})
	return mock
}

// authedRequest builds a request carrying a valid bearer token for userID.
func authedRequest(t *testing.T, method, target string, userID int) *http.Request {
	return authedRequestBody(t, method, target, userID, nil)
}

func authedRequestBody(t *testing.T, method, target string, userID int, body []byte) *http.Request {
	t.Helper()

	token, err := issueToken(userID)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewBuffer(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// expectPresenceTouch registers the last_online update the authenticate
// middleware performs on every request.
func expectPresenceTouch(mock sqlmock.Sqlmock) {
	mock.ExpectExec("UPDATE users SET last_online").
		WillReturnResult(sqlmock.NewResult(0, 1))
}
