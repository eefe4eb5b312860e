package main

import (
	"log"
	"net/http"
	"os"
)

// JWT secret from environment variable or fallback
func getJWTSecret() []byte {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return []byte(secret)
	}
	return []byte("your_secret_key_please_change_in_production")
}

var jwtSecret = getJWTSecret()

func main() {
	loadEnv()
	// .env may have just provided JWT_SECRET; re-read it.
	jwtSecret = getJWTSecret()

	initDB()

	weights, err := scoringWeightsFromEnv()
	if err != nil {
		log.Fatal("Invalid scoring weight configuration: ", err)
	}
	if weights != nil {
		log.Printf("Using scoring weight overrides: %+v", *weights)
	}

	mux := http.NewServeMux()

	// Core auth & user endpoints
	mux.Handle("/register", registerHandler(db))
	mux.Handle("/login", loginHandler(db))
	mux.Handle("/me", meHandler(db))
	mux.Handle("/me/profile", meProfileHandler(db))

	// Ping: mark this user as online "now"
	mux.Handle("/me/ping", mePingHandler(db)) // POST

	// Ranked feed (the whole point)
	mux.Handle("/feed", feedHandler(db, weights))
	mux.Handle("/feed/detailed", feedDetailedHandler(db, weights))

	// Posts
	mux.Handle("/posts", createPostHandler(db)) // POST
	mux.Handle("/posts/", postsDispatcher(db))  // GET/DELETE /posts/{id}, like, hide

	// Profiles, likes & matches
	mux.Handle("/users/", usersDispatcher(db)) // summary, profile, like
	mux.Handle("/matches", matchesHandler(db)) // GET

	// WebSocket chat endpoint
	mux.Handle("/ws/chat", wsChatHandler(db))

	// Message history & read receipts
	mux.Handle("/chats/", chatHistoryHandler(db))    // GET /chats/{peerID}
	mux.Handle("/chats/read", chatsMarkReadHandler(db)) // POST /chats/read?peer_id=123

	// Health check endpoint for Docker
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Println("Starting Heartbeam backend on port " + port + "...")
	http.ListenAndServe(":"+port, withCORS(mux))
}
