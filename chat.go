package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DirectMessage is one chat message between two matched users.
type DirectMessage struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"` // "message"
	From      int       `json:"from"`
	To        int       `json:"to,omitempty"`
	Body      string    `json:"body,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ServerEvent represents a server-sent websocket event
type ServerEvent struct {
	Type string `json:"type"` // "message" | "typing" | "info" | "error"
	From int    `json:"from,omitempty"`
	Data any    `json:"data,omitempty"`
}

// Client represents a websocket client connection
type Client struct {
	userID int
	conn   *websocket.Conn
	send   chan ServerEvent
	db     *sql.DB
}

// Hub manages websocket client connections
type Hub struct {
	clientsByUser map[int]map[*Client]bool
	mu            sync.RWMutex
}

func newHub() *Hub {
	return &Hub{
		clientsByUser: make(map[int]map[*Client]bool),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clientsByUser[c.userID] == nil {
		h.clientsByUser[c.userID] = make(map[*Client]bool)
	}
	h.clientsByUser[c.userID][c] = true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if peers, ok := h.clientsByUser[c.userID]; ok {
		delete(peers, c)
		if len(peers) == 0 {
			delete(h.clientsByUser, c.userID)
		}
	}
}

func (h *Hub) sendToUser(userID int, evt ServerEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if peers, ok := h.clientsByUser[userID]; ok {
		for c := range peers {
			select {
			case c.send <- evt:
			default:
				// Drop message if user's buffer is full
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The HTTP layer already requires a valid token; origins are left open
	// for the dev frontends.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// global hub
var chatHub = newHub()

// GET /ws/chat - websocket endpoint for direct messages between matches
func wsChatHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := wsUserID(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WS upgrade error for user %d: %v", userID, err)
			return
		}

		client := &Client{
			userID: userID,
			conn:   conn,
			send:   make(chan ServerEvent, 16),
			db:     db,
		}
		chatHub.register(client)
		client.send <- ServerEvent{Type: "info", Data: "connected"}

		go clientWriter(client)
		clientReader(client)
	}
}

// wsUserID authenticates the websocket handshake. Browsers cannot set
// headers on websocket requests, so a token query param is accepted as a
// fallback.
func wsUserID(r *http.Request) (int, bool) {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		if id, err := userIDFromToken(strings.TrimPrefix(auth, "Bearer ")); err == nil {
			return id, true
		}
	}
	if q := r.URL.Query().Get("token"); q != "" {
		if id, err := userIDFromToken(q); err == nil {
			return id, true
		}
	}
	return 0, false
}

func clientReader(c *Client) {
	defer func() {
		chatHub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1 << 20)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg DirectMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.send <- ServerEvent{Type: "error", Data: "invalid message format"}
			continue
		}

		switch msg.Type {
		case "message":
			saved, err := saveDirectMessage(c.db, c.userID, msg.To, msg.Body)
			if err != nil {
				c.send <- ServerEvent{Type: "error", Data: "cannot send message"}
				continue
			}

			out := ServerEvent{Type: "message", From: c.userID, Data: saved}
			chatHub.sendToUser(msg.To, out)
			chatHub.sendToUser(c.userID, out) // echo so every sender tab updates

		case "typing":
			chatHub.sendToUser(msg.To, ServerEvent{Type: "typing", From: c.userID})

		default:
			c.send <- ServerEvent{Type: "error", Data: "unknown message type"}
		}
	}
}

func clientWriter(c *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			// ping to keep the connection alive
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// saveDirectMessage persists one message after checking the pair is matched.
// Messaging outside a match is rejected, same as the profile view.
func saveDirectMessage(db *sql.DB, fromUserID, toUserID int, body string) (DirectMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" || toUserID == fromUserID {
		return DirectMessage{}, sql.ErrNoRows
	}

	matched, err := areMatched(db, fromUserID, toUserID)
	if err != nil {
		return DirectMessage{}, err
	}
	if !matched {
		return DirectMessage{}, sql.ErrNoRows
	}

	msg := DirectMessage{Type: "message", From: fromUserID, To: toUserID, Body: body}
	err = db.QueryRow(
		"INSERT INTO messages (from_user, to_user, body) VALUES ($1, $2, $3) RETURNING id, created_at",
		fromUserID, toUserID, body,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return DirectMessage{}, err
	}
	return msg, nil
}

// GET /chats/{peerID} - message history with one peer, oldest first
func chatHistoryHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 2 || parts[0] != "chats" {
			http.NotFound(w, r)
			return
		}
		peerID, err := strconv.Atoi(parts[1])
		if err != nil {
			http.NotFound(w, r)
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		matched, err := areMatched(db, userID, peerID)
		if err != nil || !matched {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		rows, err := db.Query(`
			SELECT id, from_user, to_user, body, created_at
			FROM messages
			WHERE (from_user = $1 AND to_user = $2) OR (from_user = $2 AND to_user = $1)
			ORDER BY created_at ASC, id ASC
			LIMIT 500
		`, userID, peerID)
		if err != nil {
			log.Println("Error loading chat history:", err)
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		defer rows.Close()

		messages := make([]DirectMessage, 0)
		for rows.Next() {
			m := DirectMessage{Type: "message"}
			if err := rows.Scan(&m.ID, &m.From, &m.To, &m.Body, &m.CreatedAt); err != nil {
				continue
			}
			messages = append(messages, m)
		}
		writeJSON(w, http.StatusOK, map[string][]DirectMessage{"messages": messages})
	})
}

// POST /chats/read?peer_id=123 - mark messages from peer as read
func chatsMarkReadHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		peerID, err := strconv.Atoi(r.URL.Query().Get("peer_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_peer_id")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		_, err = db.Exec(`
			UPDATE messages SET read_at = NOW()
			WHERE from_user = $1 AND to_user = $2 AND read_at IS NULL
		`, peerID, userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"read": true})
	})
}
