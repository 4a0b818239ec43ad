package chat

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"go-party/internal/lobby"
	myMiddleware "go-party/internal/middleware"
	"go-party/internal/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for now (Dev mode)
	},
}

type Handler struct {
	hub  *Hub
	repo *Repository
}

// NewHandler builds the HTTP handlers. repo may be nil when persistence is
// disabled.
func NewHandler(hub *Hub, repo *Repository) *Handler {
	return &Handler{hub: hub, repo: repo}
}

func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	memberID, name, ok := myMiddleware.MemberFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := &Client{
		Hub:      h.hub,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		MemberID: memberID,
		Name:     name,
	}
	if !h.hub.register(client) {
		conn.Close()
		return
	}

	h.hub.Send([]string{memberID}, protocol.NewEvent(protocol.TypeSession, protocol.Session{MemberID: memberID, Name: name}))
	if room, ok := h.hub.engine.RoomOf(memberID); ok {
		h.hub.Send([]string{memberID}, protocol.NewEvent(protocol.TypeRoomState, protocol.PublicRoom(room)))
	}

	go client.WritePump()
	go client.ReadPump()
}

// GetTranscript serves the archived lines of a room to its current members
// and to anyone who spoke in it or won it.
func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		http.Error(w, "transcripts are disabled", http.StatusNotFound)
		return
	}
	memberID, _, ok := myMiddleware.MemberFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	code := lobby.NormalizeCode(chi.URLParam(r, "code"))
	allowed, err := h.canRead(r.Context(), code, memberID)
	if err != nil {
		log.Printf("❌ DB Error: %v", err)
		http.Error(w, "failed to load transcript", http.StatusInternalServerError)
		return
	}
	if !allowed {
		http.Error(w, "not a member of this room", http.StatusForbidden)
		return
	}
	limit := defaultTranscriptLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	msgs, err := h.repo.GetRecentMessages(r.Context(), code, limit)
	if err != nil {
		log.Printf("❌ DB Error: %v", err)
		http.Error(w, "failed to load transcript", http.StatusInternalServerError)
		return
	}
	result, err := h.repo.GetResult(r.Context(), code)
	if err != nil {
		log.Printf("❌ DB Error: %v", err)
		http.Error(w, "failed to load transcript", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TranscriptResponse{Messages: msgs, Result: result})
}

func (h *Handler) canRead(ctx context.Context, code, memberID string) (bool, error) {
	if h.hub != nil && h.hub.engine != nil {
		if room, ok := h.hub.engine.RoomOf(memberID); ok && room.Code == code {
			return true, nil
		}
	}
	return h.repo.HasParticipant(ctx, code, memberID)
}

func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
