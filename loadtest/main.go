package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	BaseURL     = "http://localhost:8080"
	WSURL       = "ws://localhost:8080/ws"
	RoomCount   = 50 // ⚠️ Every room costs one generator call per recipient per window.
	BotsPerRoom = 4
	MsgCount    = 10 // Messages per bot
	// Just over the default cooldown.
	MsgInterval = 5*time.Second + 250*time.Millisecond
)

type SessionResponse struct {
	Token string `json:"access_token"`
	ID    string `json:"id"`
}

type frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

var (
	sent    atomic.Int64
	replies atomic.Int64
	errs    atomic.Int64
)

func main() {
	log.Printf("🔥 STARTING LOAD TEST: %d rooms, %d bots each, %d messages per bot...", RoomCount, BotsPerRoom, MsgCount)
	start := time.Now()
	var wg sync.WaitGroup

	for i := 0; i < RoomCount; i++ {
		wg.Add(1)
		go func(roomID int) {
			defer wg.Done()
			runRoom(roomID)
		}(i)
	}

	wg.Wait()
	log.Printf("✅ LOAD TEST COMPLETE in %s: %d sent, %d replies seen, %d errors",
		time.Since(start).Round(time.Second), sent.Load(), replies.Load(), errs.Load())
}

// runRoom has bot 0 host a room, the others join, and everyone chat.
func runRoom(roomID int) {
	bots := make([]*websocket.Conn, 0, BotsPerRoom)
	defer func() {
		for _, c := range bots {
			c.Close()
		}
	}()

	for b := 0; b < BotsPerRoom; b++ {
		conn := connect(fmt.Sprintf("bot_%d_%d", roomID, b))
		if conn == nil {
			return
		}
		bots = append(bots, conn)
	}

	host := bots[0]
	write(host, "create-room", nil)
	var room struct {
		Code string `json:"code"`
	}
	if !await(host, "room-state", &room) {
		return
	}

	for _, c := range bots[1:] {
		write(c, "join-room", map[string]string{"code": room.Code})
		if !await(c, "room-state", nil) {
			return
		}
	}

	write(host, "start-game", nil)
	var started struct {
		Recipients []struct {
			ID string `json:"id"`
		} `json:"recipients"`
	}
	if !await(host, "game-started", &started) || len(started.Recipients) == 0 {
		return
	}
	recipients := make([]string, len(started.Recipients))
	for i, r := range started.Recipients {
		recipients[i] = r.ID
	}
	log.Printf("✅ Room %s started with %d bots", room.Code, len(bots))

	var chatWg sync.WaitGroup
	for i, c := range bots {
		chatWg.Add(1)
		go func(name string, conn *websocket.Conn) {
			defer chatWg.Done()
			chat(name, conn, recipients)
		}(fmt.Sprintf("bot_%d_%d", roomID, i), c)
	}
	chatWg.Wait()
}

func connect(username string) *websocket.Conn {
	resp, err := postJSON("/api/session", map[string]string{"username": username})
	if err != nil {
		log.Printf("❌ Session Failed [%s]: %v", username, err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		log.Printf("❌ Session Failed [%s]: status %d", username, resp.StatusCode)
		return nil
	}

	var data SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		log.Printf("❌ Session Failed [%s]: %v", username, err)
		return nil
	}

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s?token=%s", WSURL, data.Token), nil)
	if err != nil {
		log.Printf("❌ WS Connect Fail [%s]: %v", username, err)
		return nil
	}
	return conn
}

// chat sends MsgCount lines while a reader counts replies and errors.
func chat(name string, conn *websocket.Conn, recipients []string) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			switch f.Type {
			case "reply":
				replies.Add(1)
			case "error", "generation-failed":
				errs.Add(1)
			}
		}
	}()

	for i := 0; i < MsgCount; i++ {
		to := recipients[rand.IntN(len(recipients))]
		err := write(conn, "send-message", map[string]string{
			"recipient_id": to,
			"text":         fmt.Sprintf("LoadTest Msg %d from %s", i, name),
		})
		if err != nil {
			log.Printf("❌ Send Fail [%s]: %v", name, err)
			break
		}
		sent.Add(1)
		time.Sleep(MsgInterval)
	}
	// give the last window time to flush
	time.Sleep(MsgInterval)
	conn.Close()
	<-done
	log.Printf("✅ %s finished sending %d msgs", name, MsgCount)
}

func write(conn *websocket.Conn, typ string, payload any) error {
	f := frame{Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		f.Payload = raw
	}
	return conn.WriteJSON(f)
}

// await reads until a frame of typ arrives and decodes its payload into v.
func await(conn *websocket.Conn, typ string, v any) bool {
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer conn.SetReadDeadline(time.Time{})
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			log.Printf("❌ Waiting for %s: %v", typ, err)
			return false
		}
		if f.Type == "error" {
			log.Printf("❌ Waiting for %s: server error %s", typ, f.Payload)
			return false
		}
		if f.Type != typ {
			continue
		}
		if v != nil {
			if err := json.Unmarshal(f.Payload, v); err != nil {
				log.Printf("❌ Decode %s: %v", typ, err)
				return false
			}
		}
		return true
	}
}

func postJSON(endpoint string, data interface{}) (*http.Response, error) {
	jsonData, _ := json.Marshal(data)
	return http.Post(BaseURL+endpoint, "application/json", bytes.NewBuffer(jsonData))
}
