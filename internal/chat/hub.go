package chat

import (
	"context"
	"log"
	"time"

	"go-party/internal/lobby"
	"go-party/internal/protocol"
)

const publishTimeout = 2 * time.Second

// Engine is what the hub needs from the game.
type Engine interface {
	CreateRoom(memberID, name string) (lobby.Room, error)
	JoinRoom(memberID, name, code string) (lobby.Room, error)
	LeaveRoom(memberID string) error
	StartGame(memberID string) (lobby.Room, error)
	SendMessage(memberID, recipientID, text string) error
	Propose(memberID, recipientID, text string) error
	Disconnect(memberID string)
	RoomOf(memberID string) (lobby.Room, bool)
}

// Hub owns the connected clients, keyed by member id. Only Run touches
// the map; everything else goes through channels.
type Hub struct {
	clients    map[string]*Client
	deliver    chan Envelope // From the relay -> clients
	Register   chan *Client
	Unregister chan *Client
	done       chan struct{}
	relay      Relay
	engine     Engine
}

func NewHub(relay Relay) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		deliver:    make(chan Envelope, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		relay:      relay,
	}
}

// Attach wires the engine. The engine needs the hub as its broadcaster, so
// this is done after both exist and before Run.
func (h *Hub) Attach(engine Engine) {
	h.engine = engine
}

// Send publishes ev for memberIDs. It satisfies game.Broadcaster.
func (h *Hub) Send(memberIDs []string, ev protocol.Event) {
	if len(memberIDs) == 0 {
		return
	}
	frame, err := protocol.Encode(ev)
	if err != nil {
		log.Printf("❌ Encode %s: %v", ev.Type, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := h.relay.Publish(ctx, Envelope{To: memberIDs, Frame: frame}); err != nil {
		log.Printf("❌ Relay publish %s: %v", ev.Type, err)
	}
}

// Run serves registrations and deliveries until ctx is done or the relay
// subscription fails.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	subErr := make(chan error, 1)
	go func() {
		subErr <- h.relay.Subscribe(ctx, func(env Envelope) {
			select {
			case h.deliver <- env:
			case <-ctx.Done():
			}
		})
	}()

	for {
		select {
		case client := <-h.Register:
			if old, ok := h.clients[client.MemberID]; ok {
				// reconnect: the old socket is dropped, membership is kept
				close(old.Send)
			}
			h.clients[client.MemberID] = client

		case client := <-h.Unregister:
			if cur, ok := h.clients[client.MemberID]; ok && cur == client {
				delete(h.clients, client.MemberID)
				close(client.Send)
				go h.engine.Disconnect(client.MemberID)
			}

		case env := <-h.deliver:
			for _, id := range env.To {
				client, ok := h.clients[id]
				if !ok {
					continue
				}
				select {
				case client.Send <- env.Frame:
				default:
					log.Printf("❌ Client %s is too slow, dropping", id)
					close(client.Send)
					delete(h.clients, id)
					go h.engine.Disconnect(id)
				}
			}

		case err := <-subErr:
			if err != nil {
				return err
			}
			subErr = nil

		case <-ctx.Done():
			for id, client := range h.clients {
				close(client.Send)
				delete(h.clients, id)
			}
			return nil
		}
	}
}

func (h *Hub) register(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// handle runs one inbound frame on the reading client's goroutine.
func (h *Hub) handle(c *Client, data []byte) {
	req, err := protocol.Decode(data)
	if err == nil {
		switch m := req.Msg.(type) {
		case protocol.CreateRoom:
			_, err = h.engine.CreateRoom(c.MemberID, c.Name)
		case protocol.JoinRoom:
			_, err = h.engine.JoinRoom(c.MemberID, c.Name, m.Code)
		case protocol.LeaveRoom:
			err = h.engine.LeaveRoom(c.MemberID)
		case protocol.StartGame:
			_, err = h.engine.StartGame(c.MemberID)
		case protocol.SendMessage:
			err = h.engine.SendMessage(c.MemberID, m.RecipientID, m.Text)
		case protocol.Propose:
			err = h.engine.Propose(c.MemberID, m.RecipientID, m.Text)
		}
	}
	if err != nil {
		h.Send([]string{c.MemberID}, errorEvent(req.ID, err))
	}
}
