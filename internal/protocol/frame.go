// Package protocol is the JSON frame format spoken over the websocket.
//
// Inbound frames are decoded once at the boundary into a closed set of typed
// messages; nothing past Decode looks at raw JSON.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxTextRunes bounds a chat line or proposal.
const MaxTextRunes = 500

const (
	TypeCreateRoom  = "create-room"
	TypeJoinRoom    = "join-room"
	TypeLeaveRoom   = "leave-room"
	TypeStartGame   = "start-game"
	TypeSendMessage = "send-message"
	TypePropose     = "propose"
)

var (
	ErrUnknownType    = errors.New("unknown message type")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Frame is the envelope of every message in either direction.
type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Inbound is implemented by every client message.
type Inbound interface {
	inbound()
}

type CreateRoom struct{}

type JoinRoom struct {
	Code string `json:"code"`
}

type LeaveRoom struct{}

type StartGame struct{}

type SendMessage struct {
	RecipientID string `json:"recipient_id"`
	Text        string `json:"text"`
}

type Propose struct {
	RecipientID string `json:"recipient_id"`
	Text        string `json:"text"`
}

func (CreateRoom) inbound()  {}
func (JoinRoom) inbound()    {}
func (LeaveRoom) inbound()   {}
func (StartGame) inbound()   {}
func (SendMessage) inbound() {}
func (Propose) inbound()     {}

// Request is a decoded inbound frame.
type Request struct {
	ID  string
	Msg Inbound
}

// Decode parses and validates one inbound frame. The request id is returned
// even when the payload is rejected so the error can be correlated.
func Decode(data []byte) (Request, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	req := Request{ID: f.RequestID}

	var err error
	switch f.Type {
	case TypeCreateRoom:
		req.Msg = CreateRoom{}
	case TypeLeaveRoom:
		req.Msg = LeaveRoom{}
	case TypeStartGame:
		req.Msg = StartGame{}
	case TypeJoinRoom:
		var m JoinRoom
		if err = unmarshalPayload(f.Payload, &m); err == nil {
			m.Code = strings.TrimSpace(m.Code)
			if m.Code == "" {
				err = fmt.Errorf("%w: code is required", ErrInvalidPayload)
			}
		}
		req.Msg = m
	case TypeSendMessage:
		var m SendMessage
		if err = unmarshalPayload(f.Payload, &m); err == nil {
			m.Text, err = checkLine(m.RecipientID, m.Text)
		}
		req.Msg = m
	case TypePropose:
		var m Propose
		if err = unmarshalPayload(f.Payload, &m); err == nil {
			m.Text, err = checkLine(m.RecipientID, m.Text)
		}
		req.Msg = m
	default:
		return req, fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
	}
	if err != nil {
		req.Msg = nil
	}
	return req, err
}

func unmarshalPayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: payload is required", ErrInvalidPayload)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func checkLine(recipientID, text string) (string, error) {
	if strings.TrimSpace(recipientID) == "" {
		return "", fmt.Errorf("%w: recipient_id is required", ErrInvalidPayload)
	}
	text, err := NormalizeText(text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return text, nil
}

// NormalizeText trims text and checks it is 1..MaxTextRunes runes long.
func NormalizeText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("text is required")
	}
	if utf8.RuneCountInString(text) > MaxTextRunes {
		return "", fmt.Errorf("text exceeds %d characters", MaxTextRunes)
	}
	return text, nil
}
