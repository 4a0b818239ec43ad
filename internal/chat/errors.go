package chat

import (
	"errors"
	"log"

	"go-party/internal/cooldown"
	"go-party/internal/game"
	"go-party/internal/lobby"
	"go-party/internal/protocol"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{lobby.ErrNotInRoom, protocol.CodeNotInRoom},
	{lobby.ErrAlreadyInRoom, protocol.CodeAlreadyInRoom},
	{lobby.ErrRoomNotFound, protocol.CodeRoomNotFound},
	{lobby.ErrRoomFull, protocol.CodeRoomFull},
	{lobby.ErrNameTaken, protocol.CodeNameTaken},
	{lobby.ErrRoomNotWaiting, protocol.CodeRoomNotWaiting},
	{lobby.ErrNotHost, protocol.CodeNotHost},
	{lobby.ErrNotEnoughMembers, protocol.CodeNotEnoughPlayers},
	{lobby.ErrRoomNotActive, protocol.CodeRoomNotActive},
	{lobby.ErrInvalidName, protocol.CodeInvalidArgument},
	{game.ErrUnknownRecipient, protocol.CodeUnknownRecipient},
	{game.ErrInsufficientReputation, protocol.CodeInsufficientReputation},
	{game.ErrInvalidText, protocol.CodeInvalidArgument},
	{protocol.ErrInvalidPayload, protocol.CodeInvalidArgument},
	{protocol.ErrUnknownType, protocol.CodeInvalidArgument},
}

// errorEvent maps an engine or decode error to the frame sent back to the
// member that caused it.
func errorEvent(requestID string, err error) protocol.Event {
	var rejected *cooldown.RejectedError
	if errors.As(err, &rejected) {
		return protocol.ErrorEvent(requestID, protocol.CodeCooldown, rejected.Error(), rejected.Remaining)
	}
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return protocol.ErrorEvent(requestID, e.code, err.Error(), 0)
		}
	}
	log.Printf("❌ Unmapped error: %v", err)
	return protocol.ErrorEvent(requestID, protocol.CodeUnavailable, "something went wrong, please try again", 0)
}
