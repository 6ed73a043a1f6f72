package core

import (
	"encoding/json"
	"time"

	"github.com/callwire/callwire-server/internal/service/calls"
)

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventCallStarted confirms to the initiator that the call is ringing.
	EventCallStarted EventKind = iota
	// EventCallIncoming notifies invitees of an incoming call.
	EventCallIncoming
	// EventCallJoined delivers the updated session after someone joins.
	EventCallJoined
	// EventCallAccepted notifies the initiator that the call was picked up.
	EventCallAccepted
	// EventParticipantJoined notifies the call group that someone joined.
	EventParticipantJoined
	// EventParticipantLeft notifies the call group that someone hung up
	// while the call continues.
	EventParticipantLeft
	// EventCallRejected notifies the initiator that an invitee declined.
	EventCallRejected
	// EventCallEnded notifies everyone that the call reached a terminal state.
	EventCallEnded
	// EventCallSignal carries a relayed WebRTC handshake payload.
	EventCallSignal
	// EventError notifies the acting client about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind       EventKind
	Call       *CallInfo
	FromUserID int64
	Reason     string
	Signal     *Signal
	Error      *CoreError
}

// Signal is a relayed WebRTC handshake payload. The payload is opaque to the
// server; it is forwarded byte for byte.
type Signal struct {
	Kind    SignalKind
	CallID  string
	Payload json.RawMessage
}

// CallInfo is the session snapshot included in call events.
type CallInfo struct {
	ID              string
	Type            string
	Media           string
	ChatID          *int64
	InitiatorUserID int64
	Status          string
	Participants    []ParticipantInfo
	CreatedAt       time.Time
	EndedAt         *time.Time
}

// ParticipantInfo is one participant's leg within a CallInfo snapshot.
type ParticipantInfo struct {
	UserID   int64
	Status   string
	JoinedAt *time.Time
	LeftAt   *time.Time
}

// callInfoFromSnapshot converts a durable snapshot into the event shape.
func callInfoFromSnapshot(snap *calls.Snapshot) *CallInfo {
	info := &CallInfo{
		ID:              snap.Call.ID,
		Type:            string(snap.Call.Type),
		Media:           string(snap.Call.Media),
		ChatID:          snap.Call.ChatID,
		InitiatorUserID: snap.Call.InitiatorUserID,
		Status:          string(snap.Call.Status),
		CreatedAt:       snap.Call.CreatedAt,
		EndedAt:         snap.Call.EndedAt,
	}
	for _, p := range snap.Participants {
		info.Participants = append(info.Participants, ParticipantInfo{
			UserID:   p.UserID,
			Status:   string(p.Status),
			JoinedAt: p.JoinedAt,
			LeftAt:   p.LeftAt,
		})
	}
	return info
}
