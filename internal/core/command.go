package core

import "encoding/json"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandStartCall initiates a call in a chat or with explicit invitees.
	CommandStartCall CommandKind = iota
	// CommandJoinCall accepts an incoming call.
	CommandJoinCall
	// CommandEndCall hangs up the caller's leg, or the whole call for the initiator.
	CommandEndCall
	// CommandRejectCall declines an incoming call.
	CommandRejectCall
	// CommandRelaySignal forwards a WebRTC handshake payload to a target user.
	CommandRelaySignal

	// commandRegister and commandDisconnect bracket a client's lifetime on
	// the hub queue; commandRingTimeout is enqueued by a fired watchdog.
	// Funneling them through the same queue keeps every mutation of
	// coordinator state on one goroutine.
	commandRegister
	commandDisconnect
	commandRingTimeout
)

// SignalKind distinguishes the three WebRTC handshake payloads.
type SignalKind string

const (
	SignalOffer        SignalKind = "offer"
	SignalAnswer       SignalKind = "answer"
	SignalICECandidate SignalKind = "ice_candidate"
)

// Command represents an action requested by a client (or, for the internal
// kinds, by the hub itself).
type Command struct {
	Kind CommandKind

	// Start fields.
	ChatID         *int64
	ParticipantIDs []int64
	Media          string

	// Call identity for join/end/reject/relay/timeout.
	CallID string

	// Relay fields.
	Signal       SignalKind
	TargetUserID int64
	Payload      json.RawMessage
}
