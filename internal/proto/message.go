package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeStartCall  = "start_call"
	InboundTypeJoinCall   = "join_call"
	InboundTypeEndCall    = "end_call"
	InboundTypeRejectCall = "reject_call"

	// WebRTC handshake messages, relayed verbatim to the target user.
	InboundTypeOffer        = "webrtc_offer"
	InboundTypeAnswer       = "webrtc_answer"
	InboundTypeICECandidate = "webrtc_ice_candidate"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// Event names carried in the outbound envelope.
const (
	EventCallStarted       = "call_started"
	EventIncomingCall      = "incoming_call"
	EventCallJoined        = "call_joined"
	EventCallAccepted      = "call_accepted"
	EventParticipantJoined = "participant_joined"
	EventParticipantLeft   = "participant_left"
	EventCallRejected      = "call_rejected"
	EventCallEnded         = "call_ended"
)

// StartCallData starts a call in a chat, or ad hoc with explicit invitees.
type StartCallData struct {
	ChatID         *int64  `json:"chat_id,omitempty"`
	ParticipantIDs []int64 `json:"participant_ids,omitempty"`
	Media          string  `json:"media,omitempty"` // "audio" (default) or "video"
}

// CallRefData addresses an existing call (join, end, reject).
type CallRefData struct {
	CallID string `json:"call_id"`
}

// SignalData is a WebRTC handshake payload addressed to one user. The
// payload is opaque to the server.
type SignalData struct {
	CallID       string          `json:"call_id"`
	TargetUserID int64           `json:"target_user_id"`
	Payload      json.RawMessage `json:"payload"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// CallView is the call snapshot included in call events.
type CallView struct {
	ID              string            `json:"id"`
	Type            string            `json:"type"`
	Media           string            `json:"media"`
	ChatID          *int64            `json:"chat_id,omitempty"`
	InitiatorUserID int64             `json:"initiator_user_id"`
	Status          string            `json:"status"`
	Participants    []ParticipantView `json:"participants"`
	CreatedAt       time.Time         `json:"created_at"`
	EndedAt         *time.Time        `json:"ended_at,omitempty"`
}

// ParticipantView is one participant's leg within a CallView.
type ParticipantView struct {
	UserID   int64      `json:"user_id"`
	Status   string     `json:"status"`
	JoinedAt *time.Time `json:"joined_at,omitempty"`
	LeftAt   *time.Time `json:"left_at,omitempty"`
}

// CallEventData is the payload of every call lifecycle event.
type CallEventData struct {
	Call       *CallView `json:"call"`
	FromUserID int64     `json:"from_user_id,omitempty"`
	Reason     string    `json:"reason,omitempty"` // for call_ended: ended, rejected, missed
	Ringing    bool      `json:"ringing"`
}

// SignalEventData is the payload of a relayed handshake message. The event
// name mirrors the inbound type (webrtc_offer, webrtc_answer,
// webrtc_ice_candidate).
type SignalEventData struct {
	CallID     string          `json:"call_id"`
	FromUserID int64           `json:"from_user_id"`
	Payload    json.RawMessage `json:"payload"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
