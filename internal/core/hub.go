package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/callwire/callwire-server/internal/service/calls"
	"github.com/callwire/callwire-server/internal/store"
)

// activeCall is the in-memory fast path for one live call. It mirrors the
// durable status so timeout and join decisions don't need a store round trip,
// and it is dropped as soon as the call reaches a terminal state.
type activeCall struct {
	callID       string
	initiatorID  int64
	participants map[int64]struct{}
	status       store.CallStatus
}

type queuedCommand struct {
	client *Client
	cmd    *Command
}

// Hub coordinates call lifecycles across all connected clients. All of its
// state (connection registry, active-call entries, watchdog handles) is owned
// by the single goroutine running Run, which drains one queue fed by client
// reads, watchdog firings, and disconnects. Events for one call are therefore
// handled strictly in order.
type Hub struct {
	calls       CallService
	registry    *Registry
	scheduler   Scheduler
	ringTimeout time.Duration
	log         *zerolog.Logger

	queue     chan queuedCommand
	active    map[string]*activeCall
	watchdogs map[string]TimerHandle
}

// NewHub creates a hub. ringTimeout bounds how long an unanswered call rings.
func NewHub(callSvc CallService, scheduler Scheduler, ringTimeout time.Duration, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		calls:       callSvc,
		registry:    NewRegistry(),
		scheduler:   scheduler,
		ringTimeout: ringTimeout,
		log:         logger,
		queue:       make(chan queuedCommand, 64),
		active:      make(map[string]*activeCall),
		watchdogs:   make(map[string]TimerHandle),
	}
}

// RegisterClient attaches a client to the hub. The register marker is
// enqueued before returning, so anything enqueued afterwards sees the client
// as connected; a pump goroutine then forwards the client's commands onto
// the queue and closes the lifetime with a disconnect marker.
func (h *Hub) RegisterClient(c *Client) {
	h.queue <- queuedCommand{client: c, cmd: &Command{Kind: commandRegister}}
	go func() {
		for cmd := range c.Commands {
			h.queue <- queuedCommand{client: c, cmd: cmd}
		}
		h.queue <- queuedCommand{client: c, cmd: &Command{Kind: commandDisconnect}}
	}()
}

// UnregisterClient detaches a client. Safe to call once the transport has
// stopped writing to the client's command channel.
func (h *Hub) UnregisterClient(c *Client) {
	close(c.Commands)
}

// Run processes the hub queue until the context is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case q := <-h.queue:
			h.dispatch(ctx, q.client, q.cmd)
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, client *Client, cmd *Command) {
	switch cmd.Kind {
	case commandRegister:
		h.registry.Register(client)
		h.log.Debug().Str("client_id", client.ID).Int64("user_id", client.UserID).Msg("client registered")
	case commandDisconnect:
		h.handleDisconnect(ctx, client)
	case commandRingTimeout:
		h.handleRingTimeout(ctx, cmd.CallID)
	case CommandStartCall:
		h.handleStartCall(ctx, client, cmd)
	case CommandJoinCall:
		h.handleJoinCall(ctx, client, cmd)
	case CommandEndCall:
		h.handleEndCall(ctx, client, cmd.CallID)
	case CommandRejectCall:
		h.handleRejectCall(ctx, client, cmd.CallID)
	case CommandRelaySignal:
		h.handleRelaySignal(client, cmd)
	default:
		h.sendError(client, coreError(ErrCodeBadRequest, "unknown command"))
	}
}

// ==== call lifecycle ====

func (h *Hub) handleStartCall(ctx context.Context, client *Client, cmd *Command) {
	if cmd.ChatID == nil && len(cmd.ParticipantIDs) == 0 {
		h.sendError(client, coreError(ErrCodeInvalid, "chat_id or participant_ids is required"))
		return
	}

	snap, err := h.calls.Start(ctx, calls.StartInput{
		InitiatorID:    client.UserID,
		ChatID:         cmd.ChatID,
		ParticipantIDs: cmd.ParticipantIDs,
		Media:          store.CallMedia(cmd.Media),
	})
	if err != nil {
		h.sendError(client, startError(err))
		return
	}

	callID := snap.Call.ID
	entry := &activeCall{
		callID:       callID,
		initiatorID:  client.UserID,
		participants: make(map[int64]struct{}, len(snap.Participants)),
		status:       snap.Call.Status,
	}
	for _, p := range snap.Participants {
		entry.participants[p.UserID] = struct{}{}
	}
	h.active[callID] = entry

	h.registry.AddToGroup(callGroup(callID), client)

	info := callInfoFromSnapshot(snap)
	client.send(&Event{Kind: EventCallStarted, Call: info})
	for _, p := range snap.Participants {
		if p.UserID == client.UserID {
			continue
		}
		h.registry.SendToUser(p.UserID, &Event{Kind: EventCallIncoming, Call: info, FromUserID: client.UserID})
	}

	h.watchdogs[callID] = h.scheduler.AfterFunc(h.ringTimeout, func() {
		h.queue <- queuedCommand{cmd: &Command{Kind: commandRingTimeout, CallID: callID}}
	})

	h.log.Info().Str("call_id", callID).Int64("initiator", client.UserID).
		Str("media", string(snap.Call.Media)).Msg("call started")
}

func (h *Hub) handleJoinCall(ctx context.Context, client *Client, cmd *Command) {
	snap, err := h.calls.Join(ctx, cmd.CallID, client.UserID)
	if err != nil {
		h.sendError(client, joinError(err))
		return
	}

	// The transition out of ringing must disarm the watchdog in the same
	// task; a firing that already slipped onto the queue is caught by the
	// status re-check in handleRingTimeout.
	h.cancelWatchdog(cmd.CallID)

	if entry, ok := h.active[cmd.CallID]; ok {
		entry.status = snap.Call.Status
		entry.participants[client.UserID] = struct{}{}
	}

	h.registry.AddToGroup(callGroup(cmd.CallID), client)

	info := callInfoFromSnapshot(snap)
	h.registry.SendToGroup(callGroup(cmd.CallID), &Event{Kind: EventParticipantJoined, Call: info, FromUserID: client.UserID})
	h.registry.SendToUser(snap.Call.InitiatorUserID, &Event{Kind: EventCallAccepted, Call: info, FromUserID: client.UserID})
	// Deliver the updated session to every participant's connections, not
	// just the group, so invitees who never joined the group still see it.
	for _, p := range snap.Participants {
		h.registry.SendToUser(p.UserID, &Event{Kind: EventCallJoined, Call: info, FromUserID: client.UserID})
	}

	h.log.Info().Str("call_id", cmd.CallID).Int64("user_id", client.UserID).Msg("call joined")
}

func (h *Hub) handleEndCall(ctx context.Context, client *Client, callID string) {
	h.endCall(ctx, client, callID, client.UserID, "ended")
}

// endCall is shared between explicit end_call and implicit disconnect ends.
// A missing session is a silent no-op: ending is safe to repeat after cleanup.
func (h *Hub) endCall(ctx context.Context, client *Client, callID string, userID int64, reason string) {
	snap, fullyEnded, err := h.calls.End(ctx, callID, userID)
	if err != nil {
		h.log.Debug().Err(err).Str("call_id", callID).Int64("user_id", userID).Msg("end call no-op")
		return
	}

	info := callInfoFromSnapshot(snap)
	group := callGroup(callID)

	if fullyEnded {
		h.cancelWatchdog(callID)
		delete(h.active, callID)
		for _, p := range snap.Participants {
			h.registry.SendToUser(p.UserID, &Event{Kind: EventCallEnded, Call: info, FromUserID: userID, Reason: reason})
		}
		h.registry.DropGroup(group)
		h.log.Info().Str("call_id", callID).Int64("user_id", userID).Msg("call ended")
		return
	}

	// One leg hung up while the call continues.
	if client != nil {
		h.registry.RemoveFromGroup(group, client)
	}
	h.registry.SendToGroup(group, &Event{Kind: EventParticipantLeft, Call: info, FromUserID: userID})
	h.log.Info().Str("call_id", callID).Int64("user_id", userID).Msg("participant left call")
}

func (h *Hub) handleRejectCall(ctx context.Context, client *Client, callID string) {
	snap, ended, err := h.calls.Reject(ctx, callID, client.UserID)
	if err != nil {
		// Rejecting a missing or finished call carries no recovery action
		// for the caller; swallow it.
		h.log.Debug().Err(err).Str("call_id", callID).Int64("user_id", client.UserID).Msg("reject call no-op")
		return
	}

	info := callInfoFromSnapshot(snap)
	h.registry.SendToUser(snap.Call.InitiatorUserID, &Event{Kind: EventCallRejected, Call: info, FromUserID: client.UserID})

	if ended {
		// Direct call declined by its only invitee: tear it down now
		// instead of letting it ring into the watchdog.
		h.cancelWatchdog(callID)
		delete(h.active, callID)
		for _, p := range snap.Participants {
			h.registry.SendToUser(p.UserID, &Event{Kind: EventCallEnded, Call: info, FromUserID: client.UserID, Reason: "rejected"})
		}
		h.registry.DropGroup(callGroup(callID))
	}

	h.log.Info().Str("call_id", callID).Int64("user_id", client.UserID).Bool("ended", ended).Msg("call rejected")
}

func (h *Hub) handleRingTimeout(ctx context.Context, callID string) {
	delete(h.watchdogs, callID)

	// Secondary guard: cancellation may lose the race with a firing that is
	// already queued, so only a call still cached as ringing is terminated.
	entry, ok := h.active[callID]
	if !ok || entry.status != store.CallStatusRinging {
		return
	}

	snap, err := h.calls.MarkMissed(ctx, callID)
	if err != nil {
		h.log.Warn().Err(err).Str("call_id", callID).Msg("mark missed failed")
		delete(h.active, callID)
		return
	}

	delete(h.active, callID)

	info := callInfoFromSnapshot(snap)
	for _, p := range snap.Participants {
		h.registry.SendToUser(p.UserID, &Event{Kind: EventCallEnded, Call: info, Reason: "missed"})
	}
	h.registry.DropGroup(callGroup(callID))

	h.log.Info().Str("call_id", callID).Msg("call missed")
}

// ==== signaling relay ====

// handleRelaySignal forwards a handshake payload to every live connection of
// the target user. No session lookup, no persistence; an offline target is a
// silent drop.
func (h *Hub) handleRelaySignal(client *Client, cmd *Command) {
	h.registry.SendToUser(cmd.TargetUserID, &Event{
		Kind:       EventCallSignal,
		FromUserID: client.UserID,
		Signal: &Signal{
			Kind:    cmd.Signal,
			CallID:  cmd.CallID,
			Payload: cmd.Payload,
		},
	})
}

// ==== disconnect cleanup ====

// handleDisconnect removes the client and, when the user's last connection
// is gone, ends their leg in every active call. A rapid reconnect keeps at
// least one connection registered and skips the implicit end entirely.
func (h *Hub) handleDisconnect(ctx context.Context, client *Client) {
	last := h.registry.Unregister(client)
	h.log.Debug().Str("client_id", client.ID).Int64("user_id", client.UserID).Bool("last", last).Msg("client disconnected")
	if !last {
		return
	}

	var affected []string
	for callID, entry := range h.active {
		if _, in := entry.participants[client.UserID]; in {
			affected = append(affected, callID)
		}
	}
	for _, callID := range affected {
		h.endCall(ctx, nil, callID, client.UserID, "ended")
	}
}

// ==== helpers ====

// cancelWatchdog disarms a call's ring timer. Idempotent.
func (h *Hub) cancelWatchdog(callID string) {
	if handle, ok := h.watchdogs[callID]; ok {
		handle.Stop()
		delete(h.watchdogs, callID)
	}
}

func (h *Hub) sendError(client *Client, cerr *CoreError) {
	if client == nil {
		return
	}
	client.send(&Event{Kind: EventError, Error: cerr})
}

func callGroup(callID string) string {
	return "call:" + callID
}

func startError(err error) *CoreError {
	switch {
	case errors.Is(err, calls.ErrChatNotFound):
		return coreError(ErrCodeNotFound, "chat not found")
	case errors.Is(err, calls.ErrNotChatMember):
		return coreError(ErrCodeForbidden, "not a member of this chat")
	case errors.Is(err, calls.ErrCallInProgress):
		return coreError(ErrCodeConflict, "a call is already active in this chat")
	case errors.Is(err, calls.ErrNoParticipants):
		return coreError(ErrCodeInvalid, "no participants to invite")
	default:
		return coreError(ErrCodeInvalid, "failed to start call")
	}
}

func joinError(err error) *CoreError {
	switch {
	case errors.Is(err, calls.ErrCallNotFound):
		return coreError(ErrCodeNotFound, "call not found")
	case errors.Is(err, calls.ErrCallEnded):
		return coreError(ErrCodeCallEnded, "call has ended")
	case errors.Is(err, calls.ErrNotParticipant):
		return coreError(ErrCodeForbidden, "not a participant in this call")
	default:
		return coreError(ErrCodeInvalid, "failed to join call")
	}
}
