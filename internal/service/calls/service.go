package calls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/callwire/callwire-server/internal/store"
)

// Common errors for call operations.
var (
	ErrChatNotFound   = errors.New("chat not found")
	ErrNotChatMember  = errors.New("not a member of this chat")
	ErrCallInProgress = errors.New("caller already has an active call in this chat")
	ErrCallNotFound   = errors.New("call not found")
	ErrCallEnded      = errors.New("call has ended")
	ErrNotParticipant = errors.New("not a participant in this call")
	ErrNoParticipants = errors.New("no participants to invite")
)

// Snapshot is the full durable state of a call, returned after every
// transition so callers can fan it out without a second read.
type Snapshot struct {
	Call         *store.Call
	Participants []*store.CallParticipant
}

// Participant returns the participant record for the user, or nil.
func (s *Snapshot) Participant(userID int64) *store.CallParticipant {
	for _, p := range s.Participants {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// StartInput describes a start_call request.
type StartInput struct {
	InitiatorID    int64
	ChatID         *int64  // invite every other chat member
	ParticipantIDs []int64 // explicit invitees for ad-hoc calls
	Media          store.CallMedia
}

// Service owns the durable side of the call lifecycle. All status
// transitions go through here; the coordinator layers timers and fan-out
// on top.
type Service struct {
	store store.Store
	now   func() time.Time
}

// New creates a new call service.
func New(st store.Store) *Service {
	return &Service{
		store: st,
		now:   time.Now,
	}
}

// Start creates a new ringing call. All preconditions are checked before
// any write, so a failed start leaves no trace.
func (s *Service) Start(ctx context.Context, in StartInput) (*Snapshot, error) {
	var invitees []int64
	callType := store.CallTypeGroup

	if in.ChatID != nil {
		chat, err := s.store.GetChatByID(ctx, *in.ChatID)
		if err != nil {
			return nil, ErrChatNotFound
		}

		isMember, err := s.store.IsMember(ctx, in.InitiatorID, chat.ID)
		if err != nil {
			return nil, fmt.Errorf("check membership: %w", err)
		}
		if !isMember {
			return nil, ErrNotChatMember
		}

		existing, err := s.store.GetActiveCallForChat(ctx, in.InitiatorID, chat.ID)
		if err != nil {
			return nil, fmt.Errorf("check active call: %w", err)
		}
		if existing != nil {
			return nil, ErrCallInProgress
		}

		members, err := s.store.ListMembers(ctx, chat.ID)
		if err != nil {
			return nil, fmt.Errorf("list members: %w", err)
		}
		for _, m := range members {
			if m != in.InitiatorID {
				invitees = append(invitees, m)
			}
		}
		if chat.Type == store.ChatTypeDirect {
			callType = store.CallTypeDirect
		}
	} else {
		seen := map[int64]struct{}{in.InitiatorID: {}}
		for _, id := range in.ParticipantIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			invitees = append(invitees, id)
		}
		if len(invitees) == 1 {
			callType = store.CallTypeDirect
		}
	}

	if len(invitees) == 0 {
		return nil, ErrNoParticipants
	}

	media := in.Media
	if media == "" {
		media = store.CallMediaAudio
	}

	now := s.now()
	call := &store.Call{
		ID:              uuid.New().String(),
		Type:            callType,
		Media:           media,
		ChatID:          in.ChatID,
		InitiatorUserID: in.InitiatorID,
		Status:          store.CallStatusRinging,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateCall(ctx, call); err != nil {
		return nil, fmt.Errorf("save call: %w", err)
	}

	initiator := &store.CallParticipant{
		CallID:   call.ID,
		UserID:   in.InitiatorID,
		Status:   store.ParticipantJoined,
		JoinedAt: &now,
	}
	if err := s.store.AddParticipant(ctx, initiator); err != nil {
		return nil, fmt.Errorf("add initiator: %w", err)
	}
	for _, id := range invitees {
		p := &store.CallParticipant{
			CallID: call.ID,
			UserID: id,
			Status: store.ParticipantInvited,
		}
		if err := s.store.AddParticipant(ctx, p); err != nil {
			return nil, fmt.Errorf("add participant %d: %w", id, err)
		}
	}

	return s.snapshot(ctx, call)
}

// Get retrieves the current snapshot of a call.
func (s *Service) Get(ctx context.Context, callID string) (*Snapshot, error) {
	call, err := s.store.GetCall(ctx, callID)
	if err != nil {
		return nil, ErrCallNotFound
	}
	return s.snapshot(ctx, call)
}

// Join marks the user joined and moves a ringing call to ongoing.
// Any non-joined participant may join, including one who rejected earlier.
func (s *Service) Join(ctx context.Context, callID string, userID int64) (*Snapshot, error) {
	call, err := s.store.GetCall(ctx, callID)
	if err != nil {
		return nil, ErrCallNotFound
	}
	if call.Status.Terminal() {
		return nil, ErrCallEnded
	}

	participant, err := s.store.GetParticipant(ctx, callID, userID)
	if err != nil {
		return nil, ErrNotParticipant
	}

	now := s.now()
	participant.Status = store.ParticipantJoined
	participant.JoinedAt = &now
	participant.LeftAt = nil
	if err := s.store.UpdateParticipant(ctx, participant); err != nil {
		return nil, fmt.Errorf("update participant: %w", err)
	}

	if call.Status == store.CallStatusRinging {
		call.Status = store.CallStatusOngoing
		call.UpdatedAt = now
		if err := s.store.UpdateCall(ctx, call); err != nil {
			return nil, fmt.Errorf("update call: %w", err)
		}
	}

	return s.snapshot(ctx, call)
}

// End marks the user's leg left and ends the whole call when either every
// participant is inactive or the acting user is the initiator. The returned
// bool reports whether the call fully ended.
func (s *Service) End(ctx context.Context, callID string, userID int64) (*Snapshot, bool, error) {
	call, err := s.store.GetCall(ctx, callID)
	if err != nil {
		return nil, false, ErrCallNotFound
	}
	if call.Status.Terminal() {
		// Ending twice is safe.
		snap, snapErr := s.snapshot(ctx, call)
		return snap, false, snapErr
	}

	participant, err := s.store.GetParticipant(ctx, callID, userID)
	if err != nil {
		return nil, false, ErrNotParticipant
	}

	now := s.now()
	participant.Status = store.ParticipantLeft
	participant.LeftAt = &now
	if err := s.store.UpdateParticipant(ctx, participant); err != nil {
		return nil, false, fmt.Errorf("update participant: %w", err)
	}

	participants, err := s.store.ListParticipants(ctx, callID)
	if err != nil {
		return nil, false, fmt.Errorf("list participants: %w", err)
	}

	fullyEnded := userID == call.InitiatorUserID
	if !fullyEnded {
		fullyEnded = true
		for _, p := range participants {
			if p.Status != store.ParticipantLeft && p.Status != store.ParticipantMissed {
				fullyEnded = false
				break
			}
		}
	}

	if fullyEnded {
		call.Status = store.CallStatusEnded
		call.EndedAt = &now
	}
	call.UpdatedAt = now
	if err := s.store.UpdateCall(ctx, call); err != nil {
		return nil, false, fmt.Errorf("update call: %w", err)
	}

	snap, err := s.snapshot(ctx, call)
	return snap, fullyEnded, err
}

// Reject marks the user's leg rejected. A direct call whose only invitee
// rejects is ended immediately rather than left ringing; group calls keep
// ringing for the other invitees. The returned bool reports a full end.
func (s *Service) Reject(ctx context.Context, callID string, userID int64) (*Snapshot, bool, error) {
	call, err := s.store.GetCall(ctx, callID)
	if err != nil {
		return nil, false, ErrCallNotFound
	}
	if call.Status.Terminal() {
		return nil, false, ErrCallEnded
	}

	participant, err := s.store.GetParticipant(ctx, callID, userID)
	if err != nil {
		return nil, false, ErrNotParticipant
	}

	now := s.now()
	participant.Status = store.ParticipantRejected
	participant.LeftAt = &now
	if err := s.store.UpdateParticipant(ctx, participant); err != nil {
		return nil, false, fmt.Errorf("update participant: %w", err)
	}

	ended := false
	if call.Type == store.CallTypeDirect && userID != call.InitiatorUserID {
		call.Status = store.CallStatusEnded
		call.EndedAt = &now
		call.UpdatedAt = now
		if err := s.store.UpdateCall(ctx, call); err != nil {
			return nil, false, fmt.Errorf("update call: %w", err)
		}
		ended = true
	}

	snap, err := s.snapshot(ctx, call)
	return snap, ended, err
}

// MarkMissed transitions a still-ringing call to missed. Invitees who never
// responded are marked missed as well.
func (s *Service) MarkMissed(ctx context.Context, callID string) (*Snapshot, error) {
	call, err := s.store.GetCall(ctx, callID)
	if err != nil {
		return nil, ErrCallNotFound
	}
	if call.Status != store.CallStatusRinging {
		return nil, ErrCallEnded
	}

	now := s.now()
	call.Status = store.CallStatusMissed
	call.EndedAt = &now
	call.UpdatedAt = now
	if err := s.store.UpdateCall(ctx, call); err != nil {
		return nil, fmt.Errorf("update call: %w", err)
	}

	participants, err := s.store.ListParticipants(ctx, callID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	for _, p := range participants {
		if p.Status != store.ParticipantInvited {
			continue
		}
		p.Status = store.ParticipantMissed
		if err := s.store.UpdateParticipant(ctx, p); err != nil {
			return nil, fmt.Errorf("update participant: %w", err)
		}
	}

	return s.snapshot(ctx, call)
}

// ListActive lists ringing or ongoing calls the user participates in.
func (s *Service) ListActive(ctx context.Context, userID int64) ([]*store.Call, error) {
	list, err := s.store.ListActiveCalls(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list active calls: %w", err)
	}
	return list, nil
}

func (s *Service) snapshot(ctx context.Context, call *store.Call) (*Snapshot, error) {
	participants, err := s.store.ListParticipants(ctx, call.ID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return &Snapshot{Call: call, Participants: participants}, nil
}
