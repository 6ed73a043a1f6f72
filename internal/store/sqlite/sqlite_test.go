package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/callwire/callwire-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUsers(t *testing.T, s *SQLiteStore, names ...string) []int64 {
	t.Helper()

	ctx := context.Background()
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		u, err := s.CreateUser(ctx, name, "hash")
		if err != nil {
			t.Fatalf("failed to create user %s: %v", name, err)
		}
		ids = append(ids, u.ID)
	}
	return ids
}

func TestChatMembership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := seedUsers(t, s, "alice", "bob", "carol")

	chat, err := s.CreateChat(ctx, "team", store.ChatTypeGroup, ids[0])
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}

	// Creator is auto-added.
	isMember, err := s.IsMember(ctx, ids[0], chat.ID)
	if err != nil || !isMember {
		t.Fatalf("expected creator membership, got %v, %v", isMember, err)
	}

	if err := s.AddMember(ctx, ids[1], chat.ID); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	// Adding twice is a no-op.
	if err := s.AddMember(ctx, ids[1], chat.ID); err != nil {
		t.Fatalf("duplicate AddMember failed: %v", err)
	}

	members, err := s.ListMembers(ctx, chat.ID)
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %v", members)
	}

	isMember, err = s.IsMember(ctx, ids[2], chat.ID)
	if err != nil || isMember {
		t.Fatalf("expected carol not a member, got %v, %v", isMember, err)
	}
}

func TestCreateDirectChatDeduplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := seedUsers(t, s, "alice", "bob")

	key := "dm:1:2"
	first, err := s.CreateDirectChat(ctx, key, ids[0], ids[1])
	if err != nil {
		t.Fatalf("CreateDirectChat failed: %v", err)
	}
	second, err := s.CreateDirectChat(ctx, key, ids[0], ids[1])
	if err != nil {
		t.Fatalf("second CreateDirectChat failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected deduplicated chat, got %d and %d", first.ID, second.ID)
	}

	members, err := s.ListMembers(ctx, first.ID)
	if err != nil || len(members) != 2 {
		t.Fatalf("expected both users as members, got %v, %v", members, err)
	}
}

func TestCallLifecyclePersistence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := seedUsers(t, s, "alice", "bob")

	now := time.Now()
	call := &store.Call{
		ID:              "call-1",
		Type:            store.CallTypeDirect,
		Media:           store.CallMediaAudio,
		InitiatorUserID: ids[0],
		Status:          store.CallStatusRinging,
	}
	if err := s.CreateCall(ctx, call); err != nil {
		t.Fatalf("CreateCall failed: %v", err)
	}

	joined := now
	participants := []*store.CallParticipant{
		{CallID: call.ID, UserID: ids[0], Status: store.ParticipantJoined, JoinedAt: &joined},
		{CallID: call.ID, UserID: ids[1], Status: store.ParticipantInvited},
	}
	for _, p := range participants {
		if err := s.AddParticipant(ctx, p); err != nil {
			t.Fatalf("AddParticipant failed: %v", err)
		}
	}

	got, err := s.GetCall(ctx, call.ID)
	if err != nil {
		t.Fatalf("GetCall failed: %v", err)
	}
	if got.Status != store.CallStatusRinging || got.EndedAt != nil {
		t.Fatalf("unexpected fresh call state: %+v", got)
	}

	list, err := s.ListParticipants(ctx, call.ID)
	if err != nil {
		t.Fatalf("ListParticipants failed: %v", err)
	}
	if len(list) != 2 || list[0].UserID != ids[0] || list[1].Status != store.ParticipantInvited {
		t.Fatalf("unexpected participants: %+v", list)
	}

	// Transition to ongoing.
	got.Status = store.CallStatusOngoing
	if err := s.UpdateCall(ctx, got); err != nil {
		t.Fatalf("UpdateCall failed: %v", err)
	}

	// End the call.
	endedAt := now.Add(time.Minute)
	got.Status = store.CallStatusEnded
	got.EndedAt = &endedAt
	if err := s.UpdateCall(ctx, got); err != nil {
		t.Fatalf("UpdateCall failed: %v", err)
	}

	got, err = s.GetCall(ctx, call.ID)
	if err != nil {
		t.Fatalf("GetCall failed: %v", err)
	}
	if got.Status != store.CallStatusEnded || got.EndedAt == nil {
		t.Fatalf("expected ended call with ended_at, got %+v", got)
	}
	firstEndedAt := *got.EndedAt

	// A later write must not move ended_at: the column is write-once.
	later := endedAt.Add(time.Hour)
	got.EndedAt = &later
	if err := s.UpdateCall(ctx, got); err != nil {
		t.Fatalf("UpdateCall failed: %v", err)
	}
	got, err = s.GetCall(ctx, call.ID)
	if err != nil {
		t.Fatalf("GetCall failed: %v", err)
	}
	if !got.EndedAt.Equal(firstEndedAt) {
		t.Fatalf("ended_at changed from %v to %v", firstEndedAt, got.EndedAt)
	}
}

func TestGetActiveCallForChat(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := seedUsers(t, s, "alice", "bob")

	chat, err := s.CreateDirectChat(ctx, "dm:1:2", ids[0], ids[1])
	if err != nil {
		t.Fatalf("CreateDirectChat failed: %v", err)
	}

	active, err := s.GetActiveCallForChat(ctx, ids[0], chat.ID)
	if err != nil {
		t.Fatalf("GetActiveCallForChat failed: %v", err)
	}
	if active != nil {
		t.Fatalf("expected no active call, got %+v", active)
	}

	call := &store.Call{
		ID:              "call-1",
		Type:            store.CallTypeDirect,
		Media:           store.CallMediaVideo,
		ChatID:          &chat.ID,
		InitiatorUserID: ids[0],
		Status:          store.CallStatusRinging,
	}
	if err := s.CreateCall(ctx, call); err != nil {
		t.Fatalf("CreateCall failed: %v", err)
	}

	active, err = s.GetActiveCallForChat(ctx, ids[0], chat.ID)
	if err != nil {
		t.Fatalf("GetActiveCallForChat failed: %v", err)
	}
	if active == nil || active.ID != call.ID {
		t.Fatalf("expected active call %s, got %+v", call.ID, active)
	}

	// Ended calls are not active.
	now := time.Now()
	call.Status = store.CallStatusEnded
	call.EndedAt = &now
	if err := s.UpdateCall(ctx, call); err != nil {
		t.Fatalf("UpdateCall failed: %v", err)
	}
	active, err = s.GetActiveCallForChat(ctx, ids[0], chat.ID)
	if err != nil {
		t.Fatalf("GetActiveCallForChat failed: %v", err)
	}
	if active != nil {
		t.Fatalf("expected no active call after end, got %+v", active)
	}
}

func TestListActiveCalls(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := seedUsers(t, s, "alice", "bob")

	call := &store.Call{
		ID:              "call-1",
		Type:            store.CallTypeDirect,
		Media:           store.CallMediaAudio,
		InitiatorUserID: ids[0],
		Status:          store.CallStatusRinging,
	}
	if err := s.CreateCall(ctx, call); err != nil {
		t.Fatalf("CreateCall failed: %v", err)
	}
	for _, uid := range ids {
		if err := s.AddParticipant(ctx, &store.CallParticipant{CallID: call.ID, UserID: uid}); err != nil {
			t.Fatalf("AddParticipant failed: %v", err)
		}
	}

	calls, err := s.ListActiveCalls(ctx, ids[1])
	if err != nil {
		t.Fatalf("ListActiveCalls failed: %v", err)
	}
	if len(calls) != 1 || calls[0].ID != call.ID {
		t.Fatalf("expected one active call for bob, got %+v", calls)
	}
}
