package calls

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/callwire/callwire-server/internal/store"
	"github.com/callwire/callwire-server/internal/store/sqlite"
)

type fixture struct {
	svc   *Service
	store *sqlite.SQLiteStore
	users map[string]int64
}

func newFixture(t *testing.T, usernames ...string) *fixture {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(sqlite.Schema)
		return err
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	users := make(map[string]int64, len(usernames))
	for _, name := range usernames {
		u, err := st.CreateUser(context.Background(), name, "hash")
		if err != nil {
			t.Fatalf("failed to create user %s: %v", name, err)
		}
		users[name] = u.ID
	}

	return &fixture{svc: New(st), store: st, users: users}
}

func (f *fixture) directChat(t *testing.T, a, b string) *store.Chat {
	t.Helper()
	chat, err := f.store.CreateDirectChat(context.Background(), "dm:test:"+a+b, f.users[a], f.users[b])
	if err != nil {
		t.Fatalf("failed to create direct chat: %v", err)
	}
	return chat
}

func (f *fixture) groupChat(t *testing.T, owner string, members ...string) *store.Chat {
	t.Helper()
	ctx := context.Background()
	chat, err := f.store.CreateChat(ctx, "room", store.ChatTypeGroup, f.users[owner])
	if err != nil {
		t.Fatalf("failed to create chat: %v", err)
	}
	for _, m := range members {
		if err := f.store.AddMember(ctx, f.users[m], chat.ID); err != nil {
			t.Fatalf("failed to add member %s: %v", m, err)
		}
	}
	return chat
}

func TestStartChatCall(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	chat := f.directChat(t, "alice", "bob")
	ctx := context.Background()

	snap, err := f.svc.Start(ctx, StartInput{
		InitiatorID: f.users["alice"],
		ChatID:      &chat.ID,
		Media:       store.CallMediaVideo,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if snap.Call.Status != store.CallStatusRinging {
		t.Fatalf("expected ringing, got %s", snap.Call.Status)
	}
	if snap.Call.Type != store.CallTypeDirect {
		t.Fatalf("expected direct call from direct chat, got %s", snap.Call.Type)
	}
	if len(snap.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(snap.Participants))
	}

	initiator := snap.Participant(f.users["alice"])
	if initiator == nil || initiator.Status != store.ParticipantJoined || initiator.JoinedAt == nil {
		t.Fatalf("unexpected initiator leg: %+v", initiator)
	}
	invitee := snap.Participant(f.users["bob"])
	if invitee == nil || invitee.Status != store.ParticipantInvited {
		t.Fatalf("unexpected invitee leg: %+v", invitee)
	}
}

func TestStartFailuresAreAtomic(t *testing.T) {
	f := newFixture(t, "alice", "bob", "mallory")
	chat := f.directChat(t, "alice", "bob")
	ctx := context.Background()

	missing := chat.ID + 100
	if _, err := f.svc.Start(ctx, StartInput{InitiatorID: f.users["alice"], ChatID: &missing}); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}

	if _, err := f.svc.Start(ctx, StartInput{InitiatorID: f.users["mallory"], ChatID: &chat.ID}); !errors.Is(err, ErrNotChatMember) {
		t.Fatalf("expected ErrNotChatMember, got %v", err)
	}

	if _, err := f.svc.Start(ctx, StartInput{InitiatorID: f.users["alice"]}); !errors.Is(err, ErrNoParticipants) {
		t.Fatalf("expected ErrNoParticipants, got %v", err)
	}

	// No call rows were written by the failed starts.
	calls, err := f.svc.ListActive(ctx, f.users["alice"])
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(calls) != 0 {
		t.Fatalf("expected no calls after failed starts, got %d", len(calls))
	}
}

func TestStartDuplicateConflict(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	chat := f.directChat(t, "alice", "bob")
	ctx := context.Background()

	if _, err := f.svc.Start(ctx, StartInput{InitiatorID: f.users["alice"], ChatID: &chat.ID}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := f.svc.Start(ctx, StartInput{InitiatorID: f.users["alice"], ChatID: &chat.ID}); !errors.Is(err, ErrCallInProgress) {
		t.Fatalf("expected ErrCallInProgress, got %v", err)
	}
}

func TestStartAdHocCall(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	ctx := context.Background()

	snap, err := f.svc.Start(ctx, StartInput{
		InitiatorID: f.users["alice"],
		// Duplicates and the initiator herself are dropped.
		ParticipantIDs: []int64{f.users["bob"], f.users["bob"], f.users["alice"], f.users["carol"]},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if snap.Call.Type != store.CallTypeGroup {
		t.Fatalf("expected group call, got %s", snap.Call.Type)
	}
	if snap.Call.Media != store.CallMediaAudio {
		t.Fatalf("expected audio default, got %s", snap.Call.Media)
	}
	if len(snap.Participants) != 3 {
		t.Fatalf("expected 3 participants, got %d", len(snap.Participants))
	}
}

func TestJoinTransitionsRingingToOngoing(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	chat := f.directChat(t, "alice", "bob")
	ctx := context.Background()

	snap, err := f.svc.Start(ctx, StartInput{InitiatorID: f.users["alice"], ChatID: &chat.ID})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	joined, err := f.svc.Join(ctx, snap.Call.ID, f.users["bob"])
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if joined.Call.Status != store.CallStatusOngoing {
		t.Fatalf("expected ongoing, got %s", joined.Call.Status)
	}
	leg := joined.Participant(f.users["bob"])
	if leg.Status != store.ParticipantJoined || leg.JoinedAt == nil {
		t.Fatalf("unexpected joined leg: %+v", leg)
	}

	if _, err := f.svc.Join(ctx, snap.Call.ID, f.users["bob"]+100); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}

func TestJoinAfterMissedIsRejected(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	chat := f.directChat(t, "alice", "bob")
	ctx := context.Background()

	snap, err := f.svc.Start(ctx, StartInput{InitiatorID: f.users["alice"], ChatID: &chat.ID})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	missed, err := f.svc.MarkMissed(ctx, snap.Call.ID)
	if err != nil {
		t.Fatalf("MarkMissed failed: %v", err)
	}
	if missed.Call.Status != store.CallStatusMissed || missed.Call.EndedAt == nil {
		t.Fatalf("unexpected missed state: %+v", missed.Call)
	}
	if missed.Participant(f.users["bob"]).Status != store.ParticipantMissed {
		t.Fatalf("expected invitee marked missed")
	}

	// A late join must not resurrect the call.
	if _, err := f.svc.Join(ctx, snap.Call.ID, f.users["bob"]); !errors.Is(err, ErrCallEnded) {
		t.Fatalf("expected ErrCallEnded, got %v", err)
	}
	got, err := f.svc.Get(ctx, snap.Call.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Call.Status != store.CallStatusMissed {
		t.Fatalf("call resurrected to %s", got.Call.Status)
	}
}

func TestMarkMissedRequiresRinging(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	chat := f.directChat(t, "alice", "bob")
	ctx := context.Background()

	snap, err := f.svc.Start(ctx, StartInput{InitiatorID: f.users["alice"], ChatID: &chat.ID})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := f.svc.Join(ctx, snap.Call.ID, f.users["bob"]); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	if _, err := f.svc.MarkMissed(ctx, snap.Call.ID); !errors.Is(err, ErrCallEnded) {
		t.Fatalf("expected ErrCallEnded for ongoing call, got %v", err)
	}
}

func TestEndByParticipantThenInitiator(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	chat := f.groupChat(t, "alice", "bob", "carol")
	ctx := context.Background()

	snap, err := f.svc.Start(ctx, StartInput{InitiatorID: f.users["alice"], ChatID: &chat.ID})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := f.svc.Join(ctx, snap.Call.ID, f.users["bob"]); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	// Bob hangs up: his leg ends, the call does not.
	after, ended, err := f.svc.End(ctx, snap.Call.ID, f.users["bob"])
	if err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if ended {
		t.Fatalf("call should not fully end while others are active")
	}
	if after.Participant(f.users["bob"]).Status != store.ParticipantLeft {
		t.Fatalf("expected bob marked left")
	}
	if after.Call.Status != store.CallStatusOngoing {
		t.Fatalf("expected ongoing, got %s", after.Call.Status)
	}

	// Initiator hangs up: force-ends regardless of carol never answering.
	final, ended, err := f.svc.End(ctx, snap.Call.ID, f.users["alice"])
	if err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if !ended || final.Call.Status != store.CallStatusEnded || final.Call.EndedAt == nil {
		t.Fatalf("expected full end by initiator, got %+v", final.Call)
	}

	// Ending again is idempotent.
	_, ended, err = f.svc.End(ctx, snap.Call.ID, f.users["alice"])
	if err != nil || ended {
		t.Fatalf("expected idempotent no-op, got ended=%v err=%v", ended, err)
	}
}

func TestRejectDirectCallEndsIt(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	chat := f.directChat(t, "alice", "bob")
	ctx := context.Background()

	snap, err := f.svc.Start(ctx, StartInput{InitiatorID: f.users["alice"], ChatID: &chat.ID})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	after, ended, err := f.svc.Reject(ctx, snap.Call.ID, f.users["bob"])
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if !ended {
		t.Fatalf("rejecting a direct call should end it")
	}
	if after.Call.Status != store.CallStatusEnded || after.Call.EndedAt == nil {
		t.Fatalf("unexpected call state: %+v", after.Call)
	}
	if after.Participant(f.users["bob"]).Status != store.ParticipantRejected {
		t.Fatalf("expected bob marked rejected")
	}
}

func TestRejectGroupCallKeepsRinging(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	chat := f.groupChat(t, "alice", "bob", "carol")
	ctx := context.Background()

	snap, err := f.svc.Start(ctx, StartInput{InitiatorID: f.users["alice"], ChatID: &chat.ID})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	after, ended, err := f.svc.Reject(ctx, snap.Call.ID, f.users["bob"])
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if ended {
		t.Fatalf("group call must keep ringing after one reject")
	}
	if after.Call.Status != store.CallStatusRinging {
		t.Fatalf("expected ringing, got %s", after.Call.Status)
	}

	// Carol can still pick up.
	joined, err := f.svc.Join(ctx, snap.Call.ID, f.users["carol"])
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if joined.Call.Status != store.CallStatusOngoing {
		t.Fatalf("expected ongoing, got %s", joined.Call.Status)
	}
}

func TestRejoinAfterRejectAllowed(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	chat := f.groupChat(t, "alice", "bob", "carol")
	ctx := context.Background()

	snap, err := f.svc.Start(ctx, StartInput{InitiatorID: f.users["alice"], ChatID: &chat.ID})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, _, err := f.svc.Reject(ctx, snap.Call.ID, f.users["bob"]); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	joined, err := f.svc.Join(ctx, snap.Call.ID, f.users["bob"])
	if err != nil {
		t.Fatalf("rejoin after reject failed: %v", err)
	}
	if joined.Participant(f.users["bob"]).Status != store.ParticipantJoined {
		t.Fatalf("expected bob joined after rejoin")
	}
}
