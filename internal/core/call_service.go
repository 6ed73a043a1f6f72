package core

import (
	"context"

	"github.com/callwire/callwire-server/internal/service/calls"
)

// CallService abstracts the durable call lifecycle for the Hub. The hub owns
// timing and fan-out; every status transition is delegated here so the hub
// never talks to the store directly.
type CallService interface {
	// Start creates a ringing call with the initiator joined and everyone
	// else invited. Fails without side effects.
	Start(ctx context.Context, in calls.StartInput) (*calls.Snapshot, error)

	// Get retrieves the current snapshot of a call.
	Get(ctx context.Context, callID string) (*calls.Snapshot, error)

	// Join marks the user joined and moves a ringing call to ongoing.
	Join(ctx context.Context, callID string, userID int64) (*calls.Snapshot, error)

	// End hangs up the user's leg. The bool reports whether the whole call
	// ended (all legs inactive, or the initiator hung up).
	End(ctx context.Context, callID string, userID int64) (*calls.Snapshot, bool, error)

	// Reject declines an invitation. The bool reports whether the call
	// ended as a result (direct call declined by its only invitee).
	Reject(ctx context.Context, callID string, userID int64) (*calls.Snapshot, bool, error)

	// MarkMissed transitions a still-ringing call to missed.
	MarkMissed(ctx context.Context, callID string) (*calls.Snapshot, error)
}
