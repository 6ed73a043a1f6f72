package store

import (
	"context"
	"time"
)

// User represents a registered or guest user.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsGuest      bool
	SessionID    string // for guest session tracking
	CreatedAt    time.Time
}

// ChatType defines the topology of a chat.
type ChatType string

const (
	ChatTypeDirect ChatType = "direct"
	ChatTypeGroup  ChatType = "group"
)

// Chat represents a conversation. Calls started with a chat reference
// invite every other member of the chat.
type Chat struct {
	ID        int64
	Name      string
	Type      ChatType
	CreatedBy int64
	DirectKey *string // for direct chats: "dm:{minUserId}:{maxUserId}"
	CreatedAt time.Time
}

// ChatMember represents chat membership.
type ChatMember struct {
	UserID   int64
	ChatID   int64
	JoinedAt time.Time
}

// CallType defines the topology of a call.
type CallType string

const (
	CallTypeDirect CallType = "direct"
	CallTypeGroup  CallType = "group"
)

// CallMedia defines the call medium.
type CallMedia string

const (
	CallMediaAudio CallMedia = "audio"
	CallMediaVideo CallMedia = "video"
)

// CallStatus defines the lifecycle state of a call.
// Transitions are monotonic: ringing -> ongoing -> ended,
// or ringing -> missed. No backward transitions.
type CallStatus string

const (
	CallStatusRinging CallStatus = "ringing"
	CallStatusOngoing CallStatus = "ongoing"
	CallStatusEnded   CallStatus = "ended"
	CallStatusMissed  CallStatus = "missed"
)

// Terminal reports whether the status admits no further transitions.
func (s CallStatus) Terminal() bool {
	return s == CallStatusEnded || s == CallStatusMissed
}

// ParticipantStatus defines a participant's state within a call.
type ParticipantStatus string

const (
	ParticipantInvited  ParticipantStatus = "invited"
	ParticipantJoined   ParticipantStatus = "joined"
	ParticipantLeft     ParticipantStatus = "left"
	ParticipantRejected ParticipantStatus = "rejected"
	ParticipantMissed   ParticipantStatus = "missed"
)

// Call is the durable record of a call's lifecycle.
// EndedAt is set exactly once, when Status becomes ended or missed.
type Call struct {
	ID              string // UUID
	Type            CallType
	Media           CallMedia
	ChatID          *int64 // nil for ad-hoc calls
	InitiatorUserID int64
	Status          CallStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
	EndedAt         *time.Time
}

// CallParticipant represents one user's leg of a call.
type CallParticipant struct {
	ID       int64
	CallID   string
	UserID   int64
	Status   ParticipantStatus
	JoinedAt *time.Time
	LeftAt   *time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// CreateGuestUser creates a temporary guest user with session ID.
	CreateGuestUser(ctx context.Context, sessionID string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// ChatStore handles chat persistence.
type ChatStore interface {
	// CreateChat creates a new chat.
	CreateChat(ctx context.Context, name string, chatType ChatType, createdBy int64) (*Chat, error)

	// CreateDirectChat creates a direct chat between two users.
	// Deduplicates via directKey and auto-adds both users as members.
	CreateDirectChat(ctx context.Context, directKey string, user1ID, user2ID int64) (*Chat, error)

	// GetChatByID retrieves a chat by ID.
	GetChatByID(ctx context.Context, id int64) (*Chat, error)

	// GetChatByDirectKey retrieves a direct chat by its direct_key.
	GetChatByDirectKey(ctx context.Context, directKey string) (*Chat, error)

	// ListChats lists chats the user is a member of.
	ListChats(ctx context.Context, userID int64) ([]*Chat, error)

	// AddMember adds a user to a chat.
	AddMember(ctx context.Context, userID, chatID int64) error

	// RemoveMember removes a user from a chat.
	RemoveMember(ctx context.Context, userID, chatID int64) error

	// IsMember checks if user is a member of the chat.
	IsMember(ctx context.Context, userID, chatID int64) (bool, error)

	// ListMembers lists user IDs of all chat members.
	ListMembers(ctx context.Context, chatID int64) ([]int64, error)
}

// CallStore handles call persistence.
type CallStore interface {
	// CreateCall creates a new call.
	CreateCall(ctx context.Context, call *Call) error

	// UpdateCall updates an existing call.
	UpdateCall(ctx context.Context, call *Call) error

	// GetCall retrieves a call by ID.
	GetCall(ctx context.Context, id string) (*Call, error)

	// GetActiveCallForChat returns a ringing or ongoing call started by the
	// given user in the given chat, or nil if none exists.
	GetActiveCallForChat(ctx context.Context, initiatorUserID, chatID int64) (*Call, error)

	// ListActiveCalls lists ringing or ongoing calls the user participates in.
	ListActiveCalls(ctx context.Context, userID int64) ([]*Call, error)

	// AddParticipant adds a participant to a call.
	AddParticipant(ctx context.Context, p *CallParticipant) error

	// UpdateParticipant updates a participant record.
	UpdateParticipant(ctx context.Context, p *CallParticipant) error

	// GetParticipant retrieves a participant from a call.
	GetParticipant(ctx context.Context, callID string, userID int64) (*CallParticipant, error)

	// ListParticipants lists all participants in a call, in invite order.
	ListParticipants(ctx context.Context, callID string) ([]*CallParticipant, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ChatStore
	CallStore

	// Close closes the underlying database connection.
	Close() error
}
