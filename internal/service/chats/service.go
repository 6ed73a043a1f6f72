package chats

import (
	"context"
	"errors"
	"fmt"

	"github.com/callwire/callwire-server/internal/store"
)

// Common errors for chat operations.
var (
	ErrChatNotFound   = errors.New("chat not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrNotMember      = errors.New("not a member of this chat")
	ErrCannotChatSelf = errors.New("cannot open a direct chat with yourself")
	ErrEmptyName      = errors.New("chat name is required")
)

// Service provides conversation management: creating chats, membership,
// and the membership checks the call layer relies on.
type Service struct {
	store store.Store
}

// New creates a new chat service.
func New(st store.Store) *Service {
	return &Service{store: st}
}

// CreateGroupChat creates a named group chat owned by the creator. The
// creator becomes its first member.
func (s *Service) CreateGroupChat(ctx context.Context, createdBy int64, name string) (*store.Chat, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	chat, err := s.store.CreateChat(ctx, name, store.ChatTypeGroup, createdBy)
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return chat, nil
}

// OpenDirectChat returns the direct chat between two users, creating it on
// first use. The direct key makes the pair canonical regardless of who opens it.
func (s *Service) OpenDirectChat(ctx context.Context, userID, otherUserID int64) (*store.Chat, error) {
	if userID == otherUserID {
		return nil, ErrCannotChatSelf
	}

	if _, err := s.store.GetUserByID(ctx, otherUserID); err != nil {
		return nil, ErrUserNotFound
	}

	chat, err := s.store.CreateDirectChat(ctx, DirectKey(userID, otherUserID), userID, otherUserID)
	if err != nil {
		return nil, fmt.Errorf("create direct chat: %w", err)
	}
	return chat, nil
}

// AddMember adds a user to a group chat. The acting user must already be a member.
func (s *Service) AddMember(ctx context.Context, actorID, chatID, userID int64) error {
	chat, err := s.store.GetChatByID(ctx, chatID)
	if err != nil {
		return ErrChatNotFound
	}
	if chat.Type == store.ChatTypeDirect {
		return fmt.Errorf("direct chats have a fixed member pair")
	}

	isMember, err := s.store.IsMember(ctx, actorID, chatID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !isMember {
		return ErrNotMember
	}

	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return ErrUserNotFound
	}

	if err := s.store.AddMember(ctx, userID, chatID); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// GetChat retrieves a chat by ID.
func (s *Service) GetChat(ctx context.Context, chatID int64) (*store.Chat, error) {
	chat, err := s.store.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, ErrChatNotFound
	}
	return chat, nil
}

// ListChats lists chats the user is a member of.
func (s *Service) ListChats(ctx context.Context, userID int64) ([]*store.Chat, error) {
	chats, err := s.store.ListChats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return chats, nil
}

// IsMember checks if the user is a member of the chat.
func (s *Service) IsMember(ctx context.Context, userID, chatID int64) (bool, error) {
	return s.store.IsMember(ctx, userID, chatID)
}

// ListMembers lists user IDs of all chat members.
func (s *Service) ListMembers(ctx context.Context, chatID int64) ([]int64, error) {
	members, err := s.store.ListMembers(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// DirectKey builds the canonical dedup key for a direct chat.
func DirectKey(user1ID, user2ID int64) string {
	if user1ID > user2ID {
		user1ID, user2ID = user2ID, user1ID
	}
	return fmt.Sprintf("dm:%d:%d", user1ID, user2ID)
}
