package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/callwire/callwire-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a trimmed schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash, is_guest)
		VALUES (?, ?, 0)
	`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// CreateGuestUser creates a temporary guest user with session ID.
func (s *SQLiteStore) CreateGuestUser(ctx context.Context, sessionID string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash, is_guest, session_id)
		VALUES (?, '', 1, ?)
	`
	guestUsername := "guest_" + sessionID[:8]

	result, err := s.db.ExecContext(ctx, query, guestUsername, sessionID)
	if err != nil {
		return nil, fmt.Errorf("insert guest user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, is_guest, COALESCE(session_id, ''), created_at
		FROM users
		WHERE id = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.IsGuest,
		&user.SessionID,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, is_guest, COALESCE(session_id, ''), created_at
		FROM users
		WHERE username = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.IsGuest,
		&user.SessionID,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// ==== ChatStore implementation ====

// CreateChat creates a new chat and adds the creator as a member.
func (s *SQLiteStore) CreateChat(ctx context.Context, name string, chatType store.ChatType, createdBy int64) (*store.Chat, error) {
	query := `
		INSERT INTO chats (name, type, created_by)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, name, string(chatType), createdBy)
	if err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	if err := s.AddMember(ctx, createdBy, id); err != nil {
		return nil, fmt.Errorf("add creator member: %w", err)
	}

	return s.GetChatByID(ctx, id)
}

// CreateDirectChat creates a direct chat between two users.
// Returns the existing chat if one already exists for the direct key.
func (s *SQLiteStore) CreateDirectChat(ctx context.Context, directKey string, user1ID, user2ID int64) (*store.Chat, error) {
	if existing, err := s.GetChatByDirectKey(ctx, directKey); err == nil {
		return existing, nil
	}

	query := `
		INSERT INTO chats (name, type, created_by, direct_key)
		VALUES ('', 'direct', ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, user1ID, directKey)
	if err != nil {
		return nil, fmt.Errorf("insert direct chat: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	if err := s.AddMember(ctx, user1ID, id); err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	if err := s.AddMember(ctx, user2ID, id); err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}

	return s.GetChatByID(ctx, id)
}

// GetChatByID retrieves a chat by ID.
func (s *SQLiteStore) GetChatByID(ctx context.Context, id int64) (*store.Chat, error) {
	query := `
		SELECT id, name, type, created_by, direct_key, created_at
		FROM chats
		WHERE id = ?
	`
	return s.scanChat(s.db.QueryRowContext(ctx, query, id))
}

// GetChatByDirectKey retrieves a direct chat by its direct_key.
func (s *SQLiteStore) GetChatByDirectKey(ctx context.Context, directKey string) (*store.Chat, error) {
	query := `
		SELECT id, name, type, created_by, direct_key, created_at
		FROM chats
		WHERE direct_key = ?
	`
	return s.scanChat(s.db.QueryRowContext(ctx, query, directKey))
}

func (s *SQLiteStore) scanChat(row *sql.Row) (*store.Chat, error) {
	var chat store.Chat
	var chatType string
	var directKey sql.NullString

	err := row.Scan(
		&chat.ID,
		&chat.Name,
		&chatType,
		&chat.CreatedBy,
		&directKey,
		&chat.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("chat not found: %w", err)
		}
		return nil, fmt.Errorf("query chat: %w", err)
	}

	chat.Type = store.ChatType(chatType)
	if directKey.Valid {
		chat.DirectKey = &directKey.String
	}

	return &chat, nil
}

// ListChats lists chats the user is a member of.
func (s *SQLiteStore) ListChats(ctx context.Context, userID int64) ([]*store.Chat, error) {
	query := `
		SELECT c.id, c.name, c.type, c.created_by, c.direct_key, c.created_at
		FROM chats c
		JOIN chat_members m ON m.chat_id = c.id
		WHERE m.user_id = ?
		ORDER BY c.created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	var chats []*store.Chat
	for rows.Next() {
		var chat store.Chat
		var chatType string
		var directKey sql.NullString
		if err := rows.Scan(&chat.ID, &chat.Name, &chatType, &chat.CreatedBy, &directKey, &chat.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chat.Type = store.ChatType(chatType)
		if directKey.Valid {
			chat.DirectKey = &directKey.String
		}
		chats = append(chats, &chat)
	}

	return chats, rows.Err()
}

// AddMember adds a user to a chat.
func (s *SQLiteStore) AddMember(ctx context.Context, userID, chatID int64) error {
	query := `INSERT OR IGNORE INTO chat_members (user_id, chat_id) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, query, userID, chatID); err != nil {
		return fmt.Errorf("insert chat member: %w", err)
	}
	return nil
}

// RemoveMember removes a user from a chat.
func (s *SQLiteStore) RemoveMember(ctx context.Context, userID, chatID int64) error {
	query := `DELETE FROM chat_members WHERE user_id = ? AND chat_id = ?`
	if _, err := s.db.ExecContext(ctx, query, userID, chatID); err != nil {
		return fmt.Errorf("delete chat member: %w", err)
	}
	return nil
}

// IsMember checks if user is a member of the chat.
func (s *SQLiteStore) IsMember(ctx context.Context, userID, chatID int64) (bool, error) {
	query := `SELECT 1 FROM chat_members WHERE user_id = ? AND chat_id = ?`
	var exists int
	err := s.db.QueryRowContext(ctx, query, userID, chatID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query chat member: %w", err)
	}
	return true, nil
}

// ListMembers lists user IDs of all chat members.
func (s *SQLiteStore) ListMembers(ctx context.Context, chatID int64) ([]int64, error) {
	query := `SELECT user_id FROM chat_members WHERE chat_id = ? ORDER BY joined_at`
	rows, err := s.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("query chat members: %w", err)
	}
	defer rows.Close()

	var members []int64
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, userID)
	}

	return members, rows.Err()
}

// ==== CallStore implementation ====

// CreateCall creates a new call.
func (s *SQLiteStore) CreateCall(ctx context.Context, call *store.Call) error {
	query := `
		INSERT INTO calls (id, type, media, chat_id, initiator_user_id, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		call.ID,
		string(call.Type),
		string(call.Media),
		call.ChatID,
		call.InitiatorUserID,
		string(call.Status),
	)
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

// UpdateCall updates an existing call. ended_at is only ever written when
// currently NULL, which keeps the column write-once at the storage level.
func (s *SQLiteStore) UpdateCall(ctx context.Context, call *store.Call) error {
	query := `
		UPDATE calls
		SET status = ?, updated_at = CURRENT_TIMESTAMP,
		    ended_at = COALESCE(ended_at, ?)
		WHERE id = ?
	`
	_, err := s.db.ExecContext(ctx, query,
		string(call.Status),
		call.EndedAt,
		call.ID,
	)
	if err != nil {
		return fmt.Errorf("update call: %w", err)
	}
	return nil
}

// GetCall retrieves a call by ID.
func (s *SQLiteStore) GetCall(ctx context.Context, id string) (*store.Call, error) {
	query := `
		SELECT id, type, media, chat_id, initiator_user_id, status, created_at, updated_at, ended_at
		FROM calls
		WHERE id = ?
	`
	return s.scanCall(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLiteStore) scanCall(row *sql.Row) (*store.Call, error) {
	var call store.Call
	var callType, media, status string
	var chatID sql.NullInt64
	var endedAt sql.NullTime

	err := row.Scan(
		&call.ID,
		&callType,
		&media,
		&chatID,
		&call.InitiatorUserID,
		&status,
		&call.CreatedAt,
		&call.UpdatedAt,
		&endedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("call not found: %w", err)
		}
		return nil, fmt.Errorf("query call: %w", err)
	}

	call.Type = store.CallType(callType)
	call.Media = store.CallMedia(media)
	call.Status = store.CallStatus(status)
	if chatID.Valid {
		call.ChatID = &chatID.Int64
	}
	if endedAt.Valid {
		call.EndedAt = &endedAt.Time
	}

	return &call, nil
}

// GetActiveCallForChat returns a ringing or ongoing call started by the user
// in the chat, or nil if none exists.
func (s *SQLiteStore) GetActiveCallForChat(ctx context.Context, initiatorUserID, chatID int64) (*store.Call, error) {
	query := `
		SELECT id, type, media, chat_id, initiator_user_id, status, created_at, updated_at, ended_at
		FROM calls
		WHERE initiator_user_id = ? AND chat_id = ? AND status IN ('ringing', 'ongoing')
		LIMIT 1
	`
	call, err := s.scanCall(s.db.QueryRowContext(ctx, query, initiatorUserID, chatID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return call, nil
}

// ListActiveCalls lists ringing or ongoing calls the user participates in.
func (s *SQLiteStore) ListActiveCalls(ctx context.Context, userID int64) ([]*store.Call, error) {
	query := `
		SELECT c.id, c.type, c.media, c.chat_id, c.initiator_user_id, c.status, c.created_at, c.updated_at, c.ended_at
		FROM calls c
		JOIN call_participants p ON p.call_id = c.id
		WHERE p.user_id = ? AND c.status IN ('ringing', 'ongoing')
		ORDER BY c.created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query active calls: %w", err)
	}
	defer rows.Close()

	var calls []*store.Call
	for rows.Next() {
		var call store.Call
		var callType, media, status string
		var chatID sql.NullInt64
		var endedAt sql.NullTime
		if err := rows.Scan(&call.ID, &callType, &media, &chatID, &call.InitiatorUserID, &status, &call.CreatedAt, &call.UpdatedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		call.Type = store.CallType(callType)
		call.Media = store.CallMedia(media)
		call.Status = store.CallStatus(status)
		if chatID.Valid {
			call.ChatID = &chatID.Int64
		}
		if endedAt.Valid {
			call.EndedAt = &endedAt.Time
		}
		calls = append(calls, &call)
	}

	return calls, rows.Err()
}

// AddParticipant adds a participant to a call.
func (s *SQLiteStore) AddParticipant(ctx context.Context, p *store.CallParticipant) error {
	query := `
		INSERT INTO call_participants (call_id, user_id, status, joined_at, left_at)
		VALUES (?, ?, ?, ?, ?)
	`
	status := p.Status
	if status == "" {
		status = store.ParticipantInvited
	}
	result, err := s.db.ExecContext(ctx, query, p.CallID, p.UserID, string(status), p.JoinedAt, p.LeftAt)
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	p.ID = id
	p.Status = status

	return nil
}

// UpdateParticipant updates a participant record.
func (s *SQLiteStore) UpdateParticipant(ctx context.Context, p *store.CallParticipant) error {
	query := `
		UPDATE call_participants
		SET status = ?, joined_at = ?, left_at = ?
		WHERE call_id = ? AND user_id = ?
	`
	_, err := s.db.ExecContext(ctx, query, string(p.Status), p.JoinedAt, p.LeftAt, p.CallID, p.UserID)
	if err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	return nil
}

// GetParticipant retrieves a participant from a call.
func (s *SQLiteStore) GetParticipant(ctx context.Context, callID string, userID int64) (*store.CallParticipant, error) {
	query := `
		SELECT id, call_id, user_id, status, joined_at, left_at
		FROM call_participants
		WHERE call_id = ? AND user_id = ?
	`
	var p store.CallParticipant
	var status string
	var joinedAt, leftAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, callID, userID).Scan(
		&p.ID,
		&p.CallID,
		&p.UserID,
		&status,
		&joinedAt,
		&leftAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("participant not found: %w", err)
		}
		return nil, fmt.Errorf("query participant: %w", err)
	}

	p.Status = store.ParticipantStatus(status)
	if joinedAt.Valid {
		p.JoinedAt = &joinedAt.Time
	}
	if leftAt.Valid {
		p.LeftAt = &leftAt.Time
	}

	return &p, nil
}

// ListParticipants lists all participants in a call, in invite order.
func (s *SQLiteStore) ListParticipants(ctx context.Context, callID string) ([]*store.CallParticipant, error) {
	query := `
		SELECT id, call_id, user_id, status, joined_at, left_at
		FROM call_participants
		WHERE call_id = ?
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, callID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var participants []*store.CallParticipant
	for rows.Next() {
		var p store.CallParticipant
		var status string
		var joinedAt, leftAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.CallID, &p.UserID, &status, &joinedAt, &leftAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		p.Status = store.ParticipantStatus(status)
		if joinedAt.Valid {
			p.JoinedAt = &joinedAt.Time
		}
		if leftAt.Valid {
			p.LeftAt = &leftAt.Time
		}
		participants = append(participants, &p)
	}

	return participants, rows.Err()
}
