package sqlite

// Schema is applied on startup. Statements are idempotent so repeated
// startups against the same file are safe.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	is_guest      BOOLEAN NOT NULL DEFAULT 0,
	session_id    TEXT,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chats (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	type       TEXT NOT NULL DEFAULT 'group',
	created_by INTEGER NOT NULL REFERENCES users(id),
	direct_key TEXT UNIQUE,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chat_members (
	user_id   INTEGER NOT NULL REFERENCES users(id),
	chat_id   INTEGER NOT NULL REFERENCES chats(id),
	joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, chat_id)
);

CREATE TABLE IF NOT EXISTS calls (
	id                TEXT PRIMARY KEY,
	type              TEXT NOT NULL,
	media             TEXT NOT NULL,
	chat_id           INTEGER REFERENCES chats(id),
	initiator_user_id INTEGER NOT NULL REFERENCES users(id),
	status            TEXT NOT NULL,
	created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	ended_at          DATETIME
);

CREATE INDEX IF NOT EXISTS idx_calls_chat_status ON calls(chat_id, status);

CREATE TABLE IF NOT EXISTS call_participants (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	call_id   TEXT NOT NULL REFERENCES calls(id),
	user_id   INTEGER NOT NULL REFERENCES users(id),
	status    TEXT NOT NULL DEFAULT 'invited',
	joined_at DATETIME,
	left_at   DATETIME,
	UNIQUE (call_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_call_participants_user ON call_participants(user_id);
`
