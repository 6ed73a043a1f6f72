package core

// Client is one live connection of an authenticated user. A user may hold
// several clients at once (multiple devices or tabs).
type Client struct {
	ID       string
	UserID   int64
	Username string
	Commands chan *Command
	Events   chan *Event

	// groups the client currently belongs to; maintained by the Registry.
	groups map[string]struct{}
}

// NewClient constructs a client with initialized channels.
func NewClient(id string, userID int64, username string) *Client {
	return &Client{
		ID:       id,
		UserID:   userID,
		Username: username,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 8),
		groups:   make(map[string]struct{}),
	}
}
