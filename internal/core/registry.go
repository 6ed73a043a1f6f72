package core

// Registry tracks which clients belong to which user and which broadcast
// group. It is mutated only from the hub goroutine, so membership changes
// are always visible to the fan-out that follows them; no locking needed.
type Registry struct {
	users  map[int64]map[*Client]struct{}
	groups map[string]map[*Client]struct{}
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[int64]map[*Client]struct{}),
		groups: make(map[string]map[*Client]struct{}),
	}
}

// Register adds a client under its user. Returns true if this is the user's
// first live connection.
func (r *Registry) Register(c *Client) bool {
	conns, ok := r.users[c.UserID]
	if !ok {
		conns = make(map[*Client]struct{})
		r.users[c.UserID] = conns
	}
	conns[c] = struct{}{}
	return len(conns) == 1
}

// Unregister removes a client from its user and from every group it joined.
// Returns true if the user has no live connections left.
func (r *Registry) Unregister(c *Client) bool {
	for name := range c.groups {
		r.RemoveFromGroup(name, c)
	}

	conns, ok := r.users[c.UserID]
	if !ok {
		return true
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(r.users, c.UserID)
		return true
	}
	return false
}

// Connections returns the number of live connections for the user.
func (r *Registry) Connections(userID int64) int {
	return len(r.users[userID])
}

// AddToGroup inserts a client into a named group.
func (r *Registry) AddToGroup(name string, c *Client) {
	group, ok := r.groups[name]
	if !ok {
		group = make(map[*Client]struct{})
		r.groups[name] = group
	}
	group[c] = struct{}{}
	c.groups[name] = struct{}{}
}

// RemoveFromGroup deletes a client from a named group.
func (r *Registry) RemoveFromGroup(name string, c *Client) {
	delete(c.groups, name)
	group, ok := r.groups[name]
	if !ok {
		return
	}
	delete(group, c)
	if len(group) == 0 {
		delete(r.groups, name)
	}
}

// DropGroup removes a group and clears membership on its clients.
func (r *Registry) DropGroup(name string) {
	for c := range r.groups[name] {
		delete(c.groups, name)
	}
	delete(r.groups, name)
}

// SendToUser delivers an event to every live connection of the user.
// A no-op if the user is offline.
func (r *Registry) SendToUser(userID int64, event *Event) {
	for c := range r.users[userID] {
		c.send(event)
	}
}

// SendToGroup delivers an event to every client in the group.
func (r *Registry) SendToGroup(name string, event *Event) {
	for c := range r.groups[name] {
		c.send(event)
	}
}

func (c *Client) send(event *Event) {
	select {
	case c.Events <- event:
	default:
		// Drop if slow consumer.
	}
}
