package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/callwire/callwire-server/internal/proto"
	"github.com/callwire/callwire-server/internal/service/calls"
)

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (s *testServer) doJSON(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, s.ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestAuthEndpoints(t *testing.T) {
	s := startTestServer(t)

	resp := s.doJSON(t, "POST", "/api/auth/register", "", RegisterRequest{Username: "alice", Password: "secret1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Duplicate username.
	resp = s.doJSON(t, "POST", "/api/auth/register", "", RegisterRequest{Username: "alice", Password: "secret1"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = s.doJSON(t, "POST", "/api/auth/login", "", LoginRequest{Username: "alice", Password: "secret1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	if auth := decodeJSON[AuthResponse](t, resp); auth.Token == "" {
		t.Fatal("empty token")
	}

	resp = s.doJSON(t, "POST", "/api/auth/login", "", LoginRequest{Username: "alice", Password: "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = s.doJSON(t, "POST", "/api/auth/guest", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("guest status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestChatEndpoints(t *testing.T) {
	s := startTestServer(t)

	aliceToken, _ := s.registerUser(t, "alice")
	bobToken, bobID := s.registerUser(t, "bob")

	// Unauthorized without a token.
	resp := s.doJSON(t, "GET", "/api/chats", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthorized status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = s.doJSON(t, "POST", "/api/chats", aliceToken, CreateChatRequest{Name: "team"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create chat status = %d", resp.StatusCode)
	}
	chat := decodeJSON[ChatResponse](t, resp)
	if chat.Type != "group" || chat.Name != "team" {
		t.Fatalf("unexpected chat: %+v", chat)
	}

	resp = s.doJSON(t, "POST", "/api/chats/direct", aliceToken, OpenDirectChatRequest{UserID: bobID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("open direct chat status = %d", resp.StatusCode)
	}
	direct := decodeJSON[ChatResponse](t, resp)
	if direct.Type != "direct" {
		t.Fatalf("unexpected chat type: %s", direct.Type)
	}

	// Bob is not a member of the group chat yet.
	resp = s.doJSON(t, "POST", "/api/chats/"+itoa(chat.ID)+"/members", bobToken, AddMemberRequest{UserID: bobID})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-member add status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = s.doJSON(t, "POST", "/api/chats/"+itoa(chat.ID)+"/members", aliceToken, AddMemberRequest{UserID: bobID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add member status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = s.doJSON(t, "GET", "/api/chats", bobToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list chats status = %d", resp.StatusCode)
	}
	bobChats := decodeJSON[[]ChatResponse](t, resp)
	if len(bobChats) != 2 {
		t.Fatalf("bob chats = %d, want 2", len(bobChats))
	}
}

func TestCallEndpoints(t *testing.T) {
	s := startTestServer(t)

	aliceToken, aliceID := s.registerUser(t, "alice")
	bobToken, bobID := s.registerUser(t, "bob")

	resp := s.doJSON(t, "GET", "/api/calls/no-such-call", aliceToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing call status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = s.doJSON(t, "POST", "/api/chats/direct", aliceToken, OpenDirectChatRequest{UserID: bobID})
	chat := decodeJSON[ChatResponse](t, resp)

	// Start a call through the service layer and inspect it over the API.
	snap, err := s.calls.Start(context.Background(), calls.StartInput{
		InitiatorID: aliceID,
		ChatID:      &chat.ID,
	})
	if err != nil {
		t.Fatalf("start call: %v", err)
	}

	resp = s.doJSON(t, "GET", "/api/calls/"+snap.Call.ID, bobToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get call status = %d", resp.StatusCode)
	}
	view := decodeJSON[proto.CallView](t, resp)
	if view.Status != "ringing" || len(view.Participants) != 2 {
		t.Fatalf("unexpected view: %+v", view)
	}

	resp = s.doJSON(t, "GET", "/api/calls/active", bobToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list active status = %d", resp.StatusCode)
	}
	active := decodeJSON[[]proto.CallView](t, resp)
	if len(active) != 1 || active[0].ID != snap.Call.ID {
		t.Fatalf("unexpected active calls: %+v", active)
	}

	// Outsiders cannot read someone else's call.
	carolToken, _ := s.registerUser(t, "carol")
	resp = s.doJSON(t, "GET", "/api/calls/"+snap.Call.ID, carolToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("outsider status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}
