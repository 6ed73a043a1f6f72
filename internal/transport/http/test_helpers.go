package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/callwire/callwire-server/internal/auth"
	"github.com/callwire/callwire-server/internal/config"
	"github.com/callwire/callwire-server/internal/core"
	"github.com/callwire/callwire-server/internal/service/calls"
	"github.com/callwire/callwire-server/internal/service/chats"
	"github.com/callwire/callwire-server/internal/store"
	"github.com/callwire/callwire-server/internal/store/sqlite"
)

const testJWTSecret = "testsecret"

// testServer bundles the full stack behind an httptest server.
type testServer struct {
	ts    *httptest.Server
	store store.Store
	auth  *auth.Service
	calls *calls.Service
	sched *manualScheduler
}

// manualScheduler lets tests trigger ring timeouts without waiting.
type manualScheduler struct {
	fns chan func()
}

type manualTimer struct{}

func (manualTimer) Stop() bool { return true }

func (s *manualScheduler) AfterFunc(d time.Duration, fn func()) core.TimerHandle {
	select {
	case s.fns <- fn:
	default:
	}
	return manualTimer{}
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(testJWTSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
	authSvc := auth.NewService(st, jwtConfig)
	chatsSvc := chats.New(st)
	callsSvc := calls.New(st)

	disabledLogger := zerolog.Nop()
	sched := &manualScheduler{fns: make(chan func(), 8)}
	hub := core.NewHub(callsSvc, sched, 45*time.Second, &disabledLogger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := NewServer(hub, Services{
		Auth:  authSvc,
		Chats: chatsSvc,
		Calls: callsSvc,
	}, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
		LoginRateLimit:    0,
	}, &disabledLogger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testServer{ts: ts, store: st, auth: authSvc, calls: callsSvc, sched: sched}
}

// registerUser creates a user over the API and returns its token and ID.
func (s *testServer) registerUser(t *testing.T, username string) (string, int64) {
	t.Helper()

	body, _ := json.Marshal(RegisterRequest{Username: username, Password: "secret1"})
	resp, err := s.ts.Client().Post(s.ts.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 201 {
		t.Fatalf("register status = %d", resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}

	claims, err := s.auth.ValidateToken(authResp.Token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	return authResp.Token, claims.UserID
}
