package mocks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockBackend is a scripted stand-in for the call-center backend. It serves
// the three endpoints the console uses and counts how often each was hit so
// tests can assert on request cardinality.
type MockBackend struct {
	Server *httptest.Server

	mu sync.Mutex

	// Scripted responses.
	AgentID     string
	AgentStatus string
	Room        string
	CallID      string
	Token       string

	// FailWith, when non-zero, makes every endpoint answer with that
	// HTTP status instead of its scripted body.
	FailWith int

	// TokenDelay holds the token endpoint's response open, so tests can
	// overlap a second request with an in-flight one.
	TokenDelay time.Duration

	RegisterCalls int
	NextCalls     int
	TokenCalls    int

	// LastTokenRequest captures the body of the most recent token request.
	LastTokenRequest map[string]string
}

// NewMockBackend starts a mock backend with sensible defaults. Callers own
// the server and must Close it.
func NewMockBackend() *MockBackend {
	b := &MockBackend{
		AgentID:     "agent-1",
		AgentStatus: "online",
		Token:       "test-token",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/agents/register", b.handleRegister)
	mux.HandleFunc("/calls/next", b.handleNextCall)
	mux.HandleFunc("/livekit/token", b.handleToken)
	b.Server = httptest.NewServer(mux)
	return b
}

// URL returns the backend base URL.
func (b *MockBackend) URL() string {
	return b.Server.URL
}

// Close shuts the underlying server down.
func (b *MockBackend) Close() {
	b.Server.Close()
}

// SetRoom scripts the next-call response.
func (b *MockBackend) SetRoom(room, callID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Room = room
	b.CallID = callID
}

// SetFailWith makes every endpoint fail with the given status. Pass 0 to
// restore normal behavior.
func (b *MockBackend) SetFailWith(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.FailWith = status
}

// SetTokenDelay makes the token endpoint sleep before responding.
func (b *MockBackend) SetTokenDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.TokenDelay = d
}

// Counts returns the per-endpoint request counts.
func (b *MockBackend) Counts() (register, next, token int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.RegisterCalls, b.NextCalls, b.TokenCalls
}

func (b *MockBackend) handleRegister(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.RegisterCalls++
	fail := b.FailWith
	resp := map[string]string{
		"agent_id": b.AgentID,
		"status":   b.AgentStatus,
	}
	b.mu.Unlock()

	var req map[string]string
	_ = json.NewDecoder(r.Body).Decode(&req)
	resp["username"] = req["username"]

	if fail != 0 {
		w.WriteHeader(fail)
		return
	}
	writeJSON(w, resp)
}

func (b *MockBackend) handleNextCall(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.NextCalls++
	fail := b.FailWith
	room, callID := b.Room, b.CallID
	b.mu.Unlock()

	if fail != 0 {
		w.WriteHeader(fail)
		return
	}
	if room == "" {
		// The real backend sends an explicit null when no call waits.
		writeJSON(w, map[string]interface{}{"room": nil})
		return
	}
	writeJSON(w, map[string]string{"room": room, "call_id": callID})
}

func (b *MockBackend) handleToken(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	b.TokenCalls++
	b.LastTokenRequest = req
	fail := b.FailWith
	token := b.Token
	delay := b.TokenDelay
	b.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail != 0 {
		w.WriteHeader(fail)
		return
	}
	writeJSON(w, map[string]string{"token": token})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
