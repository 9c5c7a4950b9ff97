package console

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arogya/agent-console/internal/test/mocks"
)

// fakeConnector records what it was asked to join instead of touching a
// real media server.
type fakeConnector struct {
	mu        sync.Mutex
	serverURL string
	token     string
	connects  int
	err       error
	handle    *fakeHandle
}

func (f *fakeConnector) Connect(serverURL, token string) (RoomHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	f.serverURL = serverURL
	f.token = token
	if f.err != nil {
		return nil, f.err
	}
	f.handle = &fakeHandle{name: "fake-room"}
	return f.handle, nil
}

type fakeHandle struct {
	name   string
	closed bool
}

func (h *fakeHandle) Name() string { return h.name }
func (h *fakeHandle) Close()       { h.closed = true }

func newTestController(t *testing.T, backend *mocks.MockBackend) (*SessionController, *fakeConnector) {
	t.Helper()
	connector := &fakeConnector{}
	client := NewBackendClient(backend.URL(), BackendClientOptions{Logger: mocks.NewMockLogger()})
	controller := NewSessionController(client, connector, ControllerOptions{
		Username:   "jdoe",
		FullName:   "Jane Doe",
		LiveKitURL: "wss://livekit.example.com",
		Logger:     mocks.NewMockLogger(),
	})
	return controller, connector
}

// TestSessionController_RegistersOnce tests that registration fires exactly
// once per process even when the initializing call runs twice
func TestSessionController_RegistersOnce(t *testing.T) {
	backend := mocks.NewMockBackend()
	defer backend.Close()

	controller, _ := newTestController(t, backend)

	require.NoError(t, controller.EnsureRegistered(context.Background()))
	require.NoError(t, controller.EnsureRegistered(context.Background()))

	register, _, _ := backend.Counts()
	assert.Equal(t, 1, register)
	assert.Equal(t, StateRegistered, controller.Snapshot().State)
	assert.Equal(t, "agent-1", controller.Snapshot().AgentID)
}

// TestSessionController_RegistersOnceConcurrent tests the guard under
// near-simultaneous invocations
func TestSessionController_RegistersOnceConcurrent(t *testing.T) {
	backend := mocks.NewMockBackend()
	defer backend.Close()

	controller, _ := newTestController(t, backend)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = controller.EnsureRegistered(context.Background())
		}()
	}
	wg.Wait()

	register, _, _ := backend.Counts()
	assert.Equal(t, 1, register)
}

// TestSessionController_RegistrationFailure tests that a failed registration
// leaves the state unregistered and is not retried
func TestSessionController_RegistrationFailure(t *testing.T) {
	backend := mocks.NewMockBackend()
	defer backend.Close()
	backend.SetFailWith(500)

	controller, _ := newTestController(t, backend)

	err := controller.EnsureRegistered(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateUnregistered, controller.Snapshot().State)

	// The one-shot guard also suppresses a later call; no retry is scheduled.
	require.NoError(t, controller.EnsureRegistered(context.Background()))
	register, _, _ := backend.Counts()
	assert.Equal(t, 1, register)
	assert.Equal(t, StateUnregistered, controller.Snapshot().State)
}

// TestSessionController_PollBeforeRegistration tests the state gate on polling
func TestSessionController_PollBeforeRegistration(t *testing.T) {
	backend := mocks.NewMockBackend()
	defer backend.Close()

	controller, _ := newTestController(t, backend)

	_, err := controller.PollNextCall(context.Background())
	assert.True(t, errors.Is(err, ErrInvalidState))

	_, next, _ := backend.Counts()
	assert.Equal(t, 0, next)
}

// TestSessionController_PollNoCall tests that an empty room is a no-op
// transition: the state stays registered and polling stays available
func TestSessionController_PollNoCall(t *testing.T) {
	backend := mocks.NewMockBackend()
	defer backend.Close()

	controller, _ := newTestController(t, backend)
	require.NoError(t, controller.EnsureRegistered(context.Background()))

	assigned, err := controller.PollNextCall(context.Background())
	require.NoError(t, err)
	assert.False(t, assigned)

	snapshot := controller.Snapshot()
	assert.Equal(t, StateRegistered, snapshot.State)
	assert.Empty(t, snapshot.Room)

	// Polling again is still allowed.
	assigned, err = controller.PollNextCall(context.Background())
	require.NoError(t, err)
	assert.False(t, assigned)
}

// TestSessionController_PollAssignsCall tests the transition to call_assigned
func TestSessionController_PollAssignsCall(t *testing.T) {
	backend := mocks.NewMockBackend()
	defer backend.Close()
	backend.SetRoom("room-42", "call-7")

	controller, _ := newTestController(t, backend)
	require.NoError(t, controller.EnsureRegistered(context.Background()))

	assigned, err := controller.PollNextCall(context.Background())
	require.NoError(t, err)
	assert.True(t, assigned)

	snapshot := controller.Snapshot()
	assert.Equal(t, StateCallAssigned, snapshot.State)
	assert.Equal(t, "room-42", snapshot.Room)
	assert.Equal(t, "call-7", snapshot.CallID)

	// Once a call is assigned, polling is no longer offered.
	_, err = controller.PollNextCall(context.Background())
	assert.True(t, errors.Is(err, ErrInvalidState))
}

// TestSessionController_PollFailureKeepsState tests that a backend error
// leaves the controller where it was
func TestSessionController_PollFailureKeepsState(t *testing.T) {
	backend := mocks.NewMockBackend()
	defer backend.Close()

	controller, _ := newTestController(t, backend)
	require.NoError(t, controller.EnsureRegistered(context.Background()))

	backend.SetFailWith(502)
	_, err := controller.PollNextCall(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateRegistered, controller.Snapshot().State)
}

// TestSessionController_AnswerBeforeAssignment tests the state gate on answering
func TestSessionController_AnswerBeforeAssignment(t *testing.T) {
	backend := mocks.NewMockBackend()
	defer backend.Close()

	controller, connector := newTestController(t, backend)

	err := controller.AnswerCall(context.Background())
	assert.True(t, errors.Is(err, ErrInvalidState))

	require.NoError(t, controller.EnsureRegistered(context.Background()))
	err = controller.AnswerCall(context.Background())
	assert.True(t, errors.Is(err, ErrInvalidState))

	assert.Equal(t, 0, connector.connects)
	_, _, token := backend.Counts()
	assert.Equal(t, 0, token)
}

// TestSessionController_AnswerFailureKeepsState tests that token or join
// failures leave the call assigned so answering can be attempted again
func TestSessionController_AnswerFailureKeepsState(t *testing.T) {
	backend := mocks.NewMockBackend()
	defer backend.Close()
	backend.SetRoom("room-42", "call-7")

	controller, connector := newTestController(t, backend)
	require.NoError(t, controller.EnsureRegistered(context.Background()))
	_, err := controller.PollNextCall(context.Background())
	require.NoError(t, err)

	// Token issuance fails.
	backend.SetFailWith(500)
	err = controller.AnswerCall(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateCallAssigned, controller.Snapshot().State)
	assert.Equal(t, 0, connector.connects)

	// Token succeeds but the room join fails.
	backend.SetFailWith(0)
	connector.err = errors.New("join refused")
	err = controller.AnswerCall(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateCallAssigned, controller.Snapshot().State)

	// Third attempt goes through.
	connector.err = nil
	require.NoError(t, controller.AnswerCall(context.Background()))
	assert.Equal(t, StateSessionActive, controller.Snapshot().State)
}

// TestSessionController_AnswerOnceConcurrent tests that a second answer
// started while the first is still in flight loses the race: only one
// token request and one room join happen, and the loser gets
// ErrSessionActive
func TestSessionController_AnswerOnceConcurrent(t *testing.T) {
	backend := mocks.NewMockBackend()
	defer backend.Close()
	backend.SetRoom("room-42", "call-7")
	backend.SetTokenDelay(200 * time.Millisecond)

	controller, connector := newTestController(t, backend)
	require.NoError(t, controller.EnsureRegistered(context.Background()))
	_, err := controller.PollNextCall(context.Background())
	require.NoError(t, err)

	firstErr := make(chan error, 1)
	go func() {
		firstErr <- controller.AnswerCall(context.Background())
	}()

	// Let the first answer reach the (slow) token endpoint, then press
	// answer again.
	time.Sleep(50 * time.Millisecond)
	err = controller.AnswerCall(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSessionActive))

	require.NoError(t, <-firstErr)

	_, _, token := backend.Counts()
	assert.Equal(t, 1, token)
	assert.Equal(t, 1, connector.connects)
	assert.Equal(t, StateSessionActive, controller.Snapshot().State)
}

// TestSessionController_AnswerRetryAfterFailureNotBlocked tests that a
// failed answer releases the in-flight guard
func TestSessionController_AnswerRetryAfterFailureNotBlocked(t *testing.T) {
	backend := mocks.NewMockBackend()
	defer backend.Close()
	backend.SetRoom("room-42", "call-7")

	controller, _ := newTestController(t, backend)
	require.NoError(t, controller.EnsureRegistered(context.Background()))
	_, err := controller.PollNextCall(context.Background())
	require.NoError(t, err)

	backend.SetFailWith(500)
	require.Error(t, controller.AnswerCall(context.Background()))

	backend.SetFailWith(0)
	require.NoError(t, controller.AnswerCall(context.Background()))
	assert.Equal(t, StateSessionActive, controller.Snapshot().State)
}

// TestSessionController_EndToEnd tests the full register -> poll -> answer
// sequence with the exact values flowing through
func TestSessionController_EndToEnd(t *testing.T) {
	backend := mocks.NewMockBackend()
	defer backend.Close()
	backend.AgentID = "a1"
	backend.Token = "tok-xyz"

	controller, connector := newTestController(t, backend)

	var states []SessionState
	controller.SetListener(func(s StateSnapshot) {
		states = append(states, s.State)
	})

	require.NoError(t, controller.EnsureRegistered(context.Background()))
	assert.Equal(t, "a1", controller.Snapshot().AgentID)

	// First poll finds nothing.
	assigned, err := controller.PollNextCall(context.Background())
	require.NoError(t, err)
	assert.False(t, assigned)

	// A call arrives.
	backend.SetRoom("room-42", "call-7")
	assigned, err = controller.PollNextCall(context.Background())
	require.NoError(t, err)
	assert.True(t, assigned)

	require.NoError(t, controller.AnswerCall(context.Background()))

	snapshot := controller.Snapshot()
	assert.Equal(t, StateSessionActive, snapshot.State)
	assert.Equal(t, "room-42", snapshot.Room)

	assert.Equal(t, 1, connector.connects)
	assert.Equal(t, "wss://livekit.example.com", connector.serverURL)
	assert.Equal(t, "tok-xyz", connector.token)
	assert.Equal(t, map[string]string{"agent_id": "a1", "room": "room-42"}, backend.LastTokenRequest)

	assert.Equal(t, []SessionState{StateRegistered, StateCallAssigned, StateSessionActive}, states)

	// session_active is terminal: neither poll nor answer is offered.
	_, err = controller.PollNextCall(context.Background())
	assert.True(t, errors.Is(err, ErrInvalidState))
	err = controller.AnswerCall(context.Background())
	assert.True(t, errors.Is(err, ErrInvalidState))

	controller.Close()
	assert.True(t, connector.handle.closed)
}

// TestSessionController_CloseWithoutSession tests that Close is a no-op
// before a session exists
func TestSessionController_CloseWithoutSession(t *testing.T) {
	backend := mocks.NewMockBackend()
	defer backend.Close()

	controller, _ := newTestController(t, backend)
	controller.Close()
	assert.Equal(t, StateUnregistered, controller.Snapshot().State)
}
