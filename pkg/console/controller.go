package console

import (
	"context"
	"fmt"
	"sync"
)

// ControllerOptions configures a SessionController.
type ControllerOptions struct {
	// Username is the agent's login name sent at registration.
	Username string

	// FullName is the agent's display name sent at registration.
	FullName string

	// LiveKitURL is handed to the room connector together with the token.
	LiveKitURL string

	// Logger receives controller logging. Defaults to a production zap
	// logger.
	Logger Logger
}

// StateSnapshot is an immutable view of the controller handed to the
// listener after every state change.
type StateSnapshot struct {
	State       SessionState
	AgentID     string
	AgentStatus string
	Room        string
	CallID      string
}

// SessionController owns the hand-off from "unregistered" to "in a live
// call". It drives three backend requests in strict order and holds the
// minimal state needed to enable each next step:
//
//	Unregistered -> Registered -> CallAssigned -> SessionActive
//
// Each operation is gated behind the previous state, so the controller
// never has two outbound requests in flight at once. SessionActive is
// terminal: there is no user-facing way to leave a call, and room
// lifecycle events are logged by the connector but never acted upon.
type SessionController struct {
	backend   *BackendClient
	connector RoomConnector
	opts      ControllerOptions

	mu              sync.Mutex
	registerStarted bool
	answering       bool
	state           SessionState
	agentID         string
	agentStatus     string
	room            string
	callID          string
	token           string
	handle          RoomHandle
	listener        func(StateSnapshot)

	logger Logger
}

// NewSessionController creates a controller in the Unregistered state.
func NewSessionController(backend *BackendClient, connector RoomConnector, opts ControllerOptions) *SessionController {
	if opts.Logger == nil {
		opts.Logger = NewDefaultLogger()
	}
	return &SessionController{
		backend:   backend,
		connector: connector,
		opts:      opts,
		state:     StateUnregistered,
		logger:    opts.Logger,
	}
}

// SetListener installs a callback invoked with a snapshot after every state
// change. Must be called before the first operation; the callback runs on
// the operation's goroutine.
func (c *SessionController) SetListener(fn func(StateSnapshot)) {
	c.mu.Lock()
	c.listener = fn
	c.mu.Unlock()
}

// Snapshot returns the current controller state.
func (c *SessionController) Snapshot() StateSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *SessionController) snapshotLocked() StateSnapshot {
	return StateSnapshot{
		State:       c.state,
		AgentID:     c.agentID,
		AgentStatus: c.agentStatus,
		Room:        c.room,
		CallID:      c.callID,
	}
}

func (c *SessionController) notify(fn func(StateSnapshot), snapshot StateSnapshot) {
	if fn != nil {
		fn(snapshot)
	}
}

// EnsureRegistered runs the one-shot registration. The guard flag is set
// before the request is issued, so a second near-simultaneous invocation
// (or a repeated initialization pass) is suppressed rather than producing
// a second registration. On failure the state stays Unregistered and no
// retry is scheduled.
func (c *SessionController) EnsureRegistered(ctx context.Context) error {
	c.mu.Lock()
	if c.registerStarted {
		c.mu.Unlock()
		c.logger.Debug("Registration already started, skipping")
		return nil
	}
	c.registerStarted = true
	c.mu.Unlock()

	resp, err := c.backend.RegisterAgent(ctx, c.opts.Username, c.opts.FullName)
	if err != nil {
		c.logger.Error("Registration failed", "username", c.opts.Username, "error", err)
		return err
	}

	c.mu.Lock()
	c.agentID = resp.AgentID
	c.agentStatus = resp.Status
	c.state = StateRegistered
	fn, snapshot := c.listener, c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("Agent registered", "agentID", resp.AgentID, "status", resp.Status)
	c.notify(fn, snapshot)
	return nil
}

// PollNextCall asks the backend for the next waiting call. Only valid in
// the Registered state. When the backend reports no waiting call the poll
// is a no-op transition: state is unchanged and polling remains the
// available action. Returns true when a call was assigned.
func (c *SessionController) PollNextCall(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.state != StateRegistered {
		state := c.state
		c.mu.Unlock()
		return false, fmt.Errorf("cannot poll in state %s: %w", state, ErrInvalidState)
	}
	c.mu.Unlock()

	resp, err := c.backend.NextCall(ctx)
	if err != nil {
		c.logger.Error("Call poll failed", "error", err)
		return false, err
	}

	if resp.Room == "" {
		c.logger.Info("No call waiting")
		return false, nil
	}

	c.mu.Lock()
	if c.state != StateRegistered {
		// A competing transition won while the request was in flight.
		state := c.state
		c.mu.Unlock()
		return false, fmt.Errorf("cannot assign call in state %s: %w", state, ErrInvalidState)
	}
	c.room = resp.Room
	c.callID = resp.CallID
	c.state = StateCallAssigned
	fn, snapshot := c.listener, c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("Call assigned", "room", resp.Room, "callID", resp.CallID)
	c.notify(fn, snapshot)
	return true, nil
}

// AnswerCall obtains a session token for the assigned call and hands it,
// together with the LiveKit server URL, to the room connector. Only valid
// in the CallAssigned state with both the agent identity and the call room
// set. Only one answer can be in flight at a time; a second invocation
// while the first is still running loses the race and gets
// ErrSessionActive. On failure the state is unchanged; the call can be
// answered again.
func (c *SessionController) AnswerCall(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateCallAssigned {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("cannot answer in state %s: %w", state, ErrInvalidState)
	}
	if c.agentID == "" {
		c.mu.Unlock()
		return ErrNotRegistered
	}
	if c.room == "" {
		c.mu.Unlock()
		return ErrNoCallAssigned
	}
	if c.answering {
		c.mu.Unlock()
		c.logger.Debug("Answer already in progress, skipping")
		return fmt.Errorf("answer already in progress: %w", ErrSessionActive)
	}
	c.answering = true
	agentID, room := c.agentID, c.room
	c.mu.Unlock()

	token, err := c.backend.SessionToken(ctx, agentID, room)
	if err != nil {
		c.logger.Error("Token request failed", "room", room, "error", err)
		c.clearAnswering()
		return err
	}

	handle, err := c.connector.Connect(c.opts.LiveKitURL, token)
	if err != nil {
		c.logger.Error("Room join failed", "room", room, "error", err)
		c.clearAnswering()
		return err
	}

	c.mu.Lock()
	if c.state != StateCallAssigned {
		// A competing transition won while the request was in flight.
		state := c.state
		c.answering = false
		c.mu.Unlock()
		handle.Close()
		return fmt.Errorf("cannot start session in state %s: %w", state, ErrSessionActive)
	}
	c.token = token
	c.handle = handle
	c.state = StateSessionActive
	c.answering = false
	fn, snapshot := c.listener, c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("Live session started", "room", room)
	c.notify(fn, snapshot)
	return nil
}

func (c *SessionController) clearAnswering() {
	c.mu.Lock()
	c.answering = false
	c.mu.Unlock()
}

// Close disconnects the live session if one is active. Called on process
// shutdown only; there is no user-facing hang-up action.
func (c *SessionController) Close() {
	c.mu.Lock()
	handle := c.handle
	c.handle = nil
	c.mu.Unlock()
	if handle != nil {
		handle.Close()
	}
}
