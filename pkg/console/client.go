package console

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultRequestTimeout = 30 * time.Second

// BackendClient talks to the call-center backend over HTTP. It covers the
// three endpoints the agent station needs: registration, call polling, and
// token issuance. Each method performs exactly one outbound request; the
// client never retries on its own.
type BackendClient struct {
	baseURL    string
	httpClient *http.Client
	logger     Logger
}

// BackendClientOptions configures optional collaborators of the client.
type BackendClientOptions struct {
	// HTTPClient overrides the default client. Mainly for tests.
	HTTPClient *http.Client

	// Logger receives per-request debug logging. Defaults to a production
	// zap logger.
	Logger Logger
}

// NewBackendClient creates a client for the backend at baseURL. A trailing
// slash on baseURL is tolerated.
func NewBackendClient(baseURL string, opts BackendClientOptions) *BackendClient {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	if opts.Logger == nil {
		opts.Logger = NewDefaultLogger()
	}
	return &BackendClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
	}
}

// RegisterRequest is the body of POST /agents/register.
type RegisterRequest struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// RegisterResponse is the backend's acknowledgement of a registration.
// Registration is an upsert on the backend side, so repeating it with the
// same username yields the same agent ID.
type RegisterResponse struct {
	AgentID  string `json:"agent_id"`
	Status   string `json:"status"`
	Username string `json:"username"`
}

// NextCallResponse is the body of GET /calls/next. Room is empty when no
// call is waiting (the backend sends an explicit null).
type NextCallResponse struct {
	Room   string `json:"room"`
	CallID string `json:"call_id"`
}

// tokenRequest is the body of POST /livekit/token.
type tokenRequest struct {
	AgentID string `json:"agent_id"`
	Room    string `json:"room"`
}

// tokenResponse is the body returned by POST /livekit/token.
type tokenResponse struct {
	Token string `json:"token"`
}

// RegisterAgent announces the agent to the backend and returns the issued
// identity.
func (c *BackendClient) RegisterAgent(ctx context.Context, username, fullName string) (*RegisterResponse, error) {
	var resp RegisterResponse
	err := c.do(ctx, http.MethodPost, "/agents/register", &RegisterRequest{
		Username: username,
		FullName: fullName,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// NextCall asks the backend for the oldest ringing call. An empty Room in
// the response means no call is waiting.
func (c *BackendClient) NextCall(ctx context.Context) (*NextCallResponse, error) {
	var resp NextCallResponse
	if err := c.do(ctx, http.MethodGet, "/calls/next", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionToken requests a LiveKit token authorizing agentID to join room.
func (c *BackendClient) SessionToken(ctx context.Context, agentID, room string) (string, error) {
	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, "/livekit/token", &tokenRequest{
		AgentID: agentID,
		Room:    room,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Token, nil
}

// do performs a single JSON request/response round trip. Non-2xx statuses
// map to ErrBackendStatus.
func (c *BackendClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	requestID := uuid.NewString()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", requestID)

	c.logger.Debug("Backend request", "requestID", requestID, "method", method, "path", path)

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("Backend request failed", "requestID", requestID, "error", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		c.logger.Debug("Backend returned error status", "requestID", requestID, "status", res.StatusCode)
		return fmt.Errorf("%s %s (status %d): %w", method, path, res.StatusCode, ErrBackendStatus)
	}

	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", path, err)
		}
	}

	c.logger.Debug("Backend request complete", "requestID", requestID, "status", res.StatusCode)
	return nil
}
