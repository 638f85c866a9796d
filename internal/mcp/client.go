// Package mcp implements a client for the remote tool server. The
// transport is HTTP with server-sent events: the server's SSE stream
// announces a message endpoint, requests are POSTed there as JSON-RPC
// 2.0 calls and responses arrive back over the stream.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/olgaz/aichat/internal/logger"
	"github.com/olgaz/aichat/internal/tools"
)

// Phase is the coarse connection state.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseConnected
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseError:
		return "error"
	default:
		return "disconnected"
	}
}

// State is the connection state, with a human-readable message when
// the phase is PhaseError.
type State struct {
	Phase Phase
	Err   string
}

// handshakeTimeout bounds how long Connect waits for the server to
// announce its message endpoint.
const handshakeTimeout = 10 * time.Second

// Client is a connection to one tool server. The zero value is not
// usable; create clients with New.
//
// Connect, Disconnect and Reconnect are serialized: concurrent
// reconnect requests collapse into one teardown-and-dial sequence.
type Client struct {
	httpClient *http.Client
	log        *logger.Logger

	mu  sync.Mutex // serializes connection lifecycle changes
	url string

	stateMu sync.RWMutex
	state   State
	onState func(State)

	sessMu sync.RWMutex
	sess   *session
}

// New creates a disconnected client. A nil httpClient gets a default
// without a global timeout (the SSE stream is long-lived; individual
// calls are bounded by their context).
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		httpClient: httpClient,
		log:        logger.Global().WithPrefix("mcp"),
		state:      State{Phase: PhaseDisconnected},
	}
}

// OnStateChange registers a listener invoked on every state
// transition. Must be called before Connect.
func (c *Client) OnStateChange(fn func(State)) {
	c.stateMu.Lock()
	c.onState = fn
	c.stateMu.Unlock()
}

// CurrentState returns the current connection state.
func (c *Client) CurrentState() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Connected reports whether the client is usable for calls.
func (c *Client) Connected() bool {
	return c.CurrentState().Phase == PhaseConnected
}

func (c *Client) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	fn := c.onState
	c.stateMu.Unlock()

	c.log.Debug("state: %s %s", s.Phase, s.Err)
	if fn != nil {
		fn(s)
	}
}

// Connect dials the server at serverURL and performs the initialize
// handshake. Connecting while already connected to the same URL is a
// no-op; a different URL triggers a reconnect to the new address.
func (c *Client) Connect(ctx context.Context, serverURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Connected() && c.url == serverURL {
		return nil
	}
	c.teardown()
	c.url = serverURL

	return c.dial(ctx)
}

// Disconnect closes the connection. Safe to call in any state.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardown()
	c.setState(State{Phase: PhaseDisconnected})
}

// Reconnect tears the connection down and dials again using the URL
// from the last Connect.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.url == "" {
		return errors.New("no server URL to reconnect to")
	}
	c.teardown()

	return c.dial(ctx)
}

// teardown stops the active session. Callers hold c.mu. The state
// leaves PhaseConnected before the stream closes so the read loop
// can tell a deliberate close from a lost connection.
func (c *Client) teardown() {
	c.sessMu.Lock()
	sess := c.sess
	c.sess = nil
	c.sessMu.Unlock()

	if sess != nil {
		if c.Connected() {
			c.setState(State{Phase: PhaseDisconnected})
		}
		sess.close()
	}
}

func (c *Client) dial(ctx context.Context) error {
	c.setState(State{Phase: PhaseConnecting})

	sess, err := c.openStream(ctx)
	if err != nil {
		mapped := mapConnectionError(err)
		c.setState(State{Phase: PhaseError, Err: mapped.Error()})
		return mapped
	}

	c.sessMu.Lock()
	c.sess = sess
	c.sessMu.Unlock()

	if err := c.initialize(ctx, sess); err != nil {
		c.sessMu.Lock()
		c.sess = nil
		c.sessMu.Unlock()
		sess.close()

		mapped := mapConnectionError(err)
		c.setState(State{Phase: PhaseError, Err: mapped.Error()})
		return mapped
	}

	c.setState(State{Phase: PhaseConnected})
	c.log.Info("connected to %s", c.url)
	return nil
}

// openStream starts the SSE stream and waits for the endpoint event.
func (c *Client) openStream(ctx context.Context) (*session, error) {
	streamCtx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.url, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("tool server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	sess := &session{
		client:     c,
		cancel:     cancel,
		body:       resp.Body,
		pending:    make(map[int64]chan rpcReply),
		endpointCh: make(chan string, 1),
		done:       make(chan struct{}),
	}
	go sess.readLoop()

	select {
	case endpoint := <-sess.endpointCh:
		resolved, err := resolveEndpoint(c.url, endpoint)
		if err != nil {
			sess.close()
			return nil, err
		}
		sess.endpoint = resolved
		return sess, nil
	case <-sess.done:
		return nil, errors.New("tool server closed the stream during handshake")
	case <-time.After(handshakeTimeout):
		sess.close()
		return nil, errors.New("timeout waiting for the tool server endpoint")
	case <-ctx.Done():
		sess.close()
		return nil, ctx.Err()
	}
}

func (c *Client) initialize(ctx context.Context, sess *session) error {
	params := map[string]interface{}{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]interface{}{},
		"clientInfo": map[string]interface{}{
			"name":    "aichat",
			"version": "1.0.0",
		},
	}
	if _, err := sess.call(ctx, "initialize", params); err != nil {
		return err
	}
	return sess.notify(ctx, "notifications/initialized", nil)
}

// resolveEndpoint makes the announced message endpoint absolute
// relative to the stream URL.
func resolveEndpoint(base, endpoint string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	return baseURL.ResolveReference(ref).String(), nil
}

// Ping checks that the server still answers.
func (c *Client) Ping(ctx context.Context) error {
	sess, err := c.activeSession()
	if err != nil {
		return err
	}
	_, err = sess.call(ctx, "ping", nil)
	return err
}

// ListTools fetches the server's tool catalog.
func (c *Client) ListTools(ctx context.Context) ([]tools.Descriptor, error) {
	sess, err := c.activeSession()
	if err != nil {
		return nil, err
	}

	raw, err := sess.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Tools []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			InputSchema struct {
				Type       string `json:"type"`
				Properties map[string]struct {
					Type        string   `json:"type"`
					Description string   `json:"description"`
					Enum        []string `json:"enum"`
				} `json:"properties"`
				Required []string `json:"required"`
			} `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("invalid tools/list response: %w", err)
	}

	descriptors := make([]tools.Descriptor, 0, len(result.Tools))
	for _, t := range result.Tools {
		schema := tools.InputSchema{
			Type:       t.InputSchema.Type,
			Properties: map[string]tools.PropertySchema{},
			Required:   t.InputSchema.Required,
		}
		if schema.Type == "" {
			schema.Type = "object"
		}
		for name, p := range t.InputSchema.Properties {
			schema.Properties[name] = tools.PropertySchema{
				Type:        p.Type,
				Description: p.Description,
				Enum:        p.Enum,
			}
		}
		descriptors = append(descriptors, tools.Descriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	return descriptors, nil
}

// CallTool invokes a remote tool. Arguments are coerced to the
// primitive types the server accepts. A server-side tool failure
// comes back as a tools.CallError result; transport failures are
// returned as errors so the caller can decide to reconnect.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (tools.Result, error) {
	sess, err := c.activeSession()
	if err != nil {
		return nil, err
	}

	raw, err := sess.call(ctx, "tools/call", map[string]interface{}{
		"name":      name,
		"arguments": coerceArguments(args),
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		Content []json.RawMessage `json:"content"`
		IsError bool              `json:"isError"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("invalid tools/call response: %w", err)
	}

	content := decodeContent(result.Content)
	if result.IsError {
		return tools.CallError{
			ToolName: name,
			Message:  contentText(content),
		}, nil
	}
	return tools.Success{ToolName: name, Content: content}, nil
}

func (c *Client) activeSession() (*session, error) {
	c.sessMu.RLock()
	sess := c.sess
	c.sessMu.RUnlock()

	if sess == nil || !c.Connected() {
		return nil, errors.New("not connected to the tool server")
	}
	return sess, nil
}

// coerceArguments flattens tool arguments to the primitives the
// server handles: strings, numbers and booleans pass through, null
// becomes an empty string, everything else its JSON text.
func coerceArguments(args map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		switch v := v.(type) {
		case nil:
			out[k] = ""
		case string, bool, float64, int, int64:
			out[k] = v
		default:
			if data, err := json.Marshal(v); err == nil {
				out[k] = string(data)
			} else {
				out[k] = fmt.Sprintf("%v", v)
			}
		}
	}
	return out
}

func decodeContent(parts []json.RawMessage) []tools.Content {
	var out []tools.Content
	for _, part := range parts {
		var head struct {
			Type     string `json:"type"`
			Text     string `json:"text"`
			Data     string `json:"data"`
			MimeType string `json:"mimeType"`
			Resource struct {
				URI      string `json:"uri"`
				MimeType string `json:"mimeType"`
				Text     string `json:"text"`
			} `json:"resource"`
		}
		if err := json.Unmarshal(part, &head); err != nil {
			continue
		}
		switch head.Type {
		case "text":
			out = append(out, tools.TextContent{Text: head.Text})
		case "image":
			out = append(out, tools.ImageContent{Data: head.Data, MimeType: head.MimeType})
		case "resource":
			out = append(out, tools.ResourceContent{
				URI:      head.Resource.URI,
				MimeType: head.Resource.MimeType,
				Text:     head.Resource.Text,
			})
		}
	}
	return out
}

func contentText(content []tools.Content) string {
	return tools.Success{Content: content}.Text()
}

// mapConnectionError converts low-level dial failures into messages a
// user can act on.
func mapConnectionError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return fmt.Errorf("tool server connection timed out: %w", err)
	case strings.Contains(msg, "connection refused"):
		return fmt.Errorf("tool server refused the connection: %w", err)
	case strings.Contains(msg, "no such host") || strings.Contains(msg, "server misbehaving"):
		return fmt.Errorf("tool server host not found: %w", err)
	case strings.Contains(msg, "network is unreachable"):
		return fmt.Errorf("network is unreachable: %w", err)
	default:
		return err
	}
}
