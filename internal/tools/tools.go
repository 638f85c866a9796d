// Package tools declares the tools offered to the model and executes
// the calls it makes: local handlers run in-process, everything else
// is forwarded to the remote tool server.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/olgaz/aichat/internal/chat"
	"github.com/olgaz/aichat/internal/logger"
)

// PropertySchema describes one parameter of a tool.
type PropertySchema struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// InputSchema is the JSON-schema object describing a tool's
// parameters.
type InputSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// Descriptor declares a tool to the model.
type Descriptor struct {
	Name        string
	Description string
	InputSchema InputSchema
}

// ToJSONSchema renders the descriptor in the provider's
// {"type":"function","function":{...}} declaration shape.
func (d Descriptor) ToJSONSchema() map[string]interface{} {
	schema := d.InputSchema
	if schema.Type == "" {
		schema.Type = "object"
	}
	if schema.Properties == nil {
		schema.Properties = map[string]PropertySchema{}
	}

	return map[string]interface{}{
		"type": "function",
		"function": map[string]interface{}{
			"name":        d.Name,
			"description": d.Description,
			"parameters":  schema,
		},
	}
}

// Content is one piece of a successful tool result.
type Content interface {
	isContent()
}

// TextContent is plain text output.
type TextContent struct {
	Text string
}

// ImageContent is base64-encoded image data.
type ImageContent struct {
	Data     string
	MimeType string
}

// ResourceContent references server-side data by URI.
type ResourceContent struct {
	URI      string
	MimeType string
	Text     string
}

func (TextContent) isContent()     {}
func (ImageContent) isContent()    {}
func (ResourceContent) isContent() {}

// Result is the outcome of one tool call: either a Success or a
// CallError.
type Result interface {
	Tool() string
}

// Success carries the content pieces a tool produced.
type Success struct {
	ToolName string
	Content  []Content
}

func (s Success) Tool() string { return s.ToolName }

// Text flattens the textual content pieces into one string.
// Non-text pieces are referenced by type so the model knows they
// exist.
func (s Success) Text() string {
	var parts []string
	for _, c := range s.Content {
		switch v := c.(type) {
		case TextContent:
			parts = append(parts, v.Text)
		case ImageContent:
			parts = append(parts, fmt.Sprintf("[image: %s]", v.MimeType))
		case ResourceContent:
			if v.Text != "" {
				parts = append(parts, v.Text)
			} else {
				parts = append(parts, fmt.Sprintf("[resource: %s]", v.URI))
			}
		}
	}
	return strings.Join(parts, "\n")
}

// CallError reports a failed tool call. Retryable hints that the same
// call may succeed after reconnecting to the tool server.
type CallError struct {
	ToolName  string
	Message   string
	Retryable bool
}

func (e CallError) Tool() string { return e.ToolName }

// LocalHandler executes a group of related tools in-process.
type LocalHandler interface {
	Tools() []Descriptor
	CanHandle(name string) bool
	Call(ctx context.Context, name string, args map[string]interface{}) Result
}

// settingsGated is implemented by handlers that can be switched off
// in the conversation settings.
type settingsGated interface {
	Enabled(settings chat.Settings) bool
}

// RemoteSession is a connection to the remote tool server.
type RemoteSession interface {
	Connected() bool
	ListTools(ctx context.Context) ([]Descriptor, error)
	CallTool(ctx context.Context, name string, args map[string]interface{}) (Result, error)
	Reconnect(ctx context.Context) error
}

// IsRetryable reports whether a remote call failure is worth one
// reconnect-and-retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "temporar") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe")
}

// Registry aggregates local handlers and the remote session behind a
// single lookup-and-execute surface.
type Registry struct {
	local  []LocalHandler
	remote RemoteSession
	log    *logger.Logger
}

// NewRegistry creates a registry. remote may be nil when no tool
// server is configured.
func NewRegistry(remote RemoteSession, handlers ...LocalHandler) *Registry {
	return &Registry{
		local:  handlers,
		remote: remote,
		log:    logger.Global().WithPrefix("tools"),
	}
}

// ListAvailable returns the tools offered to the model under the
// given settings: local handlers that are enabled, plus the remote
// weather tools when the integration is on and the server is connected.
func (r *Registry) ListAvailable(ctx context.Context, settings chat.Settings) []Descriptor {
	var out []Descriptor

	for _, h := range r.local {
		if gated, ok := h.(settingsGated); ok && !gated.Enabled(settings) {
			continue
		}
		out = append(out, h.Tools()...)
	}

	if settings.WeatherToolsEnabled && r.remote != nil && r.remote.Connected() {
		remote, err := r.remote.ListTools(ctx)
		if err != nil {
			r.log.Warn("failed to list remote tools: %v", err)
		} else {
			for _, d := range remote {
				if strings.Contains(strings.ToLower(d.Name), "weather") {
					out = append(out, d)
				}
			}
		}
	}

	return out
}

// Execute runs the named tool. Local handlers take precedence over
// the remote server; a retryable remote failure gets exactly one
// reconnect-and-retry before it is reported.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) Result {
	for _, h := range r.local {
		if h.CanHandle(name) {
			r.log.Debug("executing local tool %s", name)
			return h.Call(ctx, name, args)
		}
	}

	if r.remote == nil {
		return CallError{ToolName: name, Message: fmt.Sprintf("unknown tool: %s", name)}
	}

	result, err := r.remote.CallTool(ctx, name, args)
	if err != nil && IsRetryable(err) {
		r.log.Warn("remote tool %s failed (%v), reconnecting once", name, err)
		if rerr := r.remote.Reconnect(ctx); rerr == nil {
			result, err = r.remote.CallTool(ctx, name, args)
		}
	}
	if err != nil {
		return CallError{ToolName: name, Message: err.Error(), Retryable: IsRetryable(err)}
	}
	return result
}

// CoerceArguments parses the raw argument JSON of a tool call into a
// map. Malformed JSON yields an empty map rather than an error so a
// confused model still gets a tool reply it can react to.
func CoerceArguments(raw string) map[string]interface{} {
	args := map[string]interface{}{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		logger.Global().Warn("malformed tool arguments: %s", truncate(raw, 200))
		return map[string]interface{}{}
	}
	return args
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// GetStringParam extracts a string parameter with a default.
func GetStringParam(args map[string]interface{}, key, defaultValue string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return defaultValue
}

// GetIntParam extracts an integer parameter with a default. JSON
// numbers arrive as float64.
func GetIntParam(args map[string]interface{}, key string, defaultValue int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return defaultValue
}

// GetBoolParam extracts a boolean parameter with a default.
func GetBoolParam(args map[string]interface{}, key string, defaultValue bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return defaultValue
}
