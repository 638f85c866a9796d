package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
)

// session is one live SSE stream plus the JSON-RPC bookkeeping on top
// of it. Requests are POSTed to the endpoint the stream announced;
// responses come back as "message" events and are routed to waiters
// by request ID.
type session struct {
	client   *Client
	endpoint string
	cancel   context.CancelFunc
	body     io.ReadCloser

	nextID atomic.Int64

	pendingMu sync.Mutex
	pending   map[int64]chan rpcReply

	endpointCh chan string
	done       chan struct{}
	closeOnce  sync.Once
}

type rpcReply struct {
	result json.RawMessage
	err    error
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      *int64      `json:"id,omitempty"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("tool server error %d: %s", e.Code, e.Message)
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.body.Close()
	})
	// Wake up pending callers.
	s.failPending(errors.New("connection closed"))
}

func (s *session) failPending(err error) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	for id, ch := range s.pending {
		select {
		case ch <- rpcReply{err: err}:
		default:
		}
		delete(s.pending, id)
	}
}

// readLoop parses the SSE stream: "event:" and "data:" lines
// accumulate until a blank line dispatches the event.
func (s *session) readLoop() {
	defer close(s.done)
	defer s.body.Close()

	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	event := "message"
	var data bytes.Buffer

	dispatch := func() {
		if data.Len() == 0 {
			event = "message"
			return
		}
		s.handleEvent(event, strings.TrimSpace(data.String()))
		event = "message"
		data.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			dispatch()
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	dispatch()

	err := scanner.Err()
	s.failPending(errors.New("connection closed"))

	// Only a stream that dies while the client considers itself
	// connected is an error; a deliberate close is not.
	if s.client.Connected() {
		msg := "tool server connection lost"
		if err != nil {
			msg = fmt.Sprintf("tool server connection lost: %v", err)
		}
		s.client.setState(State{Phase: PhaseError, Err: msg})
	}
}

func (s *session) handleEvent(event, data string) {
	switch event {
	case "endpoint":
		select {
		case s.endpointCh <- data:
		default:
		}
	case "message":
		var resp rpcResponse
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			s.client.log.Warn("undecodable message event: %v", err)
			return
		}
		if resp.ID == nil {
			// Server-initiated notification; nothing listens for
			// these yet.
			return
		}
		s.deliver(*resp.ID, resp)
	}
}

func (s *session) deliver(id int64, resp rpcResponse) {
	s.pendingMu.Lock()
	ch, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.pendingMu.Unlock()

	if !ok {
		s.client.log.Debug("response for unknown request %d", id)
		return
	}

	reply := rpcReply{result: resp.Result}
	if resp.Error != nil {
		reply = rpcReply{err: resp.Error}
	}
	ch <- reply
}

// call sends a JSON-RPC request and waits for its response on the
// stream.
func (s *session) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	id := s.nextID.Add(1)
	ch := make(chan rpcReply, 1)

	s.pendingMu.Lock()
	s.pending[id] = ch
	s.pendingMu.Unlock()

	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}()

	if err := s.post(ctx, rpcRequest{JSONRPC: "2.0", ID: &id, Method: method, Params: params}); err != nil {
		return nil, err
	}

	select {
	case reply := <-ch:
		if reply.err != nil {
			return nil, reply.err
		}
		return reply.result, nil
	case <-s.done:
		return nil, errors.New("connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// notify sends a JSON-RPC notification (no response expected).
func (s *session) notify(ctx context.Context, method string, params interface{}) error {
	return s.post(ctx, rpcRequest{JSONRPC: "2.0", Method: method, Params: params})
}

func (s *session) post(ctx context.Context, payload rpcRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("tool server rejected request: status %d", resp.StatusCode)
	}
	return nil
}
