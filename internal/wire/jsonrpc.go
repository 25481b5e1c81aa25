package wire

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Stable JSON-RPC error codes, per the wire's §6.2 stdio surface.
const (
	ErrParse           = -32700
	ErrInvalidRequest  = -32600
	ErrMethodNotFound  = -32601
	ErrInvalidParams   = -32602
	ErrInvalidState    = -32000
	ErrLLMNotSet       = -32001
	ErrLLMNotSupported = -32002
	ErrChatProviderErr = -32003
)

// ClientInfo identifies the connecting UI client in an initialize call.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ExternalToolDecl is one UI-hosted tool offered at initialize time.
type ExternalToolDecl struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// InitializeParams is the `initialize` method's inbound params.
type InitializeParams struct {
	ProtocolVersion string             `json:"protocol_version"`
	Client          *ClientInfo        `json:"client,omitempty"`
	ExternalTools   []ExternalToolDecl `json:"external_tools,omitempty"`
}

// RejectedTool reports why an external tool declaration was refused.
type RejectedTool struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// ExternalToolsResult reports the outcome of registering each declared
// external tool.
type ExternalToolsResult struct {
	Accepted []string       `json:"accepted"`
	Rejected []RejectedTool `json:"rejected"`
}

// InitializeResult is the `initialize` method's response.
type InitializeResult struct {
	ProtocolVersion string                `json:"protocol_version"`
	Server          ServerInfo            `json:"server"`
	SlashCommands   []string              `json:"slash_commands"`
	ExternalTools   *ExternalToolsResult  `json:"external_tools,omitempty"`
}

// ServerInfo identifies this runtime in the initialize response.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// PromptParams is the `prompt` method's inbound params. UserInput is left raw
// since it may be a bare string or a []message.ContentPart array; the Soul
// decodes it.
type PromptParams struct {
	UserInput json.RawMessage `json:"user_input"`
}

// PromptResult is the `prompt` method's response.
type PromptResult struct {
	Status string `json:"status"` // "finished" | "cancelled" | "max_steps_reached"
	Steps  *int   `json:"steps,omitempty"`
}

// Handler is implemented by the runtime driving one Soul; Server dispatches
// each inbound JSON-RPC method to it.
type Handler interface {
	Initialize(ctx context.Context, params InitializeParams) (InitializeResult, error)
	Prompt(ctx context.Context, params PromptParams) (PromptResult, error)
	Cancel(ctx context.Context) error
}

type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Server is the JSON-RPC 2.0 stdio surface over a Wire: it forwards every
// Wire Event/Request out as a notification/request, and dispatches inbound
// initialize/prompt/cancel calls (and inbound responses to its own
// outstanding outbound requests) read from its input.
type Server struct {
	wire    *Wire
	handler Handler

	scanner *bufio.Scanner
	wmu     sync.Mutex
	w       io.Writer

	promptMu         sync.Mutex
	promptInProgress bool
}

// NewServer constructs a Server reading newline-delimited JSON from r and
// writing responses/notifications to w.
func NewServer(r io.Reader, w io.Writer, wire *Wire, handler Handler) *Server {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Server{wire: wire, handler: handler, scanner: scanner, w: w}
}

// Run pumps both directions until ctx is cancelled or input is exhausted.
func (s *Server) Run(ctx context.Context) error {
	subID, sub := s.wire.Subscribe()
	defer s.wire.Unsubscribe(subID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
	}()

	go s.pumpOutbound(done, sub)

	for s.scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		s.handleInbound(ctx, append([]byte(nil), line...))
	}
	return s.scanner.Err()
}

func (s *Server) pumpOutbound(done <-chan struct{}, sub *subscriber) {
	for {
		env, ok := sub.Receive(done)
		if !ok {
			return
		}
		switch env.Kind {
		case "event":
			s.writeLine(rpcEnvelope{
				JSONRPC: "2.0",
				Method:  "event",
				Params:  mustMarshal(struct {
					Type    string `json:"type"`
					Payload any    `json:"payload"`
				}{env.Type, env.Payload}),
			})
		case "request":
			idJSON, _ := json.Marshal(env.ID)
			s.writeLine(rpcEnvelope{
				JSONRPC: "2.0",
				ID:      idJSON,
				Method:  "request",
				Params: mustMarshal(struct {
					Type    string `json:"type"`
					Payload any    `json:"payload"`
				}{env.Type, env.Payload}),
			})
		}
	}
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}

func (s *Server) handleInbound(ctx context.Context, line []byte) {
	var env rpcEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		s.writeError(nil, ErrParse, "parse error: "+err.Error())
		return
	}

	if env.Method == "" {
		// A response to one of our own outbound requests.
		var id string
		if err := json.Unmarshal(env.ID, &id); err != nil {
			return
		}
		s.wire.Resolve(id, Response{Result: env.Result, Err: env.Error})
		return
	}

	switch env.Method {
	case "initialize":
		var params InitializeParams
		if err := json.Unmarshal(env.Params, &params); err != nil {
			s.writeError(env.ID, ErrInvalidParams, err.Error())
			return
		}
		result, err := s.handler.Initialize(ctx, params)
		if err != nil {
			s.writeError(env.ID, ErrInvalidState, err.Error())
			return
		}
		s.writeResult(env.ID, result)

	case "prompt":
		s.promptMu.Lock()
		if s.promptInProgress {
			s.promptMu.Unlock()
			s.writeError(env.ID, ErrInvalidState, "An agent turn is already in progress")
			return
		}
		s.promptInProgress = true
		s.promptMu.Unlock()

		var params PromptParams
		if err := json.Unmarshal(env.Params, &params); err != nil {
			s.promptMu.Lock()
			s.promptInProgress = false
			s.promptMu.Unlock()
			s.writeError(env.ID, ErrInvalidParams, err.Error())
			return
		}

		go func() {
			defer func() {
				s.promptMu.Lock()
				s.promptInProgress = false
				s.promptMu.Unlock()
			}()
			result, err := s.handler.Prompt(ctx, params)
			if err != nil {
				s.writeError(env.ID, classifyPromptError(err), err.Error())
				return
			}
			s.writeResult(env.ID, result)
		}()

	case "cancel":
		if err := s.handler.Cancel(ctx); err != nil {
			s.writeError(env.ID, ErrInvalidState, err.Error())
			return
		}
		s.writeResult(env.ID, struct{}{})

	default:
		s.writeError(env.ID, ErrMethodNotFound, fmt.Sprintf("unknown method %q", env.Method))
	}
}

// classifyPromptError maps a Handler.Prompt error to its stable code; the
// handler may return an *RPCError directly to pick a specific code.
func classifyPromptError(err error) int {
	if rpcErr, ok := err.(*RPCError); ok {
		return rpcErr.Code
	}
	return ErrInvalidState
}

func (s *Server) writeResult(id json.RawMessage, result any) {
	s.writeLine(rpcEnvelope{JSONRPC: "2.0", ID: id, Result: mustMarshal(result)})
}

func (s *Server) writeError(id json.RawMessage, code int, message string) {
	s.writeLine(rpcEnvelope{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}})
}

func (s *Server) writeLine(env rpcEnvelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.wmu.Lock()
	defer s.wmu.Unlock()
	_, _ = s.w.Write(data)
}
