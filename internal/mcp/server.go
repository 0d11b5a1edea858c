/*
Package mcp implements the MCP server that exposes the gateway.

The server speaks newline-delimited JSON-RPC 2.0 over stdio and exposes 3 tools:
  - search_tool: Semantic search for operations by natural-language intent
  - execute_tool: Execute an operation by name with parameters
  - server_info: Catalog size, index health and history stats

Logs go to stderr; stdout carries only protocol messages.
*/
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/khanglvm/toolgate/internal/execute"
	"github.com/khanglvm/toolgate/internal/fault"
	"github.com/khanglvm/toolgate/internal/gateway"
	"github.com/khanglvm/toolgate/internal/log"
	"github.com/khanglvm/toolgate/internal/search"
	"github.com/khanglvm/toolgate/internal/version"
)

// ProtocolVersion is the MCP revision the server implements.
const ProtocolVersion = "2024-11-05"

// maxLineSize bounds a single request line.
const maxLineSize = 4 << 20

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// Gateway is the subset of *gateway.Gateway the server needs.
type Gateway interface {
	Search(ctx context.Context, req search.Request) ([]search.SearchResult, error)
	Execute(ctx context.Context, req execute.Request) execute.Result
	Describe(ctx context.Context) (gateway.Description, error)
	Categories(ctx context.Context) ([]string, error)
}

// Server serves the gateway over MCP.
type Server struct {
	gw  Gateway
	log log.Logger

	mu  sync.Mutex
	enc *json.Encoder

	callsMu sync.Mutex
	calls   map[string]*pendingCall
}

// pendingCall is a tools/call that is still running.
type pendingCall struct {
	cancel    context.CancelFunc
	cancelled bool
}

// NewServer returns a server over gw.
func NewServer(gw Gateway, logger log.Logger) *Server {
	return &Server{gw: gw, log: log.OrDefault(logger), calls: make(map[string]*pendingCall)}
}

// MCPRequest represents an incoming MCP JSON-RPC request. A request without
// an ID is a notification and gets no response.
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing MCP JSON-RPC response.
type MCPResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *MCPError `json:"error,omitempty"`
}

// MCPError represents an MCP error.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Run reads requests from in and writes responses to out until in is closed
// or ctx is done. Each tools/call runs on its own goroutine and can be
// stopped with notifications/cancelled. Run returns once every call has
// finished.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	s.mu.Lock()
	s.enc = json.NewEncoder(out)
	s.mu.Unlock()

	var wg sync.WaitGroup
	defer wg.Wait()

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if len(strings.TrimSpace(string(line))) == 0 {
				continue
			}
			req, errResp := parse(line)
			if errResp != nil {
				s.send(errResp)
				continue
			}
			if req.Method == "tools/call" && req.ID != nil {
				s.callAsync(ctx, req, &wg)
				continue
			}
			if resp := s.route(ctx, req); resp != nil {
				s.send(resp)
			}
		}
	}
}

// callAsync runs a tools/call on its own goroutine. A call cancelled by the
// client gets no response.
func (s *Server) callAsync(ctx context.Context, req *MCPRequest, wg *sync.WaitGroup) {
	key := requestKey(req.ID)
	callCtx, cancel := context.WithCancel(ctx)
	pc := &pendingCall{cancel: cancel}

	s.callsMu.Lock()
	s.calls[key] = pc
	s.callsMu.Unlock()

	wg.Add(1)
	go func() {
		defer wg.Done()
		resp := s.handleToolsCall(callCtx, req)

		s.callsMu.Lock()
		if s.calls[key] == pc {
			delete(s.calls, key)
		}
		cancelled := pc.cancelled
		s.callsMu.Unlock()
		cancel()

		if cancelled {
			s.log.Debugf("request %s cancelled by client", key)
			return
		}
		s.send(resp)
	}()
}

// cancelRequest handles notifications/cancelled.
func (s *Server) cancelRequest(params json.RawMessage) {
	var p struct {
		RequestID any    `json:"requestId"`
		Reason    string `json:"reason"`
	}
	if err := json.Unmarshal(params, &p); err != nil || p.RequestID == nil {
		s.log.Debugf("ignoring malformed cancellation: %s", params)
		return
	}
	key := requestKey(p.RequestID)

	s.callsMu.Lock()
	pc, ok := s.calls[key]
	if ok {
		pc.cancelled = true
		delete(s.calls, key)
	}
	s.callsMu.Unlock()

	if ok {
		s.log.Infof("cancelling request %s: %s", key, p.Reason)
		pc.cancel()
	}
}

// requestKey keys a request ID by its JSON form so 1 and "1" stay distinct.
func requestKey(id any) string {
	b, _ := json.Marshal(id)
	return string(b)
}

// parse decodes one request line. It returns an error response for lines
// that are not valid requests.
func parse(data []byte) (*MCPRequest, *MCPResponse) {
	var req MCPRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, errorResponse(nil, codeParseError, fmt.Sprintf("invalid JSON-RPC request: %v", err))
	}
	if req.Method == "" {
		return nil, errorResponse(req.ID, codeInvalidRequest, "missing method")
	}
	return &req, nil
}

// handle dispatches one request line synchronously and returns the
// response, or nil for notifications.
func (s *Server) handle(ctx context.Context, data []byte) *MCPResponse {
	req, errResp := parse(data)
	if errResp != nil {
		return errResp
	}
	return s.route(ctx, req)
}

func (s *Server) route(ctx context.Context, req *MCPRequest) *MCPResponse {
	if req.ID == nil {
		if req.Method == "notifications/cancelled" {
			s.cancelRequest(req.Params)
			return nil
		}
		s.log.Debugf("notification %s", req.Method)
		return nil
	}

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "ping":
		return &MCPResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{}}
	case "tools/list":
		return s.handleToolsList(ctx, req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		return errorResponse(req.ID, codeMethodNotFound, "Method not found")
	}
}

func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
			"serverInfo": map[string]any{
				"name":    "toolgate",
				"version": version.Version,
			},
		},
	}
}

func (s *Server) handleToolsList(ctx context.Context, req *MCPRequest) *MCPResponse {
	categories, err := s.gw.Categories(ctx)
	if err != nil {
		s.log.Warnf("failed to list categories: %v", err)
	}
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  map[string]any{"tools": toolDefinitions(categories)},
	}
}

// toolCall is the params object of tools/call.
type toolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type searchArgs struct {
	Query    string `json:"query"`
	Limit    int    `json:"limit"`
	Category string `json:"category"`
}

type executeArgs struct {
	OperationName  string         `json:"operationName"`
	Parameters     map[string]any `json:"parameters"`
	TimeoutSeconds float64        `json:"timeoutSeconds"`
}

func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var call toolCall
	if err := json.Unmarshal(req.Params, &call); err != nil {
		return errorResponse(req.ID, codeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}

	var (
		payload any
		isError bool
		err     error
	)
	switch call.Name {
	case "search_tool":
		var args searchArgs
		if err = decodeArgs(call.Arguments, &args); err != nil {
			break
		}
		payload, isError = s.execSearch(ctx, args)
	case "execute_tool":
		var args executeArgs
		if err = decodeArgs(call.Arguments, &args); err != nil {
			break
		}
		payload, isError = s.execExecute(ctx, args)
	case "server_info":
		payload, err = s.gw.Describe(ctx)
		if err != nil {
			return errorResponse(req.ID, codeInternalError, err.Error())
		}
	default:
		return errorResponse(req.ID, codeInvalidParams, fmt.Sprintf("Unknown tool: %s", call.Name))
	}
	if err != nil {
		return errorResponse(req.ID, codeInvalidParams, err.Error())
	}

	text, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return errorResponse(req.ID, codeInternalError, fmt.Sprintf("failed to encode result: %v", err))
	}
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]any{
			"content": []map[string]any{{"type": "text", "text": string(text)}},
			"isError": isError,
		},
	}
}

// searchPayload is the search_tool result.
type searchPayload struct {
	Query   string                `json:"query"`
	Results []search.SearchResult `json:"results"`
}

// errorPayload carries a structured error as a tool result.
type errorPayload struct {
	Error *fault.Error `json:"error"`
}

func (s *Server) execSearch(ctx context.Context, args searchArgs) (any, bool) {
	results, err := s.gw.Search(ctx, search.Request{
		Query:    args.Query,
		Limit:    args.Limit,
		Category: args.Category,
	})
	if err != nil {
		return errorPayload{Error: structured(err)}, true
	}
	return searchPayload{Query: args.Query, Results: results}, false
}

func (s *Server) execExecute(ctx context.Context, args executeArgs) (any, bool) {
	res := s.gw.Execute(ctx, execute.Request{
		Operation:  args.OperationName,
		Parameters: args.Parameters,
		Timeout:    time.Duration(args.TimeoutSeconds * float64(time.Second)),
	})
	return res, !res.Success
}

// structured returns the *fault.Error in err's chain, or wraps err's message
// as an internal error.
func structured(err error) *fault.Error {
	if fe, ok := fault.As(err); ok {
		return fe
	}
	return &fault.Error{Kind: "Internal", Message: err.Error()}
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func errorResponse(id any, code int, msg string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &MCPError{Code: code, Message: msg},
	}
}

// send writes a JSON-RPC response to the output.
func (s *Server) send(resp *MCPResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(resp); err != nil {
		s.log.Errorf("failed to write response: %v", err)
	}
}
