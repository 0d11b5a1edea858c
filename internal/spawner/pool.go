/*
Package spawner runs child MCP servers and exposes their tools as operations.

The pool maintains one process per configured server and handles:
  - Lazy spawning (only when a server is first listed or called)
  - The MCP initialize handshake over newline-delimited JSON-RPC on stdio
  - Context-aware waits; a process that misses a deadline is evicted
  - A size bound, evicting the least recently used process
*/
package spawner

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/khanglvm/toolgate/internal/config"
	"github.com/khanglvm/toolgate/internal/log"
	"github.com/khanglvm/toolgate/internal/version"
)

// DefaultTimeout bounds a request whose context has no deadline.
// It is long enough for npx package downloads on cold start.
const DefaultTimeout = 60 * time.Second

// protocolVersion is the MCP revision sent in initialize.
const protocolVersion = "2024-11-05"

// Tool is a tool definition from a child MCP server.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Content is one item of a tools/call result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// CallResult is the result of tools/call.
type CallResult struct {
	Content           []Content `json:"content"`
	StructuredContent any       `json:"structuredContent,omitempty"`
	IsError           bool      `json:"isError,omitempty"`
}

// Text joins the text content items.
func (r *CallResult) Text() string {
	var parts []string
	for _, c := range r.Content {
		if c.Type == "text" || c.Type == "" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// RPCError is an error object returned by a child server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// Pool manages child MCP server processes.
type Pool struct {
	maxSize int
	log     log.Logger

	mu sync.Mutex
	// processes maps server names to live processes
	processes map[string]*Process
}

// Process is a running MCP server process.
type Process struct {
	name   string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	mu     sync.Mutex
	// reqID is a counter rather than a timestamp so ids stay within
	// JavaScript's safe integer range.
	reqID int64
	// cancel stops the stderr drain on termination
	cancel   context.CancelFunc
	lastUsed time.Time
}

// NewPool returns a pool holding at most maxSize live processes.
func NewPool(maxSize int, logger log.Logger) *Pool {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Pool{
		maxSize:   maxSize,
		log:       log.OrDefault(logger),
		processes: make(map[string]*Process),
	}
}

// Size returns the number of live processes.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.processes)
}

// Close terminates all processes: stdin is closed first, then each process
// gets two seconds to exit before it is killed.
func (p *Pool) Close() error {
	p.mu.Lock()
	procs := p.processes
	p.processes = make(map[string]*Process)
	p.mu.Unlock()

	var errs []error
	for name, proc := range procs {
		p.log.Debugf("terminating server process %s", name)
		if err := proc.terminate(2 * time.Second); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// GetTools spawns the server if needed and returns its tool list.
func (p *Pool) GetTools(ctx context.Context, name string, cfg *config.ServerConfig) ([]Tool, error) {
	proc, err := p.getOrSpawn(ctx, name, cfg)
	if err != nil {
		return nil, err
	}

	raw, err := p.request(ctx, proc, "tools/list", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Tools []Tool `json:"tools"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to parse tools/list result: %w", err)
	}
	return result.Tools, nil
}

// CallTool invokes tool on the server.
func (p *Pool) CallTool(ctx context.Context, name string, cfg *config.ServerConfig, tool string, args map[string]any) (*CallResult, error) {
	proc, err := p.getOrSpawn(ctx, name, cfg)
	if err != nil {
		return nil, err
	}

	if args == nil {
		args = map[string]any{}
	}
	raw, err := p.request(ctx, proc, "tools/call", map[string]any{
		"name":      tool,
		"arguments": args,
	})
	if err != nil {
		return nil, err
	}

	var result CallResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to parse tools/call result: %w", err)
	}
	return &result, nil
}

// request sends one request and evicts the process if it does not answer.
func (p *Pool) request(ctx context.Context, proc *Process, method string, params any) (json.RawMessage, error) {
	raw, err := proc.sendRequest(ctx, method, params)
	if err != nil {
		var rpcErr *RPCError
		if !errors.As(err, &rpcErr) {
			// The stream is no longer in a known state.
			p.evict(proc)
		}
		return nil, err
	}
	return raw, nil
}

func (p *Pool) evict(proc *Process) {
	p.mu.Lock()
	if cur, ok := p.processes[proc.name]; ok && cur == proc {
		delete(p.processes, proc.name)
	}
	p.mu.Unlock()
	p.log.Warnf("evicting server process %s", proc.name)
	go proc.terminate(0)
}

// getOrSpawn returns the live process for name or spawns one.
func (p *Pool) getOrSpawn(ctx context.Context, name string, cfg *config.ServerConfig) (*Process, error) {
	if cfg == nil || cfg.Command == "" {
		return nil, fmt.Errorf("server '%s' has no command", name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if proc, exists := p.processes[name]; exists {
		proc.lastUsed = time.Now()
		return proc, nil
	}

	if len(p.processes) >= p.maxSize {
		p.evictOldestLocked()
	}

	proc, err := p.spawn(name, cfg)
	if err != nil {
		return nil, err
	}

	if err := proc.initialize(ctx); err != nil {
		proc.terminate(0)
		if errors.Is(err, io.EOF) || strings.Contains(err.Error(), "EOF") {
			if pkg := getNpmPackageFromConfig(cfg); pkg != "" {
				return nil, fmt.Errorf("MCP server failed to start. Package '%s' may not exist or failed to load. Verify with: npm view %s", pkg, pkg)
			}
		}
		return nil, fmt.Errorf("failed to initialize server '%s': %w", name, err)
	}

	proc.lastUsed = time.Now()
	p.processes[name] = proc
	return proc, nil
}

func (p *Pool) evictOldestLocked() {
	var oldest *Process
	for _, proc := range p.processes {
		if oldest == nil || proc.lastUsed.Before(oldest.lastUsed) {
			oldest = proc
		}
	}
	if oldest == nil {
		return
	}
	delete(p.processes, oldest.name)
	p.log.Debugf("pool full, stopping least recently used server %s", oldest.name)
	go oldest.terminate(2 * time.Second)
}

// execCommand lets tests substitute the child process.
var execCommand = exec.Command

func (p *Pool) spawn(name string, cfg *config.ServerConfig) (*Process, error) {
	cmd := execCommand(cfg.Command, cfg.Args...)

	cmd.Env = os.Environ()
	for key, value := range cfg.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	// stderr must be drained: a child that fills the pipe buffer blocks on
	// its stdout as well.
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start server '%s': %w", name, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		io.Copy(io.Discard, stderr)
		<-ctx.Done()
	}()

	return &Process{
		name:   name,
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		cancel: cancel,
	}, nil
}

// initialize sends the initialize request and the initialized notification.
func (proc *Process) initialize(ctx context.Context) error {
	_, err := proc.sendRequest(ctx, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "toolgate",
			"version": version.Version,
		},
	})
	if err != nil {
		return err
	}

	notification, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "notifications/initialized",
	})
	if err != nil {
		return err
	}

	proc.mu.Lock()
	defer proc.mu.Unlock()
	_, err = proc.stdin.Write(append(notification, '\n'))
	return err
}

type response struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// sendRequest writes one request and waits for the response with the same
// id, skipping notifications and stale responses.
func (proc *Process) sendRequest(ctx context.Context, method string, params any) (json.RawMessage, error) {
	proc.mu.Lock()
	defer proc.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	proc.reqID++
	reqID := proc.reqID

	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      reqID,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}
	reqBytes, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if _, err := proc.stdin.Write(append(reqBytes, '\n')); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	type reply struct {
		resp response
		err  error
	}
	done := make(chan reply, 1)
	want := fmt.Sprint(reqID)

	go func() {
		for {
			line, err := proc.stdout.ReadBytes('\n')
			if err != nil {
				done <- reply{err: fmt.Errorf("failed to read response: %w", err)}
				return
			}
			var resp response
			if err := json.Unmarshal(line, &resp); err != nil {
				done <- reply{err: fmt.Errorf("failed to parse response: %w", err)}
				return
			}
			if len(resp.ID) == 0 || strings.Trim(string(resp.ID), `"`) != want {
				continue
			}
			done <- reply{resp: resp}
			return
		}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if r.resp.Error != nil {
			return nil, r.resp.Error
		}
		return r.resp.Result, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s on server '%s': %w", method, proc.name, ctx.Err())
	}
}

// terminate closes stdin and waits up to grace before killing the process.
func (proc *Process) terminate(grace time.Duration) error {
	if proc.stdin != nil {
		proc.stdin.Close()
	}
	if proc.cmd == nil || proc.cmd.Process == nil {
		proc.kill()
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- proc.cmd.Wait() }()

	select {
	case err := <-done:
		proc.kill()
		if err != nil && !strings.Contains(err.Error(), "signal: killed") {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return nil
			}
			return err
		}
		return nil
	case <-time.After(grace):
		proc.kill()
		<-done
		return nil
	}
}

// kill terminates the process and stops the stderr drain.
func (proc *Process) kill() {
	if proc.cancel != nil {
		proc.cancel()
	}
	if proc.cmd != nil && proc.cmd.Process != nil {
		proc.cmd.Process.Kill()
	}
}

// getNpmPackageFromConfig extracts the npm package name from an npx command.
func getNpmPackageFromConfig(cfg *config.ServerConfig) string {
	if cfg.Command != "npx" {
		return ""
	}
	for _, arg := range cfg.Args {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		return arg
	}
	return ""
}
