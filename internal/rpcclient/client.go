// Package rpcclient implements the framed JSON-RPC client to the external
// tool server (C1): a child process reached over stdio, with requests and
// responses framed by a Content-Length header rather than the
// newline-delimited framing the original Python MCP client used.
package rpcclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lokutor-ai/lokutor-gateway/internal/gwerrors"
	"github.com/lokutor-ai/lokutor-gateway/pkg/orchestrator"
)

const component = "rpcclient"

// Client owns a child process and speaks Content-Length-framed JSON-RPC
// over its stdio pair. The transport is strictly request/response
// serialized: callers must not issue overlapping tool_call calls.
type Client struct {
	command string
	args    []string
	logger  orchestrator.Logger

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     *bufio.Writer
	stdinPipe interface {
		Close() error
	}
	stdout    *bufio.Reader
	connected bool
	nextID    int
}

// New returns a Client configured to spawn command with args on Connect.
// logger may be nil, in which case nothing is logged.
func New(command string, args []string, logger orchestrator.Logger) *Client {
	if logger == nil {
		logger = &orchestrator.NoOpLogger{}
	}
	return &Client{
		command: command,
		args:    args,
		logger:  logger,
		nextID:  1,
	}
}

// Connect spawns the child process (if not already alive) and performs a
// tools/list handshake. Idempotent: if already connected and the child is
// alive, returns nil immediately; if the child has exited, state is torn
// down and the process is re-spawned.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected && c.cmd != nil && c.cmd.ProcessState == nil {
		return nil
	}
	if c.cmd != nil && c.cmd.ProcessState != nil {
		c.teardownLocked()
	}

	cmd := exec.CommandContext(context.Background(), c.command, c.args...)
	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return gwerrors.New(gwerrors.TransportFailure, component, fmt.Errorf("stdin pipe: %w", err))
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return gwerrors.New(gwerrors.TransportFailure, component, fmt.Errorf("stdout pipe: %w", err))
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return gwerrors.New(gwerrors.TransportFailure, component, fmt.Errorf("stderr pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		return gwerrors.New(gwerrors.TransportFailure, component, fmt.Errorf("start: %w", err))
	}

	c.cmd = cmd
	c.stdin = bufio.NewWriter(stdinPipe)
	c.stdinPipe = stdinPipe
	c.stdout = bufio.NewReader(stdoutPipe)

	resp, err := c.callLocked("tools/list", map[string]interface{}{})
	if err != nil {
		stderrBuf := drainStderr(stderrPipe)
		c.logger.Error("tool server handshake failed", "err", err, "stderr", stderrBuf)
		c.teardownLocked()
		return gwerrors.New(gwerrors.TransportFailure, component, fmt.Errorf("handshake: %w", err))
	}
	if _, ok := resp["result"]; !ok {
		stderrBuf := drainStderr(stderrPipe)
		c.logger.Error("tool server handshake returned no result", "stderr", stderrBuf)
		c.teardownLocked()
		return gwerrors.New(gwerrors.ProtocolError, component, fmt.Errorf("handshake: no result field"))
	}

	go drainStderrAsync(stderrPipe, c.logger)

	c.connected = true
	c.logger.Info("tool server connected")
	return nil
}

// ListTools returns the tool names a fresh tools/list call reports, or
// nil if the client is not connected or the reply is malformed.
func (c *Client) ListTools(ctx context.Context) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	resp, err := c.callLocked("tools/list", map[string]interface{}{})
	if err != nil {
		return nil
	}
	result, ok := resp["result"].(map[string]interface{})
	if !ok {
		return nil
	}
	rawTools, ok := result["tools"].([]interface{})
	if !ok {
		return nil
	}
	var names []string
	for _, rt := range rawTools {
		tm, ok := rt.(map[string]interface{})
		if !ok {
			continue
		}
		if name, ok := tm["name"].(string); ok {
			names = append(names, name)
		}
	}
	return names
}

// ToolCall issues a raw JSON-RPC request string (caller-validated JSON;
// this client only adds framing) and returns the parsed response object,
// or nil on failure. A DecodeError (malformed but fully-framed response
// body) leaves the connection usable; a TransportFailure or NotConnected
// does not - see classifySendErrLocked.
func (c *Client) ToolCall(ctx context.Context, rawJSONRPC string) (map[string]interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil, gwerrors.New(gwerrors.NotConnected, component, fmt.Errorf("not connected"))
	}

	var req map[string]interface{}
	if err := json.Unmarshal([]byte(rawJSONRPC), &req); err != nil {
		return nil, gwerrors.New(gwerrors.ProtocolError, component, fmt.Errorf("caller-supplied json-rpc invalid: %w", err))
	}

	resp, err := c.sendFrameLocked(req)
	if err != nil {
		return nil, c.classifySendErrLocked(err)
	}
	return resp, nil
}

// Call issues a tools/call with the given tool name and arguments, the
// typed convenience path used by C6's execute_tool node.
func (c *Client) Call(ctx context.Context, toolName string, arguments map[string]interface{}) (map[string]interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil, gwerrors.New(gwerrors.NotConnected, component, fmt.Errorf("not connected"))
	}
	resp, err := c.callLocked("tools/call", map[string]interface{}{
		"name":      toolName,
		"arguments": arguments,
	})
	if err != nil {
		return nil, c.classifySendErrLocked(err)
	}
	return resp, nil
}

// classifySendErrLocked wraps a sendFrameLocked failure with the right Kind
// and, only for a genuine transport break, resets the connection so the
// next call re-handshakes. A malformed-but-fully-received response body
// leaves the child process and stdio pipes untouched.
func (c *Client) classifySendErrLocked(err error) error {
	var de *decodeError
	if errors.As(err, &de) {
		return gwerrors.New(gwerrors.DecodeError, component, de.err)
	}
	c.connected = false
	return gwerrors.New(gwerrors.TransportFailure, component, err)
}

// decodeError marks a sendFrameLocked failure as "frame fully read, body
// not valid JSON" so classifySendErrLocked can tell it apart from a
// transport break without re-parsing error strings.
type decodeError struct{ err error }

func (e *decodeError) Error() string { return fmt.Sprintf("decode response: %v", e.err) }
func (e *decodeError) Unwrap() error { return e.err }

// Close sends a termination signal to the child, waits up to 5 seconds,
// then force-kills if it's still alive.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.teardownLocked()
}

func (c *Client) teardownLocked() error {
	if c.cmd == nil || c.cmd.Process == nil {
		c.connected = false
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- c.cmd.Wait() }()

	c.cmd.Process.Signal(os.Interrupt)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		c.cmd.Process.Kill()
		<-done
	}

	c.connected = false
	c.cmd = nil
	c.stdin = nil
	c.stdout = nil
	return nil
}

func (c *Client) callLocked(method string, params map[string]interface{}) (map[string]interface{}, error) {
	id := c.nextID
	c.nextID++
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
		"params":  params,
	}
	return c.sendFrameLocked(req)
}

func (c *Client) sendFrameLocked(req map[string]interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	if _, err := fmt.Fprintf(c.stdin, "Content-Length: %d\r\n\r\n", len(body)); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if _, err := c.stdin.Write(body); err != nil {
		return nil, fmt.Errorf("write body: %w", err)
	}
	if err := c.stdin.Flush(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}

	contentLength := -1
	for {
		line, err := c.stdout.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			break
		}
		parts := strings.SplitN(trimmed, ":", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err != nil {
				return nil, fmt.Errorf("parse content-length: %w", err)
			}
			contentLength = n
		}
	}
	if contentLength < 0 {
		return nil, fmt.Errorf("missing content-length header")
	}

	buf := make([]byte, contentLength)
	if _, err := readFull(c.stdout, buf); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(buf, &resp); err != nil {
		return nil, &decodeError{err: err}
	}
	return resp, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func drainStderr(r interface {
	Read(p []byte) (int, error)
}) string {
	var buf bytes.Buffer
	tmp := make([]byte, 4096)
	n, _ := r.Read(tmp)
	if n > 0 {
		buf.Write(tmp[:n])
	}
	return buf.String()
}

func drainStderrAsync(r interface {
	Read(p []byte) (int, error)
}, logger orchestrator.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logger.Debug("tool server stderr", "line", scanner.Text())
	}
}
