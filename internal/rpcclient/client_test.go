package rpcclient

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lokutor-ai/lokutor-gateway/internal/gwerrors"
)

// nopCloser satisfies Client.stdinPipe for tests that never write real
// process stdin.
type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// TestFrameRoundTrip exercises the Content-Length framing directly against
// `cat`, which echoes stdin to stdout verbatim: whatever frame we write is
// read back byte-for-byte, verifying decode(frame(x)) = x.
func TestFrameRoundTrip(t *testing.T) {
	cmd := exec.Command("cat")
	stdin, err := cmd.StdinPipe()
	require.NoError(t, err)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())
	defer cmd.Process.Kill()

	c := &Client{
		stdin:     bufio.NewWriter(stdin),
		stdinPipe: stdin,
		stdout:    bufio.NewReader(stdout),
		connected: true,
		nextID:    1,
	}

	resp, err := c.callLocked("tools/list", map[string]interface{}{})
	require.NoError(t, err)

	// cat echoes our own request back, so the "response" is the request we sent.
	require.Equal(t, "tools/list", resp["method"])
	require.Equal(t, float64(1), resp["id"])
}

func TestListToolsNilWhenNotConnected(t *testing.T) {
	// Without a live server, an unconnected client always returns nil.
	c := New("does-not-matter", nil, nil)
	require.Nil(t, c.ListTools(nil))
}

func TestToolCallRejectsInvalidJSON(t *testing.T) {
	c := &Client{connected: true}
	_, err := c.ToolCall(nil, "{not json")
	require.Error(t, err)
}

func TestToolCallRequiresConnection(t *testing.T) {
	c := New("does-not-matter", nil, nil)
	_, err := c.ToolCall(nil, `{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	require.Error(t, err)

	var ge *gwerrors.GatewayError
	require.True(t, errors.As(err, &ge))
	require.Equal(t, gwerrors.NotConnected, ge.Kind)
}

// TestDecodeFailureDoesNotResetConnection covers the spec's distinction
// between a fully-received-but-malformed response body (DecodeError, no
// reset) and a genuine transport break (TransportFailure, connection
// reset) - a single bad response from the tool server must not force a
// full child-process respawn on the next call.
func TestDecodeFailureDoesNotResetConnection(t *testing.T) {
	body := "not valid json"
	frame := fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
	c := &Client{
		stdin:     bufio.NewWriter(io.Discard),
		stdinPipe: nopCloser{},
		stdout:    bufio.NewReader(strings.NewReader(frame)),
		connected: true,
		nextID:    1,
	}

	_, err := c.Call(nil, "search", map[string]interface{}{})
	require.Error(t, err)

	var ge *gwerrors.GatewayError
	require.True(t, errors.As(err, &ge))
	require.Equal(t, gwerrors.DecodeError, ge.Kind)
	require.True(t, c.connected, "a decode failure must not reset the connection")
}

// TestTransportBreakResetsConnection covers the other half of the same
// distinction: an EOF mid-read (here, an immediately-closed stdout) is a
// real transport break and must force a reset so the next Connect
// re-handshakes against a fresh child process.
func TestTransportBreakResetsConnection(t *testing.T) {
	c := &Client{
		stdin:     bufio.NewWriter(io.Discard),
		stdinPipe: nopCloser{},
		stdout:    bufio.NewReader(strings.NewReader("")),
		connected: true,
		nextID:    1,
	}

	_, err := c.Call(nil, "search", map[string]interface{}{})
	require.Error(t, err)

	var ge *gwerrors.GatewayError
	require.True(t, errors.As(err, &ge))
	require.Equal(t, gwerrors.TransportFailure, ge.Kind)
	require.False(t, c.connected, "a transport break must reset the connection")
}
