package gateway

import (
	"context"
	"encoding/json"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// WebsocketConn adapts a *websocket.Conn to Conn, matching the same
// library the TTS provider already dials out with for its own socket.
type WebsocketConn struct {
	conn *websocket.Conn
}

// NewWebsocketConn wraps an already-accepted websocket connection.
func NewWebsocketConn(conn *websocket.Conn) *WebsocketConn {
	return &WebsocketConn{conn: conn}
}

// ReadJSON reads one message and decodes it itself rather than through
// wsjson.Read, which closes the socket when decoding fails; a malformed
// frame therefore surfaces as a *json.SyntaxError with the connection
// still open.
func (w *WebsocketConn) ReadJSON(ctx context.Context, v interface{}) error {
	_, data, err := w.conn.Read(ctx)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (w *WebsocketConn) WriteJSON(ctx context.Context, v interface{}) error {
	return wsjson.Write(ctx, w.conn, v)
}

func (w *WebsocketConn) Close() error {
	return w.conn.Close(websocket.StatusNormalClosure, "")
}
