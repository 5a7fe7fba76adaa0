package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// fakeConn is an in-memory Conn: inbound is a queue of raw JSON messages
// fed to the session as if read off the wire; outbound records every
// value the session wrote, in order.
type fakeConn struct {
	mu       sync.Mutex
	inbound  chan json.RawMessage
	outbound []interface{}
	writeErr error
	closed   bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan json.RawMessage, 64)}
}

func (c *fakeConn) pushJSON(v interface{}) {
	b, _ := json.Marshal(v)
	c.inbound <- json.RawMessage(b)
}

func (c *fakeConn) ReadJSON(ctx context.Context, v interface{}) error {
	select {
	case raw, ok := <-c.inbound:
		if !ok {
			return errors.New("fakeConn: closed")
		}
		return json.Unmarshal(raw, v)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeConn) WriteJSON(ctx context.Context, v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.outbound = append(c.outbound, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) messages() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]interface{}, len(c.outbound))
	copy(out, c.outbound)
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
