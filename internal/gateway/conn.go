package gateway

import "context"

// Conn is the small boundary this repo owns at the duplex-channel edge;
// the duplex library itself (accepting, framing, reading/writing JSON
// text frames) is an out-of-scope external collaborator.
type Conn interface {
	ReadJSON(ctx context.Context, v interface{}) error
	WriteJSON(ctx context.Context, v interface{}) error
	Close() error
}
