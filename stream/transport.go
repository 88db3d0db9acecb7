package stream

import "errors"

// ErrNotConnected is returned by Socket.Emit when there is no live connection.
var ErrNotConnected = errors.New("stream: not connected")

// Credentials identify the session a connection is opened for.
type Credentials struct {
	UserID string
	Token  string
}

// Handler receives the signals of one Socket. Calls are made one at a time, in order.
type Handler interface {
	// OnConnect is called when the server accepts the connection.
	OnConnect()
	// OnDisconnect is called when an accepted connection drops. The transport will try
	// to connect again unless the socket has been closed.
	OnDisconnect(err error)
	// OnMessage is called for every inbound frame. data is the raw JSON payload.
	OnMessage(event string, data []byte)
}

// Socket is a live, self-reconnecting push connection.
type Socket interface {
	// Emit sends a frame upstream. Returns ErrNotConnected if there is no live connection.
	Emit(event string, payload interface{}) error
	// Close tears the connection down for good and stops reconnecting.
	Close() error
}

// Transport opens sockets. Open must not block on the network, and must not call h
// before it has returned.
type Transport interface {
	Open(creds Credentials, h Handler) (Socket, error)
}
