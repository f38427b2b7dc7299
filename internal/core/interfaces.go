package core

// Frame is a marshaled outbound event ready for the wire.
type Frame []byte

// ConnID identifies one live transport connection. Handles are opaque
// to the engine; the transport adapter mints them.
type ConnID string

// Conn abstracts a system messaging transport endpoint.
// Owned by the adapter; the adapter must Close() it.
type Conn interface {
	// TrySend enqueues a frame without blocking. It fails when the
	// connection is closed or its send buffer is full; the caller
	// treats a failed send as a skipped recipient.
	TrySend(Frame) error
	Close()
}
