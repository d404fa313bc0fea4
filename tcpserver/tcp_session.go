package tcpserver

// TCPServerSession is one accepted connection as seen by the server.
type TCPServerSession interface {
	// ID returns the identifier the server assigned at accept time.
	ID() uint32

	// Handle serves the connection and returns once it is closed.
	Handle()

	// Close closes the connection. It must be safe to call more than once
	// and concurrently with Handle.
	Close() error
}
