package hvps

// Transport is the byte link to an HVPS board (real or mocked).
// It is not safe for concurrent use; the polling loop owns it.
type Transport interface {
	// ReadLine returns one complete line without its newline, or "" when no
	// complete line has arrived within the read timeout.
	ReadLine() (string, error)
	// Write sends one encoded command.
	Write(p []byte) error
	// Buffered returns the number of received bytes not yet consumed by ReadLine.
	Buffered() int
	// Flush discards all unread input.
	Flush() error
	Close() error
}

// Ensure Serial implements Transport.
var _ Transport = (*Serial)(nil)
