package serialport

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// maxLineLength caps the partial-line buffer. The firmware emits short JSONL
// events; anything this long is garbage (e.g. baud mismatch) and is handed
// to the caller as-is so the JSON layer can reject and log it.
const maxLineLength = 4096

// Config contains the settings needed to open a serial channel.
type Config struct {
	// Port is the serial device path (e.g. "/dev/ttyACM0").
	Port string

	// BaudRate is the line speed.
	BaudRate int

	// ReadTimeout bounds a single Read call so ReadLine returns control to
	// the caller even when the device is silent.
	ReadTimeout time.Duration
}

// Channel is a line-oriented duplex byte stream to the device.
//
// The device→bridge direction is newline-delimited JSON text; the
// bridge→device direction is single raw command bytes.
//
// Thread Safety:
//   - ReadLine must only be called from one goroutine (the forward loop).
//   - Write is safe for concurrent use; writes are serialized internally
//     because the MQTT callback goroutine and the controller goroutine both
//     write command bytes.
type Channel struct {
	port serial.Port
	name string

	// pending holds a partial line carried across timed-out reads, so a
	// frame split by the read timeout is reassembled instead of dropped.
	pending []byte

	writeMu sync.Mutex
}

// Open opens the serial port and prepares it for line reads.
//
// It configures 8N1 framing at the given baud rate, applies the read
// timeout, and flushes any input the device buffered before we attached.
//
// Parameters:
//   - cfg: Port path, baud rate, and per-read timeout
//
// Returns:
//   - *Channel: Open channel ready for ReadLine/Write
//   - error: If the port cannot be opened or configured
func Open(cfg Config) (*Channel, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpenFailed, cfg.Port, err)
	}

	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		port.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: setting read timeout: %w", ErrOpenFailed, err)
	}

	// Discard whatever the device emitted while nothing was listening.
	if err := port.ResetInputBuffer(); err != nil {
		port.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: flushing input: %w", ErrOpenFailed, err)
	}

	return newChannel(port, cfg.Port), nil
}

// newChannel wraps an already-open port. Split from Open for testing with a
// fake serial.Port.
func newChannel(port serial.Port, name string) *Channel {
	return &Channel{
		port: port,
		name: name,
	}
}

// Name returns the port path this channel was opened on.
func (c *Channel) Name() string {
	return c.name
}

// ReadLine reads one newline-terminated line from the device.
//
// The call blocks for at most one read-timeout interval when no data is
// available. A line split across multiple reads is reassembled; the partial
// tail survives timeouts until its terminator arrives.
//
// Returns:
//   - []byte: The line without its terminator. nil when the timeout expired
//     with no complete line available (not an error). A non-nil empty slice
//     is a genuine blank line.
//   - error: A transport fault. The caller must treat this as a broken
//     channel and escalate to reconnect-or-terminate.
func (c *Channel) ReadLine() ([]byte, error) {
	for {
		// A complete line may already be buffered from a previous read.
		if line, ok := c.takeLine(); ok {
			return line, nil
		}

		var chunk [256]byte
		n, err := c.port.Read(chunk[:])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrReadFailed, c.name, err)
		}
		if n == 0 {
			// Read timeout expired with no data. Keep any partial line
			// buffered and hand control back to the caller.
			return nil, nil
		}

		c.pending = append(c.pending, chunk[:n]...)

		if len(c.pending) > maxLineLength {
			// Hand the oversized buffer up as a "line"; the JSON layer
			// rejects it and the forward loop logs and continues.
			line := c.pending
			c.pending = nil
			return line, nil
		}
	}
}

// takeLine extracts the first complete line from the pending buffer.
func (c *Channel) takeLine() ([]byte, bool) {
	idx := bytes.IndexByte(c.pending, '\n')
	if idx < 0 {
		return nil, false
	}

	line := c.pending[:idx]
	rest := c.pending[idx+1:]

	// Copy the remainder so the returned line does not alias future appends.
	c.pending = append([]byte(nil), rest...)

	line = bytes.TrimSuffix(line, []byte("\r"))
	if line == nil {
		line = []byte{}
	}
	return line, true
}

// Write sends raw bytes to the device.
//
// Writes from the forward loop (cleanup) and the MQTT command callback are
// serialized by an internal mutex, per the shared-resource policy.
//
// Parameters:
//   - data: Bytes to send (single command bytes in practice)
//
// Returns:
//   - error: A transport fault; the command is considered dropped
func (c *Channel) Write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.port.Write(data); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, c.name, err)
	}
	return nil
}

// Close closes the underlying serial port.
func (c *Channel) Close() error {
	if err := c.port.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", c.name, err)
	}
	return nil
}
