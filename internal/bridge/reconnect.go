package bridge

import (
	"context"
	"time"
)

// reconnect re-establishes the serial channel after a read fault, without
// touching the broker session.
//
// An unplugged device short-circuits: if the port is no longer enumerated
// the fault is permanent and no reopen is attempted. Otherwise the port is
// retried on a fixed interval until it opens or the budget elapses. On
// success a bare identify byte is written so the device flushes whatever
// it buffered while disconnected; no full handshake is repeated, the
// identity cannot change.
//
// Returns:
//   - error: nil once the channel is reopened; ErrDeviceRemoved on unplug;
//     ErrReconnectTimeout when the budget elapses; ctx.Err() on shutdown
func (b *Bridge) reconnect(ctx context.Context) error {
	if !b.devicePresent() {
		return ErrDeviceRemoved
	}

	b.setState(StateReconnecting)
	b.closeCurrentTransport()

	b.logWarn("serial channel lost, reconnecting",
		"port", b.opts.PortName,
		"budget", b.opts.ReconnectTimeout.String())

	deadline := time.Now().Add(b.opts.ReconnectTimeout)
	for {
		ch, err := b.opts.Opener.Open()
		if err == nil {
			if werr := ch.Write([]byte{CmdIdentify}); werr != nil {
				// Port opened but is not usable yet; treat as a failed
				// attempt and keep retrying.
				ch.Close() //nolint:errcheck // Best effort cleanup on error path
			} else {
				b.setTransport(ch)
				b.setState(StateOnline)
				b.logInfo("serial channel restored", "port", b.opts.PortName)
				return nil
			}
		} else {
			b.logDebug("reopen attempt failed", "error", err)
		}

		if time.Now().After(deadline) {
			return ErrReconnectTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.opts.ReconnectRetry):
		}
	}
}

// devicePresent reports whether the configured port is still enumerated by
// the OS. An enumeration failure counts as present so a flaky listing does
// not get mistaken for an unplug.
func (b *Bridge) devicePresent() bool {
	ports, err := b.opts.Ports.List()
	if err != nil {
		b.logWarn("port enumeration failed", "error", err)
		return true
	}
	for _, p := range ports {
		if p == b.opts.PortName {
			return true
		}
	}
	return false
}

// closeCurrentTransport drops the broken channel so command writes fail
// fast instead of writing into a dead port.
func (b *Bridge) closeCurrentTransport() {
	b.mu.Lock()
	ch := b.transport
	b.transport = nil
	b.mu.Unlock()

	if ch != nil {
		ch.Close() //nolint:errcheck // Channel already faulted
	}
}
