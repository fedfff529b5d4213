package bridge

import (
	"context"
	"time"
)

// runLoop is the controller's main loop: read one frame, forward it, run
// the heartbeat check, repeat. A read fault funnels into the single
// reconnect-or-terminate decision; everything else is non-fatal.
//
// Returns nil when ctx is cancelled (graceful shutdown), ErrDeviceRemoved
// or ErrReconnectTimeout when the transport is unrecoverable.
func (b *Bridge) runLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		ch := b.currentTransport()
		if ch == nil {
			return ErrDeviceRemoved
		}

		line, err := ch.ReadLine()
		if err != nil {
			b.logWarn("serial read failed", "error", err)
			if rerr := b.reconnect(ctx); rerr != nil {
				if ctx.Err() != nil {
					return nil
				}
				return rerr
			}
			b.publishStatus(StatusOnline)
			b.lastHeartbeat = time.Now()
			continue
		}

		if line != nil {
			b.forwardFrame(line)
		}

		b.checkHeartbeat()
	}
}

// forwardFrame enriches one device frame and publishes it. Decode and
// publish faults are logged and skipped; frames are published in the order
// they are read.
func (b *Bridge) forwardFrame(line []byte) {
	event, err := parseFrame(line)
	if err != nil {
		b.logWarn("dropping malformed frame", "error", err, "length", len(line))
		return
	}

	payload, err := enrichEvent(event, b.deviceID)
	if err != nil {
		b.logWarn("dropping unencodable frame", "error", err)
		return
	}

	if err := b.session.Publish(b.topics.GameEvents(), payload, b.opts.QoS, false); err != nil {
		b.logError("event publish failed", err, "topic", b.topics.GameEvents())
		return
	}
	b.logDebug("event forwarded", "bytes", len(payload))
}

// checkHeartbeat republishes the online status when the interval has
// elapsed. Runs every loop iteration regardless of read outcome; it
// signals bridge liveness, not device activity.
func (b *Bridge) checkHeartbeat() {
	if time.Since(b.lastHeartbeat) < b.opts.HeartbeatInterval {
		return
	}
	b.publishStatus(StatusOnline)
	b.lastHeartbeat = time.Now()
}
