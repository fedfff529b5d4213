package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Default timing constants. Overridable via Options for testing.
const (
	// defaultIdentifyTimeout bounds the startup handshake.
	defaultIdentifyTimeout = 10 * time.Second

	// defaultHeartbeatInterval is how often an online status is republished
	// while the bridge is healthy.
	defaultHeartbeatInterval = 20 * time.Second

	// defaultReconnectTimeout is the total budget for reopening the serial
	// port after a read fault.
	defaultReconnectTimeout = 600 * time.Second

	// defaultReconnectRetry is the delay between reopen attempts.
	defaultReconnectRetry = 2 * time.Second
)

// Transport is the duplex byte channel to the device.
// Satisfied by *serialport.Channel.
type Transport interface {
	// ReadLine returns one frame without its terminator, (nil, nil) on a
	// timed-out read with no data, or an error for a broken channel.
	ReadLine() ([]byte, error)

	// Write sends raw bytes to the device.
	Write(data []byte) error

	// Close closes the channel.
	Close() error
}

// TransportOpener opens (and during reconnect, reopens) the serial channel.
type TransportOpener interface {
	Open() (Transport, error)
}

// BrokerSession is the pub/sub connection consumed by the bridge.
// Satisfied by an adapter over *mqtt.Client.
type BrokerSession interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error

	// Close disconnects from the broker.
	Close() error
}

// Will is the last-will registration handed to the dialer. The broker
// delivers it if the bridge dies without a clean shutdown.
type Will struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// BrokerDialer opens the broker session. Called exactly once, after the
// handshake, because the client ID and last-will carry the device identity.
type BrokerDialer interface {
	Dial(deviceID string, will Will) (BrokerSession, error)
}

// PortLister enumerates serial ports present on the system.
// Used only to tell an unplug from a transient serial fault.
type PortLister interface {
	List() ([]string, error)
}

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options holds configuration for creating a bridge.
type Options struct {
	// Opener opens the serial channel. Required.
	Opener TransportOpener

	// Dialer opens the broker session after the handshake. Required.
	Dialer BrokerDialer

	// Ports enumerates serial ports for unplug detection. Required.
	Ports PortLister

	// PortName is the serial device path, matched against Ports output.
	PortName string

	// Namespace is the topic namespace prefix (e.g. "whac").
	Namespace string

	// QoS is the delivery level for publishes and subscriptions.
	QoS byte

	// RetainState controls whether status publishes are retained.
	RetainState bool

	// IdentifyTimeout bounds the handshake. Zero means the default.
	IdentifyTimeout time.Duration

	// HeartbeatInterval is the online-status republish cadence.
	// Zero means the default.
	HeartbeatInterval time.Duration

	// ReconnectTimeout is the total serial reopen budget.
	// Zero means the default.
	ReconnectTimeout time.Duration

	// ReconnectRetry is the delay between reopen attempts.
	// Zero means the default.
	ReconnectRetry time.Duration

	// Logger is optional structured logging.
	Logger Logger
}

// Bridge owns the serial transport and the broker session and relays
// traffic between them for one physical device.
//
// Two execution contexts touch a Bridge: the controller goroutine running
// Run, and the broker client's callback goroutine running handleCommand.
// They share exactly the transport handle and the pause flag, both guarded
// by mu. Everything else is owned by the controller.
type Bridge struct {
	opts Options

	// deviceID and topics are immutable once the handshake completes.
	deviceID string
	topics   Topics

	session BrokerSession

	// mu guards transport and paused, the only state shared with the
	// broker callback goroutine.
	mu        sync.Mutex
	transport Transport
	paused    bool

	state   State
	stateMu sync.RWMutex

	// lastHeartbeat is touched only by the controller goroutine.
	lastHeartbeat time.Time

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a bridge. Call Run to operate it.
func New(opts Options) (*Bridge, error) {
	if opts.Opener == nil {
		return nil, fmt.Errorf("transport opener is required")
	}
	if opts.Dialer == nil {
		return nil, fmt.Errorf("broker dialer is required")
	}
	if opts.Ports == nil {
		return nil, fmt.Errorf("port lister is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}

	if opts.IdentifyTimeout == 0 {
		opts.IdentifyTimeout = defaultIdentifyTimeout
	}
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = defaultHeartbeatInterval
	}
	if opts.ReconnectTimeout == 0 {
		opts.ReconnectTimeout = defaultReconnectTimeout
	}
	if opts.ReconnectRetry == 0 {
		opts.ReconnectRetry = defaultReconnectRetry
	}

	return &Bridge{
		opts:   opts,
		state:  StateDisconnected,
		logger: opts.Logger,
	}, nil
}

// DeviceID returns the identity obtained from the handshake, or "" before
// the handshake completes.
func (b *Bridge) DeviceID() string {
	return b.deviceID
}

// State returns the current lifecycle state.
func (b *Bridge) State() State {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.state
}

func (b *Bridge) setState(s State) {
	b.stateMu.Lock()
	prev := b.state
	b.state = s
	b.stateMu.Unlock()

	if prev != s {
		b.logInfo("state transition", "from", prev.String(), "to", s.String())
	}
}

// Run drives the full bridge lifecycle: open the serial port, perform the
// identify handshake, connect the broker session with an offline last-will,
// announce online, then relay until the context is cancelled or the
// transport dies.
//
// Returns nil on graceful shutdown. Startup failures (port open, handshake,
// broker dial) and unrecoverable transport faults return an error after the
// appropriate final status has been published.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.setState(StateTerminated)

	ch, err := b.opts.Opener.Open()
	if err != nil {
		return fmt.Errorf("opening transport: %w", err)
	}
	b.setTransport(ch)
	b.setState(StateIdentifying)

	deviceID, err := identify(ch, b.opts.IdentifyTimeout)
	if err != nil {
		ch.Close() //nolint:errcheck // Best effort cleanup on error path
		return err
	}
	b.deviceID = deviceID
	b.topics = NewTopics(b.opts.Namespace, deviceID)
	b.logInfo("device identified", "device_id", deviceID, "port", b.opts.PortName)

	// The last-will duplicates the offline announcement for the case where
	// the process dies without reaching a clean shutdown.
	session, err := b.opts.Dialer.Dial(deviceID, Will{
		Topic:   b.topics.State(),
		Payload: newStatusPayload(deviceID, StatusOffline),
		QoS:     b.opts.QoS,
		Retain:  b.opts.RetainState,
	})
	if err != nil {
		ch.Close() //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("connecting broker session: %w", err)
	}
	b.session = session

	b.setState(StateOnline)
	b.publishStatus(StatusOnline)
	b.lastHeartbeat = time.Now()

	for _, topic := range []string{b.topics.Commands(), b.topics.Broadcast()} {
		if err := session.Subscribe(topic, b.opts.QoS, b.handleCommand); err != nil {
			b.teardown()
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		b.logInfo("subscribed to commands", "topic", topic)
	}

	err = b.runLoop(ctx)

	switch {
	case err == nil:
		// External shutdown. Unpause the device if a pause is in effect,
		// then tell it to buffer events until the next bridge attaches.
		b.cleanupDevice()
		b.publishStatus(StatusOffline)
		b.teardown()
		b.logInfo("bridge stopped")
		return nil

	case errors.Is(err, ErrDeviceRemoved):
		// Device physically gone; no restore writes are possible, but the
		// stale handle still needs releasing.
		b.publishStatus(StatusOffline)
		b.teardown()
		b.logError("device removed", err, "port", b.opts.PortName)
		return err

	default:
		// Reconnect budget exhausted.
		b.publishStatus(StatusSerialError)
		b.teardown()
		b.logError("transport unrecoverable", err, "port", b.opts.PortName)
		return err
	}
}

// cleanupDevice restores device state on graceful shutdown: one unpause
// byte if and only if the pause flag is set, then a disconnect byte so the
// firmware buffers events while no bridge is attached. Skipped entirely
// when the port is no longer enumerated; there is no device to restore.
func (b *Bridge) cleanupDevice() {
	if !b.devicePresent() {
		b.logWarn("device gone, skipping shutdown writes", "port", b.opts.PortName)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.transport == nil {
		return
	}

	if b.paused {
		if err := b.transport.Write([]byte{CmdPause}); err != nil {
			b.logError("unpause on shutdown failed", err)
		} else {
			b.paused = false
		}
	}

	if err := b.transport.Write([]byte{CmdDisconnect}); err != nil {
		b.logError("disconnect notify failed", err)
	}
}

// teardown releases the broker session and the transport, in that order,
// so no command callback can fire against a closed transport. A faulted or
// unplugged channel still gets a Close so the OS handle is released; a nil
// one was already closed by the reconnect path.
func (b *Bridge) teardown() {
	if b.session != nil {
		if err := b.session.Close(); err != nil {
			b.logError("broker disconnect failed", err)
		}
	}

	b.mu.Lock()
	ch := b.transport
	b.transport = nil
	b.mu.Unlock()

	if ch != nil {
		if err := ch.Close(); err != nil {
			b.logError("transport close failed", err)
		}
	}
}

// setTransport swaps the active channel. Used at startup and after a
// successful reconnect.
func (b *Bridge) setTransport(ch Transport) {
	b.mu.Lock()
	b.transport = ch
	b.mu.Unlock()
}

// currentTransport returns the active channel for the controller's reads.
func (b *Bridge) currentTransport() Transport {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transport
}

// publishStatus publishes the device status on the state topic. Publish
// failures are logged only; the broker client's reconnect handles broker
// outages.
func (b *Bridge) publishStatus(status string) {
	if b.session == nil {
		return
	}

	payload := newStatusPayload(b.deviceID, status)
	if err := b.session.Publish(b.topics.State(), payload, b.opts.QoS, b.opts.RetainState); err != nil {
		b.logError("status publish failed", err, "status", status)
		return
	}
	b.logDebug("status published", "status", status)
}

// logDebug logs a debug message if a logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning message if a logger is set.
func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is set.
func (b *Bridge) logError(msg string, err error, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		args := append([]any{"error", err}, keysAndValues...)
		logger.Error(msg, args...)
	}
}

// SetLogger sets or replaces the logger. Safe for concurrent use.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	defer b.loggerMu.Unlock()
	b.logger = logger
}
