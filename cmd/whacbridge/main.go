// whacbridge relays events and commands between one Whac-A-Mole device on
// a serial port and an MQTT broker.
//
// The bridge performs an identify handshake on the serial link, constructs
// its MQTT topics from the device identity, and then forwards device frames
// upstream and command bytes downstream until it is stopped or the serial
// link becomes unrecoverable.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/whaclab/whac-bridge/internal/bridge"
	"github.com/whaclab/whac-bridge/internal/infrastructure/config"
	"github.com/whaclab/whac-bridge/internal/infrastructure/logging"
	"github.com/whaclab/whac-bridge/internal/infrastructure/mqtt"
	"github.com/whaclab/whac-bridge/internal/serialport"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// defaultConfigPath is used when WHAC_CONFIG is not set.
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default("whacbridge")
	log.Info("starting whac bridge", "version", version, "commit", commit)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateBridge(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	log = logging.New(cfg.Logging, "whacbridge", version)
	log.Info("configuration loaded", "path", configPath, "serial_port", cfg.Serial.Port)

	b, err := bridge.New(bridge.Options{
		Opener:            &serialOpener{cfg: cfg.Serial},
		Dialer:            &brokerDialer{cfg: cfg.MQTT, log: log},
		Ports:             portListerFunc(serialport.ListPorts),
		PortName:          cfg.Serial.Port,
		Namespace:         cfg.Bridge.Namespace,
		QoS:               byte(cfg.MQTT.QoS),
		RetainState:       cfg.MQTT.RetainState,
		IdentifyTimeout:   cfg.Bridge.GetIdentifyTimeout(),
		HeartbeatInterval: cfg.Bridge.GetHeartbeatInterval(),
		ReconnectTimeout:  cfg.Bridge.Reconnect.GetTimeout(),
		ReconnectRetry:    cfg.Bridge.Reconnect.GetRetryInterval(),
		Logger:            log,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	if err := b.Run(ctx); err != nil {
		return fmt.Errorf("bridge: %w", err)
	}

	log.Info("whac bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses the WHAC_CONFIG environment variable if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("WHAC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// serialOpener adapts serialport.Open to the bridge's TransportOpener.
type serialOpener struct {
	cfg config.SerialConfig
}

func (o *serialOpener) Open() (bridge.Transport, error) {
	return serialport.Open(serialport.Config{
		Port:        o.cfg.Port,
		BaudRate:    o.cfg.BaudRate,
		ReadTimeout: o.cfg.GetReadTimeout(),
	})
}

// portListerFunc adapts a plain function to the bridge's PortLister.
type portListerFunc func() ([]string, error)

func (f portListerFunc) List() ([]string, error) {
	return f()
}

// brokerDialer adapts mqtt.Connect to the bridge's BrokerDialer. The
// client ID and last-will carry the device identity, so the broker session
// is only dialed after the handshake.
type brokerDialer struct {
	cfg config.MQTTConfig
	log *logging.Logger
}

func (d *brokerDialer) Dial(deviceID string, will bridge.Will) (bridge.BrokerSession, error) {
	client, err := mqtt.Connect(d.cfg, "whacbridge-"+deviceID, &mqtt.WillMessage{
		Topic:   will.Topic,
		Payload: will.Payload,
		QoS:     will.QoS,
		Retain:  will.Retain,
	})
	if err != nil {
		return nil, err
	}

	client.SetLogger(d.log)
	client.SetOnConnect(func() {
		d.log.Info("mqtt connected",
			"broker", fmt.Sprintf("%s:%d", d.cfg.Broker.Host, d.cfg.Broker.Port))
	})
	client.SetOnDisconnect(func(err error) {
		d.log.Warn("mqtt connection lost", "error", err)
	})

	return &brokerSession{client: client}, nil
}

// brokerSession adapts *mqtt.Client to the bridge's BrokerSession.
type brokerSession struct {
	client *mqtt.Client
}

func (s *brokerSession) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return s.client.Publish(topic, payload, qos, retained)
}

func (s *brokerSession) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	return s.client.Subscribe(topic, qos, handler)
}

func (s *brokerSession) Close() error {
	return s.client.Close()
}
