package mqtt

import (
	"errors"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/whaclab/whac-bridge/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host: "127.0.0.1",
			Port: 1883,
			TLS:  false,
		},
		QoS:       2,
		Keepalive: 30,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// newDisconnectedClient builds a Client that has never connected.
// Used to exercise validation paths without a running broker.
func newDisconnectedClient() *Client {
	opts := buildClientOptions(testConfig(), "whac-test")
	return &Client{
		client:        pahomqtt.NewClient(opts),
		options:       opts,
		cfg:           testConfig(),
		subscriptions: make(map[string]subscription),
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	opts := buildClientOptions(cfg, "bridge-dev-42")

	if got := opts.ClientID; got != "bridge-dev-42" {
		t.Errorf("ClientID = %q, want bridge-dev-42", got)
	}
	if len(opts.Servers) != 1 {
		t.Fatalf("expected 1 broker URL, got %d", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "tcp://127.0.0.1:1883" {
		t.Errorf("broker URL = %q, want tcp://127.0.0.1:1883", got)
	}
	if opts.KeepAlive != int64(30) {
		t.Errorf("KeepAlive = %d, want 30", opts.KeepAlive)
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect should be enabled")
	}
}

func TestBuildClientOptionsTLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	opts := buildClientOptions(cfg, "bridge-dev-42")

	if got := opts.Servers[0].Scheme; got != "ssl" {
		t.Errorf("broker scheme = %q, want ssl", got)
	}
	if opts.TLSConfig == nil {
		t.Fatal("TLSConfig should be set when TLS is enabled")
	}
}

func TestBuildClientOptionsDefaultKeepalive(t *testing.T) {
	cfg := testConfig()
	cfg.Keepalive = 0
	opts := buildClientOptions(cfg, "bridge-dev-42")

	if opts.KeepAlive != int64(defaultKeepAlive/time.Second) {
		t.Errorf("KeepAlive = %d, want %d", opts.KeepAlive, int64(defaultKeepAlive/time.Second))
	}
}

func TestPublishValidation(t *testing.T) {
	c := newDisconnectedClient()

	if err := c.Publish("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: err = %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("whac/dev/state", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos 3: err = %v, want ErrInvalidQoS", err)
	}
	if err := c.Publish("whac/dev/state", []byte("x"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected: err = %v, want ErrNotConnected", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := newDisconnectedClient()
	handler := func(_ string, _ []byte) error { return nil }

	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: err = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("whac/dev/commands", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler: err = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("whac/dev/commands", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected: err = %v, want ErrNotConnected", err)
	}
	if got := c.SubscriptionCount(); got != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0 after failed subscribes", got)
	}
}

func TestUnsubscribeValidation(t *testing.T) {
	c := newDisconnectedClient()

	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: err = %v, want ErrInvalidTopic", err)
	}
	if err := c.Unsubscribe("whac/dev/commands"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected: err = %v, want ErrNotConnected", err)
	}
}
