// Package mqtt provides MQTT client connectivity for the whac bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) registration for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// MQTT is the only link between a bridge agent and its consumers: the
// bridge publishes device events and status, and receives single-byte
// device commands on its subscription. The broker decouples the serial
// side from dashboards and the cloud collector.
//
//	Device ↔ Serial ↔ Bridge ↔ MQTT Broker ↔ Collector / Dashboard
//
// The LWT is supplied by the caller at Connect time because its topic and
// payload carry the device identity, which is only known after the serial
// identify handshake completes.
//
// # Usage
//
//	will := &mqtt.WillMessage{Topic: stateTopic, Payload: offline, QoS: 2}
//	client, err := mqtt.Connect(cfg.MQTT, "bridge-dev-42", will)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe("whac/dev-42/commands", 2,
//	    func(topic string, payload []byte) error {
//	        return handleCommand(payload)
//	    })
package mqtt
