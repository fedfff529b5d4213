// Package config handles loading and validating whac-bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The same config file serves both binaries: the bridge agent reads the
// serial/mqtt/bridge sections, the cloud collector reads mqtt/cloud. Only
// the bridge requires a serial port (see ValidateBridge).
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment
//     variables (WHAC_MQTT_PASSWORD, WHAC_INFLUXDB_TOKEN)
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Serial.Port)
package config
