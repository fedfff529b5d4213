package influxdb

import "errors"

// Sentinel errors for InfluxDB operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected indicates the client is not connected to InfluxDB.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled indicates InfluxDB integration is disabled in config.
	// The collector treats this as "run without time series", not a fault.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
