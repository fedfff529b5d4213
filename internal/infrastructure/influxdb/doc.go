// Package influxdb provides optional time-series storage for the collector.
//
// This package manages:
//   - Connection to InfluxDB v2 with token authentication
//   - Non-blocking batched writes of pop results, session scores, and
//     device status transitions
//   - Health monitoring
//
// InfluxDB is strictly optional: when disabled in config the collector
// runs without it and Connect returns ErrDisabled. Reaction-time analysis
// belongs here rather than SQLite because the per-pop write rate during a
// busy session would thrash a single-writer database for data nobody
// queries row-by-row.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.Cloud.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    client = nil // Collector degrades gracefully
//	} else if err != nil {
//	    log.Fatal(err)
//	}
//
//	client.WritePopResult("dev-42", 3, true, 412.0)
package influxdb
