// Package serialport provides the line-oriented serial transport to the
// whac device.
//
// This package manages:
//   - Opening and configuring the serial port (8N1, configurable baud)
//   - Timeout-bounded line reads with partial-frame reassembly
//   - Serialized raw-byte writes for device commands
//   - Port enumeration for unplug detection
//
// # Architecture
//
// The device emits newline-delimited JSON frames and accepts single ASCII
// command bytes. Channel hides the byte-stream nature of the port behind
// ReadLine/Write so the bridge layer only ever deals in whole frames.
//
// Read timeouts are a feature, not a fault: ReadLine returns (nil, nil)
// when the device is quiet so the caller can run its heartbeat and shutdown
// checks between frames.
package serialport
