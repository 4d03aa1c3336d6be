// Package timeouts defines shared timeout constants used by the authdb
// service surface. Centralizing these values prevents drift between the
// entry point and the HTTP server and makes the durations discoverable.
package timeouts

import "time"

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
