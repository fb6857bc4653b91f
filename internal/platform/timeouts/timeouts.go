// Package timeouts defines shared timeout constants used across ledgerd
// binaries. Centralizing these values prevents drift between the HTTP
// surface and the operator tooling.
package timeouts

import "time"

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// Storage caps a single storage operation issued by the operator CLI.
const Storage = 5 * time.Second
