// Package wsfeed bridges a WebSocket stream of JSON messages into the
// reactive world. A Feed owns the connection and its read and heartbeat
// goroutines; every decoded message is delivered onto a dispatch loop, so
// handlers run on the owning goroutine and may write signals directly.
package wsfeed
