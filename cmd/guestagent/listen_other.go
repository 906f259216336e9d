//go:build !linux

package main

import (
	"log"
	"net"
)

// listenVsock is unavailable outside Linux; the agent falls back to a Unix
// socket so the dispatcher can still be exercised in host-local tests.
func listenVsock(_ uint32) (net.Listener, error) {
	log.Printf("guestagent: vsock unsupported on this platform, using unix socket")
	return listenUnixFallback()
}
