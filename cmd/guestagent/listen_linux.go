//go:build linux

package main

import (
	"log"
	"net"

	"github.com/mdlayher/vsock"
)

// listenVsock binds the guest-agent datagram channel on the given vsock
// port, accepting connections from any peer context-ID.
func listenVsock(port uint32) (net.Listener, error) {
	lis, err := vsock.Listen(port, nil)
	if err != nil {
		log.Printf("guestagent: vsock listen failed (%v), falling back to unix socket", err)
		return listenUnixFallback()
	}
	log.Printf("guestagent: listening on vsock port %d", port)
	return lis, nil
}
