package main

import (
	"log"
	"net"
	"os"
)

const unixFallbackSocket = "/tmp/guestagent.sock"

// listenUnixFallback is only ever used when the real vsock transport is
// unavailable (non-Linux build, or a CI runner without AF_VSOCK).
func listenUnixFallback() (net.Listener, error) {
	os.Remove(unixFallbackSocket)
	lis, err := net.Listen("unix", unixFallbackSocket)
	if err != nil {
		return nil, err
	}
	log.Printf("guestagent: listening on %s", unixFallbackSocket)
	return lis, nil
}
