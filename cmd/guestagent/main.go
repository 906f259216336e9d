// Command guestagent is the sandbox agent that runs inside each microVM. It
// binds the vsock datagram channel on port 52 and serves the newline-framed
// JSON-RPC surface implemented by internal/guestagent.
//
// Build: CGO_ENABLED=0 GOOS=linux go build -o guestagent ./cmd/guestagent
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vmsandbox/orchestrator/internal/guestagent"
)

const version = "0.1.0"

func main() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	log.Printf("guestagent %s starting", version)

	lis, err := listenVsock(guestagent.GuestPort)
	if err != nil {
		log.Fatalf("guestagent: failed to listen: %v", err)
	}

	srv := guestagent.NewServer()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		log.Printf("guestagent: received %v, shutting down", sig)
		lis.Close()
		os.Exit(0)
	}()

	if err := srv.Serve(lis); err != nil {
		log.Fatalf("guestagent: serve failed: %v", err)
	}
}
