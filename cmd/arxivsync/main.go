// cmd/arxivsync/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newCLI().RunContext(ctx, os.Args); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}
