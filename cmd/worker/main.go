package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"dropvest/internal/app/bootstrap"
)

// Worker process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring.
// 3) Run outbox relays, settlement retries and cron sweeps until stopped.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Println("dropvest worker starting")
	app, err := bootstrap.BuildWorker(ctx)
	if err != nil {
		log.Fatalf("bootstrap worker failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("worker shutdown close failed: %v", err)
		}
	}()

	if err := app.Run(ctx); err != nil {
		log.Printf("dropvest worker stopped with error: %v", err)
	}
}
