package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	orificeflow "github.com/muhammedalf909/Smart-Orifice-Flow-System"
)

func main() {
	flow, err := orificeflow.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := flow.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("acquisition exited: %v", err)
	}
}
