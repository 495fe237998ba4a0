package main

import (
	"context"
	"fmt"
	"log"
	"time"

	orificeflow "github.com/muhammedalf909/Smart-Orifice-Flow-System"
)

func main() {
	cfg := orificeflow.DefaultConfig()
	cfg.Source = orificeflow.SourceSim

	flow, err := orificeflow.ConfFromConfig(cfg)
	if err != nil {
		log.Fatalf("build flow: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	sink, samples, closeSamples := orificeflow.NewChannelSink("fanout", 32)
	defer closeSamples()

	go fanoutWorker("ingest", samples)

	if err := flow.Run(ctx, orificeflow.PersistSink(sink)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}

func fanoutWorker(name string, samples <-chan orificeflow.Sample) {
	for s := range samples {
		fmt.Printf("[%s] Q=%.4f L/s h=%.2f cm at %s\n", name, s.FlowRate, s.HeadCM, time.Now().Format(time.RFC3339))
	}
}
