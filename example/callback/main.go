package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/muhammedalf909/Smart-Orifice-Flow-System/pkg/orificeflow"
)

// Runs the simulated instrument and prints every sample through a
// callback sink, so no hardware or config file is needed.
func main() {
	cfg := orificeflow.DefaultConfig()
	cfg.Source = orificeflow.SourceSim

	flow, err := orificeflow.ConfFromConfig(cfg)
	if err != nil {
		log.Fatalf("build flow: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	callback := func(s orificeflow.Sample) error {
		fmt.Printf("%s t=%.2fs Q=%.4f L/s h=%.2f cm\n",
			s.Time.Format(time.RFC3339Nano),
			s.Elapsed,
			s.FlowRate,
			s.HeadCM,
		)
		return nil
	}

	if err := flow.Run(ctx, orificeflow.PersistCallback("stdout", callback)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}
