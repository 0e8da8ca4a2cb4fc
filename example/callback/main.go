package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/GridBench/pkg/gridbench"
)

func main() {
	flow, err := gridbench.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(batch []gridbench.Insight) error {
		for _, in := range batch {
			fmt.Printf("t=%.3fs [%s] %s: %s %v\n",
				in.Timestamp,
				in.Severity,
				in.EventType,
				in.Message,
				in.Metrics,
			)
		}
		return nil
	}

	if err := flow.Run(ctx, gridbench.StreamOutInsights("stdout", callback)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}
