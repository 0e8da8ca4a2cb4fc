package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/GridBench"
)

func main() {
	flow, err := gridbench.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, batches, closeBatches := gridbench.NewChannelSink("fanout", 32)
	defer closeBatches()

	go fanoutWorker("frames", batches)

	if err := flow.Run(ctx, gridbench.StreamOutSink(sink)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}

func fanoutWorker(name string, batches <-chan []*gridbench.Frame) {
	for batch := range batches {
		last := batch[len(batch)-1]
		fmt.Printf("[%s] %d frames at %s, last ts=%.3f f=%.2fHz\n",
			name, len(batch), time.Now().Format(time.RFC3339), last.TS(), last.ValueOr("frequency", 0))
	}
}
