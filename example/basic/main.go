package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"sort"
	"syscall"

	"github.com/ghalamif/GridBench"
)

func main() {
	flow, err := gridbench.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	rt, err := flow.StreamOUT()
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bench runtime exited: %v", err)
	}

	stats := rt.TelemetryStats()
	det := rt.Detector()
	log.Printf("%d frames seen, %d insights (%d critical)", stats.FrameCount, len(det.Insights()), det.CriticalCount())

	summary := det.Summary()
	types := make([]string, 0, len(summary))
	for typ := range summary {
		types = append(types, typ)
	}
	sort.Strings(types)
	for _, typ := range types {
		log.Printf("  %-20s %d", typ, summary[typ])
	}
}
