package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/ghalamif/GridBench"
	"github.com/ghalamif/GridBench/internal/adapters/insightlog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "scenario":
		err = scenarioCommand(os.Args[2:])
	case "compliance":
		err = complianceCommand(os.Args[2:])
	case "inspect":
		err = inspectCommand(os.Args[2:])
	case "compare":
		err = compareCommand(os.Args[2:])
	case "insights":
		err = insightsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("gridbench %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to bench configuration file")
	record := fs.Bool("record", false, "Record the run to a session file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := gridbench.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *record {
		cfg.Recorder.Enabled = true
	}

	flow, err := gridbench.ConfFromConfig(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return flow.Run(ctx)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := gridbench.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	fmt.Printf("config %s looks good (source=%s)\n", *cfgPath, cfg.Source.Kind)
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(*url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

var statsMetrics = []string{
	"gridbench_frames_ingested_total",
	"gridbench_insights_emitted_total",
	"gridbench_queue_length",
	"gridbench_wal_size_bytes",
	"gridbench_frame_rate_hz",
	"gridbench_telemetry_stale",
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	targets := make(map[string]float64, len(statsMetrics))
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for _, key := range statsMetrics {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %g", &value); err == nil {
					targets[key] = value
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	state := "healthy"
	if targets["gridbench_telemetry_stale"] > 0 {
		state = "STALE"
	}
	fmt.Printf("[%s] frames=%.0f insights=%.0f queue=%.0f wal_bytes=%.0f rate=%.1fHz telemetry=%s\n",
		time.Now().Format(time.RFC3339),
		targets["gridbench_frames_ingested_total"],
		targets["gridbench_insights_emitted_total"],
		targets["gridbench_queue_length"],
		targets["gridbench_wal_size_bytes"],
		targets["gridbench_frame_rate_hz"],
		state,
	)
	return nil
}

func scenarioCommand(args []string) error {
	fs := flag.NewFlagSet("scenario", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to bench configuration file")
	file := fs.String("file", "", "Scenario file (.json, .yaml)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("-file is required")
	}

	sc, err := gridbench.LoadScenario(*file)
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}
	cfg, err := gridbench.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rt, err := gridbench.NewBenchRuntime(cfg)
	if err != nil {
		return err
	}
	if err := rt.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, runErr := rt.RunScenario(ctx, sc)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: shutdown: %v", err)
	}
	if runErr != nil {
		return runErr
	}

	fmt.Printf("scenario %q recorded to %s\n\n", sc.Name, report.SessionPath)
	for _, line := range report.Validation.Logs {
		fmt.Println(line)
	}
	fmt.Println()
	printCompliance(report.Compliance)

	if !report.Validation.Passed {
		return fmt.Errorf("scenario validation failed")
	}
	return nil
}

func complianceCommand(args []string) error {
	fs := flag.NewFlagSet("compliance", flag.ExitOnError)
	path := fs.String("session", "", "Session file to evaluate")
	asJSON := fs.Bool("json", false, "Print results as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("-session is required")
	}

	sess, err := gridbench.LoadSession(*path)
	if err != nil {
		return err
	}
	results := gridbench.EvaluateCompliance(sess)
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	printCompliance(results)
	if !gridbench.CompliancePassed(results) {
		return fmt.Errorf("compliance failed")
	}
	return nil
}

func printCompliance(results []gridbench.ComplianceResult) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RULE\tRESULT\tDETAILS")
	for _, r := range results {
		verdict := "PASS"
		if !r.Passed {
			verdict = "FAIL"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, verdict, r.Details)
	}
	_ = tw.Flush()
}

func inspectCommand(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	path := fs.String("session", "", "Session file to inspect")
	scenarioPath := fs.String("scenario", "", "Optional scenario file whose validation block is applied")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("-session is required")
	}

	sess, err := gridbench.LoadSession(*path)
	if err != nil {
		return err
	}

	m := sess.Meta
	fmt.Printf("session   %s\n", m.SessionID)
	fmt.Printf("run       %s\n", m.RunID)
	fmt.Printf("scenario  %s\n", m.Scenario)
	fmt.Printf("source    %s\n", m.Source)
	fmt.Printf("frames    %d\n", len(sess.Frames))
	fmt.Printf("events    %d\n", len(sess.Events))
	if n := len(sess.Frames); n > 0 {
		fmt.Printf("span      %.3fs\n", sess.Frames[n-1].TS()-sess.Frames[0].TS())
		printChannels(sess)
	}

	report := gridbench.CheckSession(sess)
	if report.OK() {
		fmt.Println("\nintegrity ok")
	} else {
		fmt.Println("\nintegrity warnings:")
		for _, w := range report.Warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	if *scenarioPath != "" {
		sc, err := gridbench.LoadScenario(*scenarioPath)
		if err != nil {
			return err
		}
		res := gridbench.ValidateSession(sess, sc.Validation)
		fmt.Printf("\nvalidation against %q:\n", sc.Name)
		for _, line := range res.Logs {
			fmt.Printf("  %s\n", line)
		}
		if !res.Passed {
			return fmt.Errorf("validation failed")
		}
	}
	return nil
}

func printChannels(sess *gridbench.Session) {
	seen := map[string]bool{}
	for _, f := range sess.Frames {
		for _, k := range f.Keys() {
			seen[k] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		if k != "ts" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nCHANNEL\tMIN\tMAX\tMEAN")
	for _, k := range keys {
		series := sess.Series(k, 0)
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.3f\n", k,
			floats.Min(series), floats.Max(series), floats.Sum(series)/float64(len(series)))
	}
	_ = tw.Flush()
}

func compareCommand(args []string) error {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	ref := fs.String("ref", "", "Reference session file")
	test := fs.String("test", "", "Session file under test")
	key := fs.String("key", "va", "Channel to compare")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ref == "" || *test == "" {
		return fmt.Errorf("-ref and -test are required")
	}

	a, err := gridbench.LoadSession(*ref)
	if err != nil {
		return err
	}
	b, err := gridbench.LoadSession(*test)
	if err != nil {
		return err
	}
	c := gridbench.CompareSessions(a, b, *key)
	fmt.Printf("channel=%s samples=%d rmse=%.4f max_delta=%.4f\n", *key, len(c.Deltas), c.RMSE, c.MaxDelta)
	return nil
}

func insightsCommand(args []string) error {
	fs := flag.NewFlagSet("insights", flag.ExitOnError)
	path := fs.String("log", "data/insights.json", "Insight log written by the detector")
	recent := fs.Int("recent", 10, "How many of the latest insights to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ins, err := insightlog.Read(*path)
	if err != nil {
		return err
	}
	if len(ins) == 0 {
		fmt.Printf("no insights in %s\n", *path)
		return nil
	}

	counts := map[string]int{}
	critical := 0
	for _, in := range ins {
		counts[in.EventType]++
		if in.Severity == "critical" {
			critical++
		}
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	fmt.Printf("%d insights, %d critical\n", len(ins), critical)
	for _, t := range types {
		fmt.Printf("  %-22s %d\n", t, counts[t])
	}

	if *recent > len(ins) {
		*recent = len(ins)
	}
	fmt.Println()
	for _, in := range ins[len(ins)-*recent:] {
		fmt.Printf("t=%.3fs [%s] %s: %s\n", in.Timestamp, in.Severity, in.EventType, in.Message)
	}
	return nil
}

func printUsage() {
	fmt.Printf(`GridBench CLI

Usage:
  gridbench <command> [flags]

Commands:
  run         Start the bench runtime using the provided config
  validate    Load and validate a config file without starting the runtime
  stats       Poll the Prometheus metrics endpoint and print live counters
  scenario    Play a fault scenario against the source, record and validate it
  compliance  Evaluate a recorded session against the grid-code rule set
  inspect     Print session metadata, channel ranges and integrity warnings
  compare     Compare one channel of two recorded sessions
  insights    Summarise a detector insight log

Examples:
  gridbench run -config ./data/config.yaml -record
  gridbench scenario -config ./data/config.yaml -file ./scenarios/sag_recovery.json
  gridbench compliance -session ./data/sessions/session_20250101_120000.json.zst
  gridbench inspect -session ./data/sessions/a.json -scenario ./scenarios/sag_recovery.json
  gridbench compare -ref a.json -test b.json -key frequency
  gridbench stats -url http://localhost:9100/metrics -interval 1s
`)
}
