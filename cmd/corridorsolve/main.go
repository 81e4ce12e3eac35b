/*
corridorsolve runs the corridor signal-timing delay/queue solver over a
calibrated-curve artifact: load a SolverConfig and a network artifact, run
update_network_prediction for one time-of-day window, and write the solved
artifact back out. Pass -serve to keep a diagnostics HTTP/websocket endpoint
up for the duration of the solve.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"corridorsolve/internal/artifact"
	"corridorsolve/internal/config"
	"corridorsolve/internal/introspect"
	"corridorsolve/internal/network"
	"corridorsolve/internal/telemetry"
)

var (
	artifactPath *string
	outputPath   *string
	configPath   *string
	todName      *string
	serve        *bool
	addr         *string
)

func init() {
	artifactPath = flag.String("artifact", "", "path to the calibrated-curve JSON artifact (required)")
	outputPath = flag.String("out", "", "path to write the solved artifact (defaults to -artifact, overwriting it)")
	configPath = flag.String("config", "", "path to a solver config YAML file (optional, defaults used otherwise)")
	todName = flag.String("tod", "", "time-of-day name to solve (required)")
	serve = flag.Bool("serve", false, "keep a diagnostics server up at -addr for the duration of the solve")
	addr = flag.String("addr", ":8080", "diagnostics server address, used only with -serve")
	flag.Parse()
}

func runApp() error {
	if *artifactPath == "" || *todName == "" {
		return fmt.Errorf("corridorsolve: -artifact and -tod are required")
	}
	if *outputPath == "" {
		*outputPath = *artifactPath
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.FromYaml(*configPath)
		if err != nil {
			return fmt.Errorf("corridorsolve: loading config: %w", err)
		}
		cfg = loaded
	}

	net, err := artifact.Load(*artifactPath)
	if err != nil {
		return fmt.Errorf("corridorsolve: loading artifact: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notifyCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	opts := network.DefaultPredictionOptions()
	opts.MaxSuperIterations = cfg.MaxSuperIterations
	opts.SuperStoppingCriteria = cfg.SuperStoppingCriteria
	opts.RetryWithLoop = cfg.RetryWithLoop
	opts.Concurrency = cfg.Concurrency

	var reporter *telemetry.ChannelReporter
	if *serve {
		reporter = telemetry.NewChannelReporter(256)
		opts.Reporter = reporter

		diag := introspect.NewServer(*addr, net, reporter)
		go func() {
			if err := diag.Serve(notifyCtx); err != nil {
				log.Printf("corridorsolve: diagnostics server: %v", err)
			}
		}()
	}

	objective, err := network.UpdateNetworkPrediction(net, *todName, opts)
	if reporter != nil {
		reporter.Close()
	}
	if err != nil {
		return fmt.Errorf("corridorsolve: solve: %w", err)
	}
	log.Printf("corridorsolve: solved %s, objective=%.6f", *todName, objective)

	if err := artifact.Save(*outputPath, net); err != nil {
		return fmt.Errorf("corridorsolve: saving artifact: %w", err)
	}
	return nil
}

func main() {
	if err := runApp(); err != nil {
		log.Fatal(err)
	}
}
