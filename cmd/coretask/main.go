package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/viant/coretask"
	"github.com/viant/coretask/service/observer/store"
	"github.com/viant/coretask/tracing"
	"gopkg.in/yaml.v3"
)

func main() {
	configURL := flag.String("config", "", "YAML config URL, reference design when empty")
	duration := flag.Duration("duration", 0, "run time, until interrupted when zero")
	pin := flag.Bool("pin", false, "pin core threads to CPUs")
	events := flag.Bool("events", false, "enable the sensor event loop")
	journal := flag.String("journal", "", "SQLite observation journal path")
	traceFile := flag.String("trace", "", "write OpenTelemetry spans to file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config := coretask.DefaultConfig()
	if *configURL != "" {
		var err error
		if config, err = coretask.LoadConfig(ctx, *configURL); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	if *pin {
		config.Scheduler.PinThreads = true
	}
	if *events {
		config.Events.Enabled = true
	}
	if *journal != "" {
		journalConfig := store.DefaultConfig(*journal)
		config.Journal = &journalConfig
	}

	options := []coretask.Option{coretask.WithConfig(config)}
	if *traceFile != "" {
		options = append(options, coretask.WithTracing("coretask", "0.1.0", *traceFile))
	}
	srv := coretask.New(options...)
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("failed to start: %v", err)
	}

	if *duration > 0 {
		timer := time.NewTimer(*duration)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	} else {
		<-ctx.Done()
	}

	report, err := srv.Report(context.Background())
	if err := srv.Stop(); err != nil {
		log.Printf("failed to stop: %v", err)
	}
	if *traceFile != "" {
		_ = tracing.Shutdown(context.Background())
	}
	if err != nil {
		log.Fatalf("failed to build report: %v", err)
	}
	encoder := yaml.NewEncoder(os.Stdout)
	encoder.SetIndent(2)
	if err := encoder.Encode(report); err != nil {
		log.Fatalf("failed to encode report: %v", err)
	}
}
