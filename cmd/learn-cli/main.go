package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"exam-app/internal/bank"
	"exam-app/internal/cli"
	"exam-app/internal/config"
	"exam-app/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	cfg.RegisterFlags(flag.CommandLine)
	topic := flag.String("topic", "", "topic path, name or number (asks when empty)")
	startFrom := flag.Int("from", 0, "1-based question to start from")
	flag.Parse()

	if err := run(cfg, *topic, *startFrom); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, topic string, startFrom int) error {
	policy, err := cfg.Policy()
	if err != nil {
		return err
	}
	// Data warnings would interleave with the questions; keep them out of
	// the terminal unless running in prod mode, which logs JSON to stderr.
	log := logger.Nop()
	if cfg.LogMode == "prod" {
		if log, err = logger.New(cfg.LogMode); err != nil {
			return err
		}
		defer log.Sync()
	}

	catalog, err := bank.Discover(cfg.QuestionDir)
	if err != nil {
		return err
	}
	return cli.Run(context.Background(), os.Stdin, os.Stdout, catalog, bank.NewBank(policy, log), cli.Options{
		Topic:     topic,
		StartFrom: startFrom,
	})
}
