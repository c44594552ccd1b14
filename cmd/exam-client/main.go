package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"exam-app/internal/config"
	"exam-app/internal/examclient"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	server := flag.String("server", cfg.ServerURL, "exam service base URL")
	timeout := flag.Duration("timeout", 5*time.Second, "HTTP timeout")
	flag.Parse()

	err = examclient.Run(context.Background(), os.Stdin, os.Stdout, examclient.Config{
		ServerURL:   *server,
		HTTPTimeout: *timeout,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
