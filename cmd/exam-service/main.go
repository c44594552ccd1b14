package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"exam-app/internal/analysis"
	"exam-app/internal/bank"
	"exam-app/internal/config"
	"exam-app/internal/gemini"
	"exam-app/internal/httpapi"
	"exam-app/internal/logger"
	"exam-app/internal/metrics"
	"exam-app/internal/quiz"
	"exam-app/internal/quiz/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("exam-service stopped", "error", err)
	}
}

func run(cfg config.Config, log *logger.Logger) error {
	policy, err := cfg.Policy()
	if err != nil {
		return err
	}
	blueprint, err := cfg.Blueprint()
	if err != nil {
		return err
	}
	catalog, err := bank.Discover(cfg.QuestionDir)
	if err != nil {
		return err
	}
	if _, ok := catalog.ByNumber(blueprint.SupplementaryNumber); !ok {
		log.Warn("supplementary topic missing, exams cannot be composed", "dir", catalog.Dir(), "topic_number", blueprint.SupplementaryNumber)
	}
	log.Info("topics discovered", "dir", catalog.Dir(), "count", len(catalog.Topics()))

	store, err := sqlite.NewSQLiteStore(context.Background(), cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.New()
	pools := bank.NewBank(policy, log.With("component", "bank"))
	composer := quiz.NewComposer(pools, catalog, blueprint, nil, log.With("component", "composer"))
	exams := quiz.NewService(catalog, pools, composer, store, log.With("component", "exams"), quiz.WithObserver(m))

	// A nil generator makes every LLM call answer inline with the missing key.
	var llm analysis.Generator
	if client := gemini.NewClient(cfg.Gemini(), nil); client.Configured() {
		llm = client
		log.Info("llm configured", "model", client.Model())
	} else {
		log.Warn("GEMINI_API_KEY not set, analysis commentary and chat are disabled")
	}
	var limiter *rate.Limiter
	if cfg.LLMCallsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.LLMCallsPerMinute)), 1)
	}
	assistant := analysis.NewAssistant(llm, log.With("component", "analysis"), analysis.AssistantOptions{
		Limiter:  limiter,
		Observer: m,
	})

	server := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Catalog:   catalog,
			Pools:     pools,
			Exams:     exams,
			Assistant: assistant,
			Observer:  m,
			Log:       log.With("component", "http"),
		}, m.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("exam-service listening", "addr", cfg.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
