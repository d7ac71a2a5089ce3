package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"briefly/internal/adapter/llm"
	"briefly/internal/adapter/store"
	"briefly/internal/domain"
	"briefly/internal/infra/config"
	"briefly/internal/infra/logger"
	"briefly/internal/infra/tracer"
	"briefly/internal/usecase"
	"briefly/internal/usecase/briefing"
	"briefly/internal/usecase/scheduling"
)

func main() {
	if len(os.Args) >= 2 && os.Args[1] == "encrypt" {
		if err := runEncrypt(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "encrypt: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// runEncrypt encrypts a secret value for use in the config file.
// Usage: briefly encrypt <value>   (reads BRIEFLY_CONFIG_KEY)
func runEncrypt(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: briefly encrypt <value>")
	}
	passphrase := os.Getenv("BRIEFLY_CONFIG_KEY")
	if passphrase == "" {
		return fmt.Errorf("BRIEFLY_CONFIG_KEY is not set")
	}
	enc, err := config.EncryptValue(args[0], passphrase)
	if err != nil {
		return err
	}
	fmt.Println("enc:" + enc)
	return nil
}

func run() error {
	configPath := flag.String("config", "briefly.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	configs := store.NewConfigStore(db)
	briefings := store.NewBriefingStore(db)
	markers := store.NewRunMarkerStore(db)
	records := store.NewRecordStore(db)
	stores := records.Stores()

	// Generative backend: rate limit inside, circuit breaker outside, so
	// budget rejections never trip the breaker.
	var provider domain.LLMProvider = llm.NewOpenAIProvider(cfg.LLM, log)
	if cfg.LLM.MaxCallsPerMinute > 0 {
		provider = llm.NewRateLimitedProvider(provider, cfg.LLM.MaxCallsPerMinute)
	}
	provider = llm.NewCircuitBreakerProvider(provider, cfg.LLM.Breaker, log)

	counter := briefing.NewTokenCounter(cfg.LLM.Model)
	prompts := briefing.NewPromptBuilder(cfg.Briefing.MaxFieldChars, cfg.Briefing.PromptTokenBudget, counter)
	engine, err := briefing.NewEngine(provider, prompts, cfg.Briefing.CallTimeout, cfg.LLM.MaxTokens, log)
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}
	fallback := briefing.NewFallback(log)
	aggregator := briefing.NewAggregator(stores, configs, cfg.Briefing.PerDomainLimit, log)
	cache := briefing.NewCache(briefings, aggregator, engine, fallback, log)

	registry := usecase.NewRegistry(log)
	runners := []domain.AgentRunner{
		usecase.NewFocusRunner(cache, log),
		usecase.NewScanRunner(domain.AgentEmail, stores, cfg.Briefing.PerDomainLimit, log),
		usecase.NewScanRunner(domain.AgentLegal, stores, cfg.Briefing.PerDomainLimit, log),
		usecase.NewScanRunner(domain.AgentFinancial, stores, cfg.Briefing.PerDomainLimit, log),
		usecase.NewScanRunner(domain.AgentStablecoin, stores, cfg.Briefing.PerDomainLimit, log),
	}
	controller := usecase.NewController(registry, configs, runners, log)

	if err := controller.AutoStartAgents(ctx); err != nil {
		log.Error("auto-start failed", "error", err)
	}

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return fmt.Errorf("resolve timezone: %w", err)
	}

	scheduler := scheduling.NewScheduler(loc, log)
	if cfg.Scheduler.Enabled {
		job := usecase.NewDailyBriefingJob(controller, cache, markers, loc, log)
		scheduler.RegisterAction(scheduling.ActionDailyBriefing, job.Run)

		spec, err := cfg.Scheduler.DailyCronSpec()
		if err != nil {
			return fmt.Errorf("build daily schedule: %w", err)
		}
		if err := scheduler.AddTask(scheduling.ScheduledTask{
			Name:     "daily-briefing",
			Schedule: spec,
			Action:   scheduling.ActionDailyBriefing,
		}); err != nil {
			return fmt.Errorf("schedule daily briefing: %w", err)
		}
	}

	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	log.Info("briefly started",
		"store", cfg.Store.Path,
		"provider", cfg.LLM.Provider,
		"scheduler_enabled", cfg.Scheduler.Enabled)

	<-ctx.Done()

	log.Info("shutting down")
	if err := scheduler.Stop(); err != nil {
		log.Error("scheduler stop failed", "error", err)
	}
	controller.StopAll(context.Background())
	return nil
}
