package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"agent-scheduler/internal/agent"
	"agent-scheduler/internal/bot"
	"agent-scheduler/internal/config"
	"agent-scheduler/internal/repository"
	"agent-scheduler/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	agentRepo := repository.NewAgentRepository(db)
	toolRepo := repository.NewToolRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	var runner agent.Runner
	if cfg.OpenAIKey != "" {
		runner = agent.NewOpenAIRunner(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.AgentModel)
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set; using deterministic stub runner")
		runner = agent.NewStubRunner()
	}

	var notifier service.Notifier
	if cfg.TelegramToken != "" {
		notifier, err = bot.NewNotifier(cfg.TelegramToken, userRepo, log)
		if err != nil {
			log.Fatal().Err(err).Msg("create notifier")
		}
	} else {
		log.Warn().Msg("TELEGRAM_TOKEN not set; notifications go to the log")
		notifier = bot.LogNotifier{Log: log}
	}

	resolver := service.NewToolResolver(toolRepo)
	executor := service.NewExecutorService(taskRepo, agentRepo, resolver, runner, notifier, service.ExecutorConfig{
		Workers:   cfg.ExecutorWorkers,
		QueueSize: cfg.ExecutorQueueSize,
		Timeout:   cfg.ExecutorTimeout,
	}, log)
	executor.Start(ctx)
	defer executor.Stop()

	scheduler := service.NewSchedulerService(time.Local, taskRepo, executor, log)
	if err := scheduler.Start(cfg.PollInterval); err != nil {
		log.Fatal().Err(err).Msg("start scheduler")
	}
	defer scheduler.Stop()

	log.Info().Msg("agent scheduler started")
	<-ctx.Done()
	log.Info().Msg("shutting down")
}
