package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/travelbooking/config"
	"github.com/Domenick1991/travelbooking/internal/email"
	"github.com/Domenick1991/travelbooking/internal/kafka"
	"github.com/Domenick1991/travelbooking/internal/logger"
	"github.com/Domenick1991/travelbooking/internal/provider"
	"github.com/Domenick1991/travelbooking/internal/repository"
	"github.com/Domenick1991/travelbooking/internal/service/search"
	"github.com/Domenick1991/travelbooking/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := logger.Init(cfg.Log.Level); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()
	lg := logger.GetLogger("worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		lg.Fatalw("connect postgres", "error", err)
	}
	defer pool.Close()

	searchService := search.NewSearchService(
		provider.NewHTTPProvider(cfg.Search.ProviderName, cfg.Search.ProviderURL, cfg.Search.ProviderAPIKey, cfg.Search.ProviderTimeout()),
		search.NewCache(repository.NewSearchCacheRepository(pool), cfg.Search.CacheTTL(), nil),
	)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.VaultEventsTopic)
	defer consumer.Close()

	emailSender := email.NewSender()

	go func() {
		if err := consumer.ConsumeVaultEvents(ctx, emailSender.Send); err != nil {
			lg.Errorw("consumer stopped", "error", err)
		}
	}()

	lg.Infow("worker started", "sweep_interval", cfg.Worker.SweepInterval(), "retention", cfg.Search.Retention())
	worker.RunSweeps(ctx, searchService, cfg.Worker.SweepInterval(), cfg.Search.Retention())
	lg.Info("worker stopped")
}
