package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/travelbooking/config"
	"github.com/Domenick1991/travelbooking/internal/bootstrap"
	"github.com/Domenick1991/travelbooking/internal/cache"
	"github.com/Domenick1991/travelbooking/internal/kafka"
	"github.com/Domenick1991/travelbooking/internal/logger"
	"github.com/Domenick1991/travelbooking/internal/provider"
	"github.com/Domenick1991/travelbooking/internal/repository"
	"github.com/Domenick1991/travelbooking/internal/service/payment"
	"github.com/Domenick1991/travelbooking/internal/service/search"
	"github.com/Domenick1991/travelbooking/internal/service/vault"
	"github.com/Domenick1991/travelbooking/internal/session"
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
	lg := logger.GetLogger("app")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		lg.Fatalw("connect postgres", "error", err)
	}
	defer pool.Close()

	accountsDB, err := repository.OpenAccountsDB(cfg.Accounts.DSN)
	if err != nil {
		lg.Fatalw("connect accounts db", "error", err)
	}
	defer accountsDB.Close()

	redisCache := cache.NewRedisCache(cfg.Redis)
	defer redisCache.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	sessions := session.NewRepository(redisCache, session.WithWindows(cfg.Session.SearchWindow(), cfg.Session.TargetWindow()))

	searchService := search.NewSearchService(
		provider.NewHTTPProvider(cfg.Search.ProviderName, cfg.Search.ProviderURL, cfg.Search.ProviderAPIKey, cfg.Search.ProviderTimeout()),
		search.NewCache(repository.NewSearchCacheRepository(pool), cfg.Search.CacheTTL(), nil),
		search.WithSessionMirror(sessions),
	)
	vaultService := vault.NewVaultService(
		repository.NewInstrumentRepository(pool),
		vault.WithEvents(producer, cfg.Kafka.VaultEventsTopic),
	)
	resolver := payment.NewResolver(
		vaultService,
		repository.NewAccountMethodRepository(accountsDB),
		repository.NewBookingPaymentRepository(pool),
		payment.WithEvents(producer, cfg.Kafka.BookingTopic),
	)

	err = bootstrap.Run(ctx, cfg, bootstrap.Services{
		Search:   searchService,
		Vault:    vaultService,
		Resolver: resolver,
		Sessions: sessions,
		Health: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return err
			}
			return redisCache.Ping(ctx)
		},
	})
	if err != nil {
		lg.Fatalw("server error", "error", err)
	}
	lg.Info("server stopped")
}
