package svc

import (
	"context"
	"fmt"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"stockbot/internal/application/port"
	appservice "stockbot/internal/application/service"
	"stockbot/internal/domain/model"
	domainservice "stockbot/internal/domain/service"
	"stockbot/internal/infrastructure/config"
	"stockbot/internal/infrastructure/news"
	"stockbot/internal/infrastructure/provider"
	"stockbot/internal/infrastructure/storage/composite"
	postgresrepo "stockbot/internal/infrastructure/storage/postgres"
	redisrepo "stockbot/internal/infrastructure/storage/redis"
	sqliterepo "stockbot/internal/infrastructure/storage/sqlite"
)

// ServiceContext wires storage, providers and services together. It is the
// single entry point for application startup; every dependency is
// initialized here and torn down by Close in reverse order.
type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	// infrastructure (first layer)
	redisClient *redisclient.Client
	sqliteRepo  *sqliterepo.Repo
	ledger      port.Ledger
	publisher   port.SignalPublisher
	newsCache   news.Cache

	// application services
	Portfolio *appservice.PortfolioService
	Metrics   *appservice.MetricsService
	Jobs      *appservice.JobsService

	closerChain []func() error
}

func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		publisher:   appservice.NoopPublisher{},
		closerChain: make([]func() error, 0),
	}
	if err := sc.initializeComponents(); err != nil {
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

// initializeComponents builds everything in dependency order: storage,
// news routers, providers, then services.
func (sc *ServiceContext) initializeComponents() error {
	if err := sc.initializeStorage(); err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	cfg := sc.Config
	providers := news.DefaultProviders()
	ttl := time.Duration(cfg.News.TTLSeconds) * time.Second

	// Interactive calls and each background job hold separate budgets.
	interactive := news.NewRouter(providers, uniformQuota(providers, cfg.News.Quota), ttl, sc.newsCache)
	reserveRouter := news.NewRouter(providers, uniformQuota(providers, cfg.Jobs.ReserveMaxQueries), 30*time.Minute, sc.newsCache)
	broadRouter := news.NewRouter(providers, uniformQuota(providers, cfg.Jobs.BroadMaxQueries), time.Hour, sc.newsCache)
	macroRouter := news.NewRouter(providers, uniformQuota(providers, 5), 4*time.Hour, sc.newsCache)

	states := sc.sqliteRepo
	gate := domainservice.NewEntryGate(domainservice.GateConfig{
		MinMarketCap:       cfg.Gate.MinMarketCap,
		MinAvgDollarVol20d: cfg.Gate.MinAvgDollarVol20d,
		HardVetoKeywords:   cfg.Gate.HardVetoKeywords,
	}, states)
	exits := domainservice.NewExitPolicy(states)
	sizer := domainservice.NewSizer(domainservice.SizerConfig{
		StartingCashUSD:     cfg.Portfolio.StartingCashUSD,
		DefaultMaxAllocPct:  cfg.Portfolio.DefaultMaxAllocPct,
		ModerateMaxAllocPct: cfg.Portfolio.ModerateMaxAllocPct,
	})
	decide := provider.NewDecision()

	sc.Portfolio = appservice.NewPortfolioService(
		sc.ledger,
		states,
		gate,
		exits,
		sizer,
		provider.NewEvidence(interactive),
		decide,
		sc.publisher,
		time.Duration(cfg.Portfolio.RecentDecisionHours)*time.Hour,
	)
	sc.Metrics = appservice.NewMetricsService(
		sc.ledger,
		provider.NewPriceHistory(),
		cfg.Portfolio.StartingCashUSD,
		cfg.Metrics.LookbackDays,
	)
	sc.Jobs = appservice.NewJobsService(
		sc.ledger,
		gate,
		appservice.Analyzer{Evidence: provider.NewEvidence(reserveRouter), Decide: decide},
		appservice.Analyzer{Evidence: provider.NewEvidence(broadRouter), Decide: decide},
		func(ctx context.Context) ([]model.NewsItem, error) {
			return macroRouter.Fetch(ctx, "macro:global", "MACRO", 1)
		},
		appservice.JobsConfig{
			Watchlist:       cfg.Watchlist.Tickers,
			ReserveInterval: time.Duration(cfg.Jobs.ReserveEveryMin) * time.Minute,
			ReserveMax:      cfg.Jobs.ReserveMaxQueries,
			BroadInterval:   time.Duration(cfg.Jobs.BroadEveryHours) * time.Hour,
			BroadMax:        cfg.Jobs.BroadMaxQueries,
		},
	)

	log.Info().Msg("✓ All components initialized")
	return nil
}

// initializeStorage brings up sqlite (required), then the optional postgres
// mirror and redis.
func (sc *ServiceContext) initializeStorage() error {
	if err := sc.initSQLite(); err != nil {
		return fmt.Errorf("sqlite initialization failed: %w", err)
	}
	sc.ledger = sc.sqliteRepo

	if sc.Config.Postgres.Enabled {
		if err := sc.initPostgres(); err != nil {
			return fmt.Errorf("postgres initialization failed: %w", err)
		}
	}
	if sc.Config.Redis.Enabled {
		if err := sc.initRedis(); err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
	}
	return nil
}

func (sc *ServiceContext) initSQLite() error {
	repo, err := sqliterepo.New(sc.Config.Sqlite.Path)
	if err != nil {
		return fmt.Errorf("sqlite repo creation failed: %w", err)
	}
	sc.sqliteRepo = repo

	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing sqlite connection")
		return repo.Close()
	})

	log.Info().Str("path", sc.Config.Sqlite.Path).Msg("✓ SQLite initialized")
	return nil
}

func (sc *ServiceContext) initPostgres() error {
	mirror, err := postgresrepo.New(sc.Config.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("postgres repo creation failed: %w", err)
	}
	sc.ledger = composite.New(sc.sqliteRepo, mirror)

	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing postgres connection")
		return mirror.Close()
	})

	log.Info().Msg("✓ Postgres audit mirror initialized")
	return nil
}

func (sc *ServiceContext) initRedis() error {
	rdb := redisclient.NewClient(&redisclient.Options{
		Addr: sc.Config.Redis.Addr,
	})

	ctx, cancel := context.WithTimeout(sc.Ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	sc.redisClient = rdb
	sc.publisher = redisrepo.NewPublisher(rdb, sc.Config.Redis.Prefix, sc.Config.Redis.SignalStream, sc.Config.Redis.SignalChan)
	sc.newsCache = redisrepo.NewNewsCache(rdb, sc.Config.Redis.Prefix)

	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return rdb.Close()
	})

	log.Info().Str("addr", sc.Config.Redis.Addr).Msg("✓ Redis initialized")
	return nil
}

// Ledger exposes the primary trade and audit store.
func (sc *ServiceContext) Ledger() port.Ledger {
	return sc.ledger
}

// Close tears everything down in reverse initialization order.
func (sc *ServiceContext) Close() error {
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil {
			log.Error().Err(err).Msg("error closing resource")
		}
	}
	return nil
}

func uniformQuota(providers map[string]news.Provider, budget int) map[string]int {
	out := make(map[string]int, len(providers))
	for name := range providers {
		out[name] = budget
	}
	return out
}
