package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"stratum/internal/balance"
	"stratum/internal/hierarchy"
	"stratum/internal/ledger"
	"stratum/internal/platform/config"
	"stratum/internal/platform/httpserver"
	"stratum/internal/platform/logger"
	"stratum/internal/platform/metrics"
	platformredis "stratum/internal/platform/redis"
	"stratum/internal/registry"
	"stratum/internal/transaction"
	httptransport "stratum/internal/transport/http"
	"stratum/internal/validator"
	"stratum/pkg/platform/audit"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: postgres when configured, in-memory otherwise.
	var (
		nodeStore     hierarchy.Store
		registryStore registry.Store
		balanceStore  balance.Store
		txStore       transaction.Store
	)
	if cfg.PostgresURL != "" {
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("ping postgres", "error", err)
			os.Exit(1)
		}

		nodes := hierarchy.NewPostgres(db)
		regs := registry.NewPostgres(db)
		bals := balance.NewPostgres(db)
		txs := transaction.NewPostgres(db)
		for _, ensure := range []func(context.Context) error{
			nodes.EnsureSchema, regs.EnsureSchema, bals.EnsureSchema, txs.EnsureSchema,
		} {
			if err := ensure(ctx); err != nil {
				log.Error("ensure schema", "error", err)
				os.Exit(1)
			}
		}
		nodeStore, registryStore, balanceStore, txStore = nodes, regs, bals, txs
		log.Info("using postgres stores")
	} else {
		nodeStore = hierarchy.NewInMemoryStore()
		registryStore = registry.NewInMemoryStore()
		balanceStore = balance.NewInMemoryStore()
		txStore = transaction.NewInMemoryStore()
		log.Info("using in-memory stores")
	}

	if err := hierarchy.Bootstrap(ctx, nodeStore); err != nil {
		log.Error("bootstrap hierarchy", "error", err)
		os.Exit(1)
	}

	// Activity stats: redis when configured, in-memory otherwise.
	var stats validator.ActivityStats
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		stats = validator.NewRedisStats(redisClient.Client)
		log.Info("using redis activity stats")
	} else {
		stats = validator.NewInMemoryStats()
	}

	// Audit: kafka when brokers are configured, in-memory otherwise.
	var publisher audit.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		publisher = kafka
		log.Info("publishing audit events to kafka", "topic", cfg.AuditTopic)
	} else {
		publisher = audit.NewInMemoryPublisher()
	}
	defer publisher.Close()

	reg, err := registry.New(nodeStore, registryStore, registry.WithLogger(log))
	if err != nil {
		log.Error("build registry service", "error", err)
		os.Exit(1)
	}
	verifier, err := ledger.New(reg, nodeStore, ledger.WithLogger(log), ledger.WithMetrics(m))
	if err != nil {
		log.Error("build ledger verifier", "error", err)
		os.Exit(1)
	}
	pipeline, err := validator.New(balanceStore, reg, stats, validator.NewStaticPolicy(nil, nil),
		validator.WithLogger(log), validator.WithMetrics(m))
	if err != nil {
		log.Error("build validator", "error", err)
		os.Exit(1)
	}
	txService, err := transaction.New(txStore, verifier, pipeline, balanceStore, stats,
		transaction.WithLogger(log), transaction.WithMetrics(m), transaction.WithAudit(publisher))
	if err != nil {
		log.Error("build transaction service", "error", err)
		os.Exit(1)
	}

	handler := httptransport.NewHandler(nodeStore, reg, verifier, pipeline, txService, balanceStore, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
