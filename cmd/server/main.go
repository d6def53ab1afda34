// Package main runs the marketplace server: HTTP API, settlement engine,
// follow-up reconciler and the notification stream.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"solana-marketplace/internal/auth"
	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/httpapi"
	"solana-marketplace/internal/notify"
	"solana-marketplace/internal/observability"
	"solana-marketplace/internal/reconcile"
	"solana-marketplace/internal/settlement"
	"solana-marketplace/internal/solana"
	"solana-marketplace/internal/storage"
	chstore "solana-marketplace/internal/storage/clickhouse"
	"solana-marketplace/internal/storage/memory"
	"solana-marketplace/internal/storage/migrations"
	pgstore "solana-marketplace/internal/storage/postgres"
	"solana-marketplace/internal/wallet"
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (settlement audit log)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	listenAddr := flag.String("listen-addr", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	keypairPath := flag.String("keypair", os.Getenv("WALLET_KEYPAIR"), "Path to a JSON keypair file used for signing")
	sessionFile := flag.String("session-file", envOr("SESSION_FILE", "wallet-session.json"), "Path to the persisted wallet session")
	confirmTimeout := flag.Duration("confirm-timeout", settlement.DefaultConfirmTimeout, "Confirmation polling deadline")
	sweepInterval := flag.Duration("sweep-interval", 5*time.Second, "Reconciler sweep interval")
	notifyTTL := flag.Duration("notification-ttl", notify.DefaultTTL, "Notification display lifetime")
	debug := flag.Bool("debug", false, "debug logging")

	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *rpcEndpoint == "" {
		logger.Error("--rpc-endpoint is required")
		os.Exit(1)
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Error("--postgres-dsn is required when not using --use-memory")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := observability.NewMetrics("")
	rpc := solana.NewHTTPClient(*rpcEndpoint, solana.WithMetrics(metrics))

	// Stores
	var (
		listings     storage.ListingStore
		transactions storage.TransactionStore
		settlements  storage.SettlementStore
		users        storage.UserStore
		audit        storage.AuditStore
		feed         storage.ListingFeed
	)

	if *useMemory {
		memListings := memory.NewListingStore()
		listings = memListings
		transactions = memory.NewTransactionStore()
		settlements = memory.NewSettlementStore()
		users = memory.NewUserStore()
		audit = memory.NewAuditStore()
		feed = memListings.NewFeed()
	} else {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Error("connect to postgres", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Error("apply postgres migrations", "err", err)
			os.Exit(1)
		}

		listings = pgstore.NewListingStore(pool)
		transactions = pgstore.NewTransactionStore(pool)
		settlements = pgstore.NewSettlementStore(pool)
		users = pgstore.NewUserStore(pool)

		pgFeed := pgstore.NewListingFeed(ctx, pool, logger)
		defer pgFeed.Close()
		feed = pgFeed

		if *clickhouseDSN != "" {
			conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
			if err != nil {
				logger.Error("connect to clickhouse", "err", err)
				os.Exit(1)
			}
			defer conn.Close()
			audit = chstore.NewAuditStore(conn)
		}
	}

	// Wallet session
	sessions, err := wallet.NewFileSessionStore(*sessionFile)
	if err != nil {
		logger.Error("open session store", "err", err)
		os.Exit(1)
	}

	providers := map[domain.ProviderKind]wallet.Provider{}
	if *keypairPath != "" {
		provider, err := wallet.LoadKeypairProvider(*keypairPath, nil)
		if err != nil {
			logger.Error("load keypair", "err", err)
			os.Exit(1)
		}
		providers[domain.ProviderPhantom] = provider
	}
	registry := wallet.NewRegistry(providers)
	manager := wallet.NewManager(registry, sessions, rpc, logger)
	manager.SetMetrics(metrics)

	// Settlement
	reconciler := reconcile.New(listings, transactions, logger)
	engineCfg := settlement.DefaultConfig()
	engineCfg.ConfirmTimeout = *confirmTimeout
	engine := settlement.NewEngine(settlement.Options{
		Session:     manager,
		RPC:         rpc,
		Listings:    listings,
		Settlements: settlements,
		Reconciler:  reconciler,
		Audit:       audit,
		Metrics:     metrics,
		Logger:      logger,
		Config:      engineCfg,
	})

	sweepCfg := settlement.DefaultReconcilerConfig()
	sweepCfg.SweepInterval = *sweepInterval
	sweeper := settlement.NewReconciler(settlements, rpc, reconciler, metrics, logger, sweepCfg)

	stream := notify.NewStream(feed, *notifyTTL, metrics, logger)
	defer stream.Close()

	gate := auth.NewGate(sessions, users)

	server := httpapi.NewServer(httpapi.Options{
		Manager:      manager,
		Engine:       engine,
		Gate:         gate,
		Stream:       stream,
		Listings:     listings,
		Transactions: transactions,
		Users:        users,
		Metrics:      metrics,
		Logger:       logger,
	})

	httpServer := &http.Server{
		Addr:              *listenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("marketplace server launched", "addr", *listenAddr, "memory", *useMemory)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sweeper.Run(ctx)
	})

	g.Go(func() error {
		return stream.Run(ctx)
	})

	g.Go(func() error {
		return httpServer.ListenAndServe()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
		logger.Error("server exit", "err", err)
	}
}

// envOr returns the env value or a fallback.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
