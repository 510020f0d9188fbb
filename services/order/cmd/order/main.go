package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	pkgdb "github.com/onlineshop/settlement/pkg/db"
	"github.com/onlineshop/settlement/pkg/logging"
	loggingmw "github.com/onlineshop/settlement/pkg/middleware/logging"
	"github.com/onlineshop/settlement/pkg/mykafka"

	"github.com/onlineshop/settlement/services/order/internal/chain"
	ordercfg "github.com/onlineshop/settlement/services/order/internal/config"
	"github.com/onlineshop/settlement/services/order/internal/domain"
	"github.com/onlineshop/settlement/services/order/internal/events"
	"github.com/onlineshop/settlement/services/order/internal/gateway"
	"github.com/onlineshop/settlement/services/order/internal/httpserver"
	"github.com/onlineshop/settlement/services/order/internal/metrics"
	"github.com/onlineshop/settlement/services/order/internal/pricing"
	"github.com/onlineshop/settlement/services/order/internal/reference"
	"github.com/onlineshop/settlement/services/order/internal/repo"
	"github.com/onlineshop/settlement/services/order/internal/service"
)

func main() {
	if err := godotenv.Load("services/order/.env"); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := ordercfg.Load()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := repo.Migrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	var priceCache pricing.Cache = pricing.NewMemoryCache()
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		priceCache = pricing.NewRedisCache(rdb, 2*cfg.PriceMaxStaleness)
	}

	oracle, err := pricing.NewOracle(pricing.NewCoinGeckoFeed(cfg.PriceFeedURL), priceCache, pricing.Options{
		Asset:       cfg.PriceAsset,
		Policy:      pricing.Policy(cfg.PricePolicy),
		FallbackUSD: cfg.PriceFallbackUSD,
		MaxStale:    cfg.PriceMaxStaleness,
		FiatPerUSD:  cfg.FiatPerUSD,
	})
	if err != nil {
		log.Fatalf("price oracle: %v", err)
	}

	commitment, err := chain.ParseCommitment(cfg.SolanaCommitment)
	if err != nil {
		log.Fatalf("solana commitment: %v", err)
	}
	rpcClient := chain.NewRPCClient(cfg.SolanaRPCURL, commitment)
	paystack := gateway.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey)

	var notifier *events.Notifier
	var producer *mykafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = mykafka.NewProducer(cfg.KafkaBrokers)
		notifier = events.NewNotifier(producer)
	} else {
		logger.Warn("kafka_disabled", "reason", "KAFKA_BROKERS is empty")
	}

	ledger := &repo.GormRepo{DB: db}
	svc := &service.OrderService{
		Cart:       service.NewCartValidator(ledger),
		Ledger:     ledger,
		References: reference.NewGenerator(),
		Rails: map[domain.PaymentMethod]service.Rail{
			domain.MethodSolana: {
				Quoter:     oracle,
				Instructor: chain.NewInstructor(cfg.MerchantWallet, cfg.PaymentLabel),
				Verifier:   chain.NewVerifier(rpcClient, cfg.MerchantWallet),
			},
			domain.MethodPaystack: {
				Instructor: gateway.NewInstructor(paystack, cfg.PaystackCallbackURL),
				Verifier:   gateway.NewVerifier(paystack),
			},
		},
		Currency: cfg.FiatCurrency,
		TTL:      cfg.OrderTTL,
	}
	if notifier != nil {
		svc.Notifier = notifier
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	sweeper := &service.Sweeper{Ledger: ledger, Interval: cfg.SweepInterval, Logger: logger}
	go sweeper.Run(sweepCtx)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(metrics.Middleware())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.CORS())

	httpserver.Register(e, &httpserver.Deps{
		OrderHandler:   &httpserver.OrderHTTP{Svc: svc},
		WebhookHandler: &httpserver.WebhookHTTP{Svc: svc, Secret: cfg.PaystackSecretKey},
		JWTSecret:      cfg.JWTAccessSecret,
		VerifyRate:     cfg.VerifyRateLimit,
		VerifyBurst:    cfg.VerifyRateBurst,
		Ready: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			if err := sqlDB.PingContext(ctx); err != nil {
				return err
			}
			if rdb != nil {
				return rdb.Ping(ctx).Err()
			}
			return nil
		},
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		log.Printf("order listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	stopSweeper()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)

	notifier.Close()
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka_close_failed", "err", err)
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := pkgdb.Close(db); err != nil {
		logger.Error("db_close_failed", "err", err)
	}

	log.Println("order stopped")
}
