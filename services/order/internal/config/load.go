package config

import (
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/onlineshop/settlement/pkg/config"
)

type ServiceConfig struct {
	config.Config

	OrderTTL      time.Duration
	SweepInterval time.Duration

	SolanaRPCURL     string
	SolanaCommitment string
	MerchantWallet   string
	PaymentLabel     string

	PriceFeedURL      string
	PriceAsset        string
	PricePolicy       string
	PriceFallbackUSD  decimal.Decimal
	PriceMaxStaleness time.Duration
	FiatPerUSD        decimal.Decimal
	FiatCurrency      string

	PaystackSecretKey   string
	PaystackBaseURL     string
	PaystackCallbackURL string

	// VerifyRateLimit is requests per second per client on the verify endpoint.
	VerifyRateLimit float64
	VerifyRateBurst int
}

func Load() ServiceConfig {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "order"
	}

	sc := ServiceConfig{
		Config: cfg,

		OrderTTL:      config.EnvDurationDefault("ORDER_TTL", 15*time.Minute),
		SweepInterval: config.EnvDurationDefault("SWEEP_INTERVAL", time.Minute),

		SolanaRPCURL:     config.EnvDefault("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		SolanaCommitment: config.EnvDefault("SOLANA_COMMITMENT", "finalized"),
		MerchantWallet:   os.Getenv("MERCHANT_WALLET"),
		PaymentLabel:     config.EnvDefault("PAYMENT_LABEL", "Online Shop"),

		PriceFeedURL:      config.EnvDefault("PRICE_FEED_URL", "https://api.coingecko.com/api/v3"),
		PriceAsset:        config.EnvDefault("PRICE_ASSET", "solana"),
		PricePolicy:       config.EnvDefault("PRICE_POLICY", "strict"),
		PriceFallbackUSD:  envDecimal("PRICE_FALLBACK_USD", decimal.Zero),
		PriceMaxStaleness: config.EnvDurationDefault("PRICE_MAX_STALENESS", 5*time.Minute),
		FiatPerUSD:        envDecimal("FIAT_PER_USD", decimal.Zero),
		FiatCurrency:      config.EnvDefault("FIAT_CURRENCY", "NGN"),

		PaystackSecretKey:   os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:     config.EnvDefault("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		PaystackCallbackURL: os.Getenv("PAYSTACK_CALLBACK_URL"),

		VerifyRateLimit: float64(config.EnvIntDefault("VERIFY_RATE_LIMIT", 2)),
		VerifyRateBurst: config.EnvIntDefault("VERIFY_RATE_BURST", 5),
	}

	config.MustNonEmpty(sc.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(sc.JWTAccessSecret, "JWT_SECRET")
	config.MustNonEmpty(sc.MerchantWallet, "MERCHANT_WALLET")
	config.MustNonEmpty(sc.PaystackSecretKey, "PAYSTACK_SECRET_KEY")
	config.MustOneOf(sc.SolanaCommitment, "SOLANA_COMMITMENT", "finalized", "confirmed")
	config.MustOneOf(sc.PricePolicy, "PRICE_POLICY", "strict", "degraded")
	if !sc.FiatPerUSD.IsPositive() {
		log.Fatalf("env FIAT_PER_USD must be a positive decimal")
	}
	if sc.PricePolicy == "degraded" && !sc.PriceFallbackUSD.IsPositive() {
		log.Fatalf("env PRICE_FALLBACK_USD is required when PRICE_POLICY=degraded")
	}

	return sc
}

func envDecimal(key string, def decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return def
	}
	return d
}
