package fx

import (
	"time"

	"tradegateway/internal/brokers/adapter"
	"tradegateway/internal/brokers/breaker"
	"tradegateway/internal/brokers/ratelimit"
	"tradegateway/internal/brokers/transport"
	"tradegateway/internal/config"
	connService "tradegateway/internal/module/connection/service"
	"tradegateway/internal/oauth"
	"tradegateway/internal/oracle"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// BrokersModule provides the outbound broker I/O stack: rate limiting,
// pooled transport, circuit breaking, the OAuth coordinator, the adapter
// registry, and the oracle collaborators.
var BrokersModule = fx.Module("brokers",
	fx.Provide(
		ratelimit.New,
		transport.NewPool,
		NewBreaker,
		oauth.NewCoordinator,
		provideOAuthClient,

		// Adapters (one per broker) and the dispatch registry
		adapter.NewZerodhaAdapter,
		adapter.NewUpstoxAdapter,
		adapter.NewAngelOneAdapter,
		adapter.NewICICIDirectAdapter,
		adapter.NewFyersAdapter,
		adapter.NewIIFLAdapter,
		NewAdapterRegistry,

		// Oracle collaborators
		NewAssetCatalog,
		NewPriceOracle,
		NewFxOracle,
	),
)

// provideOAuthClient exposes the coordinator behind the slice the
// connection services consume.
func provideOAuthClient(c *oauth.Coordinator) connService.OAuthClient {
	return c
}

// NewBreaker creates the process-wide circuit breaker.
func NewBreaker(logger *zap.Logger) *breaker.Breaker {
	return breaker.New(breaker.DefaultConfig(), logger)
}

// NewAdapterRegistry indexes every broker adapter. This is the single
// registration site for broker dispatch.
func NewAdapterRegistry(
	zerodha *adapter.ZerodhaAdapter,
	upstox *adapter.UpstoxAdapter,
	angelOne *adapter.AngelOneAdapter,
	icici *adapter.ICICIDirectAdapter,
	fyers *adapter.FyersAdapter,
	iifl *adapter.IIFLAdapter,
) *adapter.Registry {
	return adapter.NewRegistry(zerodha, upstox, angelOne, icici, fyers, iifl)
}

// NewAssetCatalog provides the shipped master-data catalog.
func NewAssetCatalog() oracle.AssetCatalog {
	return oracle.NewStaticCatalog()
}

// NewPriceOracle provides the default price source. Deployments wire a real
// market-data feed by replacing this provider.
func NewPriceOracle() oracle.PriceOracle {
	return oracle.UnavailablePriceOracle{}
}

// NewFxOracle provides the Redis-cached FX oracle over the identity
// fallback. Unknown pairs mean no conversion.
func NewFxOracle(cfg *config.Config, rdb *redis.Client, logger *zap.Logger) oracle.FxOracle {
	ttl := time.Duration(cfg.Portfolio.FxCacheTTLMin) * time.Minute
	return oracle.NewCachedFxOracle(oracle.IdentityFxOracle{}, rdb, ttl, logger)
}
