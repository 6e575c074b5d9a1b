package fx

import (
	"fmt"
	"time"

	"tradegateway/internal/config"
	"tradegateway/internal/logger"
	"tradegateway/internal/middleware"
	"tradegateway/internal/vault"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// CoreModule provides core application dependencies
var CoreModule = fx.Module("core",
	fx.Provide(
		// Configuration
		config.Load,

		// Logger (must be early)
		NewLogger,

		// Database and cache
		NewDatabase,
		config.NewRedisClient,

		// Gin router
		NewGinRouter,

		// Credential vault
		NewVault,

		// Middlewares
		middleware.NewMiddleware,
	),
)

// NewLogger creates a new zap logger based on config
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Info("Logger initialized",
		zap.String("level", cfg.Logging.Level),
		zap.String("format", cfg.Logging.Format),
	)

	return log, nil
}

// NewVault creates the credential vault from the configured master secret
func NewVault(cfg *config.Config, log *zap.Logger) (*vault.Vault, error) {
	v, err := vault.New(cfg.Vault.MasterSecret, cfg.Vault.KeySalt)
	if err != nil {
		log.Error("Failed to initialize credential vault", zap.Error(err))
		return nil, err
	}
	log.Info("Credential vault initialized", zap.String("algorithm", vault.Algorithm))
	return v, nil
}

// NewDatabase creates a new database connection
func NewDatabase(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	log.Info("Connecting to database...",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.Name),
	)

	var dsn string
	if cfg.Database.URL != "" {
		dsn = cfg.Database.URL
	} else {
		dsn = fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=Asia/Kolkata",
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.User,
			cfg.Database.Pass,
			cfg.Database.Name,
		)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		log.Error("Failed to connect to database", zap.Error(err))
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("Successfully connected to database")
	return db, nil
}

// NewGinRouter creates a new Gin router with basic configuration
func NewGinRouter(cfg *config.Config, log *zap.Logger) *gin.Engine {
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Logger must come first so later middleware can use it.
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.ErrorHandlerMiddleware())
	r.Use(middleware.NewCORS(cfg.CORS.Origins))
	// Runs ahead of the route-level auth middleware, so no user id is set
	// yet and requests are keyed by client IP.
	r.Use(middleware.UserRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Burst))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
