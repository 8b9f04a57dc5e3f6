package server

import (
	"fmt"
	"net/http"
	"time"

	"zapstock/internal/config"
	"zapstock/internal/database"
	"zapstock/internal/i18n"
	custommiddleware "zapstock/internal/middleware"
	"zapstock/internal/repository"
	"zapstock/internal/service"
	"zapstock/internal/storage"
	"zapstock/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
}

// NewServer wires repositories, services and handlers onto one router. redisClient may be nil,
// in which case requests are not rate limited.
func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) *Server {
	router := chi.NewRouter()

	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.Env == "development"))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := db.Health()
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, health)
	})

	// Initialize repositories
	sqlDB := db.DB()
	txRunner := repository.NewTxRunner(sqlDB, cfg.Stock.LockTimeout)
	userRepo := repository.NewUserRepository(sqlDB)
	sessionRepo := repository.NewSessionRepository(sqlDB)
	productRepo := repository.NewProductRepository(sqlDB)
	movementRepo := repository.NewMovementRepository(sqlDB)
	categoryRepo := repository.NewCategoryRepository(sqlDB)
	supplierRepo := repository.NewSupplierRepository(sqlDB)
	dashboardRepo := repository.NewDashboardRepository(sqlDB)

	images := storage.NewImageStore(cfg.Upload)

	// Initialize services
	userService := service.NewUserService(userRepo, sessionRepo, service.TokenSettings{
		Secret:        cfg.Auth.JWTSecret,
		AccessExpiry:  time.Duration(cfg.Auth.AccessExpiry) * time.Minute,
		SessionExpiry: time.Duration(cfg.Auth.SessionExpiry) * 24 * time.Hour,
	}, logger)
	movementService := service.NewMovementService(txRunner, productRepo, movementRepo, cfg.Stock.HistoryLimit, logger)
	productService := service.NewProductService(txRunner, productRepo, movementRepo, images, logger)
	catalogService := service.NewCatalogService(categoryRepo, supplierRepo, productRepo)
	dashboardService := service.NewDashboardService(dashboardRepo)

	// Initialize handlers
	messages := i18n.NewCatalog(cfg.Locale.Default)
	authHandler := transport.NewAuthHandler(userService, messages, logger)
	transactionHandler := transport.NewTransactionHandler(movementService, messages, logger)
	productHandler := transport.NewProductHandler(productService, cfg.Upload.MaxBytes, messages, logger)
	catalogHandler := transport.NewCatalogHandler(catalogService, messages, logger)
	dashboardHandler := transport.NewDashboardHandler(dashboardService, productService, movementService,
		cfg.Stock.LowStockLimit, messages, logger)

	authMiddleware := custommiddleware.AuthMiddleware(userService, service.ErrTokenExpired, logger)
	publicLimit := func(next http.Handler) http.Handler { return next }
	if redisClient != nil {
		limiter := custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.Redis.RequestsPerWindow,
			Window:            cfg.Redis.Window,
			KeyPrefix:         "zapstock:ratelimit",
			KeyFunc:           custommiddleware.ByUserOrAddr,
		}, logger)
		authenticate := authMiddleware
		authMiddleware = func(next http.Handler) http.Handler {
			return authenticate(limiter(next))
		}

		// Login, register and refresh carry no principal, so they are budgeted per host.
		publicLimit = custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.Redis.AuthRequestsPerWindow,
			Window:            cfg.Redis.Window,
			KeyPrefix:         "zapstock:ratelimit:auth",
			KeyFunc:           custommiddleware.ByAddr,
		}, logger)
	}
	adminOnly := custommiddleware.RequireAdmin(logger)

	// Register routes
	router.Handle(images.URLPath()+"/*", images.Handler())
	authHandler.RegisterRoutes(router, authMiddleware, publicLimit)
	transactionHandler.RegisterRoutes(router, authMiddleware)
	productHandler.RegisterRoutes(router, authMiddleware, adminOnly, transactionHandler.ListForProduct)
	catalogHandler.RegisterRoutes(router, authMiddleware, adminOnly)
	dashboardHandler.RegisterRoutes(router, authMiddleware)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
