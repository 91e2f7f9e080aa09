package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tokoledger/api/internal/config"
	"github.com/tokoledger/api/internal/database"
	"github.com/tokoledger/api/internal/handler"
	mw "github.com/tokoledger/api/internal/middleware"
	"github.com/tokoledger/api/internal/receipt"
	"github.com/tokoledger/api/internal/service"
	"github.com/tokoledger/api/internal/ws"
	"go.uber.org/zap"
)

// Deps are the collaborators shared by every handler.
type Deps struct {
	Queries *database.Queries
	Pool    service.TxBeginner
	Hub     *ws.Hub
	Guard   service.SubmissionGuard
	Logger  *zap.Logger
}

// New creates a Chi router with all application routes wired up.
// Applies authentication, shop scoping and login rate limiting.
func New(cfg *config.Config, deps Deps) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth routes (public, rate limited per client IP)
	limiter := mw.NewIPRateLimiter(cfg.LoginRatePerSecond, cfg.LoginBurst)
	authHandler := handler.NewAuthHandler(deps.Queries, cfg.JWTSecret, logger)
	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)
		authHandler.RegisterRoutes(r)
	})

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/shops/{sid}/events", ws.Handler(deps.Hub, cfg.JWTSecret, logger))

	var notifier service.Notifier
	if deps.Hub != nil {
		notifier = deps.Hub
	}

	txnService := service.NewTransactionService(deps.Pool, deps.Queries,
		func(db database.DBTX) service.TransactionStore { return database.New(db) },
		deps.Guard, notifier, logger)
	returnService := service.NewReturnService(deps.Pool, deps.Queries,
		func(db database.DBTX) service.ReturnStore { return database.New(db) },
		notifier, logger)
	repairService := service.NewRepairService(deps.Pool, deps.Queries,
		func(db database.DBTX) service.RepairStore { return database.New(db) },
		cfg.RepairPaymentMethod, notifier, logger)

	txnHandler := handler.NewTransactionHandler(txnService, deps.Queries, receipt.JSONRenderer{}, logger)
	returnHandler := handler.NewReturnHandler(returnService, logger)
	repairHandler := handler.NewRepairHandler(repairService, logger)

	// Protected, shop-scoped routes
	r.Route("/shops/{sid}", func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))
		r.Use(mw.RequireShop)

		txnHandler.RegisterRoutes(r)
		returnHandler.RegisterRoutes(r)
		repairHandler.RegisterRoutes(r)
	})

	logger.Info("router initialized")
	return r
}
