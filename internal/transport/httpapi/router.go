package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/coinnovac/hazelnut/internal/transport/httpapi/handler"
	"github.com/coinnovac/hazelnut/internal/transport/httpapi/middleware"
	"github.com/coinnovac/hazelnut/pkg/logger"
)

// Config holds router configuration
type Config struct {
	Logger             *logger.Logger
	AllowedOrigins     []string
	AuthHandler        *handler.AuthHandler
	WalletHandler      *handler.WalletHandler
	TransactionHandler *handler.TransactionHandler
	PortfolioHandler   *handler.PortfolioHandler
	ProfitHandler      *handler.ProfitHandler
	HealthHandler      *handler.HealthHandler
	JWTMiddleware      func(http.Handler) http.Handler
}

// NewRouter creates a new HTTP router
func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))
	r.Use(middleware.RateLimit()) // 30 req/s per IP, burst of 10

	// Health check endpoints (no authentication required)
	r.Get("/health", handler.GetHealth)
	r.Get("/health/live", handler.GetLiveness)
	if cfg.HealthHandler != nil {
		r.Get("/health/ready", cfg.HealthHandler.GetReadiness)
		r.Get("/health/detailed", cfg.HealthHandler.GetHealthDetailed)
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (public - no authentication required)
		if cfg.AuthHandler != nil {
			r.Post("/auth/register", cfg.AuthHandler.Register)
			r.Post("/auth/login", cfg.AuthHandler.Login)
		}

		// Protected routes (require JWT authentication)
		if cfg.JWTMiddleware != nil {
			r.Group(func(r chi.Router) {
				r.Use(cfg.JWTMiddleware)

				// Wallet session routes
				if cfg.WalletHandler != nil {
					r.Route("/wallet", func(r chi.Router) {
						r.Get("/", cfg.WalletHandler.GetState)
						r.Get("/catalog", cfg.WalletHandler.ListWallets)
						r.Post("/connect", cfg.WalletHandler.Connect)
						r.Post("/disconnect", cfg.WalletHandler.Disconnect)
						r.Post("/restore", cfg.WalletHandler.Restore)
					})
				}

				// Transaction routes
				if cfg.TransactionHandler != nil {
					r.Route("/transactions", func(r chi.Router) {
						r.Get("/", cfg.TransactionHandler.List)
						r.Post("/buy", cfg.TransactionHandler.Buy)
						r.Post("/claim", cfg.TransactionHandler.Claim)
					})
				}

				// Portfolio routes
				if cfg.PortfolioHandler != nil {
					r.Get("/portfolio", cfg.PortfolioHandler.GetSummary)
				}

				// Profit routes
				if cfg.ProfitHandler != nil {
					r.Get("/profits", cfg.ProfitHandler.List)
					r.Post("/profits/distribute", cfg.ProfitHandler.Distribute)
				}
			})
		}
	})

	return r
}
