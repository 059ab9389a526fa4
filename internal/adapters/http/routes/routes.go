package routes

import (
	"booklend/internal/adapters/http/handlers"
	"booklend/internal/adapters/http/middleware"
	"booklend/internal/adapters/persistence/repositories"
	"booklend/internal/config"
	"booklend/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps are the services the routes are served by
type Deps struct {
	Config       *config.Config
	Store        repositories.Store
	Transactions *services.TransactionService
	Commission   *services.CommissionService
	Gatherer     prometheus.Gatherer
	Log          *zap.Logger
}

// Setup configures all routes for the application
func Setup(app *fiber.App, deps Deps) {
	cfg := deps.Config

	healthHandler := handlers.NewHealthHandler(deps.Store, cfg.AppMode)
	transactionHandler := handlers.NewTransactionHandler(deps.Transactions)
	complaintHandler := handlers.NewComplaintHandler(deps.Transactions)
	paymentHandler := handlers.NewPaymentHandler(deps.Transactions, deps.Log)
	adminHandler := handlers.NewAdminHandler(deps.Commission)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API v1 group
	apiV1 := app.Group("/api/v1", middleware.NoCacheHeaders())
	setupAPIV1Routes(apiV1, healthHandler, transactionHandler, complaintHandler, paymentHandler, adminHandler, cfg)
}

// setupAPIV1Routes configures API v1 routes
func setupAPIV1Routes(
	router fiber.Router,
	healthHandler *handlers.HealthHandler,
	transactionHandler *handlers.TransactionHandler,
	complaintHandler *handlers.ComplaintHandler,
	paymentHandler *handlers.PaymentHandler,
	adminHandler *handlers.AdminHandler,
	cfg *config.Config,
) {
	// API Info
	router.Get("/", healthHandler.APIInfo)

	// Payment service callback (shared API key)
	paymentRoutes := router.Group("/payments")
	paymentRoutes.Use(middleware.PaymentKeyMiddleware(cfg.Payment.APIKey))
	paymentRoutes.Post("/callback", paymentHandler.Callback)

	// Transaction routes (Authenticated users)
	transactionRoutes := router.Group("/transactions")
	transactionRoutes.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	setupTransactionRoutes(transactionRoutes, transactionHandler)

	// Complaint routes (parties read, arbiters resolve)
	complaintRoutes := router.Group("/complaints")
	complaintRoutes.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	complaintRoutes.Get("/:id", complaintHandler.Get)
	complaintRoutes.Post("/:id/resolve", middleware.ArbiterOnly(), complaintHandler.Resolve)

	// Admin routes (Arbiter only)
	adminRoutes := router.Group("/admin")
	adminRoutes.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	adminRoutes.Use(middleware.ArbiterOnly())
	adminRoutes.Get("/commission-policy", adminHandler.GetCommissionPolicy)
	adminRoutes.Put("/commission-policy", adminHandler.SetCommissionPolicy)
}

// setupTransactionRoutes configures transaction routes
func setupTransactionRoutes(router fiber.Router, handler *handlers.TransactionHandler) {
	router.Post("/", handler.Create)
	// "/my" is registered before "/:id" so it is not captured as an id
	router.Get("/my", handler.ListMine)
	router.Get("/:id", handler.Get)
	router.Get("/:id/history", handler.History)

	router.Post("/:id/propose", handler.Propose)
	router.Post("/:id/accept", handler.Accept)
	router.Post("/:id/deliver", handler.Deliver)
	router.Post("/:id/receive", handler.Receive)
	router.Post("/:id/confirm", handler.Confirm)
	router.Post("/:id/cancel", handler.Cancel)
	router.Post("/:id/disputes", handler.OpenDispute)
}
