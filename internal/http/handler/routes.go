package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sheikh-saqib/transaction-approval-ledger/internal/http/middleware"
	interfaces "github.com/sheikh-saqib/transaction-approval-ledger/internal/interfaces"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models"
)

// Register mounts every route under /api.
func (h *Handler) Register(app *fiber.App, jwtSecret string, store interfaces.LedgerStore) {
	api := app.Group("/api")
	api.Get("/health", h.Health)

	auth := middleware.Authenticate(jwtSecret, store, h.Logger)
	api.Get("/events", auth, h.Events)
	api.Get("/account", auth, h.GetAccount)

	txs := api.Group("/transactions", auth, middleware.RequireRole(models.RoleUser))
	txs.Get("/", h.ListTransactions)
	txs.Post("/", h.CreateTransaction)
	txs.Get("/:id", h.GetTransaction)
	txs.Delete("/:id", h.CancelTransaction)

	admin := api.Group("/admin", auth, middleware.RequireRole(models.RoleAdmin))
	admin.Get("/transactions/pending", h.ListPending)
	admin.Get("/transactions", h.ListAllTransactions)
	admin.Patch("/transactions/:id", h.ProcessTransaction)
	admin.Get("/users", h.ListUsers)
	admin.Patch("/users/:id/freeze", h.FreezeUser)
	admin.Get("/dashboard/stats", h.Stats)
}
