// Package handler exposes the ledger service over HTTP with fiber.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/transaction-approval-ledger/internal/ledger"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/notify"
)

type Handler struct {
	Service *ledger.Service
	Hub     *notify.Hub
	Logger  *zap.Logger
	// Done ends open event streams when it is cancelled.
	Done context.Context
}

func New(service *ledger.Service, hub *notify.Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service: service,
		Hub:     hub,
		Logger:  logger,
		Done:    context.Background(),
	}
}

// statusFor maps the ledger error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrInsufficientFunds),
		errors.Is(err, models.ErrSelfTransfer):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrAccountFrozen),
		errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyProcessed),
		errors.Is(err, models.ErrNotPending),
		errors.Is(err, models.ErrBalanceConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(status).JSON(fiber.Map{"error": "Internal server error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func pageBody[T any](key string, p models.Page[T]) fiber.Map {
	return fiber.Map{
		key:           p.Items,
		"totalPages":  p.TotalPages,
		"currentPage": p.CurrentPage,
		"total":       p.Total,
	}
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      "ok",
		"connections": h.Hub.Connections(),
	})
}
