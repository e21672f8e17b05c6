package handler

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/transaction-approval-ledger/internal/http/middleware"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/ledger"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models"
)

type CreateTransactionRequest struct {
	Type        models.TransactionType `json:"type"`
	Amount      decimal.Decimal        `json:"amount"`
	Description string                 `json:"description"`
	Recipient   *models.Recipient      `json:"recipient"`
}

func (h *Handler) ListTransactions(c *fiber.Ctx) error {
	actor, _ := middleware.ActorFrom(c)
	page, err := h.Service.ListTransactions(c.UserContext(), actor, models.TransactionFilter{
		Status: models.TransactionStatus(c.Query("status")),
		Type:   models.TransactionType(c.Query("type")),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", models.DefaultUserPageLimit),
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(pageBody("transactions", page))
}

func (h *Handler) CreateTransaction(c *fiber.Ctx) error {
	actor, _ := middleware.ActorFrom(c)

	var req CreateTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}

	tx, err := h.Service.CreateTransaction(c.UserContext(), ledger.CreateRequest{
		AccountID:   actor.AccountID,
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
		Recipient:   req.Recipient,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message":     "Transaction created successfully",
		"transaction": tx,
	})
}

func (h *Handler) GetTransaction(c *fiber.Ctx) error {
	actor, _ := middleware.ActorFrom(c)
	tx, err := h.Service.GetTransaction(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"transaction": tx})
}

func (h *Handler) CancelTransaction(c *fiber.Ctx) error {
	actor, _ := middleware.ActorFrom(c)
	if err := h.Service.CancelTransaction(c.UserContext(), actor.AccountID, c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Transaction cancelled successfully"})
}

func (h *Handler) GetAccount(c *fiber.Ctx) error {
	actor, _ := middleware.ActorFrom(c)
	acc, err := h.Service.GetAccount(c.UserContext(), actor, actor.AccountID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"user": acc})
}
