package handler

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/sheikh-saqib/transaction-approval-ledger/internal/http/middleware"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/ledger"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models"
)

type ProcessTransactionRequest struct {
	Action  models.Action `json:"action"`
	Comment string        `json:"comment"`
}

type FreezeRequest struct {
	Freeze *bool `json:"freeze"`
}

func (h *Handler) ListPending(c *fiber.Ctx) error {
	page, err := h.Service.ListPending(c.UserContext(),
		c.QueryInt("page", 1), c.QueryInt("limit", models.DefaultAdminPageLimit))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(pageBody("transactions", page))
}

func (h *Handler) ListAllTransactions(c *fiber.Ctx) error {
	actor, _ := middleware.ActorFrom(c)
	page, err := h.Service.ListTransactions(c.UserContext(), actor, models.TransactionFilter{
		AccountID: c.Query("userId"),
		Status:    models.TransactionStatus(c.Query("status")),
		Type:      models.TransactionType(c.Query("type")),
		Page:      c.QueryInt("page", 1),
		Limit:     c.QueryInt("limit", models.DefaultAdminPageLimit),
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(pageBody("transactions", page))
}

func (h *Handler) ProcessTransaction(c *fiber.Ctx) error {
	actor, _ := middleware.ActorFrom(c)

	var req ProcessTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}

	result, err := h.Service.ProcessTransaction(c.UserContext(), ledger.ProcessRequest{
		Ref:     c.Params("id"),
		Action:  req.Action,
		AdminID: actor.AccountID,
		Comment: req.Comment,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"message":           "Transaction " + string(req.Action) + "d successfully",
		"transaction":       result.Transaction,
		"userBalance":       result.UserBalance,
		"recipientCredited": result.RecipientCredited,
	})
}

func (h *Handler) ListUsers(c *fiber.Ctx) error {
	page, err := h.Service.ListUsers(c.UserContext(), c.Query("search"),
		c.QueryInt("page", 1), c.QueryInt("limit", models.DefaultAdminPageLimit))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(pageBody("users", page))
}

func (h *Handler) FreezeUser(c *fiber.Ctx) error {
	actor, _ := middleware.ActorFrom(c)

	var req FreezeRequest
	if err := c.BodyParser(&req); err != nil || req.Freeze == nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "freeze must be a boolean"})
	}

	acc, err := h.Service.SetAccountFrozen(c.UserContext(), actor.AccountID, c.Params("id"), *req.Freeze)
	if err != nil {
		return h.fail(c, err)
	}

	verb := "unfrozen"
	if acc.IsFrozen {
		verb = "frozen"
	}
	return c.JSON(fiber.Map{
		"message": "User account " + verb + " successfully",
		"user": fiber.Map{
			"id":       acc.ID,
			"username": acc.Username,
			"isFrozen": acc.IsFrozen,
		},
	})
}

func (h *Handler) Stats(c *fiber.Ctx) error {
	stats, err := h.Service.Stats(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(stats)
}
