package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/transaction-approval-ledger/internal/http/middleware"
)

const heartbeatInterval = 25 * time.Second

// Events streams the caller's notifications as server-sent events. Admin
// connections also receive the admin broadcasts.
func (h *Handler) Events(c *fiber.Ctx) error {
	actor, _ := middleware.ActorFrom(c)
	sub := h.Hub.Subscribe(actor.AccountID, actor.Role)
	done := h.Done.Done()
	logger := h.Logger.With(zap.String("account_id", actor.AccountID), zap.String("connection_id", sub.ID))

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer sub.Close()
		logger.Debug("event stream opened")

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		fmt.Fprintf(w, "event: connected\ndata: {\"connectionId\":%q}\n\n", sub.ID)
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-done:
				return
			case <-heartbeat.C:
				fmt.Fprint(w, ": ping\n\n")
			case event, ok := <-sub.C:
				if !ok {
					return
				}
				data, err := json.Marshal(event.Payload)
				if err != nil {
					logger.Warn("encode event", zap.String("kind", string(event.Kind)), zap.Error(err))
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, data)
			}
			if err := w.Flush(); err != nil {
				logger.Debug("event stream closed", zap.Error(err))
				return
			}
		}
	}))
	return nil
}
