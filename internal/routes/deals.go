package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bookswap/bookswap/internal/deal"
)

// RegisterDealRoutes wires the deal engine. All endpoints require auth; the
// state transitions additionally honour Idempotency-Key replay.
func RegisterDealRoutes(r fiber.Router, h *deal.Handler, idem fiber.Handler) {
	group := r.Group("/deals")

	group.Get("/my", h.Mine)
	group.Get("/incoming", h.Incoming)
	group.Get("/user/:id", h.ForUser)

	group.Post("/", idem, h.Create)
	group.Post("/:id/accept", idem, h.Accept)
	group.Post("/:id/reject", idem, h.Reject)
	group.Post("/:id/cancel", idem, h.Cancel)
	group.Post("/:id/pickup", idem, h.SelectPickup)
	group.Post("/:id/ship", idem, h.Ship)
	group.Post("/:id/receive", idem, h.Receive)
}
