package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bookswap/bookswap/internal/shipping"
)

// RegisterShippingRoutes wires the shipping gateway endpoints.
func RegisterShippingRoutes(r fiber.Router, h *shipping.Handler) {
	group := r.Group("/shipping")
	group.Get("/pickup-points", h.PickupPoints)
	group.Get("/track/:number", h.Track)
}
