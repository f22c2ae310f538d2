package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bookswap/bookswap/internal/identity"
)

// RegisterUserRoutes wires profile endpoints. "/users/me" is registered
// before "/users/:id" so the literal segment wins.
func RegisterUserRoutes(r fiber.Router, h *identity.Handler, authmw fiber.Handler) {
	r.Get("/users/me", authmw, h.Me)
	r.Patch("/users/me", authmw, h.Rename)
	r.Get("/users/:id", h.Profile)
}
