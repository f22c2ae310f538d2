package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bookswap/bookswap/internal/book"
)

// RegisterBookRoutes wires the book registry. The catalogue and single-book
// reads are public; everything else requires auth. "/books/my" must be
// registered before "/books/:id" so the literal segment wins.
func RegisterBookRoutes(r fiber.Router, h *book.Handler, authmw fiber.Handler) {
	r.Get("/books", h.List)
	r.Get("/books/my", authmw, h.Mine)
	r.Get("/books/:id", h.Get)

	r.Post("/books", authmw, h.Create)
	r.Patch("/books/:id", authmw, h.Update)
	r.Delete("/books/:id", authmw, h.Delete)
	r.Post("/books/:id/relist", authmw, h.Relist)
}
