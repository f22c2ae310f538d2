package book

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes book registry endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a book HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
	ISBN        string `json:"isbn"`
	Category    string `json:"category"`
	Condition   string `json:"condition"`
	CoverURL    string `json:"cover_url"`
}

// List returns the catalogue.
func (h *Handler) List(c *fiber.Ctx) error {
	books, err := h.service.List(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "list books failed")
	}
	return c.JSON(books)
}

// Get returns one listing by id.
func (h *Handler) Get(c *fiber.Ctx) error {
	bookID, err := parseID(c)
	if err != nil {
		return err
	}

	b, err := h.service.Get(c.UserContext(), bookID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(b)
}

// Mine returns the caller's listings.
func (h *Handler) Mine(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(int64)
	books, err := h.service.Mine(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "list books failed")
	}
	return c.JSON(books)
}

// Create lists a new book.
func (h *Handler) Create(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(int64)

	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	b, err := h.service.Create(c.UserContext(), userID, CreateInput{
		Title:       req.Title,
		Author:      req.Author,
		Description: req.Description,
		ISBN:        req.ISBN,
		Category:    req.Category,
		Condition:   req.Condition,
		CoverURL:    req.CoverURL,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(b)
}

// Update applies a partial update to a listing.
func (h *Handler) Update(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(int64)
	bookID, err := parseID(c)
	if err != nil {
		return err
	}

	var patch UpdatePatch
	if err := c.BodyParser(&patch); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	b, err := h.service.Update(c.UserContext(), userID, bookID, patch)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(b)
}

// Delete removes a listing.
func (h *Handler) Delete(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(int64)
	bookID, err := parseID(c)
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.UserContext(), userID, bookID); err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// Relist returns an exchanged book to the market.
func (h *Handler) Relist(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(int64)
	bookID, err := parseID(c)
	if err != nil {
		return err
	}

	b, err := h.service.Relist(c.UserContext(), userID, bookID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(b)
}

func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(http.StatusBadRequest, "invalid book id")
	}
	return id, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrTitleRequired):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotEditable),
		errors.Is(err, ErrNotDeletable),
		errors.Is(err, ErrNotExchanged),
		errors.Is(err, ErrHasActiveDeal):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	}
}
