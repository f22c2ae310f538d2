package identity

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes user profile endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type renameRequest struct {
	DisplayName string `json:"display_name"`
}

// Profile returns the public profile of a user by id.
func (h *Handler) Profile(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return fiber.NewError(http.StatusBadRequest, "invalid user id")
	}

	profile, err := h.service.Profile(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, "load profile failed")
	}
	return c.JSON(profile)
}

// Me returns the caller's own profile.
func (h *Handler) Me(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(int64)
	profile, err := h.service.Profile(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, "load profile failed")
	}
	return c.JSON(profile)
}

// Rename updates the caller's display name.
func (h *Handler) Rename(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(int64)

	var req renameRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	profile, err := h.service.Rename(c.UserContext(), userID, req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, ErrNameRequired):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, "update profile failed")
		}
	}
	return c.JSON(profile)
}
