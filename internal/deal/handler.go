package deal

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/bookswap/bookswap/internal/models"
	"github.com/bookswap/bookswap/internal/shipping"
	"github.com/bookswap/bookswap/internal/wallet"
)

// Handler exposes the deal transition endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a deal HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	BookID int64 `json:"book_id"`
}

type pickupRequest struct {
	PickupPointID string `json:"pickup_point_id"`
}

type shipRequest struct {
	TrackingNumber string `json:"tracking_number"`
}

// Create opens a deal on a book.
func (h *Handler) Create(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(int64)

	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.BookID <= 0 {
		return fiber.NewError(http.StatusBadRequest, "book_id is required")
	}

	d, err := h.service.Create(c.UserContext(), userID, req.BookID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(d)
}

// Mine returns the caller's deals as buyer.
func (h *Handler) Mine(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(int64)
	deals, err := h.service.Mine(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "list deals failed")
	}
	return c.JSON(deals)
}

// Incoming returns the caller's deals as seller.
func (h *Handler) Incoming(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(int64)
	deals, err := h.service.Incoming(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "list deals failed")
	}
	return c.JSON(deals)
}

// ForUser returns deals where the given user is either party.
func (h *Handler) ForUser(c *fiber.Ctx) error {
	userID, err := parseID(c)
	if err != nil {
		return err
	}
	deals, err := h.service.ForUser(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "list deals failed")
	}
	return c.JSON(deals)
}

// Accept confirms a pending deal as the seller.
func (h *Handler) Accept(c *fiber.Ctx) error {
	return h.transition(c, h.service.Accept)
}

// Reject declines a pending deal as the seller.
func (h *Handler) Reject(c *fiber.Ctx) error {
	return h.transition(c, h.service.Reject)
}

// Cancel withdraws a pending deal as the buyer.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	return h.transition(c, h.service.Cancel)
}

// SelectPickup records the buyer's pickup point on an accepted deal.
func (h *Handler) SelectPickup(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(int64)
	dealID, err := parseID(c)
	if err != nil {
		return err
	}

	var req pickupRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	d, err := h.service.SelectPickup(c.UserContext(), userID, dealID, req.PickupPointID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(d)
}

// Ship marks the deal shipped as the seller.
func (h *Handler) Ship(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(int64)
	dealID, err := parseID(c)
	if err != nil {
		return err
	}

	var req shipRequest
	if err := c.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	d, err := h.service.Ship(c.UserContext(), userID, dealID, req.TrackingNumber)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(d)
}

// Receive completes the deal as the buyer.
func (h *Handler) Receive(c *fiber.Ctx) error {
	return h.transition(c, h.service.Receive)
}

// transition runs one body-less state change keyed by the deal id.
func (h *Handler) transition(c *fiber.Ctx, op func(ctx context.Context, callerID, dealID int64) (models.Deal, error)) error {
	userID, _ := c.Locals("user_id").(int64)
	dealID, err := parseID(c)
	if err != nil {
		return err
	}

	d, err := op(c.UserContext(), userID, dealID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(d)
}

func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrDealNotFound),
		errors.Is(err, ErrBookNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotOwner):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrCannotDealOwnBook), errors.Is(err, ErrPickupPointRequired):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, shipping.ErrPickupPointNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	// A missing buyer wallet surfaces as a conflict like every other reason
	// accept cannot proceed.
	case errors.Is(err, ErrBookNotAvailable),
		errors.Is(err, ErrBuyerWalletNotFound),
		errors.Is(err, ErrDealAlreadyExists),
		errors.Is(err, ErrDealNotPending),
		errors.Is(err, ErrBookNotReserved),
		errors.Is(err, ErrDealNotAccepted),
		errors.Is(err, ErrPickupNotSelected),
		errors.Is(err, ErrDealNotShipped),
		errors.Is(err, wallet.ErrInsufficientFunds):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrShippingUnavailable):
		return fiber.NewError(http.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	}
}
