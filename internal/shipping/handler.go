package shipping

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the shipping gateway over HTTP.
type Handler struct {
	provider Provider
}

// NewHandler builds a shipping HTTP handler.
func NewHandler(provider Provider) *Handler {
	return &Handler{provider: provider}
}

// PickupPoints lists pickup points filtered by country, city and type.
func (h *Handler) PickupPoints(c *fiber.Ctx) error {
	query := Query{
		CountryCode: c.Query("country"),
		City:        c.Query("city"),
	}
	switch t := strings.ToUpper(c.Query("type")); t {
	case "", "ALL":
	case string(PointTypePVZ), string(PointTypePostamat):
		query.Type = PointType(t)
	default:
		return fiber.NewError(http.StatusBadRequest, "unknown pickup point type")
	}

	points, err := h.provider.PickupPoints(c.UserContext(), query)
	if err != nil {
		return fiber.NewError(http.StatusBadGateway, "shipping gateway unavailable")
	}
	return c.JSON(points)
}

// Track returns tracking info for a shipment number.
func (h *Handler) Track(c *fiber.Ctx) error {
	number := strings.TrimSpace(c.Params("number"))
	if number == "" {
		return fiber.NewError(http.StatusBadRequest, "tracking number is required")
	}

	info, err := h.provider.Track(c.UserContext(), number)
	if err != nil {
		if errors.Is(err, ErrTrackingNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusBadGateway, "shipping gateway unavailable")
	}
	return c.JSON(info)
}
