package shipping

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrPickupPointNotFound indicates the code does not resolve to a pickup point.
	ErrPickupPointNotFound = errors.New("pickup point not found")

	// ErrTrackingNotFound indicates the provider has no shipment for the number.
	ErrTrackingNotFound = errors.New("tracking number not found")
)

// PointType distinguishes staffed pickup points from parcel lockers.
type PointType string

const (
	PointTypePVZ      PointType = "PVZ"
	PointTypePostamat PointType = "POSTAMAT"
)

// PickupPoint is a physical drop-off/collection location.
type PickupPoint struct {
	Code    string  `json:"code"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
	City    string  `json:"city"`
	Lat     float64 `json:"lat,omitempty"`
	Lng     float64 `json:"lng,omitempty"`
}

// Query filters a pickup-point search. Zero-value fields match everything.
type Query struct {
	CountryCode string
	City        string
	Type        PointType
}

// TrackingStatus is the provider-reported shipment stage.
type TrackingStatus string

const (
	TrackingCreated      TrackingStatus = "created"
	TrackingInTransit    TrackingStatus = "in_transit"
	TrackingArrivedToPvz TrackingStatus = "arrived_to_pvz"
	TrackingDelivered    TrackingStatus = "delivered"
)

// TrackingEvent is one entry in a shipment's history.
type TrackingEvent struct {
	Status      TrackingStatus `json:"status"`
	At          time.Time      `json:"at"`
	Description string         `json:"description"`
}

// TrackingInfo is the current state and history of a shipment.
type TrackingInfo struct {
	TrackingNumber string          `json:"tracking_number"`
	CurrentStatus  TrackingStatus  `json:"current_status"`
	Events         []TrackingEvent `json:"events"`
}

// Provider is the capability contract the deal engine depends on. A provider
// failure blocks the pickup/ship transitions and nothing else.
type Provider interface {
	PickupPoints(ctx context.Context, q Query) ([]PickupPoint, error)
	// PickupPointByCode resolves a single point, returning
	// ErrPickupPointNotFound when the code is unknown.
	PickupPointByCode(ctx context.Context, code string) (PickupPoint, error)
	Track(ctx context.Context, trackingNumber string) (TrackingInfo, error)
}
