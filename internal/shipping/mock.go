package shipping

import (
	"context"
	"strings"
	"time"
)

type mockPoint struct {
	PickupPoint
	Type        PointType
	CountryCode string
}

var mockPoints = []mockPoint{
	{PickupPoint{Code: "MOCK_PVZ_1", Name: "Pickup point #1", Address: "1 Example St", City: "Moscow", Lat: 55.75, Lng: 37.61}, PointTypePVZ, "RU"},
	{PickupPoint{Code: "MOCK_PVZ_2", Name: "Pickup point #2", Address: "2 Example St", City: "Moscow", Lat: 55.76, Lng: 37.62}, PointTypePVZ, "RU"},
	{PickupPoint{Code: "MOCK_POST_1", Name: "Parcel locker #1", Address: "10 Example Ave", City: "Moscow", Lat: 55.74, Lng: 37.60}, PointTypePostamat, "RU"},
	{PickupPoint{Code: "SPB_PVZ_1", Name: "Pickup point SPb #1", Address: "1 Nevsky Pr", City: "Saint Petersburg", Lat: 59.93, Lng: 30.33}, PointTypePVZ, "RU"},
}

// Mock is a deterministic in-process provider for environments without
// carrier credentials. Tracking state is derived from the tracking number so
// repeated queries are stable.
type Mock struct{}

var _ Provider = Mock{}

// NewMock returns the fixture-backed provider.
func NewMock() Mock {
	return Mock{}
}

// PickupPoints filters the fixture set. Country defaults to RU.
func (Mock) PickupPoints(_ context.Context, q Query) ([]PickupPoint, error) {
	country := strings.ToUpper(strings.TrimSpace(q.CountryCode))
	if country == "" {
		country = "RU"
	}
	city := strings.ToLower(strings.TrimSpace(q.City))

	points := make([]PickupPoint, 0, len(mockPoints))
	for _, p := range mockPoints {
		if p.CountryCode != country {
			continue
		}
		if q.Type != "" && p.Type != q.Type {
			continue
		}
		if city != "" && strings.ToLower(p.City) != city {
			continue
		}
		points = append(points, p.PickupPoint)
	}
	return points, nil
}

// PickupPointByCode resolves a fixture by code.
func (Mock) PickupPointByCode(_ context.Context, code string) (PickupPoint, error) {
	for _, p := range mockPoints {
		if p.Code == code {
			return p.PickupPoint, nil
		}
	}
	return PickupPoint{}, ErrPickupPointNotFound
}

var mockStages = []struct {
	status      TrackingStatus
	description string
	minutesAgo  int
}{
	{TrackingCreated, "Shipment created", 30},
	{TrackingInTransit, "In transit", 20},
	{TrackingArrivedToPvz, "Arrived at pickup point", 10},
	{TrackingDelivered, "Handed to recipient", 1},
}

// Track derives the shipment stage from the last digit of the tracking
// number, so a given number always reports the same progress.
func (Mock) Track(_ context.Context, trackingNumber string) (TrackingInfo, error) {
	stage := lastDigit(trackingNumber) % len(mockStages)

	now := time.Now().UTC()
	events := make([]TrackingEvent, 0, stage+1)
	for i := 0; i <= stage; i++ {
		events = append(events, TrackingEvent{
			Status:      mockStages[i].status,
			At:          now.Add(-time.Duration(mockStages[i].minutesAgo) * time.Minute),
			Description: mockStages[i].description,
		})
	}

	return TrackingInfo{
		TrackingNumber: trackingNumber,
		CurrentStatus:  mockStages[stage].status,
		Events:         events,
	}, nil
}

func lastDigit(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] >= '0' && s[i] <= '9' {
			return int(s[i] - '0')
		}
	}
	return 0
}
