package cdek

import (
	"context"
	"strings"

	"github.com/bookswap/bookswap/internal/shipping"
)

// Provider adapts the CDEK client to the shipping capability contract.
type Provider struct {
	client *Client
}

var _ shipping.Provider = (*Provider)(nil)

// NewProvider wraps a CDEK client.
func NewProvider(client *Client) *Provider {
	return &Provider{client: client}
}

// PickupPoints lists delivery points matching the query.
func (p *Provider) PickupPoints(ctx context.Context, q shipping.Query) ([]shipping.PickupPoint, error) {
	offices, err := p.client.Offices(ctx, OfficesQuery{
		City:        q.City,
		Type:        string(q.Type),
		CountryCode: q.CountryCode,
	})
	if err != nil {
		return nil, err
	}

	points := make([]shipping.PickupPoint, 0, len(offices))
	for _, o := range offices {
		if o.Code == "" || o.Location.Address == "" {
			continue
		}
		name := o.Name
		if name == "" {
			name = o.Code
		}
		city := o.Location.City
		if city == "" {
			city = q.City
		}
		points = append(points, shipping.PickupPoint{
			Code:    o.Code,
			Name:    name,
			Address: o.Location.Address,
			City:    city,
			Lat:     o.Location.Latitude,
			Lng:     o.Location.Longitude,
		})
	}
	return points, nil
}

// PickupPointByCode resolves a single delivery point.
func (p *Provider) PickupPointByCode(ctx context.Context, code string) (shipping.PickupPoint, error) {
	points, err := p.PickupPoints(ctx, shipping.Query{})
	if err != nil {
		return shipping.PickupPoint{}, err
	}
	for _, pt := range points {
		if pt.Code == code {
			return pt, nil
		}
	}
	return shipping.PickupPoint{}, shipping.ErrPickupPointNotFound
}

// Track maps the raw tracking payload onto the shipping types.
func (p *Provider) Track(ctx context.Context, trackingNumber string) (shipping.TrackingInfo, error) {
	raw, err := p.client.TrackShipment(ctx, trackingNumber)
	if err != nil {
		return shipping.TrackingInfo{}, err
	}

	if len(raw.Items) == 0 {
		return shipping.TrackingInfo{}, shipping.ErrTrackingNotFound
	}

	info := shipping.TrackingInfo{TrackingNumber: trackingNumber}

	item := raw.Items[0]
	info.CurrentStatus = shipping.TrackingStatus(strings.ToLower(item.Status))
	for _, ev := range item.Events {
		info.Events = append(info.Events, shipping.TrackingEvent{
			Status:      shipping.TrackingStatus(strings.ToLower(ev.Status)),
			At:          ev.Date,
			Description: ev.Description,
		})
	}
	return info, nil
}
