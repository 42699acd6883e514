package providers

import (
	"context"

	"storefront-service/models"
)

// RateQuoter fetches rate quotes for a validated shipment.
type RateQuoter interface {
	GetRates(ctx context.Context, req models.ShipmentRequest) ([]models.RateQuote, error)
}

// LabelPurchaser buys a label for a previously quoted rate.
type LabelPurchaser interface {
	PurchaseLabel(ctx context.Context, rateID string) (*models.ShippingLabel, error)
}

// Tracker fetches the carrier's current tracking state for a label. It
// returns nil when the state cannot be fetched; it never fails loudly.
type Tracker interface {
	GetTracking(ctx context.Context, labelID string) *models.TrackingRecord
}

// CarrierProvider is the full set of carrier operations a storefront needs.
type CarrierProvider interface {
	RateQuoter
	LabelPurchaser
	Tracker
}
