package models

// Residential indicator values accepted by the carrier.
const (
	ResidentialYes = "yes"
	ResidentialNo  = "no"
)

// Weight units accepted by the carrier.
const (
	UnitOunce    = "ounce"
	UnitPound    = "pound"
	UnitGram     = "gram"
	UnitKilogram = "kilogram"
)

// Tracking status codes with special meaning for display.
const (
	TrackingStatusDelivered = "DL"
	TrackingStatusException = "EX"
)

// Address represents a physical mailing address used for shipping.
type Address struct {
	Name                        string `json:"name" validate:"required"`
	Phone                       string `json:"phone" validate:"required"`
	CompanyName                 string `json:"company_name,omitempty"`
	AddressLine1                string `json:"address_line1" validate:"required"`
	CityLocality                string `json:"city_locality" validate:"required"`
	StateProvince               string `json:"state_province" validate:"required"`
	PostalCode                  string `json:"postal_code" validate:"required"`
	CountryCode                 string `json:"country_code" validate:"required,len=2"` // ISO 3166-1 alpha-2
	AddressResidentialIndicator string `json:"address_residential_indicator" validate:"required,oneof=yes no"`
}

// Weight is a package weight in one of the carrier's units.
type Weight struct {
	Value float64 `json:"value" validate:"gt=0"`
	Unit  string  `json:"unit" validate:"required,oneof=ounce pound gram kilogram"`
}

// PackageDescriptor describes one parcel in a shipment.
type PackageDescriptor struct {
	PackageCode string `json:"package_code" validate:"required"`
	Weight      Weight `json:"weight"`
}

// RateOptions selects the carriers to quote against.
type RateOptions struct {
	CarrierIDs []string `json:"carrier_ids" validate:"min=1,dive,required"`
}

// ShipmentDetails is the shipment half of the quote form. A nil ShipFrom
// means the sender block was never shown to the user.
type ShipmentDetails struct {
	ShipTo   Address             `json:"ship_to"`
	ShipFrom *Address            `json:"ship_from,omitempty"`
	Packages []PackageDescriptor `json:"packages" validate:"min=1,dive"`
}

// ShipmentForm is the raw quote form as entered by the user.
type ShipmentForm struct {
	RateOptions RateOptions     `json:"rate_options"`
	Shipment    ShipmentDetails `json:"shipment"`
}

// ShipmentRequest is a validated quote request. It is built once per quote
// attempt and not mutated after submission.
type ShipmentRequest struct {
	ShipTo     Address             `json:"ship_to"`
	ShipFrom   Address             `json:"ship_from"`
	Packages   []PackageDescriptor `json:"packages"`
	CarrierIDs []string            `json:"carrier_ids"`
}

// Amount is a monetary value in the carrier's currency.
type Amount struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

// RateQuote is a single priced shipping option returned by the carrier.
type RateQuote struct {
	RateID                string   `json:"rate_id"`
	CarrierID             string   `json:"carrier_id,omitempty"`
	ServiceCode           string   `json:"service_code,omitempty"`
	ServiceType           string   `json:"service_type"`
	ShippingAmount        Amount   `json:"shipping_amount"`
	EstimatedDeliveryDate string   `json:"estimated_delivery_date"`
	DeliveryDays          int      `json:"delivery_days"`
	WarningMessages       []string `json:"warning_messages"`
}

// LabelDownload holds the carrier's download links for a label.
type LabelDownload struct {
	PDF  string `json:"pdf,omitempty"`
	PNG  string `json:"png,omitempty"`
	ZPL  string `json:"zpl,omitempty"`
	Href string `json:"href"`
}

// ShippingLabel is a purchased label. A new purchase produces a new label;
// labels are never updated.
type ShippingLabel struct {
	LabelID        string        `json:"label_id"`
	Status         string        `json:"status"`
	ShipDate       string        `json:"ship_date"`
	ShipmentCost   Amount        `json:"shipment_cost"`
	TrackingNumber string        `json:"tracking_number"`
	TrackingStatus string        `json:"tracking_status"`
	TrackingURL    string        `json:"tracking_url"`
	ShipTo         Address       `json:"ship_to"`
	LabelDownload  LabelDownload `json:"label_download"`

	// DownloadPath is LabelDownload.Href without scheme and host.
	DownloadPath string `json:"download_path"`
	// DownloadURL is DownloadPath under the carrier's public base URL.
	DownloadURL string `json:"download_url"`
}

// TrackingRecord is the carrier's current view of a shipment.
type TrackingRecord struct {
	TrackingNumber           string  `json:"tracking_number"`
	TrackingURL              string  `json:"tracking_url"`
	StatusCode               string  `json:"status_code"`
	StatusDescription        string  `json:"status_description"`
	CarrierCode              string  `json:"carrier_code"`
	CarrierStatusDescription string  `json:"carrier_status_description"`
	ShipDate                 *string `json:"ship_date"`
	EstimatedDeliveryDate    *string `json:"estimated_delivery_date"`
	ActualDeliveryDate       *string `json:"actual_delivery_date"`
	ExceptionDescription     *string `json:"exception_description"`
}

// Delivered reports whether the carrier marked the shipment delivered.
func (t *TrackingRecord) Delivered() bool { return t.StatusCode == TrackingStatusDelivered }

// HasException reports whether the carrier reported a delivery exception.
func (t *TrackingRecord) HasException() bool { return t.StatusCode == TrackingStatusException }

// DisplayState collapses the status code into delivered, exception or in_transit.
func (t *TrackingRecord) DisplayState() string {
	switch {
	case t.Delivered():
		return "delivered"
	case t.HasException():
		return "exception"
	default:
		return "in_transit"
	}
}
