package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"storefront-service/apperrors"
	"storefront-service/models"

	"github.com/go-playground/validator/v10"
)

// ShipmentInputValidator turns a raw quote form into a ShipmentRequest.
type ShipmentInputValidator struct {
	validate      *validator.Validate
	defaultSender models.Address
}

// NewShipmentInputValidator creates a validator that substitutes defaultSender
// for a ship-from block the user never filled in.
func NewShipmentInputValidator(defaultSender models.Address) *ShipmentInputValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &ShipmentInputValidator{validate: v, defaultSender: defaultSender}
}

// DefaultForm returns the pre-filled form shown to a new user.
func (s *ShipmentInputValidator) DefaultForm(carrierID string) models.ShipmentForm {
	sender := s.defaultSender
	return models.ShipmentForm{
		RateOptions: models.RateOptions{CarrierIDs: []string{carrierID}},
		Shipment: models.ShipmentDetails{
			ShipTo: models.Address{
				CountryCode:                 "US",
				AddressResidentialIndicator: models.ResidentialNo,
			},
			ShipFrom: &sender,
			Packages: []models.PackageDescriptor{
				{PackageCode: "package", Weight: models.Weight{Value: 6, Unit: models.UnitOunce}},
			},
		},
	}
}

// Build validates form and returns the request to quote. Failures are
// returned as *apperrors.ValidationError keyed by JSON field path.
func (s *ShipmentInputValidator) Build(form models.ShipmentForm) (models.ShipmentRequest, error) {
	form.Shipment.ShipTo = trimAddress(form.Shipment.ShipTo)
	sender := s.senderFor(form.Shipment.ShipFrom)
	form.Shipment.ShipFrom = &sender

	if err := s.validate.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return models.ShipmentRequest{}, err
		}
		verr := &apperrors.ValidationError{}
		for _, fe := range fieldErrs {
			verr.Add(fieldPath(fe.Namespace()), reason(fe))
		}
		return models.ShipmentRequest{}, verr
	}

	packages := make([]models.PackageDescriptor, len(form.Shipment.Packages))
	copy(packages, form.Shipment.Packages)
	carriers := make([]string, len(form.RateOptions.CarrierIDs))
	copy(carriers, form.RateOptions.CarrierIDs)

	return models.ShipmentRequest{
		ShipTo:     form.Shipment.ShipTo,
		ShipFrom:   sender,
		Packages:   packages,
		CarrierIDs: carriers,
	}, nil
}

// senderFor fills every empty ship-from field from the default sender. A nil
// block yields the default sender unchanged.
func (s *ShipmentInputValidator) senderFor(from *models.Address) models.Address {
	def := s.defaultSender
	if from == nil {
		return def
	}
	a := trimAddress(*from)
	pick := func(v, fallback string) string {
		if v == "" {
			return fallback
		}
		return v
	}
	return models.Address{
		Name:                        pick(a.Name, def.Name),
		Phone:                       pick(a.Phone, def.Phone),
		CompanyName:                 pick(a.CompanyName, def.CompanyName),
		AddressLine1:                pick(a.AddressLine1, def.AddressLine1),
		CityLocality:                pick(a.CityLocality, def.CityLocality),
		StateProvince:               pick(a.StateProvince, def.StateProvince),
		PostalCode:                  pick(a.PostalCode, def.PostalCode),
		CountryCode:                 pick(a.CountryCode, def.CountryCode),
		AddressResidentialIndicator: pick(a.AddressResidentialIndicator, def.AddressResidentialIndicator),
	}
}

func trimAddress(a models.Address) models.Address {
	a.Name = strings.TrimSpace(a.Name)
	a.Phone = strings.TrimSpace(a.Phone)
	a.CompanyName = strings.TrimSpace(a.CompanyName)
	a.AddressLine1 = strings.TrimSpace(a.AddressLine1)
	a.CityLocality = strings.TrimSpace(a.CityLocality)
	a.StateProvince = strings.TrimSpace(a.StateProvince)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.CountryCode = strings.TrimSpace(a.CountryCode)
	a.AddressResidentialIndicator = strings.TrimSpace(a.AddressResidentialIndicator)
	return a
}

// fieldPath drops the root struct name: "ShipmentForm.shipment.ship_to.name"
// becomes "shipment.ship_to.name".
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gt":
		return "must be greater than " + fe.Param()
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return "must be at least " + fe.Param()
	default:
		return "is invalid"
	}
}
