package services_test

import (
	"testing"

	"storefront-service/apperrors"
	"storefront-service/models"
	"storefront-service/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSender = models.Address{
	Name:                        "ShipEngine Team",
	Phone:                       "222-333-4444",
	CompanyName:                 "ShipEngine",
	AddressLine1:                "4301 Bull Creek Road",
	CityLocality:                "Austin",
	StateProvince:               "TX",
	PostalCode:                  "78731",
	CountryCode:                 "US",
	AddressResidentialIndicator: "no",
}

func janeDoeForm() models.ShipmentForm {
	return models.ShipmentForm{
		RateOptions: models.RateOptions{CarrierIDs: []string{"se-1576791"}},
		Shipment: models.ShipmentDetails{
			ShipTo: models.Address{
				Name:                        "Jane Doe",
				Phone:                       "555-555-5555",
				AddressLine1:                "1600 Pennsylvania Ave NW",
				CityLocality:                "Washington",
				StateProvince:               "DC",
				PostalCode:                  "20500",
				CountryCode:                 "US",
				AddressResidentialIndicator: "no",
			},
			Packages: []models.PackageDescriptor{
				{PackageCode: "package", Weight: models.Weight{Value: 6, Unit: "ounce"}},
			},
		},
	}
}

func validationFields(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	return verr.Fields
}

func TestBuild_ValidFormUsesDefaultSender(t *testing.T) {
	v := services.NewShipmentInputValidator(testSender)

	req, err := v.Build(janeDoeForm())
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", req.ShipTo.Name)
	assert.Equal(t, testSender, req.ShipFrom)
	assert.Equal(t, []string{"se-1576791"}, req.CarrierIDs)
	require.Len(t, req.Packages, 1)
	assert.Equal(t, 6.0, req.Packages[0].Weight.Value)
}

func TestBuild_PartialSenderFallsBackPerField(t *testing.T) {
	v := services.NewShipmentInputValidator(testSender)
	form := janeDoeForm()
	form.Shipment.ShipFrom = &models.Address{Name: "Warehouse 7", PostalCode: "78701"}

	req, err := v.Build(form)
	require.NoError(t, err)

	assert.Equal(t, "Warehouse 7", req.ShipFrom.Name)
	assert.Equal(t, "78701", req.ShipFrom.PostalCode)
	assert.Equal(t, testSender.AddressLine1, req.ShipFrom.AddressLine1)
	assert.Equal(t, testSender.Phone, req.ShipFrom.Phone)
}

func TestBuild_MissingRequiredFields(t *testing.T) {
	v := services.NewShipmentInputValidator(testSender)

	cases := []struct {
		name   string
		mutate func(f *models.ShipmentForm)
		path   string
	}{
		{"name", func(f *models.ShipmentForm) { f.Shipment.ShipTo.Name = "" }, "shipment.ship_to.name"},
		{"phone", func(f *models.ShipmentForm) { f.Shipment.ShipTo.Phone = "  " }, "shipment.ship_to.phone"},
		{"street", func(f *models.ShipmentForm) { f.Shipment.ShipTo.AddressLine1 = "" }, "shipment.ship_to.address_line1"},
		{"city", func(f *models.ShipmentForm) { f.Shipment.ShipTo.CityLocality = "" }, "shipment.ship_to.city_locality"},
		{"state", func(f *models.ShipmentForm) { f.Shipment.ShipTo.StateProvince = "" }, "shipment.ship_to.state_province"},
		{"postal", func(f *models.ShipmentForm) { f.Shipment.ShipTo.PostalCode = "" }, "shipment.ship_to.postal_code"},
		{"country", func(f *models.ShipmentForm) { f.Shipment.ShipTo.CountryCode = "" }, "shipment.ship_to.country_code"},
		{"residential", func(f *models.ShipmentForm) { f.Shipment.ShipTo.AddressResidentialIndicator = "" }, "shipment.ship_to.address_residential_indicator"},
		{"package code", func(f *models.ShipmentForm) { f.Shipment.Packages[0].PackageCode = "" }, "shipment.packages[0].package_code"},
		{"weight unit", func(f *models.ShipmentForm) { f.Shipment.Packages[0].Weight.Unit = "" }, "shipment.packages[0].weight.unit"},
		{"packages", func(f *models.ShipmentForm) { f.Shipment.Packages = nil }, "shipment.packages"},
		{"carriers", func(f *models.ShipmentForm) { f.RateOptions.CarrierIDs = nil }, "rate_options.carrier_ids"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			form := janeDoeForm()
			tc.mutate(&form)

			_, err := v.Build(form)
			fields := validationFields(t, err)
			assert.Contains(t, fields, tc.path)
		})
	}
}

func TestBuild_EnumeratedAndRangeRules(t *testing.T) {
	v := services.NewShipmentInputValidator(testSender)

	form := janeDoeForm()
	form.Shipment.ShipTo.CountryCode = "USA"
	form.Shipment.ShipTo.AddressResidentialIndicator = "maybe"
	form.Shipment.Packages[0].Weight = models.Weight{Value: -1, Unit: "stone"}

	_, err := v.Build(form)
	fields := validationFields(t, err)

	assert.Equal(t, "must be exactly 2 characters", fields["shipment.ship_to.country_code"])
	assert.Equal(t, "must be one of: yes, no", fields["shipment.ship_to.address_residential_indicator"])
	assert.Equal(t, "must be greater than 0", fields["shipment.packages[0].weight.value"])
	assert.Equal(t, "must be one of: ounce, pound, gram, kilogram", fields["shipment.packages[0].weight.unit"])
}

func TestBuild_InvalidSenderFieldIsReported(t *testing.T) {
	v := services.NewShipmentInputValidator(testSender)
	form := janeDoeForm()
	form.Shipment.ShipFrom = &models.Address{CountryCode: "GBR"}

	_, err := v.Build(form)
	fields := validationFields(t, err)
	assert.Contains(t, fields, "shipment.ship_from.country_code")
}

func TestBuild_DoesNotAliasFormSlices(t *testing.T) {
	v := services.NewShipmentInputValidator(testSender)
	form := janeDoeForm()

	req, err := v.Build(form)
	require.NoError(t, err)

	form.Shipment.Packages[0].PackageCode = "changed"
	form.RateOptions.CarrierIDs[0] = "changed"
	assert.Equal(t, "package", req.Packages[0].PackageCode)
	assert.Equal(t, "se-1576791", req.CarrierIDs[0])
}

func TestDefaultForm(t *testing.T) {
	v := services.NewShipmentInputValidator(testSender)

	form := v.DefaultForm("se-1576791")

	assert.Equal(t, []string{"se-1576791"}, form.RateOptions.CarrierIDs)
	assert.Equal(t, "US", form.Shipment.ShipTo.CountryCode)
	require.NotNil(t, form.Shipment.ShipFrom)
	assert.Equal(t, testSender, *form.Shipment.ShipFrom)
	assert.Equal(t, models.Weight{Value: 6, Unit: "ounce"}, form.Shipment.Packages[0].Weight)
}
