package apperrors_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront-service/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("purchase: %w", apperrors.API(400, "rate expired"))

	assert.Equal(t, apperrors.KindAPI, apperrors.KindOf(err))
	assert.Equal(t, apperrors.Kind(""), apperrors.KindOf(errors.New("plain")))
}

func TestTransport_TimedOut(t *testing.T) {
	err := apperrors.Transport("no response from carrier", errors.New("deadline"), true)

	assert.True(t, apperrors.IsTimeout(err))
	assert.Equal(t, http.StatusGatewayTimeout, err.Code)
	assert.False(t, apperrors.IsTimeout(apperrors.Transport("reset", nil, false)))
	assert.False(t, apperrors.IsTimeout(apperrors.API(504, "gateway")))
}

func TestValidationError_AddKeepsFirstReason(t *testing.T) {
	verr := &apperrors.ValidationError{}
	verr.Add("shipment.ship_to.name", "is required")
	verr.Add("shipment.ship_to.name", "too short")
	verr.Add("shipment.packages", "must contain at least 1 item")

	assert.True(t, verr.Has("shipment.ship_to.name"))
	assert.Equal(t, "is required", verr.Fields["shipment.ship_to.name"])
	assert.Equal(t,
		"validation failed: shipment.packages: must contain at least 1 item; shipment.ship_to.name: is required",
		verr.Error())
}

func TestErrorMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(apperrors.ErrorMiddleware())
	r.GET("/api", func(c *gin.Context) { _ = c.Error(apperrors.API(404, "label not found")) })
	r.GET("/validation", func(c *gin.Context) {
		verr := &apperrors.ValidationError{}
		verr.Add("rate_options.carrier_ids", "must contain at least 1 item")
		_ = c.Error(verr)
	})
	r.GET("/plain", func(c *gin.Context) { _ = c.Error(errors.New("boom")) })
	r.GET("/missing", func(c *gin.Context) {
		_ = c.Error(apperrors.New(http.StatusNotFound, "Workflow not found", nil))
	})

	cases := map[string]int{
		"/api":        http.StatusBadGateway,
		"/validation": http.StatusUnprocessableEntity,
		"/plain":      http.StatusInternalServerError,
		"/missing":    http.StatusNotFound,
	}
	for path, want := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Code, path)
	}
}

func TestErrorMiddleware_Body(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(apperrors.ErrorMiddleware())
	r.GET("/missing", func(c *gin.Context) {
		_ = c.Error(apperrors.New(http.StatusNotFound, "Workflow not found", errors.New("evicted")))
	})
	r.GET("/plain", func(c *gin.Context) { _ = c.Error(errors.New("boom")) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.JSONEq(t, `{"code":404,"message":"Workflow not found"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plain", nil))
	assert.JSONEq(t, `{"code":500,"message":"Internal server error"}`, w.Body.String())
}
