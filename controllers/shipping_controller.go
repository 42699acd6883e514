package controllers

import (
	"net/http"
	"strconv"

	"storefront-service/services"

	"github.com/gin-gonic/gin"
)

// TrackingUnavailable is shown when the carrier has no tracking to return.
const TrackingUnavailable = "Unable to fetch data"

// ShippingController serves stored labels and live tracking.
type ShippingController struct {
	shippingService services.ShippingService
}

// NewShippingController creates a new ShippingController.
func NewShippingController(svc services.ShippingService) *ShippingController {
	return &ShippingController{shippingService: svc}
}

// GetLabel handles GET /labels/:label_id
func (sc *ShippingController) GetLabel(ctx *gin.Context) {
	label, err := sc.shippingService.GetLabel(ctx.Request.Context(), ctx.Param("label_id"))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"label": label})
}

// ListLabels handles GET /labels?page=&limit=
func (sc *ShippingController) ListLabels(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)

	records, total, err := sc.shippingService.ListLabels(ctx.Request.Context(), page, limit)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"labels": records,
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// parsePaginationParams reads page and limit, falling back to 1 and 10.
// limit is capped at 100.
func parsePaginationParams(ctx *gin.Context) (int, int) {
	const maxLimit = 100
	page, limit := 1, 10
	if p, err := strconv.Atoi(ctx.DefaultQuery("page", "1")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(ctx.DefaultQuery("limit", "10")); err == nil && l > 0 {
		limit = min(l, maxLimit)
	}
	return page, limit
}

// Track handles GET /tracking/:label_id. An unavailable record is not an
// error; the body says so instead.
func (sc *ShippingController) Track(ctx *gin.Context) {
	labelID := ctx.Param("label_id")

	rec := sc.shippingService.Track(ctx.Request.Context(), labelID)
	if rec == nil {
		ctx.JSON(http.StatusOK, gin.H{"label_id": labelID, "tracking": nil, "error": TrackingUnavailable})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"label_id": labelID, "tracking": rec, "state": rec.DisplayState()})
}
