package controllers

import (
	"net/http"

	"storefront-service/catalog"

	"github.com/gin-gonic/gin"
)

// ProductController serves the product listing.
type ProductController struct {
	catalog *catalog.Service
}

// NewProductController creates a new ProductController.
func NewProductController(svc *catalog.Service) *ProductController {
	return &ProductController{catalog: svc}
}

// List handles GET /products
func (pc *ProductController) List(ctx *gin.Context) {
	products, err := pc.catalog.ListProducts(ctx.Request.Context())
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

// Invalidate handles POST /products/invalidate, called by the content
// store's publish webhook.
func (pc *ProductController) Invalidate(ctx *gin.Context) {
	if err := pc.catalog.Invalidate(ctx.Request.Context()); err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.Status(http.StatusNoContent)
}
