package routes

import (
	"net/http"

	"storefront-service/apperrors"
	"storefront-service/controllers"
	"storefront-service/middleware"
	"storefront-service/proxy"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups the HTTP handlers the router wires.
type Handlers struct {
	Workflows *controllers.WorkflowController
	Shipping  *controllers.ShippingController
	Products  *controllers.ProductController
	Proxy     *proxy.Forwarder
}

// Options configures cross-cutting route behaviour.
type Options struct {
	ServiceName    string
	AllowedOrigins string
	// Limiter guards the routes that spend carrier calls. May be nil.
	Limiter *middleware.RateLimiter
	// WebhookSecret enables POST /products/invalidate when set.
	WebhookSecret string
}

// ProxyPrefix is the local path the carrier API is reachable under.
const ProxyPrefix = "/api/shipengine"

// WebhookSecretHeader carries the content store webhook secret.
const WebhookSecretHeader = "X-Webhook-Secret"

// Register sets up all storefront routes on r.
func Register(r *gin.Engine, h Handlers, opts Options) {
	r.Use(apperrors.ErrorMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": opts.ServiceName})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var limit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if opts.Limiter != nil {
		limit = opts.Limiter.Middleware()
	}

	// The proxy sets its own CORS policy.
	r.Any(ProxyPrefix+"/*path", middleware.ExceptLoopback(limit), h.Proxy.Handle)

	api := r.Group("/")
	api.Use(middleware.CORS(opts.AllowedOrigins), middleware.SecurityHeaders())

	api.GET("/products", h.Products.List)
	if opts.WebhookSecret != "" {
		api.POST("/products/invalidate", middleware.SharedSecret(WebhookSecretHeader, opts.WebhookSecret), h.Products.Invalidate)
	}

	workflows := api.Group("/workflows")
	workflows.POST("", h.Workflows.Create)
	workflows.GET("/:id", h.Workflows.Get)
	workflows.GET("/:id/form", h.Workflows.Form)
	workflows.POST("/:id/quote", limit, h.Workflows.Quote)
	workflows.POST("/:id/select", limit, h.Workflows.Select)

	api.GET("/labels", h.Shipping.ListLabels)
	api.GET("/labels/:label_id", h.Shipping.GetLabel)
	api.GET("/tracking/:label_id", h.Shipping.Track)
}
