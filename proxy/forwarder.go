package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIKeyHeader carries the carrier credential on forwarded requests.
const APIKeyHeader = "API-Key"

var hopByHop = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailers":            true,
	"transfer-encoding":   true,
	"upgrade":             true,
}

// Forwarder relays requests under a local prefix to the carrier API, adding
// the credential on the way out and an open CORS policy on the way back.
// It is the only component that ever holds the credential.
type Forwarder struct {
	targetBase string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewForwarder creates a Forwarder for targetBase (e.g.
// https://api.shipengine.com/v1). timeout should exceed the carrier client's
// own timeout so the caller, not the proxy, decides when a call has failed.
func NewForwarder(targetBase, apiKey string, timeout time.Duration, logger *zap.Logger) *Forwarder {
	return &Forwarder{
		targetBase: strings.TrimSuffix(targetBase, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Handle forwards the request; the route must declare a *path wildcard.
func (f *Forwarder) Handle(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")

	if c.Request.Method == http.MethodOptions {
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Accept")
		c.AbortWithStatus(http.StatusNoContent)
		return
	}

	if f.apiKey == "" {
		f.logger.Error("Carrier credential is not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "carrier credential is not configured"})
		return
	}

	targetURL := f.targetBase + "/" + strings.TrimPrefix(c.Param("path"), "/")
	if c.Request.URL.RawQuery != "" {
		targetURL += "?" + c.Request.URL.RawQuery
	}

	f.logger.Debug("Forwarding carrier request",
		zap.String("method", c.Request.Method),
		zap.String("url", targetURL),
	)

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, targetURL, c.Request.Body)
	if err != nil {
		f.logger.Error("Failed to create forward request", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create request"})
		return
	}
	req.ContentLength = c.Request.ContentLength

	for k, v := range c.Request.Header {
		if hopByHop[strings.ToLower(k)] {
			continue
		}
		req.Header[k] = v
	}
	req.Header.Del("Origin")
	req.Header.Del("Cookie")
	req.Header.Set(APIKeyHeader, f.apiKey)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if c.Request.Context().Err() != nil {
			// The caller gave up first and has already reported its own error.
			f.logger.Debug("Caller left before carrier answered", zap.String("url", targetURL))
			c.Abort()
			return
		}
		status := http.StatusBadGateway
		if isTimeout(err) {
			status = http.StatusGatewayTimeout
		}
		f.logger.Warn("Failed to forward carrier request", zap.String("url", targetURL), zap.Error(err))
		c.JSON(status, gin.H{"error": "carrier unreachable"})
		return
	}
	defer resp.Body.Close()

	for k, v := range resp.Header {
		lowerKey := strings.ToLower(k)
		if strings.HasPrefix(lowerKey, "access-control-") || hopByHop[lowerKey] {
			continue
		}
		c.Header(k, strings.Join(v, ","))
	}

	c.Status(resp.StatusCode)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		f.logger.Warn("Failed to copy carrier response body", zap.Error(err))
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
