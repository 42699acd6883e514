package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"storefront-service/catalog"
	"storefront-service/controllers"
	"storefront-service/middleware"
	"storefront-service/models"
	"storefront-service/providers"
	"storefront-service/proxy"
	"storefront-service/routes"
	"storefront-service/services"
	"storefront-service/workflow"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const apiKey = "TEST_key_123"

type stubSource struct{}

func (stubSource) FetchProducts(context.Context) ([]models.Product, error) {
	return []models.Product{{ID: "p1", Name: "Chair", Price: 49.5}}, nil
}

// fakeShipEngine stands in for the carrier API and rejects calls without the
// credential.
func fakeShipEngine(t *testing.T, calls *int32) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/rates", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		_, _ = io.WriteString(w, `{"rate_response":{"rates":[
			{"rate_id":"se-rate-1","service_type":"USPS Priority Mail","shipping_amount":{"currency":"usd","amount":9.35}}]}}`)
	})
	mux.HandleFunc("/v1/labels/rates/se-rate-1", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		_, _ = io.WriteString(w, `{"label_id":"se-label-1","tracking_number":"9400111899223197428490",
			"shipment_cost":{"currency":"usd","amount":9.35},
			"label_download":{"href":"https://api.shipengine.com/v1/downloads/10/abc/label-1.pdf"}}`)
	})
	mux.HandleFunc("/v1/labels/se-label-1/track", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		_, _ = io.WriteString(w, `{"tracking_number":"9400111899223197428490","status_code":"IT"}`)
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(proxy.APIKeyHeader) != apiKey {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"errors":[{"message":"invalid API key"}]}`)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// setupServer wires the full router. The carrier client reaches the carrier
// through the server's own proxy route.
func setupServer(t *testing.T, opts routes.Options) (*httptest.Server, *int32) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var calls int32
	upstream := fakeShipEngine(t, &calls)

	var handler http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	logger := zap.NewNop()
	provider := providers.NewShipEngineProvider(srv.URL+routes.ProxyPrefix, providers.DefaultPublicURL, 2*time.Second, logger)
	shipping := services.NewShippingService(provider, nil, nil, "", nil, logger)
	sender := models.Address{
		Name: "ShipEngine Team", Phone: "222-333-4444", AddressLine1: "4301 Bull Creek Road",
		CityLocality: "Austin", StateProvince: "TX", PostalCode: "78731",
		CountryCode: "US", AddressResidentialIndicator: "no",
	}
	registry := workflow.NewRegistry(shipping, services.NewShipmentInputValidator(sender), "se-1576791", time.Hour, logger)

	r := gin.New()
	// Behaves like a deployment behind a local reverse proxy: X-Forwarded-For
	// names the client, and requests without it are the server's own.
	require.NoError(t, r.SetTrustedProxies([]string{"127.0.0.1"}))
	routes.Register(r, routes.Handlers{
		Workflows: controllers.NewWorkflowController(registry, shipping),
		Shipping:  controllers.NewShippingController(shipping),
		Products:  controllers.NewProductController(catalog.NewService(stubSource{}, nil, nil, logger)),
		Proxy:     proxy.NewForwarder(upstream.URL+"/v1", apiKey, 2*time.Second, logger),
	}, opts)
	handler = r

	return srv, &calls
}

func request(t *testing.T, method, url string, body interface{}, headers map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func quoteBody() map[string]interface{} {
	return map[string]interface{}{
		"shipment": map[string]interface{}{
			"ship_to": map[string]interface{}{
				"name": "Jane Doe", "phone": "555-555-5555", "address_line1": "1600 Pennsylvania Ave NW",
				"city_locality": "Washington", "state_province": "DC", "postal_code": "20500",
				"country_code": "US", "address_residential_indicator": "no",
			},
			"packages": []map[string]interface{}{
				{"package_code": "package", "weight": map[string]interface{}{"value": 6, "unit": "ounce"}},
			},
		},
	}
}

func TestHealth(t *testing.T) {
	srv, _ := setupServer(t, routes.Options{ServiceName: "storefront-service"})

	resp, body := request(t, http.MethodGet, srv.URL+"/health", nil, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "storefront-service", body["service"])
}

func TestQuoteToLabelThroughProxy(t *testing.T) {
	srv, calls := setupServer(t, routes.Options{AllowedOrigins: "*"})

	resp, created := request(t, http.MethodPost, srv.URL+"/workflows", nil, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := created["workflow_id"].(string)

	resp, view := request(t, http.MethodPost, srv.URL+"/workflows/"+id+"/quote", quoteBody(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, view)
	assert.Equal(t, "rates_ready", view["state"])
	require.Len(t, view["rates"], 1)

	resp, view = request(t, http.MethodPost, srv.URL+"/workflows/"+id+"/select", map[string]string{"rate_id": "se-rate-1"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, view)
	label := view["label"].(map[string]interface{})
	assert.Equal(t, "se-label-1", label["label_id"])
	assert.Equal(t, "https://api.shipengine.com/v1/downloads/10/abc/label-1.pdf", label["download_url"])

	resp, tracking := request(t, http.MethodGet, srv.URL+"/tracking/se-label-1", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "in_transit", tracking["state"])

	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestProxyAddsCORSAndCredential(t *testing.T) {
	srv, _ := setupServer(t, routes.Options{})

	resp, _ := request(t, http.MethodGet, srv.URL+routes.ProxyPrefix+"/labels/se-label-1/track", nil, map[string]string{
		"Origin": "http://shop.example",
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestProducts(t *testing.T) {
	srv, _ := setupServer(t, routes.Options{})

	resp, body := request(t, http.MethodGet, srv.URL+"/products", nil, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestInvalidateRequiresSecret(t *testing.T) {
	srv, _ := setupServer(t, routes.Options{WebhookSecret: "s3cret"})

	resp, _ := request(t, http.MethodPost, srv.URL+"/products/invalidate", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = request(t, http.MethodPost, srv.URL+"/products/invalidate", nil, map[string]string{
		routes.WebhookSecretHeader: "s3cret",
	})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestInvalidateNotRoutedWithoutSecret(t *testing.T) {
	srv, _ := setupServer(t, routes.Options{})

	resp, _ := request(t, http.MethodPost, srv.URL+"/products/invalidate", nil, nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRateLimitIsPerClientNotPerServer(t *testing.T) {
	limiter := middleware.NewRateLimiter(rate.Every(time.Hour), 1, time.Minute)
	srv, calls := setupServer(t, routes.Options{Limiter: limiter})

	quoteFrom := func(ip string) (*http.Response, map[string]interface{}) {
		_, created := request(t, http.MethodPost, srv.URL+"/workflows", nil, nil)
		id := created["workflow_id"].(string)
		return request(t, http.MethodPost, srv.URL+"/workflows/"+id+"/quote", quoteBody(), map[string]string{
			"X-Forwarded-For": ip,
		})
	}

	for _, ip := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
		resp, view := quoteFrom(ip)
		require.Equal(t, http.StatusOK, resp.StatusCode, ip)
		assert.Equal(t, "rates_ready", view["state"], ip)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))

	resp, _ := quoteFrom("198.51.100.1")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Outside callers of the proxy are still limited.
	track := srv.URL + routes.ProxyPrefix + "/labels/se-label-1/track"
	headers := map[string]string{"X-Forwarded-For": "198.51.100.9"}
	resp, _ = request(t, http.MethodGet, track, nil, headers)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = request(t, http.MethodGet, track, nil, headers)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestListLabelsWithoutStorage(t *testing.T) {
	srv, _ := setupServer(t, routes.Options{})

	resp, body := request(t, http.MethodGet, srv.URL+"/labels", nil, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["total"])
	assert.Empty(t, body["labels"])
}
