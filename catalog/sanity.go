package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront-service/apperrors"
	"storefront-service/models"
)

// ProductQuery selects every published product with its image URL resolved.
const ProductQuery = `*[_type == "product"]{"id": _id, name, price, "image": image.asset->url}`

// DefaultAPIVersion is the dated Sanity API version the queries target.
const DefaultAPIVersion = "2024-01-04"

// ProductSource lists products from the content store.
type ProductSource interface {
	FetchProducts(ctx context.Context) ([]models.Product, error)
}

// SanityConfig addresses a Sanity dataset.
type SanityConfig struct {
	ProjectID  string
	Dataset    string
	APIVersion string
	Token      string
	// BaseURL overrides https://{ProjectID}.api.sanity.io.
	BaseURL string
}

// SanityClient runs GROQ queries against the Sanity HTTP query API.
type SanityClient struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewSanityClient creates a client for cfg. Queries bypass the CDN so newly
// published products show up immediately.
func NewSanityClient(cfg SanityConfig, timeout time.Duration) *SanityClient {
	base := cfg.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.api.sanity.io", cfg.ProjectID)
	}
	version := cfg.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}
	return &SanityClient{
		endpoint:   fmt.Sprintf("%s/v%s/data/query/%s", strings.TrimSuffix(base, "/"), version, url.PathEscape(cfg.Dataset)),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type queryResponse struct {
	Result []models.Product `json:"result"`
}

// FetchProducts runs ProductQuery.
func (s *SanityClient) FetchProducts(ctx context.Context) ([]models.Product, error) {
	u := s.endpoint + "?query=" + url.QueryEscape(ProductQuery)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, apperrors.New(http.StatusInternalServerError, "Failed to build content query", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.New(http.StatusBadGateway, "Content store unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.New(http.StatusBadGateway, "Failed to read content store response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.New(http.StatusBadGateway,
			fmt.Sprintf("Content store returned status %d", resp.StatusCode), nil)
	}

	var qr queryResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return nil, apperrors.New(http.StatusBadGateway, "Malformed content store response", err)
	}
	if qr.Result == nil {
		qr.Result = []models.Product{}
	}
	return qr.Result, nil
}
