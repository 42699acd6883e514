package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront-service/apperrors"
	"storefront-service/models"

	"go.uber.org/zap"
)

// DefaultPublicURL is the carrier host that label download links are served from.
const DefaultPublicURL = "https://api.shipengine.com"

// ShipEngineProvider implements CarrierProvider against the ShipEngine API.
// All calls go through the local proxy prefix; the provider never sees the
// API key.
type ShipEngineProvider struct {
	baseURL    string
	publicURL  string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// NewShipEngineProvider creates a provider that addresses the carrier at
// proxyURL (e.g. http://localhost:8091/api/shipengine) and bounds every call
// by timeout.
func NewShipEngineProvider(proxyURL, publicURL string, timeout time.Duration, logger *zap.Logger) *ShipEngineProvider {
	if publicURL == "" {
		publicURL = DefaultPublicURL
	}
	return &ShipEngineProvider{
		baseURL:    strings.TrimSuffix(proxyURL, "/"),
		publicURL:  strings.TrimSuffix(publicURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// ---- ShipEngine API request/response structs ----

type rateOptions struct {
	CarrierIDs []string `json:"carrier_ids"`
}

type shipment struct {
	ValidateAddress string                     `json:"validate_address"`
	ShipTo          models.Address             `json:"ship_to"`
	ShipFrom        models.Address             `json:"ship_from"`
	Packages        []models.PackageDescriptor `json:"packages"`
}

type rateRequest struct {
	RateOptions rateOptions `json:"rate_options"`
	Shipment    shipment    `json:"shipment"`
}

type rateResponse struct {
	RateResponse struct {
		Rates []models.RateQuote `json:"rates"`
	} `json:"rate_response"`
}

type labelRequest struct {
	LabelFormat string `json:"label_format"`
	LabelLayout string `json:"label_layout"`
}

type errorResponse struct {
	RequestID string `json:"request_id"`
	Errors    []struct {
		ErrorCode string `json:"error_code"`
		Message   string `json:"message"`
	} `json:"errors"`
}

// ---- CarrierProvider implementation ----

// GetRates requests quotes for req and returns rate_response.rates.
func (p *ShipEngineProvider) GetRates(ctx context.Context, req models.ShipmentRequest) ([]models.RateQuote, error) {
	body := rateRequest{
		RateOptions: rateOptions{CarrierIDs: req.CarrierIDs},
		Shipment: shipment{
			ValidateAddress: "no_validation",
			ShipTo:          req.ShipTo,
			ShipFrom:        req.ShipFrom,
			Packages:        req.Packages,
		},
	}

	var resp rateResponse
	if err := p.doRequest(ctx, "rates", http.MethodPost, "/rates", body, &resp); err != nil {
		return nil, err
	}

	rates := resp.RateResponse.Rates
	if rates == nil {
		rates = []models.RateQuote{}
	}
	for i := range rates {
		if rates[i].WarningMessages == nil {
			rates[i].WarningMessages = []string{}
		}
	}
	return rates, nil
}

// PurchaseLabel buys a 4x6 PDF label for rateID. The rate id is not checked
// locally; the carrier decides whether it is still valid.
func (p *ShipEngineProvider) PurchaseLabel(ctx context.Context, rateID string) (*models.ShippingLabel, error) {
	if rateID == "" {
		return nil, apperrors.RequestSetup("rate id is required", nil)
	}

	path := "/labels/rates/" + url.PathEscape(rateID)
	var label models.ShippingLabel
	if err := p.doRequest(ctx, "labels", http.MethodPost, path, labelRequest{LabelFormat: "pdf", LabelLayout: "4x6"}, &label); err != nil {
		return nil, err
	}

	label.DownloadPath = DownloadPath(label.LabelDownload.Href)
	label.DownloadURL = p.DownloadURL(label.DownloadPath)
	return &label, nil
}

// GetTracking returns the current tracking record for labelID, or nil when the
// carrier does not answer with 200.
func (p *ShipEngineProvider) GetTracking(ctx context.Context, labelID string) *models.TrackingRecord {
	if labelID == "" {
		return nil
	}

	path := "/labels/" + url.PathEscape(labelID) + "/track"
	var rec models.TrackingRecord
	if err := p.doRequest(ctx, "track", http.MethodGet, path, nil, &rec); err != nil {
		p.logger.Warn("Tracking fetch failed",
			zap.String("label_id", labelID),
			zap.String("kind", string(apperrors.KindOf(err))),
			zap.Error(err),
		)
		return nil
	}
	return &rec
}

// DownloadURL places a relative download path under the carrier's public host.
func (p *ShipEngineProvider) DownloadURL(path string) string {
	if path == "" {
		return ""
	}
	return p.publicURL + "/" + path
}

// DownloadPath strips scheme and host from a carrier download link, keeping
// the path (and query) without a leading slash.
func DownloadPath(href string) string {
	u, err := url.Parse(href)
	if err != nil || u.Host == "" {
		return strings.TrimPrefix(href, "/")
	}
	path := strings.TrimPrefix(u.EscapedPath(), "/")
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}

// ---- HTTP helper ----

func (p *ShipEngineProvider) doRequest(ctx context.Context, op, method, path string, body interface{}, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(apperrors.KindOf(err))
		}
		observeCarrierCall(op, outcome, time.Since(start))
	}()

	if p.baseURL == "" {
		return apperrors.RequestSetup("carrier proxy URL is not configured", nil)
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return apperrors.RequestSetup("marshal request", err)
		}
		reqBody = bytes.NewReader(b)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reqBody)
	if err != nil {
		return apperrors.RequestSetup("create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		timedOut := isTimeout(err)
		return apperrors.Transport("no response from carrier", err, timedOut)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Transport("read response", err, isTimeout(err))
	}

	if resp.StatusCode != http.StatusOK {
		return apperrors.API(resp.StatusCode, carrierMessage(resp.StatusCode, respBytes))
	}

	if out != nil {
		if err := json.Unmarshal(respBytes, out); err != nil {
			apiErr := apperrors.API(resp.StatusCode, "malformed carrier response")
			apiErr.Err = err
			return apiErr
		}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// carrierMessage extracts the carrier's error messages, falling back to the
// HTTP status text.
func carrierMessage(status int, body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && len(er.Errors) > 0 {
		msgs := make([]string, 0, len(er.Errors))
		for _, e := range er.Errors {
			if e.Message != "" {
				msgs = append(msgs, e.Message)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return fmt.Sprintf("carrier API error (status %d): %s", status, http.StatusText(status))
}
