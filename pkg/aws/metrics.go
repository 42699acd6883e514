package aws

import (
	"context"
	"fmt"
	"sort"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// MetricsRecorder is the subset of MetricsClient the services depend on.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
	RecordLatency(ctx context.Context, metricName string, duration time.Duration, dimensions map[string]string) error
	IsEnabled() bool
}

// MetricsClient wraps AWS CloudWatch Metrics operations
type MetricsClient struct {
	client    *cloudwatch.Client
	namespace string
	enabled   bool
}

// NewMetricsClient creates a CloudWatch Metrics client. A disabled client
// accepts every call and sends nothing.
func NewMetricsClient(cfg sdkaws.Config, namespace string, enabled bool) *MetricsClient {
	if namespace == "" {
		namespace = "Storefront"
	}
	return &MetricsClient{
		client:    cloudwatch.NewFromConfig(cfg),
		namespace: namespace,
		enabled:   enabled,
	}
}

// PutMetric sends a single metric data point to CloudWatch
func (m *MetricsClient) PutMetric(ctx context.Context, metricName string, value float64, unit types.StandardUnit, dimensions map[string]string) error {
	if m == nil || !m.enabled {
		return nil
	}

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: sdkaws.String(m.namespace),
		MetricData: []types.MetricDatum{
			{
				MetricName: sdkaws.String(metricName),
				Value:      sdkaws.Float64(value),
				Unit:       unit,
				Timestamp:  sdkaws.Time(time.Now()),
				Dimensions: toDimensions(dimensions),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to put metric %s: %w", metricName, err)
	}
	return nil
}

// RecordCount increments a counter metric
func (m *MetricsClient) RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error {
	return m.PutMetric(ctx, metricName, 1, types.StandardUnitCount, dimensions)
}

// RecordLatency records a latency/duration metric in milliseconds
func (m *MetricsClient) RecordLatency(ctx context.Context, metricName string, duration time.Duration, dimensions map[string]string) error {
	return m.PutMetric(ctx, metricName, float64(duration.Milliseconds()), types.StandardUnitMilliseconds, dimensions)
}

// IsEnabled returns whether CloudWatch metrics are enabled
func (m *MetricsClient) IsEnabled() bool {
	return m != nil && m.enabled
}

// toDimensions converts a map to CloudWatch dimensions in key order.
func toDimensions(dimensions map[string]string) []types.Dimension {
	keys := make([]string, 0, len(dimensions))
	for k := range dimensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	dims := make([]types.Dimension, 0, len(keys))
	for _, k := range keys {
		dims = append(dims, types.Dimension{
			Name:  sdkaws.String(k),
			Value: sdkaws.String(dimensions[k]),
		})
	}
	return dims
}

// Common metric names for standardization
const (
	// HTTP metrics
	MetricHTTPRequests = "HTTPRequests"
	MetricHTTPErrors   = "HTTPErrors"
	MetricHTTPLatency  = "HTTPLatency"
	MetricHTTP4xx      = "HTTP4xxErrors"
	MetricHTTP5xx      = "HTTP5xxErrors"

	// Business metrics
	MetricRateQuotes      = "RateQuotes"
	MetricRateQuoteFailed = "RateQuoteFailed"
	MetricLabelsPurchased = "LabelsPurchased"
	MetricLabelFailed     = "LabelPurchaseFailed"
	MetricTrackingLookups = "TrackingLookups"
	MetricTrackingMisses  = "TrackingUnavailable"
	MetricProductsListed  = "ProductsListed"

	// System metrics
	MetricCacheHits   = "CacheHits"
	MetricCacheMisses = "CacheMisses"
)
