package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"storefront-service/apperrors"
	"storefront-service/models"
	aws_pkg "storefront-service/pkg/aws"
	"storefront-service/providers"
	"storefront-service/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// eventLabelPurchased is the SNS event_type attribute for purchased labels.
const eventLabelPurchased = "label_purchased"

// ShippingService is the carrier-facing business layer used by workflows and
// the label/tracking endpoints.
type ShippingService interface {
	Quote(ctx context.Context, req models.ShipmentRequest) ([]models.RateQuote, error)
	PurchaseLabel(ctx context.Context, workflowID, rateID string) (*models.ShippingLabel, error)
	GetLabel(ctx context.Context, labelID string) (*models.ShippingLabel, error)
	GetWorkflowLabel(ctx context.Context, workflowID string) (*models.ShippingLabel, error)
	ListLabels(ctx context.Context, page, limit int) ([]models.LabelRecord, int64, error)
	Track(ctx context.Context, labelID string) *models.TrackingRecord
}

type shippingServiceImpl struct {
	provider    providers.CarrierProvider
	repo        repository.LabelRepository
	snsClient   aws_pkg.SNSPublisher
	snsTopicArn string
	metrics     aws_pkg.MetricsRecorder
	logger      *zap.Logger
}

// NewShippingService creates a ShippingService. repo, snsClient and metrics
// may be nil; the matching side effect is then skipped.
func NewShippingService(
	provider providers.CarrierProvider,
	repo repository.LabelRepository,
	snsClient aws_pkg.SNSPublisher,
	snsTopicArn string,
	metrics aws_pkg.MetricsRecorder,
	logger *zap.Logger,
) ShippingService {
	return &shippingServiceImpl{
		provider:    provider,
		repo:        repo,
		snsClient:   snsClient,
		snsTopicArn: snsTopicArn,
		metrics:     metrics,
		logger:      logger,
	}
}

// Quote asks the carrier for rates. An empty list is a valid answer.
func (s *shippingServiceImpl) Quote(ctx context.Context, req models.ShipmentRequest) ([]models.RateQuote, error) {
	start := time.Now()
	rates, err := s.provider.GetRates(ctx, req)
	if err != nil {
		s.logger.Warn("Rate quote failed",
			zap.String("kind", string(apperrors.KindOf(err))),
			zap.Error(err),
		)
		s.recordCount(ctx, aws_pkg.MetricRateQuoteFailed, map[string]string{"Kind": string(apperrors.KindOf(err))})
		return nil, err
	}

	s.logger.Info("Rates quoted",
		zap.Int("count", len(rates)),
		zap.Strings("carrier_ids", req.CarrierIDs),
		zap.Duration("latency", time.Since(start)),
	)
	s.recordCount(ctx, aws_pkg.MetricRateQuotes, nil)
	return rates, nil
}

// PurchaseLabel buys the label for rateID. Once the carrier has issued a
// label the purchase succeeds; persisting and publishing are best effort.
func (s *shippingServiceImpl) PurchaseLabel(ctx context.Context, workflowID, rateID string) (*models.ShippingLabel, error) {
	label, err := s.provider.PurchaseLabel(ctx, rateID)
	if err != nil {
		s.logger.Warn("Label purchase failed",
			zap.String("workflow_id", workflowID),
			zap.String("rate_id", rateID),
			zap.String("kind", string(apperrors.KindOf(err))),
			zap.Error(err),
		)
		s.recordCount(ctx, aws_pkg.MetricLabelFailed, map[string]string{"Kind": string(apperrors.KindOf(err))})
		return nil, err
	}

	s.logger.Info("Label purchased",
		zap.String("workflow_id", workflowID),
		zap.String("rate_id", rateID),
		zap.String("label_id", label.LabelID),
		zap.String("tracking_number", label.TrackingNumber),
	)

	s.persist(ctx, workflowID, rateID, label)
	s.publishEvent(ctx, eventLabelPurchased, models.LabelPurchasedEvent{
		EventType:      eventLabelPurchased,
		WorkflowID:     workflowID,
		LabelID:        label.LabelID,
		RateID:         rateID,
		TrackingNumber: label.TrackingNumber,
		Currency:       label.ShipmentCost.Currency,
		Amount:         label.ShipmentCost.Amount,
		Timestamp:      time.Now(),
	})
	s.recordCount(ctx, aws_pkg.MetricLabelsPurchased, nil)

	return label, nil
}

// GetLabel loads a previously purchased label from storage.
func (s *shippingServiceImpl) GetLabel(ctx context.Context, labelID string) (*models.ShippingLabel, error) {
	if s.repo == nil {
		return nil, errLabelNotFound
	}
	rec, err := s.repo.FindByLabelID(ctx, labelID)
	if err != nil {
		return nil, s.lookupError(err, zap.String("label_id", labelID))
	}
	return decodeLabel(rec)
}

// GetWorkflowLabel loads the label a finished workflow bought. It serves
// workflows that are no longer held in memory.
func (s *shippingServiceImpl) GetWorkflowLabel(ctx context.Context, workflowID string) (*models.ShippingLabel, error) {
	if s.repo == nil {
		return nil, errLabelNotFound
	}
	rec, err := s.repo.FindByWorkflowID(ctx, workflowID)
	if err != nil {
		return nil, s.lookupError(err, zap.String("workflow_id", workflowID))
	}
	return decodeLabel(rec)
}

// ListLabels pages through stored labels, newest first. Without storage the
// history is empty.
func (s *shippingServiceImpl) ListLabels(ctx context.Context, page, limit int) ([]models.LabelRecord, int64, error) {
	if s.repo == nil {
		return []models.LabelRecord{}, 0, nil
	}
	records, total, err := s.repo.FindAll(ctx, page, limit)
	if err != nil {
		s.logger.Error("Failed to list labels", zap.Int("page", page), zap.Error(err))
		return nil, 0, apperrors.New(http.StatusInternalServerError, "Failed to list labels", err)
	}
	return records, total, nil
}

var errLabelNotFound = apperrors.New(http.StatusNotFound, "Label not found", nil)

func (s *shippingServiceImpl) lookupError(err error, field zap.Field) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errLabelNotFound
	}
	s.logger.Error("Failed to load label", field, zap.Error(err))
	return apperrors.New(http.StatusInternalServerError, "Failed to load label", err)
}

func decodeLabel(rec *models.LabelRecord) (*models.ShippingLabel, error) {
	label, err := rec.Label()
	if err != nil {
		return nil, apperrors.New(http.StatusInternalServerError, "Stored label is unreadable", err)
	}
	return label, nil
}

// Track returns the carrier's tracking record, or nil when unavailable.
func (s *shippingServiceImpl) Track(ctx context.Context, labelID string) *models.TrackingRecord {
	rec := s.provider.GetTracking(ctx, labelID)
	if rec == nil {
		s.recordCount(ctx, aws_pkg.MetricTrackingMisses, nil)
		return nil
	}
	s.recordCount(ctx, aws_pkg.MetricTrackingLookups, map[string]string{"State": rec.DisplayState()})
	return rec
}

func (s *shippingServiceImpl) persist(ctx context.Context, workflowID, rateID string, label *models.ShippingLabel) {
	if s.repo == nil {
		return
	}
	rec, err := models.NewLabelRecord(workflowID, rateID, label)
	if err != nil {
		s.logger.Error("Failed to snapshot label", zap.String("label_id", label.LabelID), zap.Error(err))
		return
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		s.logger.Error("Failed to persist label", zap.String("label_id", label.LabelID), zap.Error(err))
	}
}

// publishEvent marshals an event and publishes it to SNS (non-fatal on error).
func (s *shippingServiceImpl) publishEvent(ctx context.Context, eventType string, event interface{}) {
	if s.snsClient == nil || s.snsTopicArn == "" {
		s.logger.Debug("SNS not configured, skipping event publish")
		return
	}
	b, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal SNS event", zap.Error(err))
		return
	}
	if err := s.snsClient.Publish(ctx, s.snsTopicArn, eventType, b); err != nil {
		s.logger.Error("Failed to publish SNS event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	s.logger.Info("Published SNS event", zap.String("topic", s.snsTopicArn), zap.String("event_type", eventType))
}

func (s *shippingServiceImpl) recordCount(ctx context.Context, metric string, dims map[string]string) {
	if s.metrics == nil || !s.metrics.IsEnabled() {
		return
	}
	if err := s.metrics.RecordCount(ctx, metric, dims); err != nil {
		s.logger.Debug("Failed to record metric", zap.String("metric", metric), zap.Error(err))
	}
}
