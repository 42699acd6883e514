package controllers

import (
	"context"
	"errors"
	"net/http"

	"storefront-service/apperrors"
	"storefront-service/models"
	"storefront-service/workflow"

	"github.com/gin-gonic/gin"
)

// WorkflowLabels finds the stored label of a workflow that has left memory.
type WorkflowLabels interface {
	GetWorkflowLabel(ctx context.Context, workflowID string) (*models.ShippingLabel, error)
}

// WorkflowController exposes shipment workflows over HTTP.
type WorkflowController struct {
	registry *workflow.Registry
	labels   WorkflowLabels
}

// NewWorkflowController creates a new WorkflowController. labels may be nil,
// in which case evicted workflows are simply not found.
func NewWorkflowController(registry *workflow.Registry, labels WorkflowLabels) *WorkflowController {
	return &WorkflowController{registry: registry, labels: labels}
}

type quoteRequest struct {
	RateOptions *models.RateOptions    `json:"rate_options"`
	Shipment    models.ShipmentDetails `json:"shipment"`
}

type selectRequest struct {
	RateID string `json:"rate_id"`
}

// Create handles POST /workflows
func (wc *WorkflowController) Create(ctx *gin.Context) {
	wf := wc.registry.Create()
	ctx.JSON(http.StatusCreated, renderView(wf.View()))
}

// Get handles GET /workflows/:id. A finished workflow that has been evicted
// is answered from label storage.
func (wc *WorkflowController) Get(ctx *gin.Context) {
	id := ctx.Param("id")
	if wf, ok := wc.registry.Get(id); ok {
		ctx.JSON(http.StatusOK, renderView(wf.View()))
		return
	}
	if wc.labels == nil {
		_ = ctx.Error(errWorkflowNotFound)
		return
	}

	label, err := wc.labels.GetWorkflowLabel(ctx.Request.Context(), id)
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) && appErr.Code == http.StatusNotFound {
			err = errWorkflowNotFound
		}
		_ = ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"workflow_id": id,
		"state":       workflow.StateLabelReady,
		"label":       label,
	})
}

// Form handles GET /workflows/:id/form
func (wc *WorkflowController) Form(ctx *gin.Context) {
	wf, ok := wc.lookup(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"form": wf.DefaultForm()})
}

// Quote handles POST /workflows/:id/quote
func (wc *WorkflowController) Quote(ctx *gin.Context) {
	wf, ok := wc.lookup(ctx)
	if !ok {
		return
	}

	var req quoteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	form := models.ShipmentForm{Shipment: req.Shipment}
	if req.RateOptions != nil {
		form.RateOptions = *req.RateOptions
	} else {
		form.RateOptions = wf.DefaultForm().RateOptions
	}

	if err := wf.Submit(ctx.Request.Context(), form); err != nil {
		_ = ctx.Error(toAppError(err))
		return
	}
	ctx.JSON(http.StatusOK, renderView(wf.View()))
}

// Select handles POST /workflows/:id/select
func (wc *WorkflowController) Select(ctx *gin.Context) {
	wf, ok := wc.lookup(ctx)
	if !ok {
		return
	}

	var req selectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if req.RateID == "" {
		verr := &apperrors.ValidationError{}
		verr.Add("rate_id", "is required")
		_ = ctx.Error(verr)
		return
	}

	if err := wf.Select(ctx.Request.Context(), req.RateID); err != nil {
		_ = ctx.Error(toAppError(err))
		return
	}
	ctx.JSON(http.StatusOK, renderView(wf.View()))
}

var errWorkflowNotFound = apperrors.New(http.StatusNotFound, "Workflow not found", nil)

func (wc *WorkflowController) lookup(ctx *gin.Context) (*workflow.Controller, bool) {
	wf, ok := wc.registry.Get(ctx.Param("id"))
	if !ok {
		_ = ctx.Error(errWorkflowNotFound)
		return nil, false
	}
	return wf, true
}

// renderView shows the label once one exists, otherwise the quotes.
func renderView(v workflow.View) gin.H {
	body := gin.H{
		"workflow_id": v.ID,
		"state":       v.State,
		"updated_at":  v.UpdatedAt,
	}
	if v.Request != nil {
		body["shipment"] = v.Request
	}
	switch {
	case v.Label != nil:
		body["label"] = v.Label
	case v.Rates != nil:
		body["rates"] = v.Rates
	}
	if v.Err != nil {
		body["error"] = errorBody(v.Err)
	}
	return body
}
