package workflow

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"storefront-service/apperrors"
	"storefront-service/models"
)

// State is a step of the quote-to-label flow.
type State string

const (
	StateInput           State = "input"
	StateQuoting         State = "quoting"
	StateRatesReady      State = "rates_ready"
	StatePurchasingLabel State = "purchasing_label"
	StateLabelReady      State = "label_ready"
)

// InFlight reports whether a carrier request is outstanding in s.
func (s State) InFlight() bool {
	return s == StateQuoting || s == StatePurchasingLabel
}

var (
	// ErrBusy is returned when an action arrives while a carrier request is
	// still outstanding. Nothing is dispatched.
	ErrBusy = errors.New("workflow: a carrier request is already in flight")
	// ErrInvalidTransition is returned when the action is not allowed from the
	// current state.
	ErrInvalidTransition = errors.New("workflow: action not allowed in current state")
)

// Carrier is the shipping layer a workflow drives.
type Carrier interface {
	Quote(ctx context.Context, req models.ShipmentRequest) ([]models.RateQuote, error)
	PurchaseLabel(ctx context.Context, workflowID, rateID string) (*models.ShippingLabel, error)
}

// InputBuilder validates a submitted form into a quotable request.
type InputBuilder interface {
	Build(form models.ShipmentForm) (models.ShipmentRequest, error)
	DefaultForm(carrierID string) models.ShipmentForm
}

// Controller is one user's shipment workflow. All methods are safe for
// concurrent use; the lock is never held across a carrier call.
type Controller struct {
	id               string
	carrier          Carrier
	inputs           InputBuilder
	defaultCarrierID string

	mu        sync.Mutex
	state     State
	request   *models.ShipmentRequest
	rates     []models.RateQuote
	label     *models.ShippingLabel
	lastErr   error
	updatedAt time.Time
}

// View is a point-in-time snapshot for display. At most one of Rates and
// Label is set.
type View struct {
	ID        string
	State     State
	Request   *models.ShipmentRequest
	Rates     []models.RateQuote
	Label     *models.ShippingLabel
	Err       error
	UpdatedAt time.Time
}

// NewController creates a workflow in StateInput.
func NewController(id string, carrier Carrier, inputs InputBuilder, defaultCarrierID string) *Controller {
	return &Controller{
		id:               id,
		carrier:          carrier,
		inputs:           inputs,
		defaultCarrierID: defaultCarrierID,
		state:            StateInput,
		updatedAt:        time.Now(),
	}
}

// ID returns the workflow identifier.
func (c *Controller) ID() string { return c.id }

// DefaultForm returns the pre-filled form for this workflow.
func (c *Controller) DefaultForm() models.ShipmentForm {
	return c.inputs.DefaultForm(c.defaultCarrierID)
}

// Submit validates form and requests quotes. A validation failure leaves the
// workflow in StateInput and issues no carrier call. On a carrier failure the
// workflow returns to StateInput with no quotes and the error retained.
func (c *Controller) Submit(ctx context.Context, form models.ShipmentForm) error {
	c.mu.Lock()
	if err := c.checkLocked(StateInput); err != nil {
		c.mu.Unlock()
		return err
	}
	req, err := c.inputs.Build(form)
	if err != nil {
		c.lastErr = err
		c.touchLocked()
		c.mu.Unlock()
		return err
	}
	c.state = StateQuoting
	c.rates = nil
	c.lastErr = nil
	c.touchLocked()
	c.mu.Unlock()

	rates, err := c.carrier.Quote(context.WithoutCancel(ctx), req)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.touchLocked()
	if err != nil {
		c.state = StateInput
		c.rates = nil
		c.lastErr = err
		return err
	}
	if rates == nil {
		rates = []models.RateQuote{}
	}
	c.state = StateRatesReady
	c.request = &req
	c.rates = rates
	return nil
}

// Select purchases the label for rateID. The id is passed to the carrier as
// is, even when it was not in the last quote list. On failure the workflow
// stays in StateRatesReady with its quotes intact.
func (c *Controller) Select(ctx context.Context, rateID string) error {
	c.mu.Lock()
	if err := c.checkLocked(StateRatesReady); err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = StatePurchasingLabel
	c.lastErr = nil
	c.touchLocked()
	c.mu.Unlock()

	label, err := c.carrier.PurchaseLabel(context.WithoutCancel(ctx), c.id, rateID)
	if err == nil && label == nil {
		err = apperrors.API(http.StatusOK, "carrier returned no label")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.touchLocked()
	if err != nil {
		c.state = StateRatesReady
		c.lastErr = err
		return err
	}
	c.state = StateLabelReady
	c.label = label
	return nil
}

// View returns a snapshot of the workflow.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		ID:        c.id,
		State:     c.state,
		Err:       c.lastErr,
		UpdatedAt: c.updatedAt,
	}
	if c.request != nil {
		req := *c.request
		v.Request = &req
	}
	if c.label != nil {
		label := *c.label
		v.Label = &label
		return v
	}
	if c.rates != nil {
		v.Rates = make([]models.RateQuote, len(c.rates))
		copy(v.Rates, c.rates)
	}
	return v
}

// idle reports how long the workflow has been untouched. In-flight
// workflows are never idle.
func (c *Controller) idle(now time.Time) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.InFlight() {
		return 0, false
	}
	return now.Sub(c.updatedAt), true
}

func (c *Controller) checkLocked(want State) error {
	if c.state.InFlight() {
		return ErrBusy
	}
	if c.state != want {
		return ErrInvalidTransition
	}
	return nil
}

func (c *Controller) touchLocked() {
	c.updatedAt = time.Now()
}
