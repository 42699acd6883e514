package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry holds the live workflows, one per user session, and evicts those
// left idle longer than the TTL.
type Registry struct {
	carrier          Carrier
	inputs           InputBuilder
	defaultCarrierID string
	ttl              time.Duration
	logger           *zap.Logger

	mu        sync.RWMutex
	workflows map[string]*Controller
}

// NewRegistry creates an empty registry.
func NewRegistry(carrier Carrier, inputs InputBuilder, defaultCarrierID string, ttl time.Duration, logger *zap.Logger) *Registry {
	return &Registry{
		carrier:          carrier,
		inputs:           inputs,
		defaultCarrierID: defaultCarrierID,
		ttl:              ttl,
		logger:           logger,
		workflows:        make(map[string]*Controller),
	}
}

// Create starts a new workflow in StateInput.
func (r *Registry) Create() *Controller {
	c := NewController(uuid.NewString(), r.carrier, r.inputs, r.defaultCarrierID)

	r.mu.Lock()
	r.workflows[c.ID()] = c
	r.mu.Unlock()

	return c
}

// Get looks up a workflow by id.
func (r *Registry) Get(id string) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.workflows[id]
	return c, ok
}

// Len returns the number of live workflows.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workflows)
}

// Sweep removes workflows idle for longer than the TTL and returns how many
// were removed. In-flight workflows are kept.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, c := range r.workflows {
		if idle, ok := c.idle(now); ok && idle > r.ttl {
			delete(r.workflows, id)
			removed++
		}
	}
	return removed
}

// Run sweeps on every TTL tick until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) error {
	if r.ttl <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(r.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if n := r.Sweep(now); n > 0 {
				r.logger.Info("Evicted idle workflows", zap.Int("count", n), zap.Int("remaining", r.Len()))
			}
		}
	}
}
