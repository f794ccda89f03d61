// Package backends defines the routable backend targets of the gateway and
// the immutable catalog that fixes their dispatch priority for the process
// lifetime.
package backends

import (
	"github.com/relaymux/relaymux/cooldown"
)

// Backend is one routable (provider, model) pair together with its transport
// coordinates and cooldown policy. Catalog order encodes dispatch priority.
type Backend struct {
	ProviderID string
	BaseURL    string
	APIKey     string
	ChatPath   string
	Model      string
	Cooldown   cooldown.Rule
	// MaxTokens is an optional hard cap on accumulated usage tokens within
	// one cooldown window. Zero means uncapped.
	MaxTokens int
}

// UsageKey returns the composite key under which usage and cooldown state is
// persisted for this backend.
func (b Backend) UsageKey() string {
	return b.ProviderID + ":" + b.Model
}

// Catalog is the immutable, process-lifetime list of configured backends plus
// the canonical model id returned to callers. Build one at startup and pass
// it by reference; it is safe for concurrent readers.
type Catalog struct {
	backends     []Backend
	defaultModel string
}

// NewCatalog builds a catalog. The backend slice is copied so the catalog
// cannot be mutated through the caller's slice afterwards.
func NewCatalog(defaultModel string, list []Backend) *Catalog {
	cp := make([]Backend, len(list))
	copy(cp, list)
	return &Catalog{backends: cp, defaultModel: defaultModel}
}

// Backends returns the configured backends in priority order. The returned
// slice is a copy.
func (c *Catalog) Backends() []Backend {
	cp := make([]Backend, len(c.backends))
	copy(cp, c.backends)
	return cp
}

// Len returns the number of configured backends.
func (c *Catalog) Len() int { return len(c.backends) }

// DefaultModel returns the gateway's canonical model id.
func (c *Catalog) DefaultModel() string { return c.defaultModel }

// Find returns the first backend matching the given provider id and model.
func (c *Catalog) Find(providerID, model string) (Backend, bool) {
	for _, b := range c.backends {
		if b.ProviderID == providerID && b.Model == model {
			return b, true
		}
	}
	return Backend{}, false
}
