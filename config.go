// Package relaymux implements an aggregation gateway that exposes one
// OpenAI-compatible chat/embeddings API and transparently dispatches each
// request to one of several configured upstream backends, failing over on
// transient errors and honoring per-backend rate-limit cooldowns that persist
// across restarts.
//
// The Gateway type is the main entry point: load a provider document with
// [LoadConfig], build an immutable catalog with [BuildCatalog], pick a state
// store, and wire them together with [New].
package relaymux

import (
	"github.com/relaymux/relaymux/cooldown"
)

// Config is the parsed provider document consumed by BuildCatalog.
type Config struct {
	// Providers maps a provider id to its transport coordinates.
	Providers map[string]ProviderConfig `json:"providers" yaml:"providers"`
	// DefaultModel is the canonical model id the gateway advertises and
	// rewrites into responses. Defaults to "chat".
	DefaultModel string `json:"defaultModel,omitempty" yaml:"defaultModel,omitempty"`
	// Backends lists the routable (provider, model) pairs in dispatch
	// priority order.
	Backends []BackendConfig `json:"backends" yaml:"backends"`
}

// ProviderConfig describes one upstream provider.
type ProviderConfig struct {
	BaseURL string `json:"baseUrl" yaml:"baseUrl"`
	// APIKey may be a literal credential or an environment indirection of
	// the form ${VAR_NAME}.
	APIKey   string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	ChatPath string `json:"chatPath,omitempty" yaml:"chatPath,omitempty"`
}

// BackendConfig describes one routable backend entry.
type BackendConfig struct {
	Provider string `json:"provider" yaml:"provider"`
	// Model is the model id sent upstream. Defaults to DefaultModel.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	// ChatPath overrides the provider's chat path for this backend.
	ChatPath     string        `json:"chatPath,omitempty" yaml:"chatPath,omitempty"`
	CooldownRule cooldown.Rule `json:"cooldownRule,omitempty" yaml:"cooldownRule,omitempty"`
	// MaxTokens is an optional hard usage cap per cooldown window.
	MaxTokens int `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
}
