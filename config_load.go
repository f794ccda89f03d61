package relaymux

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/relaymux/relaymux/backends"
	"github.com/relaymux/relaymux/internal/logging"
)

// DefaultChatPath is the standard OpenAI chat completions path, used when
// neither a provider nor a backend configures one.
const DefaultChatPath = "/v1/chat/completions"

// defaultModelID is the canonical model alias when the document sets none.
const defaultModelID = "chat"

// configSchema is the shape contract for the provider document. A document
// that fails it is a ConfigurationError: the process must not serve traffic
// from a garbled catalog.
const configSchema = `{
	"type": "object",
	"required": ["providers"],
	"properties": {
		"providers": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"required": ["baseUrl"],
				"properties": {
					"baseUrl": {"type": "string", "minLength": 1},
					"apiKey": {"type": "string"},
					"chatPath": {"type": "string"}
				}
			}
		},
		"defaultModel": {"type": "string"},
		"backends": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["provider"],
				"properties": {
					"provider": {"type": "string", "minLength": 1},
					"model": {"type": "string"},
					"chatPath": {"type": "string"},
					"maxTokens": {"type": "integer", "minimum": 0}
				}
			}
		}
	}
}`

var schema = jsonschema.MustCompileString("providers.schema.json", configSchema)

// LoadConfig reads, validates, and parses a provider document from the given
// path. Supported formats: JSON (.json), YAML (.yaml, .yml).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	var doc interface{}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
		var raw interface{}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
		// Round-trip through JSON so the schema validator sees the exact
		// value space encoding/json would produce.
		buf, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("normalizing YAML config: %w", err)
		}
		if err := json.Unmarshal(buf, &doc); err != nil {
			return nil, fmt.Errorf("normalizing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q: use .json, .yaml, or .yml", ext)
	}

	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid gateway config: %w", err)
	}
	return &cfg, nil
}

var envRefPattern = regexp.MustCompile(`^\$\{(.+)\}$`)

// resolveEnvRef replaces a ${VAR} value with the environment variable's
// content. An unset variable leaves the literal untouched so the failure
// shows up in upstream auth errors rather than as a silent empty credential.
func resolveEnvRef(value string) string {
	m := envRefPattern.FindStringSubmatch(value)
	if m == nil {
		return value
	}
	if v, ok := os.LookupEnv(strings.TrimSpace(m[1])); ok {
		return v
	}
	return value
}

// normalizePath trims a configured path and guarantees a leading slash,
// falling back to the standard chat completions path when empty.
func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return DefaultChatPath
	}
	return "/" + strings.TrimPrefix(p, "/")
}

// BuildCatalog resolves a parsed Config into the immutable backend catalog:
// provider coordinates are normalized, ${VAR} credentials resolved, and
// backend entries flattened in document (priority) order. Backends that
// reference an unknown provider are dropped with a warning.
func BuildCatalog(cfg *Config) *backends.Catalog {
	type provider struct {
		baseURL  string
		apiKey   string
		chatPath string
	}
	providers := make(map[string]provider, len(cfg.Providers))
	for id, pc := range cfg.Providers {
		providers[id] = provider{
			baseURL:  strings.TrimRight(pc.BaseURL, "/"),
			apiKey:   resolveEnvRef(pc.APIKey),
			chatPath: normalizePath(pc.ChatPath),
		}
	}

	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = defaultModelID
	}

	list := make([]backends.Backend, 0, len(cfg.Backends))
	for _, bc := range cfg.Backends {
		p, ok := providers[bc.Provider]
		if !ok {
			logging.Logger.Warn("dropping backend with unknown provider", "provider", bc.Provider)
			continue
		}
		chatPath := p.chatPath
		if strings.TrimSpace(bc.ChatPath) != "" {
			chatPath = normalizePath(bc.ChatPath)
		}
		model := bc.Model
		if model == "" {
			model = defaultModel
		}
		list = append(list, backends.Backend{
			ProviderID: bc.Provider,
			BaseURL:    p.baseURL,
			APIKey:     p.apiKey,
			ChatPath:   chatPath,
			Model:      model,
			Cooldown:   bc.CooldownRule,
			MaxTokens:  bc.MaxTokens,
		})
	}
	return backends.NewCatalog(defaultModel, list)
}
