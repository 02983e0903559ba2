package engine

import (
	"strings"

	"github.com/hupe1980/agentrun/model"
	"github.com/hupe1980/agentrun/model/anthropic"
	"github.com/hupe1980/agentrun/model/openai"
)

const (
	// defaultInputTokenLimit is the context budget assumed for full-size
	// vendor endpoints.
	defaultInputTokenLimit = 120_000

	// deepseekInputTokenLimit caps the budget for the alternate endpoint.
	deepseekInputTokenLimit = 60_000

	defaultDeepSeekBaseURL = "https://api.deepseek.com/v1"
)

// ModelParams carries the behavioral parameters of a config snapshot into the
// vendor binding.
type ModelParams struct {
	Temperature      float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

// ModelBinder binds a model selector plus parameters to a live model handle.
type ModelBinder interface {
	Bind(selector string, params ModelParams) (model.Model, error)
}

// Credentials holds the provider credentials and endpoints the default binder
// routes between.
type Credentials struct {
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	DeepSeekAPIKey  string
	DeepSeekBaseURL string
}

// VendorBinder is the default ModelBinder. Selectors prefixed "deepseek"
// route through the OpenAI-compatible adapter against the DeepSeek endpoint
// with tool calling suppressed and a lower context budget; selectors prefixed
// "claude" route to the Anthropic adapter; everything else binds OpenAI.
type VendorBinder struct {
	creds Credentials
}

// NewVendorBinder constructs the default binder.
func NewVendorBinder(creds Credentials) *VendorBinder {
	if creds.DeepSeekBaseURL == "" {
		creds.DeepSeekBaseURL = defaultDeepSeekBaseURL
	}
	return &VendorBinder{creds: creds}
}

// Bind implements ModelBinder.
func (b *VendorBinder) Bind(selector string, params ModelParams) (model.Model, error) {
	switch {
	case strings.HasPrefix(selector, "deepseek"):
		return openai.NewModel(func(o *openai.Options) {
			o.Model = selector
			o.Temperature = params.Temperature
			o.FrequencyPenalty = params.FrequencyPenalty
			o.PresencePenalty = params.PresencePenalty
			o.APIKey = b.creds.DeepSeekAPIKey
			o.BaseURL = b.creds.DeepSeekBaseURL
			o.Provider = "deepseek"
			o.SupportsTools = false
			o.InputTokenLimit = deepseekInputTokenLimit
		}), nil
	case strings.HasPrefix(selector, "claude"):
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = selector
			o.Temperature = params.Temperature
			o.APIKey = b.creds.AnthropicAPIKey
			o.InputTokenLimit = defaultInputTokenLimit
		}), nil
	default:
		return openai.NewModel(func(o *openai.Options) {
			o.Model = selector
			o.Temperature = params.Temperature
			o.FrequencyPenalty = params.FrequencyPenalty
			o.PresencePenalty = params.PresencePenalty
			o.APIKey = b.creds.OpenAIAPIKey
			o.BaseURL = b.creds.OpenAIBaseURL
			o.SupportsTools = true
			o.InputTokenLimit = defaultInputTokenLimit
		}), nil
	}
}

// BinderFunc adapts a plain function to the ModelBinder interface, handy for
// tests that bind a mock model.
type BinderFunc func(selector string, params ModelParams) (model.Model, error)

// Bind implements ModelBinder.
func (f BinderFunc) Bind(selector string, params ModelParams) (model.Model, error) {
	return f(selector, params)
}
