package target

import (
	"errors"
	"strings"
	"time"
)

// Config describes how to reach the AI system under test. It is owned by
// the project catalog and read-only to the engine.
type Config struct {
	// BaseURL is the endpoint requests are sent to.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Method is the HTTP method (default POST).
	Method string `json:"method,omitempty" yaml:"method"`

	// Headers are merged into every request.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers"`

	// APIKey, when set, is sent as a bearer Authorization header.
	APIKey string `json:"api_key,omitempty" yaml:"api_key"`

	// BodyTemplate is the request body with a {{payload}} placeholder.
	// Empty means the default JSON prompt envelope.
	BodyTemplate string `json:"body_template,omitempty" yaml:"body_template"`

	// ResponseField is a dot path ("choices.0.message.content") into a
	// JSON response body; empty takes the raw body.
	ResponseField string `json:"response_field,omitempty" yaml:"response_field"`

	// Timeout bounds each attempt's wall clock.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout"`
}

// DefaultBodyTemplate is used when a project does not configure one.
const DefaultBodyTemplate = `{"prompt": "{{payload}}"}`

// ErrMissingBaseURL indicates a target config without an endpoint.
var ErrMissingBaseURL = errors.New("target: base URL is required")

// Validate checks the config is usable for live invocation.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrMissingBaseURL
	}
	return nil
}
