package openapi

import (
	"strings"
)

// Config describes the document wrapped around the state schema.
type Config struct {
	Version     string
	Title       string
	APIVersion  string
	Description string

	Method      string
	Path        string
	OperationID string
	Summary     string

	ContentType string
	Component   string
}

// DefaultConfig publishes the state as InitialState, returned by GET /bootstrap.
func DefaultConfig() Config {
	return Config{
		Version:     "3.0.3",
		Title:       "Bootstrap State",
		APIVersion:  "1.0.0",
		Method:      "get",
		Path:        "/bootstrap",
		ContentType: "application/json",
		Component:   "InitialState",
	}
}

func (c Config) operationID() string {
	if c.OperationID != "" {
		return c.OperationID
	}
	return c.Method + ":" + c.Path
}

// Option configures the generator. Empty inputs keep the current value.
type Option func(*Config)

func set(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}

// WithVersion overrides the OpenAPI version string.
func WithVersion(version string) Option {
	return func(c *Config) { set(&c.Version, version) }
}

// WithInfo sets the info title and version.
func WithInfo(title, apiVersion string) Option {
	return func(c *Config) {
		set(&c.Title, title)
		set(&c.APIVersion, apiVersion)
	}
}

// WithDescription sets info.description.
func WithDescription(description string) Option {
	return func(c *Config) { set(&c.Description, description) }
}

// WithRoute sets the method and path that serve the state.
func WithRoute(method, path string) Option {
	return func(c *Config) {
		set(&c.Method, strings.ToLower(method))
		set(&c.Path, path)
	}
}

// WithOperationID replaces the derived "method:path" operation id.
func WithOperationID(id string) Option {
	return func(c *Config) { set(&c.OperationID, id) }
}

// WithSummary attaches a summary to the operation.
func WithSummary(summary string) Option {
	return func(c *Config) { set(&c.Summary, summary) }
}

// WithContentType sets the response media type.
func WithContentType(contentType string) Option {
	return func(c *Config) { set(&c.ContentType, contentType) }
}

// WithComponentName names the schema published under components.schemas.
func WithComponentName(name string) Option {
	return func(c *Config) { set(&c.Component, name) }
}

// ForVariant routes the document to the page that bootstraps variant, e.g.
// GET /superset/explore/ with operation id exploreBootstrap.
func ForVariant(variant string) Option {
	return func(c *Config) {
		variant = strings.ToLower(strings.TrimSpace(variant))
		if variant == "" {
			return
		}
		c.Path = "/superset/" + variant + "/"
		c.OperationID = variant + "Bootstrap"
		c.Summary = "Initial state of the " + variant + " page"
	}
}
