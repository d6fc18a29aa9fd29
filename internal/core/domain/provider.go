package domain

import "fmt"

// ProviderConfig describes one OpenAI-compatible endpoint in a failover chain.
// Values are fixed once the provider is constructed.
type ProviderConfig struct {
	// Name labels the provider in logs and metrics, e.g. "primary".
	Name string

	// BaseURL is the API root, e.g. http://localhost:11434/v1.
	BaseURL string

	// APIKey is sent as a bearer token. Never logged.
	APIKey string

	// Model is the chat model identifier.
	Model string
}

// IsConfigured returns true if the provider has enough to make a request.
func (p ProviderConfig) IsConfigured() bool {
	return p.BaseURL != "" && p.Model != ""
}

// String identifies the provider without exposing its key or endpoint.
func (p ProviderConfig) String() string {
	return fmt.Sprintf("%s (%s)", p.Name, p.Model)
}
