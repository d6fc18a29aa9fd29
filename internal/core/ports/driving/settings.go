package driving

import "github.com/custodia-labs/recall/internal/core/domain"

// SettingsService resolves application settings from their layers.
type SettingsService interface {
	// Get returns merged and validated settings.
	Get() (*domain.AppSettings, error)

	// Save persists settings to the config file.
	Save(settings *domain.AppSettings) error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
