package dispatch

import "fmt"

// Config holds the engine tunables. The two radii mirror the product's
// original detection (100 m) and help-broadcast (1000 m) distances; both are
// configuration values, not invariants.
type Config struct {
	// AmbulanceRadiusM bounds driver selection around an ambulance position.
	AmbulanceRadiusM float64 `json:"ambulance_radius_m"`
	// HelpRadiusM bounds the bystander help broadcast.
	HelpRadiusM float64 `json:"help_radius_m"`
	// DeliveryTimeoutSeconds bounds the gateway send for one event.
	DeliveryTimeoutSeconds int `json:"delivery_timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.AmbulanceRadiusM == 0 {
		c.AmbulanceRadiusM = 100
	}
	if c.HelpRadiusM == 0 {
		c.HelpRadiusM = 1000
	}
	if c.DeliveryTimeoutSeconds == 0 {
		c.DeliveryTimeoutSeconds = 5
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.AmbulanceRadiusM < 0 {
		return fmt.Errorf("ambulance_radius_m must not be negative")
	}
	if c.HelpRadiusM < 0 {
		return fmt.Errorf("help_radius_m must not be negative")
	}
	if c.DeliveryTimeoutSeconds < 0 {
		return fmt.Errorf("delivery_timeout_seconds must not be negative")
	}
	return nil
}
