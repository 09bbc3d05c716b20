package payment

import (
	"errors"
	"time"
)

// HTTPProcessorConfig holds the settings for the hosted payment
// processor API.
type HTTPProcessorConfig struct {
	// BaseURL is the processor API root, without a trailing slash
	BaseURL string
	// APIKey authenticates charge requests
	APIKey string
	// Timeout bounds a single charge attempt end to end
	Timeout time.Duration
}

// Validate checks the configuration for required fields
func (c *HTTPProcessorConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("payment: base_url is required")
	}
	if c.APIKey == "" {
		return errors.New("payment: api_key is required")
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return nil
}
