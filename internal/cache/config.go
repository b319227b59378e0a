package cache

import "time"

// Config controls capacity, expiry and eviction of the memory store.
type Config struct {
	TTL        time.Duration
	MaxEntries int
	// EvictionPercentage is the share of MaxEntries dropped, oldest first,
	// once an insert pushes the store over capacity.
	EvictionPercentage int
	SweepInterval      time.Duration
}

func DefaultConfig() Config {
	return Config{
		TTL:                10 * time.Minute,
		MaxEntries:         100,
		EvictionPercentage: 20,
		SweepInterval:      5 * time.Minute,
	}
}

// WithDefaults returns a copy with zero fields replaced by defaults.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.TTL <= 0 {
		c.TTL = def.TTL
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = def.MaxEntries
	}
	if c.EvictionPercentage <= 0 {
		c.EvictionPercentage = def.EvictionPercentage
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	return c
}

func (c Config) Validate() error {
	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	if c.MaxEntries <= 0 {
		return &ConfigError{Field: "MaxEntries", Message: "must be greater than 0"}
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}
	if c.SweepInterval <= 0 {
		return &ConfigError{Field: "SweepInterval", Message: "must be greater than 0"}
	}
	return nil
}

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "cache config: " + e.Field + " " + e.Message
}
