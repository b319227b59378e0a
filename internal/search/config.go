package search

import (
	"fmt"
	"time"
)

type Config struct {
	Debounce         time.Duration // search debounce (default: 300ms)
	SuggestDebounce  time.Duration // suggestion debounce (default: 200ms)
	SuggestMinLength int           // shortest text that asks for suggestions (default: 2)
	SuggestMax       int           // suggestions kept (default: 8)
	SuggestCacheTTL  time.Duration // reuse window for identical suggestion text (default: 1m)
	PageSize         int           // records per page (default: 12)
	FetchTimeout     time.Duration // upper bound for one page fetch (default: 15s)
	RecentLimit      int           // default: 10
	HistoryLimit     int           // default: 50
}

func DefaultConfig() Config {
	return Config{
		Debounce:         300 * time.Millisecond,
		SuggestDebounce:  200 * time.Millisecond,
		SuggestMinLength: 2,
		SuggestMax:       8,
		SuggestCacheTTL:  time.Minute,
		PageSize:         12,
		FetchTimeout:     15 * time.Second,
		RecentLimit:      10,
		HistoryLimit:     50,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Debounce <= 0 {
		c.Debounce = d.Debounce
	}
	if c.SuggestDebounce <= 0 {
		c.SuggestDebounce = d.SuggestDebounce
	}
	if c.SuggestMinLength <= 0 {
		c.SuggestMinLength = d.SuggestMinLength
	}
	if c.SuggestMax <= 0 {
		c.SuggestMax = d.SuggestMax
	}
	if c.SuggestCacheTTL <= 0 {
		c.SuggestCacheTTL = d.SuggestCacheTTL
	}
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.RecentLimit <= 0 {
		c.RecentLimit = d.RecentLimit
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = d.HistoryLimit
	}
	return c
}

func (c Config) Validate() error {
	if c.PageSize > 100 {
		return fmt.Errorf("search config: PageSize %d exceeds 100", c.PageSize)
	}
	if c.RecentLimit > c.HistoryLimit && c.HistoryLimit > 0 {
		return fmt.Errorf("search config: RecentLimit %d exceeds HistoryLimit %d", c.RecentLimit, c.HistoryLimit)
	}
	return nil
}
