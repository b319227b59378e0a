package api

import (
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"
)

var httpURL = regexp.MustCompile(`^https?://`)

// Config describes how to reach the recipe REST backend.
type Config struct {
	BaseURL string
	// APIKey is sent as a bearer token when set.
	APIKey string

	UpstreamTimeout time.Duration // per call, retries included (default 10s)
	MaxRetries      int           // extra attempts for reads; 0 disables
	BaseBackoff     time.Duration // default 100ms

	IdleConns int // pooled keep-alive connections to the backend (default 32)

	// HTTPClient replaces the pooled client, mostly in tests.
	HTTPClient *http.Client
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL,
			validation.Required,
			validation.Match(httpURL).Error("must be an http(s) URL"),
		),
	)
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.UpstreamTimeout <= 0 {
		c.UpstreamTimeout = 10 * time.Second
	}
	c.MaxRetries = max(c.MaxRetries, 0)
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 100 * time.Millisecond
	}
	if c.IdleConns <= 0 {
		c.IdleConns = 32
	}
	return c
}

type client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a REST client for the recipe backend.
func NewClient(cfg Config, logger *zap.Logger) (Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("recipeapi: invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: backendTransport(cfg.IdleConns)}
	}

	return &client{
		cfg:        cfg,
		httpClient: hc,
		logger:     logger.Named("recipeapi"),
	}, nil
}

// backendTransport keeps connections to the single backend host warm.
func backendTransport(idle int) *http.Transport {
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          idle,
		MaxIdleConnsPerHost:   idle,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}
}

// Close drops pooled connections.
func (c *client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
