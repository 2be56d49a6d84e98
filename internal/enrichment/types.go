// Package enrichment looks up barcode product data on Open Food Facts.
package enrichment

import (
	"context"
	"time"

	"github.com/tphakala/codescan/internal/conf"
)

// OutcomeKind classifies a lookup result.
type OutcomeKind string

const (
	// OutcomeFound means the service returned a product.
	OutcomeFound OutcomeKind = "found"
	// OutcomeNotFound means the service answered but has no product for the code.
	OutcomeNotFound OutcomeKind = "not_found"
	// OutcomeUnavailable means no usable answer arrived: transport error,
	// timeout, non-2xx status or an undecodable body.
	OutcomeUnavailable OutcomeKind = "unavailable"
	// OutcomeSkipped means no lookup was attempted, e.g. for QR codes.
	OutcomeSkipped OutcomeKind = "skipped"
)

// UnknownProductName replaces a missing product name on a found product.
const UnknownProductName = "Unknown product"

// Product is the subset of Open Food Facts product data codescan keeps.
type Product struct {
	Name        string     `json:"product_name"`
	Brand       string     `json:"brand"`
	Ingredients string     `json:"ingredients"`
	NutriScore  NutriScore `json:"nutri_score"`
}

// Outcome is the result of one lookup. Product is set only for OutcomeFound
// and Reason only for OutcomeUnavailable.
type Outcome struct {
	Kind    OutcomeKind `json:"kind"`
	Product *Product    `json:"product,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

// Found returns a found outcome.
func Found(p Product) Outcome {
	return Outcome{Kind: OutcomeFound, Product: &p}
}

// NotFound returns a not-found outcome.
func NotFound() Outcome {
	return Outcome{Kind: OutcomeNotFound}
}

// Unavailable returns an unavailable outcome carrying reason.
func Unavailable(reason string) Outcome {
	return Outcome{Kind: OutcomeUnavailable, Reason: reason}
}

// Skipped returns the outcome used when no lookup was attempted.
func Skipped() Outcome {
	return Outcome{Kind: OutcomeSkipped}
}

// Lookuper resolves a barcode to product data. Implementations never fail:
// every error is folded into an OutcomeUnavailable.
type Lookuper interface {
	Lookup(ctx context.Context, barcode string) Outcome
}

// Config contains the client settings.
type Config struct {
	BaseURL       string
	Timeout       time.Duration // upper bound for one lookup including retries
	CacheTTL      time.Duration // 0 disables caching
	RateLimit     float64       // requests per second
	MaxConcurrent int
	MaxRetries    int
	RetryBackoff  time.Duration // multiplied by the attempt number
	UserAgent     string
}

// DefaultConfig returns the default client settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:       "https://world.openfoodfacts.org",
		Timeout:       10 * time.Second,
		CacheTTL:      24 * time.Hour,
		RateLimit:     1,
		MaxConcurrent: 4,
		MaxRetries:    3,
		RetryBackoff:  500 * time.Millisecond,
		UserAgent:     "codescan/1.0 (https://github.com/tphakala/codescan)",
	}
}

// ConfigFromSettings maps the enrichment config section onto Config.
func ConfigFromSettings(s *conf.EnrichmentSettings) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = s.BaseURL
	cfg.Timeout = s.Timeout
	cfg.CacheTTL = s.CacheTTL
	cfg.RateLimit = s.RateLimit
	cfg.MaxConcurrent = s.MaxConcurrent
	cfg.MaxRetries = s.MaxRetries
	cfg.UserAgent = s.UserAgent
	return cfg
}
