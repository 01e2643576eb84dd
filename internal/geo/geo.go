// Package geo maps proxy hosts to country names. Lookups never fail: any
// error degrades to Unknown.
package geo

import (
	"context"
)

// Unknown is returned whenever a country cannot be determined.
const Unknown = "Unknown"

// Locator resolves a host (IP or hostname) to a country name.
type Locator interface {
	Lookup(ctx context.Context, host string) string
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context, host string) string

func (f LocatorFunc) Lookup(ctx context.Context, host string) string {
	return f(ctx, host)
}

// Chain asks each locator in turn and returns the first known answer.
type Chain []Locator

func (c Chain) Lookup(ctx context.Context, host string) string {
	for _, l := range c {
		if country := l.Lookup(ctx, host); country != Unknown && country != "" {
			return country
		}
	}
	return Unknown
}
