// Package media resolves stored avatar references to fetchable URLs. The
// real-time core never touches this; it is only used when rendering
// conversation-list entries.
package media

import (
	"fmt"
	"net/url"
	"strings"
)

// Resolver joins avatar references onto a media base URL. Absolute references
// pass through untouched.
type Resolver struct {
	base *url.URL
}

// NewResolver parses the base URL; empty is allowed and makes relative
// references resolve to themselves.
func NewResolver(baseURL string) (*Resolver, error) {
	if baseURL == "" {
		return &Resolver{}, nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("media: parse base url: %w", err)
	}
	return &Resolver{base: base}, nil
}

// URL resolves a stored reference. Empty references resolve to "".
func (r *Resolver) URL(ref string) string {
	if ref == "" {
		return ""
	}
	if strings.Contains(ref, "://") || r.base == nil {
		return ref
	}
	joined := *r.base
	joined.Path = strings.TrimSuffix(joined.Path, "/") + "/" + strings.TrimPrefix(ref, "/")
	return joined.String()
}
