// Package mirror expands logical download URLs into ordered mirror candidates.
package mirror

import (
	"slices"
	"strings"

	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/core/ports"
)

var (
	_ ports.MirrorProvider = (*Provider)(nil)
	_ ports.MirrorProvider = (*Chain)(nil)
)

// Provider rewrites URL prefixes into a single mirror's equivalents.
type Provider struct {
	name     string
	prefixes []string
	rewrites map[string]string
}

// NewProvider creates a provider from a prefix rewrite table.
func NewProvider(m domain.Mirror) *Provider {
	p := &Provider{name: m.Name, rewrites: make(map[string]string, len(m.Rewrites))}
	for from, to := range m.Rewrites {
		p.prefixes = append(p.prefixes, from)
		p.rewrites[from] = to
	}
	// Longest prefix first so specific rewrites win over host-wide ones.
	slices.SortFunc(p.prefixes, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	return p
}

// Name returns the mirror name.
func (p *Provider) Name() string { return p.name }

// Candidates returns the rewritten URL, or nothing when no prefix matches.
func (p *Provider) Candidates(url string) []string {
	for _, from := range p.prefixes {
		if rest, ok := strings.CutPrefix(url, from); ok {
			return []string{p.rewrites[from] + rest}
		}
	}
	return nil
}

// Chain tries providers in order and finally the URL itself.
type Chain struct {
	providers []ports.MirrorProvider
}

// NewChain creates a chain. The original URL is always the last candidate.
func NewChain(providers ...ports.MirrorProvider) *Chain {
	return &Chain{providers: providers}
}

// FromConfig builds the chain for the configured mirrors, in configuration order.
func FromConfig(mirrors []domain.Mirror) *Chain {
	providers := make([]ports.MirrorProvider, 0, len(mirrors))
	for _, m := range mirrors {
		providers = append(providers, NewProvider(m))
	}
	return NewChain(providers...)
}

// Candidates returns every distinct candidate for url, mirrors first.
func (c *Chain) Candidates(url string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(u string) {
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		out = append(out, u)
	}

	for _, p := range c.providers {
		for _, u := range p.Candidates(url) {
			add(u)
		}
	}
	add(url)
	return out
}

// Expand applies the chain to several logical URLs, preserving their order.
func (c *Chain) Expand(urls ...string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, u := range urls {
		for _, cand := range c.Candidates(u) {
			if !seen[cand] {
				seen[cand] = true
				out = append(out, cand)
			}
		}
	}
	return out
}
