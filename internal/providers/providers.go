package providers

import (
	"sort"
	"strings"
)

// DefaultID is the limit table key used for unknown destinations.
const DefaultID = "default"

const mib = 1024 * 1024

// ModelPrefix maps a case-insensitive model identifier prefix to the provider
// that enforces the image limit for that model.
type ModelPrefix struct {
	Prefix   string `mapstructure:"prefix"`
	Provider string `mapstructure:"provider"`
}

// DefaultLimits returns the built-in per-destination byte ceilings.
func DefaultLimits() map[string]int {
	return map[string]int{
		"anthropic":      5 * mib,
		"amazon-bedrock": 3932160, // 3.75 MiB
		"openai":         20 * mib,
		"azure":          20 * mib,
		"google":         20 * mib,
		"google-vertex":  20 * mib,
		"xai":            10 * mib,
		"mistral":        10 * mib,
		"groq":           4 * mib,
		"deepseek":       10 * mib,
		"ollama":         20 * mib,
		DefaultID:        5 * mib,
	}
}

// DefaultModelPrefixes returns the built-in model prefix table. Order matters
// only between prefixes of equal length.
func DefaultModelPrefixes() []ModelPrefix {
	return []ModelPrefix{
		{Prefix: "claude", Provider: "anthropic"},
		{Prefix: "anthropic/", Provider: "anthropic"},
		{Prefix: "gpt", Provider: "openai"},
		{Prefix: "chatgpt", Provider: "openai"},
		{Prefix: "o1", Provider: "openai"},
		{Prefix: "o3", Provider: "openai"},
		{Prefix: "o4", Provider: "openai"},
		{Prefix: "openai/", Provider: "openai"},
		{Prefix: "gemini", Provider: "google"},
		{Prefix: "google/", Provider: "google"},
		{Prefix: "grok", Provider: "xai"},
		{Prefix: "x-ai/", Provider: "xai"},
		{Prefix: "mistral", Provider: "mistral"},
		{Prefix: "pixtral", Provider: "mistral"},
		{Prefix: "mistralai/", Provider: "mistral"},
	}
}

// DefaultProxies returns destinations that forward to an upstream provider
// without enforcing a limit of their own.
func DefaultProxies() []string {
	return []string{"github-copilot", "openrouter", "opencode", "vercel", "requesty"}
}

// Resolver maps destination identifiers (and optionally model identifiers)
// to byte ceilings.
type Resolver struct {
	limits   map[string]int
	prefixes []ModelPrefix
	proxies  map[string]struct{}
}

// NewResolver returns a Resolver over the given tables. A missing default
// entry is filled from DefaultLimits.
func NewResolver(limits map[string]int, prefixes []ModelPrefix, proxies []string) *Resolver {
	r := &Resolver{
		limits:   make(map[string]int, len(limits)+1),
		prefixes: make([]ModelPrefix, 0, len(prefixes)),
		proxies:  make(map[string]struct{}, len(proxies)),
	}
	for id, limit := range limits {
		r.limits[NormalizeID(id)] = limit
	}
	if _, ok := r.limits[DefaultID]; !ok {
		r.limits[DefaultID] = DefaultLimits()[DefaultID]
	}
	for _, p := range prefixes {
		if p.Prefix == "" || p.Provider == "" {
			continue
		}
		r.prefixes = append(r.prefixes, ModelPrefix{
			Prefix:   strings.ToLower(p.Prefix),
			Provider: NormalizeID(p.Provider),
		})
	}
	for _, id := range proxies {
		r.proxies[NormalizeID(id)] = struct{}{}
	}
	return r
}

// DefaultResolver returns a Resolver over the built-in tables.
func DefaultResolver() *Resolver {
	return NewResolver(DefaultLimits(), DefaultModelPrefixes(), DefaultProxies())
}

// ResolveLimit returns the byte ceiling for destinationID. Proxy destinations
// use modelID to find the enforcing provider; all other destinations ignore it.
func (r *Resolver) ResolveLimit(destinationID, modelID string) int {
	id := NormalizeID(destinationID)
	if r.IsProxy(id) && modelID != "" {
		if provider, ok := r.ResolveProviderFromModel(modelID); ok {
			return r.limitFor(provider)
		}
	}
	return r.limitFor(id)
}

// ResolveProviderFromModel matches modelID against the prefix table. The
// longest matching prefix wins; equal lengths go to the earlier entry.
func (r *Resolver) ResolveProviderFromModel(modelID string) (string, bool) {
	model := strings.ToLower(strings.TrimSpace(modelID))
	if model == "" {
		return "", false
	}

	best := -1
	for i, p := range r.prefixes {
		if !strings.HasPrefix(model, p.Prefix) {
			continue
		}
		if best < 0 || len(p.Prefix) > len(r.prefixes[best].Prefix) {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return r.prefixes[best].Provider, true
}

// IsProxy reports whether destinationID forwards to another provider.
func (r *Resolver) IsProxy(destinationID string) bool {
	_, ok := r.proxies[NormalizeID(destinationID)]
	return ok
}

// Limits returns a copy of the limit table.
func (r *Resolver) Limits() map[string]int {
	out := make(map[string]int, len(r.limits))
	for id, limit := range r.limits {
		out[id] = limit
	}
	return out
}

// Destinations returns the known destination identifiers in sorted order.
func (r *Resolver) Destinations() []string {
	ids := make([]string, 0, len(r.limits))
	for id := range r.limits {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Proxies returns the proxy identifiers in sorted order.
func (r *Resolver) Proxies() []string {
	ids := make([]string, 0, len(r.proxies))
	for id := range r.proxies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Resolver) limitFor(id string) int {
	if limit, ok := r.limits[id]; ok {
		return limit
	}
	return r.limits[DefaultID]
}

// NormalizeID folds a destination or provider ID to its lookup form.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
