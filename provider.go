package qof

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultAccessMethod is used for URIs without a scheme.
const DefaultAccessMethod = "file"

var (
	// ErrProviderNotFound is returned when no provider serves an access method.
	ErrProviderNotFound = errors.New("qof: provider not found")
	// ErrProviderRejected is returned when a provider declines a URI.
	ErrProviderRejected = errors.New("qof: provider rejected uri")
)

// Provider describes a backend implementation available to sessions.
type Provider struct {
	Name          string
	AccessMethod  string
	PartialBook   bool
	New           func() *Backend
	CheckDataType func(uri string) bool
}

// ProviderRegistry stores providers keyed by access method.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewProviderRegistry constructs an empty registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]Provider),
	}
}

var defaultProviders = NewProviderRegistry()

// DefaultProviders returns the process-wide registry plugins register into.
func DefaultProviders() *ProviderRegistry {
	return defaultProviders
}

// RegisterProvider adds p to the default registry.
func RegisterProvider(p Provider) error {
	return defaultProviders.Register(p)
}

// Register stores p guarding against duplicates.
func (r *ProviderRegistry) Register(p Provider) error {
	if r == nil {
		return fmt.Errorf("qof: provider registry is nil")
	}
	key := strings.ToLower(strings.TrimSpace(p.AccessMethod))
	if key == "" {
		return fmt.Errorf("qof: provider %q has no access method", p.Name)
	}
	if p.New == nil {
		return fmt.Errorf("qof: provider %q has no constructor", key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.providers == nil {
		r.providers = make(map[string]Provider)
	}
	if _, exists := r.providers[key]; exists {
		return fmt.Errorf("qof: provider %q already registered", key)
	}
	p.AccessMethod = key
	r.providers[key] = p
	return nil
}

// Lookup returns the provider registered for access.
func (r *ProviderRegistry) Lookup(access string) (Provider, bool) {
	if r == nil {
		return Provider{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(access))]
	return p, ok
}

// Providers returns every registered provider sorted by access method.
func (r *ProviderRegistry) Providers() []Provider {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AccessMethod < out[j].AccessMethod
	})
	return out
}

// Clone returns a shallow copy of the registry.
func (r *ProviderRegistry) Clone() *ProviderRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &ProviderRegistry{
		providers: make(map[string]Provider, len(r.providers)),
	}
	for key, p := range r.providers {
		clone.providers[key] = p
	}
	return clone
}

// NewBackend constructs a backend from the provider for access and names it
// after the access method.
func (r *ProviderRegistry) NewBackend(access string) (*Backend, error) {
	p, ok := r.Lookup(access)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, access)
	}
	be := p.New()
	if be == nil {
		return nil, fmt.Errorf("qof: provider %q returned nil backend", p.AccessMethod)
	}
	WithName(p.AccessMethod)(be)
	return be, nil
}

// ForURI selects the provider for uri by its scheme. A URI without a scheme
// is served by the file provider.
func (r *ProviderRegistry) ForURI(uri string) (Provider, error) {
	access := AccessMethod(uri)
	p, ok := r.Lookup(access)
	if !ok {
		return Provider{}, fmt.Errorf("%w: %q", ErrProviderNotFound, access)
	}
	if p.CheckDataType != nil && !p.CheckDataType(uri) {
		return Provider{}, fmt.Errorf("%w: %s does not accept %q", ErrProviderRejected, p.AccessMethod, uri)
	}
	return p, nil
}

// AccessMethod returns the lower-cased scheme of uri, or DefaultAccessMethod
// when uri has none.
func AccessMethod(uri string) string {
	scheme, _, ok := strings.Cut(uri, "://")
	if !ok || scheme == "" {
		return DefaultAccessMethod
	}
	return strings.ToLower(scheme)
}

// URIPath strips the scheme from uri.
func URIPath(uri string) string {
	if _, rest, ok := strings.Cut(uri, "://"); ok {
		return rest
	}
	return uri
}
