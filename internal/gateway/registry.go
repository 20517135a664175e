package gateway

import (
	"fmt"
	"sort"

	"github.com/openbillingstore/billing-core/pkg/enums"
	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
)

// Decorator wraps an adapter with cross-cutting behavior.
type Decorator func(Adapter) Adapter

// Registry resolves adapters by provider name. It is built once at startup
// and read-only afterwards.
type Registry struct {
	adapters map[enums.PaymentProvider]Adapter
}

// NewRegistry registers adapters under their normalized names. Decorators are
// applied in order, so the last one is outermost.
func NewRegistry(adapters []Adapter, decorators ...Decorator) (*Registry, error) {
	r := &Registry{adapters: make(map[enums.PaymentProvider]Adapter, len(adapters))}
	for _, a := range adapters {
		if a == nil {
			return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "nil gateway adapter")
		}
		name := enums.NormalizeProvider(string(a.Name()))
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "gateway adapter has no name")
		}
		if _, dup := r.adapters[name]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeConfiguration, fmt.Sprintf("gateway %s registered twice", name))
		}
		wrapped := a
		for _, decorate := range decorators {
			if decorate != nil {
				wrapped = decorate(wrapped)
			}
		}
		r.adapters[name] = wrapped
	}
	return r, nil
}

// Get returns the adapter for name, ignoring case. An unknown name is a
// configuration error.
func (r *Registry) Get(name string) (Adapter, error) {
	key := enums.NormalizeProvider(name)
	if r != nil {
		if a, ok := r.adapters[key]; ok {
			return a, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeConfiguration, fmt.Sprintf("unsupported payment gateway %q", name)).
		WithDetails(map[string]any{"gateway": name})
}

// Providers lists registered provider names in sorted order.
func (r *Registry) Providers() []enums.PaymentProvider {
	if r == nil {
		return nil
	}
	out := make([]enums.PaymentProvider, 0, len(r.adapters))
	for name := range r.adapters {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
