package adapters

import (
	"sort"
	"strings"

	"github.com/smallbiznis/studioledger/internal/payment/domain"
)

// Registry resolves a gateway name to the factory that drives it.
type Registry struct {
	factories map[string]domain.GatewayFactory
}

func NewRegistry(factories ...domain.GatewayFactory) *Registry {
	registry := &Registry{factories: map[string]domain.GatewayFactory{}}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		gateway := normalize(factory.Gateway())
		if gateway == "" {
			continue
		}
		registry.factories[gateway] = factory
	}
	return registry
}

// Supports reports whether gateway has a registered variant.
func (r *Registry) Supports(gateway string) bool {
	if r == nil {
		return false
	}
	_, ok := r.factories[normalize(gateway)]
	return ok
}

func (r *Registry) Gateways() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.factories))
	for gateway := range r.factories {
		out = append(out, gateway)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) New(gateway string, cfg map[string]any) (domain.PaymentGateway, error) {
	if r == nil {
		return nil, domain.ErrUnsupportedGateway
	}
	factory, ok := r.factories[normalize(gateway)]
	if !ok {
		return nil, domain.ErrUnsupportedGateway
	}
	return factory.New(cfg)
}

func normalize(gateway string) string {
	return strings.ToUpper(strings.TrimSpace(gateway))
}

// ReadString returns a trimmed string config value.
func ReadString(cfg map[string]any, key string) (string, bool) {
	value, ok := cfg[key]
	if !ok {
		return "", false
	}
	cast, ok := value.(string)
	if !ok {
		return "", false
	}
	cast = strings.TrimSpace(cast)
	return cast, cast != ""
}
