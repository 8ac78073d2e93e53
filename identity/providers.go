package identity

import (
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

var UnknownProviderErr = errors.New("unknown oauth provider")

// Providers holds the configured social-login providers. The gateway only
// builds authorization URLs; the code that comes back is exchanged by the
// identity backend.
type Providers struct {
	configs map[string]*oauth2.Config
}

// NewProviders builds a registry from name -> oauth2 config.
func NewProviders(configs map[string]*oauth2.Config) *Providers {
	if configs == nil {
		configs = map[string]*oauth2.Config{}
	}
	return &Providers{configs: configs}
}

// Known reports whether the provider is configured.
func (p *Providers) Known(provider string) bool {
	_, ok := p.configs[provider]
	return ok
}

// Names returns the configured provider names in a stable order.
func (p *Providers) Names() []string {
	names := make([]string, 0, len(p.configs))
	for name := range p.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AuthCodeURL returns the provider's authorization URL carrying our CSRF
// state parameter.
func (p *Providers) AuthCodeURL(provider, state string) (string, error) {
	cfg, ok := p.configs[provider]
	if !ok {
		return "", errors.Wrapf(UnknownProviderErr, "%q", provider)
	}
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}
