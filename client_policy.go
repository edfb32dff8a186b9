package goIssuer

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// ClientPolicy decides whether a client may start an authorization with a
// given redirect URI.
type ClientPolicy interface {
	Allow(ctx context.Context, clientID, redirectURI string) error
}

// AllowAll accepts any client and any absolute redirect URI. It is meant for
// development and is rejected in production mode.
type AllowAll struct{}

func (AllowAll) Allow(_ context.Context, _ string, redirectURI string) error {
	return checkRedirectURI(redirectURI)
}

// StaticClients maps client ids to their registered redirect URIs. Matching
// is exact.
type StaticClients map[string][]string

type clientsFile struct {
	Clients []struct {
		ID           string   `yaml:"id"`
		RedirectURIs []string `yaml:"redirect_uris"`
	} `yaml:"clients"`
}

// ParseStaticClients reads a YAML document of the form
//
//	clients:
//	  - id: web
//	    redirect_uris: [https://app.example.com/callback]
func ParseStaticClients(data []byte) (StaticClients, error) {
	var f clientsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse clients: %w", err)
	}

	out := make(StaticClients, len(f.Clients))
	for i, c := range f.Clients {
		if c.ID == "" {
			return nil, fmt.Errorf("clients[%d]: id is required", i)
		}
		if _, dup := out[c.ID]; dup {
			return nil, fmt.Errorf("clients[%d]: duplicate id %q", i, c.ID)
		}
		if len(c.RedirectURIs) == 0 {
			return nil, fmt.Errorf("client %q: at least one redirect uri is required", c.ID)
		}
		for _, u := range c.RedirectURIs {
			if err := checkRedirectURI(u); err != nil {
				return nil, fmt.Errorf("client %q: %w", c.ID, err)
			}
		}
		out[c.ID] = append([]string(nil), c.RedirectURIs...)
	}
	return out, nil
}

// LoadStaticClients reads ParseStaticClients input from path.
func LoadStaticClients(path string) (StaticClients, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseStaticClients(data)
}

func (s StaticClients) Allow(_ context.Context, clientID, redirectURI string) error {
	uris, ok := s[clientID]
	if !ok {
		return fmt.Errorf("%w: unknown client %q", ErrInvalidClient, clientID)
	}
	for _, u := range uris {
		if u == redirectURI {
			return nil
		}
	}
	return fmt.Errorf("%w: redirect uri not registered for client %q", ErrInvalidClient, clientID)
}

func checkRedirectURI(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" || u.Fragment != "" {
		return fmt.Errorf("%w: redirect uri must be absolute without fragment", ErrInvalidRequest)
	}
	return nil
}
