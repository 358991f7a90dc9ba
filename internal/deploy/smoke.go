// Package deploy implements the traffic-shift validation hooks run during a
// rollout: a pre-traffic check that must pass before any traffic reaches the
// new instance, and a post-traffic check that exercises an authenticated
// read path once traffic flows.
package deploy

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Smoke runs HTTP smoke checks against a deployed marketplace instance.
type Smoke struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewSmoke targets the instance at baseURL (no trailing slash). token is a
// bearer token for the authenticated checks.
func NewSmoke(baseURL, token string) *Smoke {
	return &Smoke{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// BeforeAllowTraffic validates the instance before traffic is shifted to
// it: the process must be up and answering its health endpoint.
func (s *Smoke) BeforeAllowTraffic(ctx context.Context) error {
	return s.get(ctx, "/healthz", false)
}

// AfterAllowTraffic validates the instance once it serves live traffic by
// exercising an authenticated end-to-end read: listing products touches
// auth, routing and the store.
func (s *Smoke) AfterAllowTraffic(ctx context.Context) error {
	return s.get(ctx, "/products", true)
}

func (s *Smoke) get(ctx context.Context, path string, authed bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("deploy: build request %s: %w", path, err)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deploy: %s unreachable: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deploy: %s returned %d, want %d", path, resp.StatusCode, http.StatusOK)
	}
	return nil
}
