// Package profile provides the client for the remote identity service
// that participant projections are copied from.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pitabwire/util"

	"github.com/sokoapp/service-presence/internal/resilience"
)

// ErrProfileNotFound is returned when the identity service has no profile
// for the requested ID.
var ErrProfileNotFound = errors.New("profile not found")

// Profile is the remote identity shape copied into a local participant
// projection on first reference.
type Profile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl"`
}

// Client looks up profiles on the remote identity service. Calls run
// through a circuit breaker so a dead identity service fails fast instead
// of stalling every message.send that needs a new projection.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
}

// Options configures a profile client.
type Options struct {
	BaseURL             string
	Timeout             time.Duration
	BreakerMaxFailures  int64
	BreakerResetTimeout time.Duration
}

// NewClient creates a profile client.
func NewClient(ctx context.Context, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	settings := resilience.DefaultSettings("profile-service")
	if opts.BreakerMaxFailures > 0 {
		settings.MaxFailures = opts.BreakerMaxFailures
	}
	if opts.BreakerResetTimeout > 0 {
		settings.ResetTimeout = opts.BreakerResetTimeout
	}
	settings.OnStateChange = func(name string, from, to resilience.State) {
		util.Log(ctx).WithFields(map[string]any{
			"breaker": name,
			"from":    from.String(),
			"to":      to.String(),
		}).Warn("profile client circuit breaker state change")
	}

	return &Client{
		baseURL:    opts.BaseURL,
		httpClient: &http.Client{Timeout: opts.Timeout},
		breaker:    resilience.NewCircuitBreaker(settings),
	}
}

// GetByID fetches a profile by its ID.
// Returns ErrProfileNotFound when the identity service has no such profile.
func (c *Client) GetByID(ctx context.Context, profileID string) (*Profile, error) {
	if profileID == "" {
		return nil, ErrProfileNotFound
	}

	var profile *Profile
	var notFound bool
	err := c.breaker.Execute(func() error {
		var execErr error
		profile, execErr = c.fetch(ctx, profileID)
		if errors.Is(execErr, ErrProfileNotFound) {
			// A definitive miss is a healthy answer; it must not trip
			// the breaker.
			notFound = true
			return nil
		}
		return execErr
	})
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

func (c *Client) fetch(ctx context.Context, profileID string) (*Profile, error) {
	endpoint := fmt.Sprintf("%s/profiles/%s", c.baseURL, url.PathEscape(profileID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrProfileNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("profile service returned status %d", resp.StatusCode)
	}

	var profile Profile
	if err = json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile response: %w", err)
	}
	if profile.ID == "" {
		profile.ID = profileID
	}

	return &profile, nil
}
