// Package social verifies tokens from the external identity providers and
// reduces them to a provider-neutral profile. The consent screen and the
// OAuth dance itself happen on the client; the server only ever sees the
// resulting token, which each provider lets us validate directly.
package social

import (
	"context"
	"fmt"
)

// Supported provider names, used in URLs and as the ticket provider field.
const (
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
)

// Profile is the verified identity returned by a provider.
type Profile struct {
	ProviderID string
	Email      string
	FirstName  string
	LastName   string
}

// Verifier validates a provider token and resolves the profile it proves.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Profile, error)
}

// Verifiers maps provider names to their verifier.
type Verifiers map[string]Verifier

// For returns the verifier for a provider name.
func (v Verifiers) For(provider string) (Verifier, error) {
	verifier, ok := v[provider]
	if !ok {
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
	return verifier, nil
}
