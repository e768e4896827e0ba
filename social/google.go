package social

import (
	"context"
	"fmt"

	"google.golang.org/api/idtoken"
)

// GoogleVerifier validates Google ID tokens against our OAuth client ID.
type GoogleVerifier struct {
	ClientID string
}

// Verify checks the ID token's signature and audience and extracts the
// profile claims.
func (g *GoogleVerifier) Verify(ctx context.Context, token string) (*Profile, error) {
	payload, err := idtoken.Validate(ctx, token, g.ClientID)
	if err != nil {
		return nil, fmt.Errorf("google id token validation failed: %w", err)
	}

	sub, _ := payload.Claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("google id token missing sub claim")
	}
	email, _ := payload.Claims["email"].(string)
	firstName, _ := payload.Claims["given_name"].(string)
	lastName, _ := payload.Claims["family_name"].(string)

	return &Profile{
		ProviderID: sub,
		Email:      email,
		FirstName:  firstName,
		LastName:   lastName,
	}, nil
}
