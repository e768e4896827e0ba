package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// FacebookVerifier resolves a Facebook access token to the profile it grants
// via the Graph API /me endpoint. An invalid or expired token yields a Graph
// error, so a successful lookup doubles as validation.
type FacebookVerifier struct {
	// GraphURL is the Graph API base, overridable in tests.
	GraphURL string

	HTTPClient *http.Client
}

type facebookProfile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Verify fetches the token holder's profile from the Graph API.
func (f *FacebookVerifier) Verify(ctx context.Context, token string) (*Profile, error) {
	client := f.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	endpoint := fmt.Sprintf("%s/me?fields=id,email,first_name,last_name&access_token=%s",
		f.GraphURL, url.QueryEscape(token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("facebook graph request failed: %w", err)
	}
	defer resp.Body.Close()

	var profile facebookProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode facebook profile: %w", err)
	}
	if profile.Error != nil {
		return nil, fmt.Errorf("facebook token rejected: %s", profile.Error.Message)
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("facebook profile missing id")
	}

	return &Profile{
		ProviderID: profile.ID,
		Email:      profile.Email,
		FirstName:  profile.FirstName,
		LastName:   profile.LastName,
	}, nil
}
