// Package sessions implements the server-side session store backing every
// flow in the identity pipeline. The browser only ever holds an opaque
// random token in an httpOnly cookie; all session-scoped state (the pending
// registration pointer, the social onboarding ticket, the two change-OTP
// entries) lives here, keyed by that token, and is deleted on every terminal
// transition so a later request cannot resurrect dead flow state.
package sessions

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lifetime is how long an idle session survives.
const Lifetime = 7 * 24 * time.Hour

const (
	// CookieName is the session cookie name.
	CookieName = "tradelink_session"

	sessionKeyPrefix = "session:"
	accountKeyPrefix = "account_session:"
)

// ErrNotFound is returned when no session exists for a token.
var ErrNotFound = errors.New("session not found")

// ChangeOTP is the ephemeral state of an in-place email or phone change.
// It is consumed on profile save or discarded with the session.
type ChangeOTP struct {
	Value     string    `json:"value"`
	CodeHash  string    `json:"codeHash"`
	ExpiresAt time.Time `json:"expiresAt"`
	Verified  bool      `json:"verified"`
}

// Expired reports whether the challenge can no longer be answered.
func (c *ChangeOTP) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// SocialTicket is the "needs profile" ticket produced by a social callback
// that matched no account. It is cheap and short-lived, so it lives on the
// session rather than in the database.
type SocialTicket struct {
	Provider   string `json:"provider"`
	ProviderID string `json:"providerId"`
	Email      string `json:"email"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
}

// Session is the per-cookie state. AccountID is empty for anonymous
// (mid-registration) sessions.
type Session struct {
	Token                 string        `json:"-"`
	AccountID             string        `json:"accountId,omitempty"`
	Role                  string        `json:"role,omitempty"`
	PendingRegistrationID string        `json:"pendingRegistrationId,omitempty"`
	Social                *SocialTicket `json:"social,omitempty"`
	EmailChange           *ChangeOTP    `json:"emailChange,omitempty"`
	PhoneChange           *ChangeOTP    `json:"phoneChange,omitempty"`
}

// Authenticated reports whether the session belongs to a logged-in account.
func (s *Session) Authenticated() bool {
	return s.AccountID != ""
}

// ChangeEntry returns the change-OTP slot for the given type, or nil.
func (s *Session) ChangeEntry(changeType string) *ChangeOTP {
	switch changeType {
	case "email":
		return s.EmailChange
	case "phone":
		return s.PhoneChange
	}
	return nil
}

// SetChangeEntry stores (or clears, with nil) the change-OTP slot.
func (s *Session) SetChangeEntry(changeType string, entry *ChangeOTP) {
	switch changeType {
	case "email":
		s.EmailChange = entry
	case "phone":
		s.PhoneChange = entry
	}
}

// Store persists sessions in redis with a sliding TTL.
type Store struct {
	rdb    redis.UniversalClient
	secure bool
}

// NewStore returns a session store over the given redis client. secure
// selects the production cookie policy (Secure + SameSite=None for the
// cross-site web client); development uses Lax without Secure.
func NewStore(rdb redis.UniversalClient, secure bool) *Store {
	return &Store{rdb: rdb, secure: secure}
}

// Create initializes an empty session with a fresh random token.
func (st *Store) Create(ctx context.Context) (*Session, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	s := &Session{Token: base64.RawURLEncoding.EncodeToString(b)}
	if err := st.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Get loads the session for a token.
func (st *Store) Get(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	raw, err := st.rdb.Get(ctx, sessionKeyPrefix+token).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s := &Session{}
	if err := json.Unmarshal([]byte(raw), s); err != nil {
		return nil, err
	}
	s.Token = token
	return s, nil
}

// Save writes the session back, resetting its TTL. When the session is
// authenticated the account -> token reverse mapping is kept so a password
// reset can invalidate the account's session without knowing its cookie.
func (st *Store) Save(ctx context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := st.rdb.Set(ctx, sessionKeyPrefix+s.Token, raw, Lifetime).Err(); err != nil {
		return err
	}
	if s.AccountID != "" {
		return st.rdb.Set(ctx, accountKeyPrefix+s.AccountID, s.Token, Lifetime).Err()
	}
	return nil
}

// Delete removes the session and its reverse mapping.
func (st *Store) Delete(ctx context.Context, s *Session) error {
	if s.AccountID != "" {
		st.rdb.Del(ctx, accountKeyPrefix+s.AccountID)
	}
	return st.rdb.Del(ctx, sessionKeyPrefix+s.Token).Err()
}

// DeleteForAccount invalidates whatever session the account currently holds.
func (st *Store) DeleteForAccount(ctx context.Context, accountID string) error {
	token, err := st.rdb.Get(ctx, accountKeyPrefix+accountID).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	st.rdb.Del(ctx, accountKeyPrefix+accountID)
	return st.rdb.Del(ctx, sessionKeyPrefix+token).Err()
}

// SetCookie writes the session cookie with the environment's policy.
func (st *Store) SetCookie(w http.ResponseWriter, s *Session) {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    s.Token,
		Path:     "/",
		MaxAge:   int(Lifetime.Seconds()),
		HttpOnly: true,
	}
	if st.secure {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	} else {
		c.SameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, c)
}

// ClearCookie expires the session cookie.
func (st *Store) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// FromRequest loads the session identified by the request cookie.
func (st *Store) FromRequest(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, ErrNotFound
	}
	return st.Get(r.Context(), cookie.Value)
}

// GetOrCreate loads the request's session, creating a fresh one (and setting
// its cookie) when none exists. Used by the anonymous registration entry
// points.
func (st *Store) GetOrCreate(w http.ResponseWriter, r *http.Request) (*Session, error) {
	s, err := st.FromRequest(r)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	s, err = st.Create(r.Context())
	if err != nil {
		return nil, err
	}
	st.SetCookie(w, s)
	return s, nil
}
