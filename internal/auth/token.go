package auth

import (
	"context"
	"sync"
	"time"
)

// expiryBuffer treats tokens this close to expiry as already expired.
const expiryBuffer = 30 * time.Second

// TokenManager supplies bearer tokens to the transport.
type TokenManager interface {
	GetToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) error
	SetToken(token string, expiresAt time.Time)
}

// Token is an OAuth2 token response.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresIn    int       `json:"expires_in,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"-"`
}

// Valid reports whether the token can be used. A token without an expiry
// never expires.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}

	if t.ExpiresAt.IsZero() {
		return true
	}

	return time.Now().Add(expiryBuffer).Before(t.ExpiresAt)
}

// TokenStore holds the current token.
type TokenStore struct {
	mutex sync.RWMutex
	token *Token
}

// NewTokenStore creates an empty store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns the current token or nil.
func (s *TokenStore) Get() *Token {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.token
}

// Set replaces the current token.
func (s *TokenStore) Set(token *Token) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.token = token
}

// Clear removes the current token.
func (s *TokenStore) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.token = nil
}

// StaticTokenManager always returns the same token.
type StaticTokenManager struct {
	mutex sync.RWMutex
	token string
}

// NewStaticTokenManager creates a manager for a fixed access token.
func NewStaticTokenManager(token string) *StaticTokenManager {
	return &StaticTokenManager{token: token}
}

// GetToken returns the token.
func (m *StaticTokenManager) GetToken(ctx context.Context) (string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.token, nil
}

// RefreshToken always fails: a static token cannot be renewed.
func (m *StaticTokenManager) RefreshToken(ctx context.Context) error {
	return ErrStaticTokenCannotRefresh
}

// SetToken replaces the token.
func (m *StaticTokenManager) SetToken(token string, expiresAt time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.token = token
}
