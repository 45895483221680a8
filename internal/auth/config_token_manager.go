package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ConfigPersister saves renewed tokens for an instance.
type ConfigPersister interface {
	UpdateInstanceToken(instance, token string, expiresAt time.Time, refreshToken string) error
}

// WarnFunc reports non-fatal persistence failures.
type WarnFunc func(msg string, fields map[string]interface{})

// ConfigTokenManager wraps OAuth2TokenManager and persists every token it
// obtains, so that the CLI can reuse it in later invocations.
type ConfigTokenManager struct {
	oauth2Manager   *OAuth2TokenManager
	configPersister ConfigPersister
	instance        string
	warn            WarnFunc
	mutex           sync.Mutex
	lastToken       string
	lastExpiry      time.Time
}

// NewConfigTokenManager creates a persisting token manager. initialToken, if
// set, is used until it expires.
func NewConfigTokenManager(config *OAuth2Config, configPersister ConfigPersister, instance, initialToken string, initialExpiry time.Time) *ConfigTokenManager {
	oauth2Manager := NewOAuth2TokenManager(config)

	if initialToken != "" {
		oauth2Manager.SetToken(initialToken, initialExpiry)
	}

	return &ConfigTokenManager{
		oauth2Manager:   oauth2Manager,
		configPersister: configPersister,
		instance:        instance,
		lastToken:       initialToken,
		lastExpiry:      initialExpiry,
	}
}

// SetWarnFunc sets the callback for persistence failures.
func (m *ConfigTokenManager) SetWarnFunc(warn WarnFunc) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.warn = warn
}

// GetToken returns a valid access token, persisting it when it changed.
func (m *ConfigTokenManager) GetToken(ctx context.Context) (string, error) {
	token, err := m.oauth2Manager.GetToken(ctx)
	if err != nil {
		return "", err
	}

	m.persistIfChanged()

	return token, nil
}

// RefreshToken forces a token refresh and persists the result.
func (m *ConfigTokenManager) RefreshToken(ctx context.Context) error {
	err := m.oauth2Manager.RefreshToken(ctx)
	if err != nil {
		return err
	}

	m.persistIfChanged()

	return nil
}

// SetToken manually sets the access token without persisting it.
func (m *ConfigTokenManager) SetToken(token string, expiresAt time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.oauth2Manager.SetToken(token, expiresAt)
	m.lastToken = token
	m.lastExpiry = expiresAt
}

// GetTokenExpiry returns the current token's expiration time.
func (m *ConfigTokenManager) GetTokenExpiry() time.Time {
	token := m.oauth2Manager.Token()
	if token == nil {
		return time.Time{}
	}

	return token.ExpiresAt
}

func (m *ConfigTokenManager) persistIfChanged() {
	current := m.oauth2Manager.Token()
	if current == nil {
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if current.AccessToken == m.lastToken && current.ExpiresAt.Equal(m.lastExpiry) {
		return
	}

	m.lastToken = current.AccessToken
	m.lastExpiry = current.ExpiresAt

	err := m.persistToken(current)
	if err != nil && m.warn != nil {
		m.warn("Failed to persist refreshed token", map[string]interface{}{"error": err.Error()})
	}
}

func (m *ConfigTokenManager) persistToken(token *Token) error {
	if m.configPersister == nil {
		return ErrNoConfigPersister
	}

	err := m.configPersister.UpdateInstanceToken(m.instance, token.AccessToken, token.ExpiresAt, token.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to update instance token: %w", err)
	}

	return nil
}
