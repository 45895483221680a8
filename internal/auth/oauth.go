package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fivetwenty-io/snow/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrStaticTokenCannotRefresh = constants.ErrStaticTokenCannotRefresh
	ErrNoValidCredentials       = constants.ErrNoValidCredentials
	ErrTokenRequestFailed       = constants.ErrTokenRequestFailed
	ErrNoConfigPersister        = errors.New("no config persister configured")
)

const (
	grantRefreshToken      = "refresh_token"
	grantClientCredentials = "client_credentials"
	grantPassword          = "password"
)

// OAuth2Config configures an OAuth2TokenManager.
type OAuth2Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	RefreshToken string
	AccessToken  string
	Scopes       []string
}

// OAuth2TokenManager obtains and renews tokens from the instance's OAuth
// endpoint. Grants are tried in order: refresh token, password, client
// credentials.
type OAuth2TokenManager struct {
	config     *OAuth2Config
	store      *TokenStore
	httpClient *http.Client
	mutex      sync.Mutex
}

// NewOAuth2TokenManager creates a token manager. A configured AccessToken is
// used until the server rejects it.
func NewOAuth2TokenManager(config *OAuth2Config) *OAuth2TokenManager {
	manager := &OAuth2TokenManager{
		config:     config,
		store:      NewTokenStore(),
		httpClient: &http.Client{Timeout: constants.ShortHTTPTimeout},
	}

	if config.AccessToken != "" {
		manager.store.Set(&Token{
			AccessToken:  config.AccessToken,
			RefreshToken: config.RefreshToken,
			TokenType:    "bearer",
		})
	}

	return manager
}

// NewInstanceTokenManager creates a client-credentials token manager for an
// instance URL.
func NewInstanceTokenManager(instanceURL, clientID, clientSecret string) *OAuth2TokenManager {
	return NewOAuth2TokenManager(&OAuth2Config{
		TokenURL:     TokenURL(instanceURL),
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
}

// NewInstanceTokenManagerWithPassword creates a password-grant token manager
// for an instance URL.
func NewInstanceTokenManagerWithPassword(instanceURL, clientID, clientSecret, username, password string) *OAuth2TokenManager {
	return NewOAuth2TokenManager(&OAuth2Config{
		TokenURL:     TokenURL(instanceURL),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Username:     username,
		Password:     password,
	})
}

// TokenURL returns the OAuth token endpoint for an instance URL.
func TokenURL(instanceURL string) string {
	return strings.TrimRight(instanceURL, "/") + constants.OAuthTokenPath
}

// GetToken returns a valid access token, requesting a new one if needed.
func (m *OAuth2TokenManager) GetToken(ctx context.Context) (string, error) {
	token := m.store.Get()
	if token.Valid() {
		return token.AccessToken, nil
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	token = m.store.Get()
	if token.Valid() {
		return token.AccessToken, nil
	}

	err := m.fetchToken(ctx, token)
	if err != nil {
		return "", err
	}

	return m.store.Get().AccessToken, nil
}

// RefreshToken requests a new token regardless of the current one.
func (m *OAuth2TokenManager) RefreshToken(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.fetchToken(ctx, m.store.Get())
}

// SetToken stores an access token obtained elsewhere.
func (m *OAuth2TokenManager) SetToken(token string, expiresAt time.Time) {
	refreshToken := m.config.RefreshToken
	if current := m.store.Get(); current != nil && current.RefreshToken != "" {
		refreshToken = current.RefreshToken
	}

	m.store.Set(&Token{
		AccessToken:  token,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresAt:    expiresAt,
	})
}

// Token returns the current token, or nil.
func (m *OAuth2TokenManager) Token() *Token {
	return m.store.Get()
}

func (m *OAuth2TokenManager) fetchToken(ctx context.Context, current *Token) error {
	refreshToken := m.config.RefreshToken
	if current != nil && current.RefreshToken != "" {
		refreshToken = current.RefreshToken
	}

	var form url.Values

	switch {
	case refreshToken != "":
		form = url.Values{"grant_type": {grantRefreshToken}, "refresh_token": {refreshToken}}
	case m.config.Username != "" && m.config.Password != "":
		form = url.Values{
			"grant_type": {grantPassword},
			"username":   {m.config.Username},
			"password":   {m.config.Password},
		}
	case m.config.ClientID != "" && m.config.ClientSecret != "":
		form = url.Values{"grant_type": {grantClientCredentials}}
	default:
		return ErrNoValidCredentials
	}

	if len(m.config.Scopes) > 0 {
		form.Set("scope", strings.Join(m.config.Scopes, " "))
	}

	token, err := m.requestToken(ctx, form)
	if err != nil {
		return err
	}

	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}

	m.store.Set(token)

	return nil
}

func (m *OAuth2TokenManager) requestToken(ctx context.Context, form url.Values) (*Token, error) {
	if m.config.ClientID != "" {
		form.Set("client_id", m.config.ClientID)
		form.Set("client_secret", m.config.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	if m.config.ClientID != "" {
		req.SetBasicAuth(m.config.ClientID, m.config.ClientSecret)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting token: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var oauthErr struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}

		_ = json.Unmarshal(body, &oauthErr)

		return nil, fmt.Errorf("%w (%d): %s: %s", ErrTokenRequestFailed, resp.StatusCode, oauthErr.Error, oauthErr.Description)
	}

	var token Token

	err = json.Unmarshal(body, &token)
	if err != nil {
		return nil, fmt.Errorf("parsing token response: %w", err)
	}

	if token.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}

	return &token, nil
}
