package commands

import (
	"fmt"
	"sync"
	"time"

	"github.com/fivetwenty-io/snow/internal/constants"
	"github.com/spf13/viper"
)

// ConfigPersister implements the auth.ConfigPersister interface.
type ConfigPersister struct {
	mutex sync.Mutex
}

// NewConfigPersister creates a new config persister.
func NewConfigPersister() *ConfigPersister {
	return &ConfigPersister{}
}

// UpdateInstanceToken stores a renewed token for the configured instance.
func (p *ConfigPersister) UpdateInstanceToken(instance, token string, expiresAt time.Time, refreshToken string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	config := loadConfig()

	if instanceKey(config) != instance {
		return fmt.Errorf("instance '%s': %w", instance, constants.ErrNoInstanceConfigured)
	}

	config.Token = token
	if !expiresAt.IsZero() {
		config.TokenExpiresAt = &expiresAt
	}

	if refreshToken != "" {
		config.RefreshToken = refreshToken
	}

	now := time.Now()
	config.LastRefreshed = &now

	err := saveConfigStruct(config)
	if err != nil {
		return err
	}

	viper.Set("token", config.Token)
	viper.Set("refresh_token", config.RefreshToken)
	viper.Set("last_refreshed", now)

	if config.TokenExpiresAt != nil {
		viper.Set("token_expires_at", *config.TokenExpiresAt)
	}

	return nil
}
