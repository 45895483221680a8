package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/fivetwenty-io/snow/internal/auth"
	"github.com/fivetwenty-io/snow/internal/client"
	"github.com/fivetwenty-io/snow/internal/constants"
	"github.com/fivetwenty-io/snow/pkg/snow"
	"github.com/fivetwenty-io/snow/pkg/snowclient"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the CLI configuration. Passwords and client secrets are
// never written to it.
type Config struct {
	Instance       string     `json:"instance,omitempty"         yaml:"instance,omitempty"`
	BaseURL        string     `json:"base_url,omitempty"         yaml:"base_url,omitempty"`
	Username       string     `json:"username,omitempty"         yaml:"username,omitempty"`
	ClientID       string     `json:"client_id,omitempty"        yaml:"client_id,omitempty"`
	Token          string     `json:"token,omitempty"            yaml:"token,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty" yaml:"token_expires_at,omitempty"`
	RefreshToken   string     `json:"refresh_token,omitempty"    yaml:"refresh_token,omitempty"`
	LastRefreshed  *time.Time `json:"last_refreshed,omitempty"   yaml:"last_refreshed,omitempty"`

	// Global settings
	Output      string `json:"output,omitempty"       yaml:"output,omitempty"`
	PageSize    int    `json:"page_size,omitempty"    yaml:"page_size,omitempty"`
	StrictCount bool   `json:"strict_count,omitempty" yaml:"strict_count,omitempty"`
	LogLevel    string `json:"log_level,omitempty"    yaml:"log_level,omitempty"`
}

// configSetters maps settable keys to their validators.
var configSetters = map[string]func(*Config, string) error{
	"instance": func(c *Config, v string) error { c.Instance = v; return nil },
	"base_url": func(c *Config, v string) error { c.BaseURL = v; return nil },
	"username": func(c *Config, v string) error { c.Username = v; return nil },
	"client_id": func(c *Config, v string) error {
		c.ClientID = v

		return nil
	},
	"output": func(c *Config, v string) error {
		if !isValidOutputFormat(v) {
			return fmt.Errorf("%w: %q (use table, json or yaml)", constants.ErrInvalidOutputFormat, v)
		}

		c.Output = v

		return nil
	},
	"page_size": func(c *Config, v string) error {
		size, err := strconv.Atoi(v)
		if err != nil || size <= 0 {
			return fmt.Errorf("%w: page_size must be a positive integer", constants.ErrInvalidConfigValue)
		}

		c.PageSize = size

		return nil
	},
	"strict_count": func(c *Config, v string) error {
		strict, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: strict_count must be true or false", constants.ErrInvalidConfigValue)
		}

		c.StrictCount = strict

		return nil
	},
	"log_level": func(c *Config, v string) error {
		_, err := snow.NewZapLoggerWithLevel(v)
		if err != nil {
			return fmt.Errorf("%w: %w", constants.ErrInvalidConfigValue, err)
		}

		c.LogLevel = v

		return nil
	},
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Manage snow CLI configuration including the instance and output settings",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the current CLI configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()
			masked := *config
			masked.Token = maskSecret(config.Token)
			masked.RefreshToken = maskSecret(config.RefreshToken)

			handled, err := renderStructured(cmd.OutOrStdout(), viper.GetString("output"), masked)
			if handled {
				return err
			}

			return displayConfigTable(cmd.OutOrStdout(), &masked)
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long:  "Set a configuration value: instance, base_url, username, client_id, output, page_size, strict_count or log_level",
		Args:  cobra.ExactArgs(constants.MinimumArgumentCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			err := setConfigValue(config, args[0], args[1])
			if err != nil {
				return err
			}

			err = saveConfigStruct(config)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Set %s to %s\n", args[0], args[1])

			return nil
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Unset a configuration value",
		Long:  "Remove a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			err := unsetConfigValue(config, args[0])
			if err != nil {
				return err
			}

			err = saveConfigStruct(config)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", args[0])

			return nil
		},
	}
}

// setConfigValue validates and applies one setting.
func setConfigValue(config *Config, key, value string) error {
	setter, ok := configSetters[key]
	if !ok {
		return fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
	}

	err := setter(config, value)
	if err != nil {
		return err
	}

	viper.Set(key, value)

	return nil
}

func unsetConfigValue(config *Config, key string) error {
	switch key {
	case "instance":
		config.Instance = ""
	case "base_url":
		config.BaseURL = ""
	case "username":
		config.Username = ""
	case "client_id":
		config.ClientID = ""
	case "output":
		config.Output = ""
	case "page_size":
		config.PageSize = 0
	case "strict_count":
		config.StrictCount = false
	case "log_level":
		config.LogLevel = ""
	default:
		return fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
	}

	viper.Set(key, nil)

	return nil
}

func loadConfig() *Config {
	config := &Config{
		Instance:     viper.GetString("instance"),
		BaseURL:      viper.GetString("base_url"),
		Username:     viper.GetString("username"),
		ClientID:     viper.GetString("client_id"),
		Token:        viper.GetString("token"),
		RefreshToken: viper.GetString("refresh_token"),
		Output:       viper.GetString("output"),
		PageSize:     viper.GetInt("page_size"),
		StrictCount:  viper.GetBool("strict_count"),
		LogLevel:     viper.GetString("log_level"),
	}

	if expiresAt := viper.GetTime("token_expires_at"); !expiresAt.IsZero() {
		config.TokenExpiresAt = &expiresAt
	}

	if refreshed := viper.GetTime("last_refreshed"); !refreshed.IsZero() {
		config.LastRefreshed = &refreshed
	}

	return config
}

// configFilePath returns the config file in use or the default location.
func configFilePath() (string, error) {
	configFile := viper.ConfigFileUsed()
	if configFile != "" {
		return configFile, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir := filepath.Join(home, constants.ConfigDirName)

	err = os.MkdirAll(configDir, constants.ConfigDirPerm)
	if err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(configDir, constants.ConfigFileName), nil
}

func saveConfigStruct(config *Config) error {
	configFile, err := configFilePath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	err = os.WriteFile(configFile, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func displayConfigTable(out io.Writer, config *Config) error {
	var values map[string]interface{}

	data, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	err = json.Unmarshal(data, &values)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	table := tablewriter.NewWriter(out)
	table.Header("Setting", "Value")

	for _, key := range keys {
		_ = table.Append(key, fmt.Sprint(values[key]))
	}

	err = table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func maskSecret(value string) string {
	const visible = 4

	if len(value) <= visible {
		return value
	}

	return value[:visible] + "..."
}

// newLogger builds the CLI logger. Verbose output forces debug level.
func newLogger(config *Config) (snow.Logger, error) {
	level := config.LogLevel
	if viper.GetBool("verbose") {
		level = "debug"
	}

	if level == "" {
		return nil, nil //nolint:nilnil // no logger configured
	}

	return snow.NewZapLoggerWithLevel(level)
}

// buildSnowConfig turns CLI settings into a client config.
func buildSnowConfig(config *Config) (*snow.Config, error) {
	if config.Instance == "" && config.BaseURL == "" {
		return nil, constants.ErrNoInstanceConfigured
	}

	logger, err := newLogger(config)
	if err != nil {
		return nil, err
	}

	snowConfig := &snow.Config{
		Instance:                   config.Instance,
		BaseURL:                    config.BaseURL,
		Username:                   config.Username,
		Password:                   viper.GetString("password"),
		ClientID:                   config.ClientID,
		ClientSecret:               viper.GetString("client_secret"),
		PageSize:                   config.PageSize,
		ValidateCountItemsReturned: config.StrictCount,
		Debug:                      viper.GetBool("verbose"),
	}

	if logger != nil {
		snowConfig.Logger = logger
	}

	return snowConfig, nil
}

// createTokenManager returns a persisting OAuth2 token manager when the
// config holds tokens obtained by 'snow login' with a client ID.
func createTokenManager(config *Config, snowConfig *snow.Config, instanceKey string) (auth.TokenManager, error) {
	if config.ClientID == "" || (config.Token == "" && config.RefreshToken == "") {
		return nil, nil //nolint:nilnil // no OAuth2 session stored
	}

	baseURL, err := client.BaseURL(snowConfig)
	if err != nil {
		return nil, err
	}

	var initialExpiry time.Time
	if config.TokenExpiresAt != nil {
		initialExpiry = *config.TokenExpiresAt
	}

	manager := auth.NewConfigTokenManager(&auth.OAuth2Config{
		TokenURL:     auth.TokenURL(baseURL),
		ClientID:     config.ClientID,
		ClientSecret: snowConfig.ClientSecret,
		Username:     snowConfig.Username,
		Password:     snowConfig.Password,
		RefreshToken: config.RefreshToken,
	}, NewConfigPersister(), instanceKey, config.Token, initialExpiry)

	if snowConfig.Logger != nil {
		manager.SetWarnFunc(snowConfig.Logger.Warn)
	}

	return manager, nil
}

// CreateClient creates a client from the CLI configuration.
func CreateClient(ctx context.Context) (*snowclient.Client, error) {
	config := loadConfig()

	snowConfig, err := buildSnowConfig(config)
	if err != nil {
		return nil, err
	}

	tokenManager, err := createTokenManager(config, snowConfig, instanceKey(config))
	if err != nil {
		return nil, err
	}

	if tokenManager != nil {
		cli, err := client.NewWithTokenManager(ctx, snowConfig, tokenManager)
		if err != nil {
			return nil, fmt.Errorf("failed to create client with token manager: %w", err)
		}

		return cli, nil
	}

	if config.Token != "" {
		snowConfig.AccessToken = config.Token
	}

	if snowConfig.AccessToken == "" && snowConfig.ClientID == "" {
		if snowConfig.Username == "" {
			return nil, constants.ErrNoCredentials
		}

		if snowConfig.Password == "" {
			snowConfig.Password, err = promptPassword(os.Stderr)
			if err != nil {
				return nil, err
			}
		}
	}

	return snowclient.New(ctx, snowConfig)
}

// instanceKey identifies the configured instance for token persistence.
func instanceKey(config *Config) string {
	if config.BaseURL != "" {
		return config.BaseURL
	}

	return config.Instance
}
