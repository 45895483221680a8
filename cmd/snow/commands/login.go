package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fivetwenty-io/snow/internal/auth"
	"github.com/fivetwenty-io/snow/internal/client"
	"github.com/fivetwenty-io/snow/internal/constants"
	"github.com/fivetwenty-io/snow/pkg/snow"
	"github.com/fivetwenty-io/snow/pkg/snowclient"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// NewLoginCommand creates the login command
func NewLoginCommand() *cobra.Command {
	var (
		clientID     string
		clientSecret string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to an instance",
		Long: `Authenticate with an instance and store it as the default.

With --client-id the OAuth2 password grant (or client credentials grant when
no username is given) is used and the resulting tokens are stored. Without it
basic authentication is verified; the password itself is never stored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			instance := viper.GetString("instance")
			if instance == "" {
				instance = promptLine(in, out, "Instance (name or URL): ")
			}

			if instance == "" {
				return constants.ErrNoInstanceConfigured
			}

			if clientSecret == "" {
				clientSecret = viper.GetString("client_secret")
			}

			username := viper.GetString("username")
			if username == "" && clientID == "" {
				username = promptLine(in, out, "Username: ")
			}

			password := viper.GetString("password")
			if username != "" && password == "" {
				var err error

				password, err = promptPassword(out)
				if err != nil {
					return err
				}
			}

			snowConfig := &snow.Config{
				Instance:     instance,
				Username:     username,
				Password:     password,
				ClientID:     clientID,
				ClientSecret: clientSecret,
			}

			return runLogin(cmd.Context(), out, snowConfig)
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth2 client ID")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth2 client secret")

	return cmd
}

func runLogin(ctx context.Context, out io.Writer, snowConfig *snow.Config) error {
	baseURL, err := client.BaseURL(snowConfig)
	if err != nil {
		return err
	}

	var oauthManager *auth.OAuth2TokenManager

	cli, err := func() (*snowclient.Client, error) {
		if snowConfig.ClientID == "" {
			return snowclient.New(ctx, snowConfig)
		}

		if snowConfig.Username != "" {
			oauthManager = auth.NewInstanceTokenManagerWithPassword(baseURL,
				snowConfig.ClientID, snowConfig.ClientSecret, snowConfig.Username, snowConfig.Password)
		} else {
			oauthManager = auth.NewInstanceTokenManager(baseURL, snowConfig.ClientID, snowConfig.ClientSecret)
		}

		return client.NewWithTokenManager(ctx, snowConfig, oauthManager)
	}()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	// Any readable table proves the credentials work.
	_, err = cli.Table("sys_user").GetPage(ctx, snow.PageRequest{Limit: 1, Fields: []string{snow.FieldSysID}})
	if err != nil {
		return fmt.Errorf("failed to connect to instance: %w", err)
	}

	config := loadConfig()
	config.Instance = snowConfig.Instance
	config.BaseURL = ""
	config.Username = snowConfig.Username
	config.ClientID = snowConfig.ClientID
	config.Token = ""
	config.RefreshToken = ""
	config.TokenExpiresAt = nil

	if oauthManager != nil {
		if token := oauthManager.Token(); token != nil {
			config.Token = token.AccessToken
			config.RefreshToken = token.RefreshToken

			if !token.ExpiresAt.IsZero() {
				expiresAt := token.ExpiresAt
				config.TokenExpiresAt = &expiresAt
			}
		}
	}

	err = saveConfigStruct(config)
	if err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	_, _ = fmt.Fprintf(out, "Successfully logged in to %s\n", baseURL)

	if config.Username != "" {
		_, _ = fmt.Fprintf(out, "User: %s\n", config.Username)
	}

	return nil
}

// NewLogoutCommand creates the logout command
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Logout from the instance",
		Long:  "Remove stored tokens for the configured instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()
			config.Token = ""
			config.RefreshToken = ""
			config.TokenExpiresAt = nil
			config.LastRefreshed = nil

			err := saveConfigStruct(config)
			if err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			viper.Set("token", "")
			viper.Set("refresh_token", "")

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Successfully logged out")

			return nil
		},
	}
}

func promptLine(in *bufio.Reader, out io.Writer, label string) string {
	_, _ = fmt.Fprint(out, label)

	line, _ := in.ReadString('\n')

	return strings.TrimSpace(line)
}

// promptPassword reads a password from the terminal without echo. It fails
// when stdin is not a terminal.
func promptPassword(out io.Writer) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec // file descriptors fit in int

	if !term.IsTerminal(fd) {
		return "", constants.ErrNoCredentials
	}

	_, _ = fmt.Fprint(out, "Password: ")

	bytePassword, err := term.ReadPassword(fd)

	_, _ = fmt.Fprintln(out)

	if err != nil {
		return "", fmt.Errorf("%w: %w", constants.ErrPasswordReadFailed, err)
	}

	return string(bytePassword), nil
}
