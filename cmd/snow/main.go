package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fivetwenty-io/snow/cmd/snow/commands"
	"github.com/fivetwenty-io/snow/internal/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Set by the release build with -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "snow",
		Short: "ServiceNow Table API CLI",
		Long: `A command-line interface for the ServiceNow Table API.

Query and page through table records, create, update and delete them,
download attachments, resolve reference links and read CMDB class metadata.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.snow/config.yml)")
	flags.StringP("instance", "i", "", "instance name or URL")
	flags.StringP("username", "u", "", "username for basic authentication")
	flags.StringP("password", "p", "", "password for basic authentication")
	flags.StringP("token", "t", "", "bearer access token")
	flags.StringP("output", "o", constants.FormatTable, "output format (table, json, yaml)")
	flags.BoolP("verbose", "v", false, "verbose output")

	for _, name := range []string{"config", "instance", "username", "password", "token", "output", "verbose"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		commands.NewVersionCommand(version, commit, date),
		commands.NewLoginCommand(),
		commands.NewLogoutCommand(),
		commands.NewConfigCommand(),
		commands.NewTableCommand(),
		commands.NewAttachmentsCommand(),
		commands.NewMetaCommand(),
		commands.NewLinkCommand(),
	)

	return root
}

// loadConfig reads the file named by --config, or ~/.snow/config.yml, and
// SNOW_ prefixed environment variables. A missing file is not an error.
func loadConfig() {
	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
	} else if home, err := os.UserHomeDir(); err == nil {
		dir := filepath.Join(home, constants.ConfigDirName)
		if err := os.MkdirAll(dir, constants.ConfigDirPerm); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating config directory: %v\n", err)
		}

		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yml")
	}

	viper.SetEnvPrefix(constants.EnvPrefix)
	viper.AutomaticEnv()

	if viper.ReadInConfig() == nil && viper.GetBool("verbose") {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	cobra.OnInitialize(loadConfig)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
