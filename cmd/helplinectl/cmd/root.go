// Package cmd implements the helplinectl commands.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pilab-dev/helpline/cmd/helplinectl/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	AppName       = "helplinectl"
	defaultServer = "http://localhost:8080"
)

// NewRootCmd builds the command tree. Settings come from flags, then
// HELPLINE_SERVER / HELPLINE_TOKEN, then $HOME/.helplinectl/config.yaml.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:           AppName,
		Short:         "helplinectl administers a helpline router",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(v, cfgFile)
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "",
		fmt.Sprintf("config file (default is $HOME/.%s/config.yaml)", AppName))
	root.PersistentFlags().String("server", defaultServer, "helpline server URL")
	root.PersistentFlags().String("token", "", "admin token")
	_ = v.BindPFlag("server", root.PersistentFlags().Lookup("server"))
	_ = v.BindPFlag("token", root.PersistentFlags().Lookup("token"))

	newClient := func() *client.Client {
		return client.New(v.GetString("server"), v.GetString("token"))
	}
	root.AddCommand(newPodsCmd(newClient), newSessionCmd(newClient))
	return root
}

func initConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix("HELPLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		v.AddConfigPath(filepath.Join(home, "."+AppName))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}
