package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/clipforge/clipforge/internal/client"
)

type GlobalOptions struct {
	ConfigFilePath string
	ServerUrl      string
	Token          string
	Timeout        time.Duration
}

func DefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{
		ConfigFilePath: client.DefaultConfigPath(),
		Timeout:        30 * time.Second,
	}
}

func (o *GlobalOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ConfigFilePath, "config", "c", o.ConfigFilePath, "Path to the client config file.")
	fs.StringVarP(&o.ServerUrl, "server-url", "u", o.ServerUrl, "Address of the server. Overrides the config file.")
	fs.StringVar(&o.Token, "token", o.Token, "Bearer token. Overrides the config file.")
	fs.DurationVar(&o.Timeout, "request-timeout", o.Timeout, "Timeout for a single request.")
}

func (o *GlobalOptions) Complete(cmd *cobra.Command, args []string) error {
	return nil
}

func (o *GlobalOptions) Validate(args []string) error {
	if o.Timeout <= 0 {
		return fmt.Errorf("request-timeout must be positive")
	}
	return nil
}

// Client builds an API client from the config file, falling back to the
// defaults when the file does not exist. Flags win over both.
func (o *GlobalOptions) Client() (*client.Client, error) {
	cfg, err := client.ParseConfigFile(o.ConfigFilePath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		cfg = client.NewDefault()
	}
	if o.ServerUrl != "" {
		cfg.Service.Server = o.ServerUrl
	}
	if o.Token != "" {
		cfg.Service.Token = o.Token
	}
	return client.NewFromConfig(cfg)
}
