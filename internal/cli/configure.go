package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clipforge/clipforge/internal/client"
)

func NewCmdConfigure() *cobra.Command {
	o := DefaultGlobalOptions()
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Write the client config file from --server-url and --token.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := client.NewDefault()
			if o.ServerUrl != "" {
				cfg.Service.Server = o.ServerUrl
			}
			cfg.Service.Token = o.Token
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Persist(o.ConfigFilePath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", o.ConfigFilePath)
			return nil
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}
