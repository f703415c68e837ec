package cli

import (
	"github.com/spf13/cobra"
)

// NewCmdRoot returns the clipforge command with every subcommand attached.
func NewCmdRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clipforge [flags] [options]",
		Short: "clipforge turns long videos into short clips.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage: true,
	}
	cmd.AddCommand(NewCmdConfigure())
	cmd.AddCommand(NewCmdSubmit())
	cmd.AddCommand(NewCmdUpload())
	cmd.AddCommand(NewCmdGet())
	cmd.AddCommand(NewCmdWatch())
	cmd.AddCommand(NewCmdRenameClip())
	cmd.AddCommand(NewCmdDeleteClip())
	cmd.AddCommand(NewCmdDelete())
	cmd.AddCommand(NewCmdCancel())
	cmd.AddCommand(NewCmdVersion())
	return cmd
}
