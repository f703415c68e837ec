package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/clipforge/clipforge/internal/client"
)

type ClipOptions struct {
	GlobalOptions

	Output string
}

func DefaultClipOptions() *ClipOptions {
	return &ClipOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdRenameClip() *cobra.Command {
	o := DefaultClipOptions()
	cmd := &cobra.Command{
		Use:   "rename-clip JOB_ID CLIP_ID TITLE",
		Short: "Rename a clip of a completed job.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Validate(args); err != nil {
				return err
			}
			if strings.TrimSpace(args[2]) == "" {
				return fmt.Errorf("title must not be empty")
			}
			return o.edit(cmd.Context(), cmd, args[0], func(ctx context.Context, v *client.JobView) error {
				return v.RenameClip(ctx, args[1], args[2])
			})
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func NewCmdDeleteClip() *cobra.Command {
	o := DefaultClipOptions()
	cmd := &cobra.Command{
		Use:   "delete-clip JOB_ID CLIP_ID",
		Short: "Remove a clip from a completed job.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.edit(cmd.Context(), cmd, args[0], func(ctx context.Context, v *client.JobView) error {
				return v.DeleteClip(ctx, args[1])
			})
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *ClipOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVarP(&o.Output, "output", "o", o.Output, "Output format. One of: (json, yaml).")
}

func (o *ClipOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	return validateOutput(o.Output)
}

func (o *ClipOptions) edit(ctx context.Context, cmd *cobra.Command, jobID string, fn func(context.Context, *client.JobView) error) error {
	c, err := o.Client()
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	job, err := c.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("reading job/%s: %w", jobID, err)
	}
	view := client.NewJobView(c, *job)
	if err := fn(ctx, view); err != nil {
		return fmt.Errorf("editing job/%s: %w", jobID, err)
	}

	updated := view.Job()
	return printResource(cmd.OutOrStdout(), o.Output, updated, func(w *tabwriter.Writer) {
		printClipsTable(w, updated.Clips...)
	})
}
