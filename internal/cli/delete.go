package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func NewCmdDelete() *cobra.Command {
	o := DefaultGlobalOptions()
	cmd := &cobra.Command{
		Use:   "delete JOB_ID...",
		Short: "Delete jobs.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Validate(args); err != nil {
				return err
			}
			return runDelete(cmd.Context(), cmd, &o, args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func runDelete(ctx context.Context, cmd *cobra.Command, o *GlobalOptions, ids []string) error {
	c, err := o.Client()
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}
	for _, id := range ids {
		rctx, cancel := context.WithTimeout(ctx, o.Timeout)
		err := c.DeleteJob(rctx, id)
		cancel()
		if err != nil {
			return fmt.Errorf("deleting job/%s: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "job/%s deleted\n", id)
	}
	return nil
}

func NewCmdCancel() *cobra.Command {
	o := DefaultGlobalOptions()
	cmd := &cobra.Command{
		Use:   "cancel JOB_ID",
		Short: "Request cancellation of a queued or running job.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Validate(args); err != nil {
				return err
			}
			c, err := o.Client()
			if err != nil {
				return fmt.Errorf("creating client: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), o.Timeout)
			defer cancel()
			job, err := c.CancelJob(ctx, args[0])
			if err != nil {
				return fmt.Errorf("cancelling job/%s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job/%s cancellation requested (state %s)\n", job.Id, job.State)
			return nil
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}
