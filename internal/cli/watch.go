package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	api "github.com/clipforge/clipforge/api/v1alpha1"
	"github.com/clipforge/clipforge/internal/client"
)

type WatchOptions struct {
	GlobalOptions

	Interval time.Duration
	Stream   bool
}

func DefaultWatchOptions() *WatchOptions {
	return &WatchOptions{
		GlobalOptions: DefaultGlobalOptions(),
		Interval:      client.DefaultPollInterval,
	}
}

func NewCmdWatch() *cobra.Command {
	o := DefaultWatchOptions()
	cmd := &cobra.Command{
		Use:   "watch JOB_ID",
		Short: "Follow a job until it completes or fails.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), cmd, args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *WatchOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.DurationVar(&o.Interval, "interval", o.Interval, "Polling interval.")
	fs.BoolVar(&o.Stream, "stream", o.Stream, "Use the websocket stream instead of polling.")
}

func (o *WatchOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if o.Interval < time.Second && !o.Stream {
		return fmt.Errorf("interval must be at least 1s")
	}
	return nil
}

func (o *WatchOptions) Run(ctx context.Context, cmd *cobra.Command, args []string) error {
	c, err := o.Client()
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	out := cmd.OutOrStdout()
	onUpdate := func(j *api.Job) {
		fmt.Fprintf(out, "%s\t%s\t%s\n", j.UpdatedAt.Format(time.TimeOnly), j.State, stageOf(*j))
	}

	var job *api.Job
	if o.Stream {
		job, err = c.Watch(ctx, args[0], onUpdate)
	} else {
		job, err = c.WaitForTerminal(ctx, args[0], o.Interval, onUpdate)
	}
	if err != nil {
		return fmt.Errorf("watching job/%s: %w", args[0], err)
	}
	if job != nil && job.State == api.JobStateFailed {
		return fmt.Errorf("job/%s failed: %s", job.Id, stageOf(*job))
	}
	return nil
}
