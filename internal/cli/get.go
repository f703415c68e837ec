package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"

	api "github.com/clipforge/clipforge/api/v1alpha1"
	"github.com/clipforge/clipforge/internal/client"
)

type GetOptions struct {
	GlobalOptions

	Output string
	States []string
	Limit  int
}

func DefaultGetOptions() *GetOptions {
	return &GetOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdGet() *cobra.Command {
	o := DefaultGetOptions()
	cmd := &cobra.Command{
		Use:   "get [JOB_ID]",
		Short: "Display one or many jobs.",
		Args:  cobra.MaximumNArgs(1),
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

func (o *GetOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
	fs.StringSliceVar(&o.States, "state", o.States, fmt.Sprintf("Only list jobs in these states (%s).", strings.Join(legalStates, ", ")))
	fs.IntVar(&o.Limit, "limit", o.Limit, "Maximum number of jobs to list.")
}

func (o *GetOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if len(args) == 1 && (len(o.States) > 0 || o.Limit > 0) {
		return fmt.Errorf("--state and --limit only apply when listing jobs")
	}
	if bad := funk.SubtractString(o.States, legalStates); len(bad) > 0 {
		return fmt.Errorf("unknown state %q", bad[0])
	}
	if o.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}
	return validateOutput(o.Output)
}

func (o *GetOptions) Run(ctx context.Context, cmd *cobra.Command, args []string) error {
	c, err := o.Client()
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	if len(args) == 1 {
		job, err := c.GetJob(ctx, args[0])
		if err != nil {
			return fmt.Errorf("reading job/%s: %w", args[0], err)
		}
		return printResource(cmd.OutOrStdout(), o.Output, job, func(w *tabwriter.Writer) {
			printJobsTable(w, *job)
			if len(job.Clips) > 0 {
				fmt.Fprintln(w)
				printClipsTable(w, job.Clips...)
			}
		})
	}

	params := client.ListJobsParams{Limit: o.Limit}
	params.States = funk.Map(o.States, func(s string) api.JobState { return api.JobState(s) }).([]api.JobState)
	jobs, err := c.ListJobs(ctx, params)
	if err != nil {
		return fmt.Errorf("listing jobs: %w", err)
	}
	return printResource(cmd.OutOrStdout(), o.Output, jobs, func(w *tabwriter.Writer) {
		printJobsTable(w, jobs...)
	})
}
