package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	api "github.com/clipforge/clipforge/api/v1alpha1"
)

type SubmitOptions struct {
	GlobalOptions

	Title    string
	Duration int
	Upload   bool
	Output   string
}

func DefaultSubmitOptions() *SubmitOptions {
	return &SubmitOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdSubmit() *cobra.Command {
	o := DefaultSubmitOptions()
	cmd := &cobra.Command{
		Use:   "submit URL|HANDLE",
		Short: "Submit a video for processing.",
		Long:  "Submit a remote video URL, or with --uploaded an s3:// handle returned by upload.",
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

func (o *SubmitOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVarP(&o.Title, "title", "t", o.Title, "Title of the job.")
	fs.IntVar(&o.Duration, "duration", o.Duration, "Duration of the video in seconds, when known.")
	fs.BoolVar(&o.Upload, "uploaded", o.Upload, "The argument is an upload handle rather than a URL.")
	fs.StringVarP(&o.Output, "output", "o", o.Output, "Output format. One of: (json, yaml).")
}

func (o *SubmitOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if o.Duration < 0 {
		return fmt.Errorf("duration must not be negative")
	}
	return validateOutput(o.Output)
}

func (o *SubmitOptions) Run(ctx context.Context, cmd *cobra.Command, args []string) error {
	c, err := o.Client()
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	body := api.JobCreate{SourceKind: api.SourceKindRemoteUrl, SourceRef: args[0]}
	if o.Upload {
		body.SourceKind = api.SourceKindUploadedFile
	}
	if o.Title != "" {
		body.Title = &o.Title
	}
	if o.Duration > 0 {
		body.DurationSeconds = &o.Duration
	}

	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()
	job, err := c.CreateJob(ctx, body)
	if err != nil {
		return fmt.Errorf("submitting job: %w", err)
	}
	return printResource(cmd.OutOrStdout(), o.Output, job, func(w *tabwriter.Writer) {
		printJobsTable(w, *job)
	})
}
