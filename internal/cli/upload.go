package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type UploadOptions struct {
	GlobalOptions

	ContentType string
	Output      string
}

func DefaultUploadOptions() *UploadOptions {
	return &UploadOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdUpload() *cobra.Command {
	o := DefaultUploadOptions()
	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a local video and print its handle.",
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

func (o *UploadOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVar(&o.ContentType, "content-type", o.ContentType, "Content type of the file. Guessed from the extension when empty.")
	fs.StringVarP(&o.Output, "output", "o", o.Output, "Output format. One of: (json, yaml).")
}

func (o *UploadOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	if o.ContentType == "" {
		o.ContentType = mime.TypeByExtension(filepath.Ext(args[0]))
	}
	return nil
}

func (o *UploadOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if o.ContentType == "" {
		return fmt.Errorf("cannot guess the content type of %s, use --content-type", args[0])
	}
	return validateOutput(o.Output)
}

func (o *UploadOptions) Run(ctx context.Context, cmd *cobra.Command, args []string) error {
	c, err := o.Client()
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	upload, err := c.Upload(ctx, filepath.Base(args[0]), o.ContentType, f)
	if err != nil {
		return fmt.Errorf("uploading %s: %w", args[0], err)
	}
	return printResource(cmd.OutOrStdout(), o.Output, upload, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "HANDLE\tSIZE\tTYPE")
		fmt.Fprintf(w, "%s\t%d\t%s\n", upload.Handle, upload.Size, upload.ContentType)
	})
}
