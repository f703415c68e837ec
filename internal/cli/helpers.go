package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/thoas/go-funk"
	"sigs.k8s.io/yaml"

	api "github.com/clipforge/clipforge/api/v1alpha1"
)

const (
	jsonFormat = "json"
	yamlFormat = "yaml"
)

var (
	legalOutputTypes = []string{jsonFormat, yamlFormat}
	legalStates      = []string{
		string(api.JobStateQueued),
		string(api.JobStateRunning),
		string(api.JobStateCompleted),
		string(api.JobStateFailed),
	}
)

func validateOutput(output string) error {
	if len(output) > 0 && !funk.ContainsString(legalOutputTypes, output) {
		return fmt.Errorf("output format must be one of %s", strings.Join(legalOutputTypes, ", "))
	}
	return nil
}

// printResource writes v as json or yaml, or calls table for the default format.
func printResource(w io.Writer, output string, v any, table func(*tabwriter.Writer)) error {
	switch output {
	case jsonFormat:
		marshalled, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshalling resource: %w", err)
		}
		fmt.Fprintf(w, "%s\n", string(marshalled))
	case yamlFormat:
		marshalled, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshalling resource: %w", err)
		}
		fmt.Fprintf(w, "%s\n", string(marshalled))
	default:
		tw := tabwriter.NewWriter(w, 0, 8, 1, '\t', 0)
		table(tw)
		return tw.Flush()
	}
	return nil
}

func printJobsTable(w *tabwriter.Writer, jobs ...api.Job) {
	fmt.Fprintln(w, "ID\tTITLE\tSTATE\tSTAGE\tCLIPS\tUPDATED")
	for _, j := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", j.Id, j.Title, j.State, stageOf(j), len(j.Clips), j.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
}

func printClipsTable(w *tabwriter.Writer, clips ...api.Clip) {
	fmt.Fprintln(w, "ID\tTITLE\tSTART\tEND\tDURATION")
	for _, c := range clips {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", c.Id, c.Title, c.StartOffsetSeconds, c.EndOffsetSeconds, c.DurationSeconds)
	}
}

func stageOf(j api.Job) string {
	if j.ErrorReason != nil {
		return *j.ErrorReason
	}
	if j.Stage != nil {
		return *j.Stage
	}
	return "-"
}
