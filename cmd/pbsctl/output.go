package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/CZERTAINLY/pbsctl/pbs/model"

	"gopkg.in/yaml.v3"
)

const (
	outputJSON = "json"
	outputYAML = "yaml"
	outputText = "text"
)

func checkOutput(format string) error {
	switch format {
	case outputJSON, outputYAML, outputText:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q: use json, yaml or text", format)
	}
}

// render writes v in the format selected by --output. The text format is
// written by text.
func render(w io.Writer, v any, text func(io.Writer) error) error {
	switch flagOutput {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		return printYAML(w, v)
	default:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		if err := text(tw); err != nil {
			return err
		}
		return tw.Flush()
	}
}

// renderRaw writes command output unchanged in the text format
func renderRaw(w io.Writer, out model.CommandOutput) error {
	if flagOutput == outputText || flagOutput == "" {
		_, err := io.WriteString(w, out.Output)
		return err
	}
	return render(w, out, nil)
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func nodesText(nodes []model.Node) func(io.Writer) error {
	return func(w io.Writer) error {
		fmt.Fprintln(w, "NAME\tSTATE\tNP\tJOBS\tPROPERTIES")
		for _, n := range nodes {
			states := make([]string, 0, len(n.States))
			for _, s := range n.States {
				states = append(states, s.String())
			}
			if len(states) == 0 {
				states = append(states, n.State.String())
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
				n.Name,
				strings.Join(states, ","),
				n.NP,
				len(n.Jobs),
				dash(strings.Join(n.Properties, ",")),
			)
		}
		return nil
	}
}

func queuesText(queues []model.Queue) func(io.Writer) error {
	return func(w io.Writer) error {
		fmt.Fprintln(w, "NAME\tTYPE\tENABLED\tSTARTED\tJOBS\tSTATE COUNT")
		for _, q := range queues {
			fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%s\t%s\n",
				q.Name,
				dash(q.QueueType),
				q.Enabled,
				q.Started,
				optional(q.TotalJobs),
				dash(q.StateCount),
			)
		}
		return nil
	}
}

func jobsText(jobs []model.Job) func(io.Writer) error {
	return func(w io.Writer) error {
		fmt.Fprintln(w, "ID\tNAME\tOWNER\tSTATE\tQUEUE\tWALLTIME")
		for _, j := range jobs {
			walltime := "-"
			if d, ok := j.Walltime(); ok {
				walltime = model.FormatWalltime(d)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				j.ID,
				dash(j.Name),
				dash(j.Owner),
				j.StateName(),
				dash(j.Queue),
				walltime,
			)
		}
		return nil
	}
}

func traceText(events []model.TraceEvent) func(io.Writer) error {
	return func(w io.Writer) error {
		fmt.Fprintln(w, "TIME\tSOURCE\tMESSAGE")
		for _, e := range events {
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.Time.Format(time.DateTime), e.Source, e.Message)
		}
		return nil
	}
}

func snapshotText(snap model.Snapshot) func(io.Writer) error {
	return func(w io.Writer) error {
		fmt.Fprintf(w, "taken: %s\n\n", snap.Taken.Format(time.RFC3339))
		for _, section := range []func(io.Writer) error{
			nodesText(snap.Nodes),
			queuesText(snap.Queues),
			jobsText(snap.Jobs),
		} {
			if err := section(w); err != nil {
				return err
			}
			fmt.Fprintln(w)
		}
		return nil
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// optional formats values where -1 means not reported
func optional(n int) string {
	if n < 0 {
		return "-"
	}
	return strconv.Itoa(n)
}
