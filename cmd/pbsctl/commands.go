package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/CZERTAINLY/pbsctl/internal/exporter"
	"github.com/CZERTAINLY/pbsctl/internal/log"
	"github.com/CZERTAINLY/pbsctl/internal/service"
	"github.com/CZERTAINLY/pbsctl/pbs"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func nodesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nodes [name]",
		Short: "list compute nodes (qnodes -x)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodes, err := newClient().Nodes(commandContext(cmd), firstArg(args))
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), nodes, nodesText(nodes))
		},
	}
}

func queuesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queues [name]",
		Short: "list queues (qstat -f -Q)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queues, err := newClient().Queues(commandContext(cmd), firstArg(args))
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), queues, queuesText(queues))
		},
	}
}

func jobsCmd() *cobra.Command {
	var array bool
	cmd := &cobra.Command{
		Use:   "jobs [job id | queue]",
		Short: "list jobs (qstat -f)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			client := newClient()
			list := client.Jobs
			if array {
				list = client.ArrayJobs
			}
			jobs, err := list(ctx, firstArg(args))
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), jobs, jobsText(jobs))
		},
	}
	cmd.Flags().BoolVarP(&array, "array", "t", false, "expand job arrays into sub jobs (qstat -t)")
	return cmd
}

func submitCmd() *cobra.Command {
	var (
		arrayIDs  []int
		arrayRng  string
		resources []string
	)
	cmd := &cobra.Command{
		Use:   "submit script",
		Short: "submit a job script (qsub)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub := pbs.Submission{
				Script:    args[0],
				ArrayIDs:  arrayIDs,
				Resources: resources,
			}
			if arrayRng != "" {
				r, err := pbs.ParseArrayRange(arrayRng)
				if err != nil {
					return err
				}
				sub.Range = &r
			}
			id, err := newClient().Submit(commandContext(cmd), sub)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), map[string]string{"id": id}, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, id)
				return err
			})
		},
	}
	cmd.Flags().IntSliceVar(&arrayIDs, "array-ids", nil, "job array indexes, e.g. 1,3,7")
	cmd.Flags().StringVar(&arrayRng, "range", "", "job array range begin-end, e.g. 5-20")
	cmd.Flags().StringArrayVarP(&resources, "resource", "l", nil, "resource request, e.g. walltime=01:00:00, may be repeated")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete job-id...",
		Short: "delete jobs (qdel)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient().DeleteAll(commandContext(cmd), args...)
		},
	}
}

func traceCmd() *cobra.Command {
	var (
		days int
		raw  bool
	)
	cmd := &cobra.Command{
		Use:   "trace job-id",
		Short: "show the history of a job (tracejob)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			client := newClient()
			if raw {
				out, err := client.Trace(ctx, args[0], days)
				if err != nil {
					return err
				}
				if out.Error != "" {
					fmt.Fprint(cmd.ErrOrStderr(), out.Error)
				}
				return renderRaw(cmd.OutOrStdout(), out)
			}
			events, err := client.TraceEvents(ctx, args[0], days)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), events, traceText(events))
		},
	}
	cmd.Flags().IntVarP(&days, "days", "n", 1, "number of days in the past to look for the job")
	cmd.Flags().BoolVar(&raw, "raw", false, "print tracejob output as is")
	return cmd
}

func snapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "list nodes, queues and jobs at once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := newClient().Snapshot(commandContext(cmd))
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), snap, snapshotText(snap))
		},
	}
}

func watchCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "store snapshots periodically according to the watch configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)
			poller, err := service.PollerFromConfig(ctx, cfg.Watch, newClient())
			if err != nil {
				return err
			}
			if once {
				return poller.RunOnce(ctx)
			}
			return poller.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "take a single snapshot and exit")
	return cmd
}

func exporterCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "exporter",
		Short: "serve Prometheus metrics of the scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)
			if listen == "" {
				listen = cfg.Exporter.Listen
			}
			return serveMetrics(ctx, listen, exporter.NewCollector(newClient(), cfg.ScrapeTimeout()))
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on, default from configuration")
	return cmd
}

func serveMetrics(ctx context.Context, listen string, collector *exporter.Collector) error {
	handler, err := exporter.Handler(collector)
	if err != nil {
		return fmt.Errorf("registering collector: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pbsctl exporter: metrics are at /metrics\n")
	})
	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.InfoContext(ctx, "serving metrics", "listen", listen)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func commandContext(cmd *cobra.Command) context.Context {
	return log.ContextAttrs(cmd.Context(), slog.Group("pbsctl",
		slog.String("cmd", cmd.Name()),
		slog.Int("pid", os.Getpid()),
	))
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return strings.TrimSpace(args[0])
}
