// Package pbs runs PBS/Torque command line tools and turns their output
// into model records.
package pbs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/CZERTAINLY/pbsctl/internal/parallel"
	"github.com/CZERTAINLY/pbsctl/pbs/model"
	"github.com/CZERTAINLY/pbsctl/pbs/parser"
	"github.com/CZERTAINLY/pbsctl/pbs/runner"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultTimeout    = 60 * time.Second
	DeleteParallelism = 4
)

// Binaries are paths of the scheduler commands. Bare names are resolved
// through PATH.
type Binaries struct {
	QNodes   string `json:"qnodes" yaml:"qnodes"`
	QStat    string `json:"qstat" yaml:"qstat"`
	QSub     string `json:"qsub" yaml:"qsub"`
	QDel     string `json:"qdel" yaml:"qdel"`
	TraceJob string `json:"tracejob" yaml:"tracejob"`
}

func DefaultBinaries() Binaries {
	return Binaries{
		QNodes:   "qnodes",
		QStat:    "qstat",
		QSub:     "qsub",
		QDel:     "qdel",
		TraceJob: "tracejob",
	}
}

// withDefaults fills empty paths from DefaultBinaries
func (b Binaries) withDefaults() Binaries {
	d := DefaultBinaries()
	for _, p := range []struct {
		dst *string
		def string
	}{
		{&b.QNodes, d.QNodes},
		{&b.QStat, d.QStat},
		{&b.QSub, d.QSub},
		{&b.QDel, d.QDel},
		{&b.TraceJob, d.TraceJob},
	} {
		if *p.dst == "" {
			*p.dst = p.def
		}
	}
	return b
}

// Executor runs a single command. runner.Runner is the default one.
type Executor interface {
	Run(ctx context.Context, cmd runner.Command) (runner.Result, error)
}

type Option func(*Client)

func WithBinaries(b Binaries) Option {
	return func(c *Client) {
		c.binaries = b.withDefaults()
	}
}

// WithTimeout sets the timeout of every command. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithEnv adds KEY=VALUE pairs to the environment of every command
func WithEnv(env ...string) Option {
	return func(c *Client) {
		c.env = append(c.env, env...)
	}
}

func WithExecutor(e Executor) Option {
	return func(c *Client) {
		c.exec = e
	}
}

// Client invokes the scheduler commands. It holds no state between calls
// and is safe for concurrent use.
type Client struct {
	binaries Binaries
	timeout  time.Duration
	env      []string
	exec     Executor
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		binaries: DefaultBinaries(),
		timeout:  DefaultTimeout,
		exec:     runner.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Binaries() Binaries {
	return c.binaries
}

// Nodes runs qnodes -x [name]
func (c *Client) Nodes(ctx context.Context, name string) ([]model.Node, error) {
	out, err := c.query(ctx, c.binaries.QNodes, withName([]string{"-x"}, name))
	if err != nil {
		return nil, err
	}
	nodes, err := parser.ParseNodes(ctx, out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", commandName(c.binaries.QNodes), err)
	}
	return nodes, nil
}

// Queues runs qstat -f -Q [name]
func (c *Client) Queues(ctx context.Context, name string) ([]model.Queue, error) {
	out, err := c.query(ctx, c.binaries.QStat, withName([]string{"-f", "-Q"}, name))
	if err != nil {
		return nil, err
	}
	queues, err := parser.ParseQueues(ctx, out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", commandName(c.binaries.QStat), err)
	}
	return queues, nil
}

// Jobs runs qstat -f [name]. The name is either a job id or a queue name,
// blank name lists all jobs.
func (c *Client) Jobs(ctx context.Context, name string) ([]model.Job, error) {
	return c.jobs(ctx, withName([]string{"-f"}, name))
}

// ArrayJobs runs qstat -f -t [name], which expands job arrays into
// individual sub jobs.
func (c *Client) ArrayJobs(ctx context.Context, name string) ([]model.Job, error) {
	return c.jobs(ctx, withName([]string{"-f", "-t"}, name))
}

func (c *Client) jobs(ctx context.Context, args []string) ([]model.Job, error) {
	out, err := c.query(ctx, c.binaries.QStat, args)
	if err != nil {
		return nil, err
	}
	jobs, err := parser.ParseJobs(ctx, out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", commandName(c.binaries.QStat), err)
	}
	return jobs, nil
}

// Delete runs qdel jobID
func (c *Client) Delete(ctx context.Context, jobID string) error {
	if strings.TrimSpace(jobID) == "" {
		return fmt.Errorf("%s: empty job id", commandName(c.binaries.QDel))
	}
	res, err := c.run(ctx, c.binaries.QDel, []string{jobID})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return commandError(res)
	}
	slog.InfoContext(ctx, "job deleted", "job", jobID)
	return nil
}

// DeleteAll runs qdel for every job, at most DeleteParallelism at once.
// All failures are returned joined.
func (c *Client) DeleteAll(ctx context.Context, jobIDs ...string) error {
	var errs []error
	for r := range parallel.Map(ctx, DeleteParallelism, jobIDs, func(ctx context.Context, id string) (struct{}, error) {
		return struct{}{}, c.Delete(ctx, id)
	}) {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}

// Trace runs tracejob -n days jobID and returns its raw output. A non-zero
// exit code is only logged, tracejob reports missing logs this way.
func (c *Client) Trace(ctx context.Context, jobID string, days int) (model.CommandOutput, error) {
	res, err := c.run(ctx, c.binaries.TraceJob, []string{"-n", strconv.Itoa(days), jobID})
	if err != nil {
		return model.CommandOutput{}, err
	}
	if res.ExitCode != 0 {
		slog.InfoContext(ctx, "command exited with non-zero code", "command", res.Path, "exit_code", res.ExitCode)
	}
	return model.CommandOutput{
		Output: string(res.Stdout),
		Error:  string(res.Stderr),
	}, nil
}

// TraceEvents is Trace with parsed output
func (c *Client) TraceEvents(ctx context.Context, jobID string, days int) ([]model.TraceEvent, error) {
	out, err := c.Trace(ctx, jobID, days)
	if err != nil {
		return nil, err
	}
	events, err := parser.ParseTrace(ctx, out.Output)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", commandName(c.binaries.TraceJob), err)
	}
	return events, nil
}

// Snapshot lists all nodes, queues and jobs concurrently. The first
// failure cancels the remaining commands.
func (c *Client) Snapshot(ctx context.Context) (model.Snapshot, error) {
	snap := model.Snapshot{Taken: time.Now().UTC()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.Nodes, err = c.Nodes(gctx, "")
		return err
	})
	g.Go(func() error {
		var err error
		snap.Queues, err = c.Queues(gctx, "")
		return err
	})
	g.Go(func() error {
		var err error
		snap.Jobs, err = c.Jobs(gctx, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Snapshot{}, err
	}
	return snap, nil
}

// query runs a listing command. The exit code is logged and the output
// returned unless the command failed without printing anything.
func (c *Client) query(ctx context.Context, path string, args []string) (string, error) {
	res, err := c.run(ctx, path, args)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		slog.InfoContext(ctx, "command exited with non-zero code", "command", res.Path, "exit_code", res.ExitCode)
		if strings.TrimSpace(string(res.Stdout)) == "" {
			return "", commandError(res)
		}
	}
	return string(res.Stdout), nil
}

func (c *Client) run(ctx context.Context, path string, args []string) (runner.Result, error) {
	res, err := c.exec.Run(ctx, runner.Command{
		Path:    path,
		Args:    args,
		Env:     c.env,
		Timeout: c.timeout,
	})
	if err != nil {
		return res, fmt.Errorf("%s: %w", commandName(path), err)
	}
	return res, nil
}

func commandError(res runner.Result) *CommandError {
	return &CommandError{
		Command:  commandName(res.Path),
		Args:     res.Args,
		ExitCode: res.ExitCode,
		Stderr:   string(res.Stderr),
	}
}

func commandName(path string) string {
	return filepath.Base(path)
}

func withName(args []string, name string) []string {
	if strings.TrimSpace(name) == "" {
		return args
	}
	return append(args, name)
}
