package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/CZERTAINLY/pbsctl/internal/log"

	"github.com/google/uuid"
)

var (
	ErrTimeout   = errors.New("command timed out")
	ErrEmptyPath = errors.New("command path is empty")
)

type Command struct {
	Path string
	Args []string
	// Env is appended to the environment of the current process
	Env     []string
	Timeout time.Duration
}

type Result struct {
	Path     string
	Args     []string
	Started  time.Time
	Stopped  time.Time
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

func (r Result) Elapsed() time.Duration {
	return r.Stopped.Sub(r.Started)
}

// Runner is a thin wrapper around os/exec, which runs a command to its
// completion and captures both outputs.
//
// A command exiting with non-zero code is not an error, the code is
// returned in Result.ExitCode. Errors are returned when the command can't
// be started, times out or the context is canceled.
type Runner struct{}

func New() Runner {
	return Runner{}
}

func (Runner) Run(ctx context.Context, proto Command) (Result, error) {
	if proto.Path == "" {
		return Result{}, ErrEmptyPath
	}

	ctx = log.ContextAttrs(ctx,
		slog.String("invocation", uuid.NewString()),
		slog.String("command", proto.Path),
	)

	result := Result{
		Path:     proto.Path,
		Args:     append([]string(nil), proto.Args...),
		ExitCode: -1,
	}

	runCtx := ctx
	if proto.Timeout == 0 {
		slog.WarnContext(ctx, "command has no timeout")
	} else {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, proto.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, result.Path, result.Args...)
	if len(proto.Env) > 0 {
		cmd.Env = append(os.Environ(), proto.Env...)
	}
	// do not wait forever on pipes inherited by grandchildren
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.DebugContext(ctx, "command starting", "args", result.Args)
	result.Started = time.Now().UTC()
	err := cmd.Run()
	result.Stopped = time.Now().UTC()
	result.Stdout = stdout.Bytes()
	result.Stderr = stderr.Bytes()
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case err == nil:
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		slog.DebugContext(ctx, "command timed out", "timeout", proto.Timeout.String())
		return result, fmt.Errorf("%s: %w after %s: %w", proto.Path, ErrTimeout, proto.Timeout, context.DeadlineExceeded)
	case ctx.Err() != nil:
		return result, fmt.Errorf("%s: %w", proto.Path, ctx.Err())
	default:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			slog.DebugContext(ctx, "command failed to start", "error", err)
			return result, fmt.Errorf("running %s: %w", proto.Path, err)
		}
	}

	slog.DebugContext(ctx, "command finished",
		"exit_code", result.ExitCode,
		"elapsed", result.Elapsed().String(),
		"stdout_bytes", len(result.Stdout),
		"stderr_bytes", len(result.Stderr),
	)
	return result, nil
}

// Failed reports a non-zero exit code
func (r Result) Failed() bool {
	return r.ExitCode != 0
}
