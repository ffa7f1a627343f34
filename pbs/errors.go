package pbs

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidSubmission = errors.New("invalid submission")

// CommandError is returned when a scheduler command exits with a non-zero
// code and the output can't be used.
type CommandError struct {
	Command  string
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s %s: exit code %d", e.Command, strings.Join(e.Args, " "), e.ExitCode)
	}
	return fmt.Sprintf("%s %s: exit code %d: %s", e.Command, strings.Join(e.Args, " "), e.ExitCode, msg)
}
