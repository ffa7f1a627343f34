package pbs

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// ArrayRange is an inclusive range of job array indexes
type ArrayRange struct {
	Begin int `json:"begin" yaml:"begin"`
	End   int `json:"end" yaml:"end"`
}

func (r ArrayRange) String() string {
	return strconv.Itoa(r.Begin) + "-" + strconv.Itoa(r.End)
}

// ParseArrayRange parses "begin-end"
func ParseArrayRange(s string) (ArrayRange, error) {
	a, b, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return ArrayRange{}, fmt.Errorf("%w: array range %q: expected begin-end", ErrInvalidSubmission, s)
	}
	begin, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return ArrayRange{}, fmt.Errorf("%w: array range %q: %w", ErrInvalidSubmission, s, err)
	}
	end, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return ArrayRange{}, fmt.Errorf("%w: array range %q: %w", ErrInvalidSubmission, s, err)
	}
	r := ArrayRange{Begin: begin, End: end}
	return r, r.validate()
}

func (r ArrayRange) validate() error {
	if r.Begin < 0 || r.Begin > r.End {
		return fmt.Errorf("%w: array range %s", ErrInvalidSubmission, r)
	}
	return nil
}

// Submission describes a job passed to qsub. ArrayIDs and Range together
// form the -t argument, Resources the -l one.
type Submission struct {
	Script    string
	ArrayIDs  []int
	Range     *ArrayRange
	Resources []string
}

func (s Submission) args() ([]string, error) {
	if strings.TrimSpace(s.Script) == "" {
		return nil, fmt.Errorf("%w: empty script", ErrInvalidSubmission)
	}

	var args []string
	var array []string
	for _, id := range s.ArrayIDs {
		if id < 0 {
			return nil, fmt.Errorf("%w: negative array id %d", ErrInvalidSubmission, id)
		}
		array = append(array, strconv.Itoa(id))
	}
	if s.Range != nil {
		if err := s.Range.validate(); err != nil {
			return nil, err
		}
		array = append(array, s.Range.String())
	}
	if len(array) > 0 {
		args = append(args, "-t", strings.Join(array, ","))
	}

	var resources []string
	for _, r := range s.Resources {
		if r = strings.TrimSpace(r); r != "" {
			resources = append(resources, r)
		}
	}
	if len(resources) > 0 {
		args = append(args, "-l", strings.Join(resources, ","))
	}
	return append(args, s.Script), nil
}

// Submit runs qsub and returns the id of the new job
func (c *Client) Submit(ctx context.Context, sub Submission) (string, error) {
	args, err := sub.args()
	if err != nil {
		return "", fmt.Errorf("%s: %w", commandName(c.binaries.QSub), err)
	}
	res, err := c.run(ctx, c.binaries.QSub, args)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", commandError(res)
	}
	id := strings.TrimSpace(string(res.Stdout))
	slog.InfoContext(ctx, "job submitted", "job", id, "script", sub.Script)
	return id, nil
}
