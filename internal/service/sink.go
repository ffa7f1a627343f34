package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// Sink stores a single serialized snapshot
type Sink interface {
	Write(ctx context.Context, raw []byte) error
}

type SinkCloser interface {
	Sink
	Close() error
}

// WriteSink writes snapshots to an io.Writer, one per line
type WriteSink struct {
	w io.Writer
}

func NewWriteSink(w io.Writer) WriteSink {
	return WriteSink{w: w}
}

func (s WriteSink) Write(_ context.Context, raw []byte) error {
	w := s.w
	if w == nil {
		w = os.Stdout
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

const dirSinkLayout = "2006-01-02-15-04-05.000"

// DirSink stores every snapshot into its own timestamped file of a
// directory. Paths outside of the directory can't be reached.
type DirSink struct {
	root *os.Root
	now  func() time.Time
}

func NewDirSink(path string) (*DirSink, error) {
	root, err := os.OpenRoot(path)
	if err != nil {
		return nil, err
	}
	return &DirSink{root: root, now: time.Now}, nil
}

func (s *DirSink) Write(ctx context.Context, raw []byte) error {
	if s.root == nil {
		return errors.New("sink already closed")
	}

	path := "pbs-snapshot-" + s.now().UTC().Format(dirSinkLayout) + ".json"
	f, err := s.root.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}
	_, err = f.Write(raw)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("saving snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing snapshot file: %w", err)
	}
	slog.InfoContext(ctx, "snapshot saved", "dir", s.root.Name(), "path", path)
	return nil
}

func (s *DirSink) Close() error {
	if s.root == nil {
		return errors.New("sink already closed")
	}
	err := s.root.Close()
	s.root = nil
	return err
}
