package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/CZERTAINLY/pbsctl/internal/config"
	"github.com/CZERTAINLY/pbsctl/pbs/model"

	gocron "github.com/go-co-op/gocron/v2"
)

// Snapshotter takes a snapshot of the scheduler, pbs.Client is one
type Snapshotter interface {
	Snapshot(ctx context.Context) (model.Snapshot, error)
}

type Poller struct {
	source   Snapshotter
	schedule config.Schedule
	sinks    []Sink
	trigger  chan struct{}
}

func NewPoller(source Snapshotter, schedule config.Schedule, sinks ...Sink) *Poller {
	return &Poller{
		source:   source,
		schedule: schedule,
		sinks:    sinks,
		trigger:  make(chan struct{}, 1),
	}
}

// PollerFromConfig creates a poller with sinks of the watch configuration.
// Snapshots go to stdout when no directory is configured.
func PollerFromConfig(ctx context.Context, cfg config.Watch, source Snapshotter) (*Poller, error) {
	schedule, err := config.ParseSchedule(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parsing watch.schedule: %w", err)
	}

	var sinks []Sink
	if cfg.Dir != "" {
		s, err := NewDirSink(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("initializing directory sink: %w", err)
		}
		sinks = append(sinks, s)
	}
	if cfg.Dir == "" || cfg.Stdout {
		sinks = append(sinks, NewWriteSink(os.Stdout))
	}
	slog.DebugContext(ctx, "poller configured", "schedule", schedule.String(), "sinks", len(sinks))
	return NewPoller(source, schedule, sinks...), nil
}

// Trigger asks for a poll. It never blocks, a poll requested while another
// one is pending is dropped.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// RunOnce takes a single snapshot and writes it to all sinks
func (p *Poller) RunOnce(ctx context.Context) error {
	snap, err := p.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("taking snapshot: %w", err)
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	var errs []error
	for _, s := range p.sinks {
		if err := s.Write(ctx, raw); err != nil {
			errs = append(errs, err)
		}
	}
	slog.DebugContext(ctx, "snapshot taken",
		"nodes", len(snap.Nodes),
		"queues", len(snap.Queues),
		"jobs", len(snap.Jobs),
	)
	return errors.Join(errs...)
}

// Run polls on schedule until ctx is canceled. Sinks are closed on return.
func (p *Poller) Run(ctx context.Context) error {
	defer p.closeSinks(ctx)

	scheduler, err := p.newScheduler(ctx)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			slog.ErrorContext(ctx, "shutting down gocron has failed", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.trigger:
			if err := p.RunOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.ErrorContext(ctx, "poll failed", "error", err)
			}
		}
	}
}

func (p *Poller) newScheduler(ctx context.Context) (gocron.Scheduler, error) {
	var job gocron.JobDefinition
	switch {
	case p.schedule.Cron != "":
		job = gocron.CronJob(p.schedule.Cron, false)
	case p.schedule.Every > 0:
		job = gocron.DurationJob(p.schedule.Every)
	default:
		return nil, errors.New("both cron and duration are empty")
	}
	slog.DebugContext(ctx, "scheduling snapshots", "schedule", p.schedule.String())

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		job,
		gocron.NewTask(p.Trigger),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("initializing gocron job: %w", err)
	}
	return s, nil
}

func (p *Poller) closeSinks(ctx context.Context) {
	for _, s := range p.sinks {
		if closer, ok := s.(SinkCloser); ok {
			if err := closer.Close(); err != nil {
				slog.ErrorContext(ctx, "closing sink has failed", "error", err)
			}
		}
	}
}
