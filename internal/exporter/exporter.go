// Package exporter exposes scheduler state as Prometheus metrics
package exporter

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/CZERTAINLY/pbsctl/pbs/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pbs"

// Snapshotter takes a snapshot of the scheduler, pbs.Client is one
type Snapshotter interface {
	Snapshot(ctx context.Context) (model.Snapshot, error)
}

// Collector takes a snapshot on every scrape. Scrapes are serialized.
type Collector struct {
	mx      sync.Mutex
	source  Snapshotter
	timeout time.Duration

	nodeUp         *prometheus.Desc
	nodeProcessors *prometheus.Desc
	nodeJobs       *prometheus.Desc
	queueEnabled   *prometheus.Desc
	queueStarted   *prometheus.Desc
	queueJobs      *prometheus.Desc
	jobs           *prometheus.Desc

	scrapeDuration prometheus.Gauge
	scrapeErrors   prometheus.Counter
}

// NewCollector returns a collector bounding every snapshot by timeout.
// Zero timeout means no bound other than the one of the client.
func NewCollector(source Snapshotter, timeout time.Duration) *Collector {
	return &Collector{
		source:  source,
		timeout: timeout,
		nodeUp: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "node", "up"),
			"Whether the node is up (not down, offline or unknown)",
			[]string{"node", "state"}, nil,
		),
		nodeProcessors: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "node", "processors"),
			"Number of processors (np) of the node",
			[]string{"node"}, nil,
		),
		nodeJobs: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "node", "jobs"),
			"Number of job slots in use on the node",
			[]string{"node"}, nil,
		),
		queueEnabled: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "enabled"),
			"Whether the queue accepts jobs",
			[]string{"queue"}, nil,
		),
		queueStarted: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "started"),
			"Whether the queue runs jobs",
			[]string{"queue"}, nil,
		),
		queueJobs: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "jobs"),
			"Total number of jobs in the queue as reported by the server",
			[]string{"queue"}, nil,
		),
		jobs: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "jobs"),
			"Number of jobs by queue and state",
			[]string{"queue", "state"}, nil,
		),
		scrapeDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scrape",
			Name:      "duration_seconds",
			Help:      "Duration of the last snapshot",
		}),
		scrapeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scrape",
			Name:      "errors_total",
			Help:      "Number of failed snapshots",
		}),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.nodeUp
	ch <- c.nodeProcessors
	ch <- c.nodeJobs
	ch <- c.queueEnabled
	ch <- c.queueStarted
	ch <- c.queueJobs
	ch <- c.jobs
	c.scrapeDuration.Describe(ch)
	c.scrapeErrors.Describe(ch)
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mx.Lock()
	defer c.mx.Unlock()

	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	snap, err := c.source.Snapshot(ctx)
	c.scrapeDuration.Set(time.Since(start).Seconds())
	if err != nil {
		slog.ErrorContext(ctx, "scheduler snapshot failed", "error", err)
		c.scrapeErrors.Inc()
	} else {
		c.collectSnapshot(ctx, ch, snap)
	}
	ch <- c.scrapeDuration
	ch <- c.scrapeErrors
}

// collectSnapshot emits the first of nodes or queues sharing a name only,
// duplicate series fail the whole scrape.
func (c *Collector) collectSnapshot(ctx context.Context, ch chan<- prometheus.Metric, snap model.Snapshot) {
	seen := make(map[string]struct{}, len(snap.Nodes))
	for _, n := range snap.Nodes {
		if _, ok := seen[n.Name]; ok {
			slog.WarnContext(ctx, "duplicate node: ignoring", "node", n.Name)
			continue
		}
		seen[n.Name] = struct{}{}
		ch <- prometheus.MustNewConstMetric(c.nodeUp, prometheus.GaugeValue, boolValue(nodeUp(n)), n.Name, n.State.String())
		ch <- prometheus.MustNewConstMetric(c.nodeProcessors, prometheus.GaugeValue, float64(n.NP), n.Name)
		ch <- prometheus.MustNewConstMetric(c.nodeJobs, prometheus.GaugeValue, float64(len(n.Jobs)), n.Name)
	}

	clear(seen)
	for _, q := range snap.Queues {
		if _, ok := seen[q.Name]; ok {
			slog.WarnContext(ctx, "duplicate queue: ignoring", "queue", q.Name)
			continue
		}
		seen[q.Name] = struct{}{}
		ch <- prometheus.MustNewConstMetric(c.queueEnabled, prometheus.GaugeValue, boolValue(q.Enabled), q.Name)
		ch <- prometheus.MustNewConstMetric(c.queueStarted, prometheus.GaugeValue, boolValue(q.Started), q.Name)
		if q.TotalJobs >= 0 {
			ch <- prometheus.MustNewConstMetric(c.queueJobs, prometheus.GaugeValue, float64(q.TotalJobs), q.Name)
		}
	}

	type key struct{ queue, state string }
	counts := make(map[key]int)
	for _, j := range snap.Jobs {
		counts[key{queue: j.Queue, state: j.StateName()}]++
	}
	for k, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.jobs, prometheus.GaugeValue, float64(n), k.queue, k.state)
	}
}

func nodeUp(n model.Node) bool {
	if n.HasState(model.NodeStateDown) || n.HasState(model.NodeStateOffline) {
		return false
	}
	return n.State != model.NodeStateUnknown && n.State != model.NodeStateStateUnknown
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Handler serves metrics of c from a private registry, together with the
// Go and process collectors.
func Handler(c prometheus.Collector) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	for _, col := range []prometheus.Collector{
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
