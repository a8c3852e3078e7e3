// Package metrics exports runtime, commit and stream measurements to
// Prometheus.
//
// A single Collector implements atom.Observer, vdom.Observer and
// patchstream.Observer:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(metrics.WithRegistry(reg))
//	rt := atom.NewRuntime(sched, atom.WithObserver(m))
//	root := vdom.NewRoot(backend, container, vdom.WithRootObserver(m))
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/atomdom/pkg/atom"
	"github.com/vango-dev/atomdom/pkg/patchstream"
	vdom "github.com/vango-dev/atomdom/pkg/vdom"
)

// Config configures the collector.
type Config struct {
	// Namespace is the metrics namespace (default: "atomdom").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the duration histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "atomdom",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collector holds the Prometheus metrics.
type Collector struct {
	atomWrites      prometheus.Counter
	consumerRuns    *prometheus.CounterVec
	consumerLatency prometheus.Histogram
	flushes         prometheus.Counter
	flushLatency    prometheus.Histogram
	flushAtoms      prometheus.Histogram
	cycles          prometheus.Counter

	commits       *prometheus.CounterVec
	commitLatency prometheus.Histogram
	patches       *prometheus.CounterVec

	subscribers  prometheus.Gauge
	framesSent   prometheus.Counter
	streamErrors *prometheus.CounterVec
}

var (
	_ atom.Observer        = (*Collector)(nil)
	_ vdom.Observer        = (*Collector)(nil)
	_ patchstream.Observer = (*Collector)(nil)
)

// New registers the metrics and returns the collector. Registering twice
// on the same registry panics, as with promauto.
func New(opts ...Option) *Collector {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}, labels)
	}
	histogram := func(name, help string, buckets []float64) prometheus.Histogram {
		return factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
			Buckets:     buckets,
		})
	}

	c := &Collector{
		atomWrites:      counter("atom_writes_total", "Total number of atom writes that changed a value"),
		consumerRuns:    counterVec("consumer_runs_total", "Total number of effect and derived runs by status", "status"),
		consumerLatency: histogram("consumer_duration_seconds", "Consumer run duration in seconds", config.Buckets),
		flushes:         counter("flushes_total", "Total number of completed flushes"),
		flushLatency:    histogram("flush_duration_seconds", "Flush duration in seconds", config.Buckets),
		flushAtoms:      histogram("flush_atoms", "Atoms processed per flush", []float64{1, 2, 5, 10, 25, 50, 100, 250}),
		cycles:          counter("dependency_cycles_total", "Total number of rejected dependency cycles"),

		commits:       counterVec("commits_total", "Total number of tree commits by status", "status"),
		commitLatency: histogram("commit_duration_seconds", "Diff and apply duration in seconds", config.Buckets),
		patches:       counterVec("patches_total", "Total number of patches applied by operation", "op"),

		subscribers:  factory.NewGauge(prometheus.GaugeOpts{Namespace: config.Namespace, Subsystem: config.Subsystem, Name: "stream_subscribers", Help: "Number of connected patch stream subscribers", ConstLabels: config.ConstLabels}),
		framesSent:   counter("stream_frames_total", "Total number of patch frames broadcast"),
		streamErrors: counterVec("stream_errors_total", "Total patch stream errors by type", "type"),
	}
	return c
}

// AtomWritten implements atom.Observer.
func (c *Collector) AtomWritten() {
	c.atomWrites.Inc()
}

// ConsumerRan implements atom.Observer.
func (c *Collector) ConsumerRan(d time.Duration, err error) {
	c.consumerRuns.WithLabelValues(status(err)).Inc()
	c.consumerLatency.Observe(d.Seconds())
}

// FlushCompleted implements atom.Observer.
func (c *Collector) FlushCompleted(atoms, consumers int, d time.Duration) {
	c.flushes.Inc()
	c.flushLatency.Observe(d.Seconds())
	c.flushAtoms.Observe(float64(atoms))
}

// CycleDetected implements atom.Observer.
func (c *Collector) CycleDetected() {
	c.cycles.Inc()
}

// Committed implements vdom.Observer. Patches of a failed commit are not
// counted as applied.
func (c *Collector) Committed(patches []vdom.Patch, d time.Duration, err error) {
	c.commits.WithLabelValues(status(err)).Inc()
	c.commitLatency.Observe(d.Seconds())
	if err != nil {
		return
	}
	for op, n := range vdom.CountOps(patches) {
		c.patches.WithLabelValues(op.String()).Add(float64(n))
	}
}

// SubscriberAdded implements patchstream.Observer.
func (c *Collector) SubscriberAdded() {
	c.subscribers.Inc()
}

// SubscriberRemoved implements patchstream.Observer.
func (c *Collector) SubscriberRemoved() {
	c.subscribers.Dec()
}

// FrameSent implements patchstream.Observer.
func (c *Collector) FrameSent() {
	c.framesSent.Inc()
}

// StreamError implements patchstream.Observer.
func (c *Collector) StreamError(kind string) {
	c.streamErrors.WithLabelValues(kind).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
