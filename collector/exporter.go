package collector

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"yunche.pro/dtsre/oracledb_exporter/dbutil"
)

// Lease is the connection of one scrape cycle.
type Lease interface {
	Querier
	Release() error
}

// Leaser hands out one connection per cycle. On error the returned lease
// must be nil.
type Leaser interface {
	Acquire(ctx context.Context) (Lease, error)
}

type oracleLeaser struct {
	client *dbutil.OracleClient
}

// NewOracleLeaser adapts a dbutil client to the Leaser interface.
func NewOracleLeaser(client *dbutil.OracleClient) Leaser {
	return oracleLeaser{client: client}
}

func (l oracleLeaser) Acquire(ctx context.Context) (Lease, error) {
	lease, err := l.client.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return lease, nil
}

type cycleState int

const (
	stateIdle cycleState = iota
	stateConnecting
	stateRunningProbes
	stateClosing
	stateDone
)

func (s cycleState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateConnecting:
		return "connecting"
	case stateRunningProbes:
		return "running_probes"
	case stateClosing:
		return "closing"
	case stateDone:
		return "done"
	}
	return "unknown"
}

// CycleResult summarises one scrape cycle.
type CycleResult struct {
	Start      time.Time
	Duration   time.Duration
	Outcomes   []ProbeOutcome
	ConnErr    error
	ReleaseErr error
}

// Failed returns the outcomes of probes that did not succeed.
func (r CycleResult) Failed() []ProbeOutcome {
	var failed []ProbeOutcome
	for _, o := range r.Outcomes {
		if !o.OK {
			failed = append(failed, o)
		}
	}
	return failed
}

// Exporter runs scrape cycles and exposes their results. It implements
// prometheus.Collector; collecting never touches the database.
type Exporter struct {
	leaser   Leaser
	registry *Registry
	store    *GaugeStore
	runner   *ProbeRunner
	metrics  Metrics

	queryTimeout time.Duration
	retainSeries bool
}

type Option func(e *Exporter)

// WithQueryTimeout bounds each probe query.
func WithQueryTimeout(d time.Duration) Option {
	return func(e *Exporter) {
		e.queryTimeout = d
	}
}

// WithRetainSeries keeps label-tuples from earlier cycles instead of
// replacing them every cycle.
func WithRetainSeries(v bool) Option {
	return func(e *Exporter) {
		e.retainSeries = v
	}
}

func New(leaser Leaser, registry *Registry, opts ...Option) *Exporter {
	e := &Exporter{
		leaser:   leaser,
		registry: registry,
		metrics:  NewMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.store = NewGaugeStore(registry, e.retainSeries)
	e.runner = NewProbeRunner(e.queryTimeout, e.metrics.ProbeDuration)
	return e
}

func (e *Exporter) Store() *GaugeStore {
	return e.store
}

func (e *Exporter) Metrics() Metrics {
	return e.metrics
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	e.store.Describe(ch)
	e.metrics.describe(ch)
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	e.store.Collect(ch)
	e.metrics.collect(ch)
}

// Filtered returns a collector exposing only the families of the named
// probes, plus the exporter metrics. Unknown names are ignored.
func (e *Exporter) Filtered(probes ...string) prometheus.Collector {
	keep := make(map[string]bool, len(probes))
	for _, p := range probes {
		keep[p] = true
	}
	return filteredCollector{e: e, keep: keep}
}

type filteredCollector struct {
	e    *Exporter
	keep map[string]bool
}

func (c filteredCollector) Describe(ch chan<- *prometheus.Desc) {
	c.e.store.describe(ch, c.kept)
	c.e.metrics.describe(ch)
}

func (c filteredCollector) Collect(ch chan<- prometheus.Metric) {
	c.e.store.collect(ch, c.kept)
	c.e.metrics.collect(ch)
}

func (c filteredCollector) kept(name string) bool {
	return c.keep[name]
}

// Scrape runs one cycle: acquire the connection, run every probe in
// registry order, release the connection, publish the new snapshot and
// record the cycle duration. It never returns early without releasing an
// acquired connection and always records the duration.
func (e *Exporter) Scrape(ctx context.Context) (res CycleResult) {
	res.Start = time.Now()
	state := stateIdle
	transition := func(next cycleState) {
		log.WithFields(log.Fields{"from": state, "to": next}).Debug("Scrape cycle")
		state = next
	}

	snapshot := e.store.NewSnapshot()
	defer func() {
		transition(stateDone)
		e.store.Publish(snapshot)
		res.Duration = time.Since(res.Start)
		e.record(res)
	}()

	transition(stateConnecting)
	lease, err := e.leaser.Acquire(ctx)
	if err == nil && lease == nil {
		err = errors.New("no connection returned")
	}
	if err != nil {
		res.ConnErr = &ConnectionError{Err: err}
		log.WithFields(log.Fields{"error": err}).Error("Can not acquire DB connection")
		snapshot.ClearAll()
		transition(stateClosing)
		return res
	}

	defer func() {
		transition(stateClosing)
		if err := lease.Release(); err != nil {
			res.ReleaseErr = &ReleaseError{Err: err}
			log.WithFields(log.Fields{"error": err}).Warn("Close Database Connection has error")
		}
	}()

	transition(stateRunningProbes)
	for _, p := range e.registry.Probes() {
		res.Outcomes = append(res.Outcomes, e.runner.Run(ctx, lease, p, snapshot))
	}
	return res
}

func (e *Exporter) record(res CycleResult) {
	m := e.metrics
	m.TotalScrapes.Inc()
	m.CollectSeconds.Observe(res.Duration.Seconds())
	m.LastScrapeDuration.Set(res.Duration.Seconds())

	if res.ConnErr != nil {
		m.Up.Set(0)
		m.Error.Set(1)
		m.ScrapeErrors.WithLabelValues("connection").Inc()
		log.WithFields(log.Fields{"duration": res.Duration}).Info("Scrape cycle finished without connection")
		return
	}

	m.Up.Set(1)
	failed := res.Failed()
	for _, o := range failed {
		m.ScrapeErrors.WithLabelValues(o.Probe).Inc()
	}
	if len(failed) > 0 {
		m.Error.Set(1)
	} else {
		m.Error.Set(0)
	}

	log.WithFields(log.Fields{
		"duration": res.Duration,
		"probes":   len(res.Outcomes),
		"failed":   len(failed),
	}).Info("Scrape cycle finished")
}

// Metrics represents exporter metrics which values are carried across
// scrape cycles.
type Metrics struct {
	TotalScrapes       prometheus.Counter
	ScrapeErrors       *prometheus.CounterVec
	Error              prometheus.Gauge
	Up                 prometheus.Gauge
	LastScrapeDuration prometheus.Gauge
	CollectSeconds     prometheus.Summary
	ProbeDuration      *prometheus.HistogramVec
}

// NewMetrics creates new Metrics instance.
func NewMetrics() Metrics {
	subsystem := exporter
	return Metrics{
		TotalScrapes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scrapes_total",
			Help:      "Total number of times Oracle was scraped for metrics.",
		}),
		ScrapeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scrape_errors_total",
			Help:      "Total number of times an error occurred scraping Oracle.",
		}, []string{"collector"}),
		Error: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "last_scrape_error",
			Help:      "Whether the last scrape of metrics from Oracle resulted in an error (1 for error, 0 for success).",
		}),
		Up: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "up",
			Help:      "Whether the Oracle server is up.",
		}),
		LastScrapeDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "last_scrape_duration_seconds",
			Help:      "Duration of the last scrape of metrics from Oracle.",
		}),
		CollectSeconds: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "collect_seconds",
			Help:      "Time spent to collect metrics from Oracle",
		}),
		ProbeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "probe_duration_seconds",
			Help:      "Duration of a single probe query.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1, 5, 10, 30, 60},
		}, []string{"probe"}),
	}
}

func (m Metrics) describe(ch chan<- *prometheus.Desc) {
	ch <- m.TotalScrapes.Desc()
	m.ScrapeErrors.Describe(ch)
	ch <- m.Error.Desc()
	ch <- m.Up.Desc()
	ch <- m.LastScrapeDuration.Desc()
	ch <- m.CollectSeconds.Desc()
	m.ProbeDuration.Describe(ch)
}

func (m Metrics) collect(ch chan<- prometheus.Metric) {
	ch <- m.TotalScrapes
	m.ScrapeErrors.Collect(ch)
	ch <- m.Error
	ch <- m.Up
	ch <- m.LastScrapeDuration
	ch <- m.CollectSeconds
	m.ProbeDuration.Collect(ch)
}

// check interface
var _ prometheus.Collector = (*Exporter)(nil)
