package collector

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"yunche.pro/dtsre/oracledb_exporter/dbutil"
)

// Querier runs a read-only statement and returns every row.
type Querier interface {
	FetchRowsWithContext(ctx context.Context, querytext string, params ...interface{}) ([]dbutil.Row, error)
}

// ProbeOutcome is the result of one probe in one cycle.
type ProbeOutcome struct {
	Probe    string
	OK       bool
	Rows     int
	Duration time.Duration
	Err      error
}

// ProbeRunner executes probes and confines their failures to the probe's
// own gauge family.
type ProbeRunner struct {
	// Timeout bounds every probe query. Zero means no limit beyond ctx.
	Timeout time.Duration

	durations prometheus.ObserverVec
}

func NewProbeRunner(timeout time.Duration, durations prometheus.ObserverVec) *ProbeRunner {
	return &ProbeRunner{Timeout: timeout, durations: durations}
}

// Run clears the probe's family in sn, runs the query and stores the
// mapped rows. It never panics; every failure is returned as a
// *QueryError in the outcome.
func (r *ProbeRunner) Run(ctx context.Context, q Querier, p Probe, sn *Snapshot) (out ProbeOutcome) {
	out.Probe = p.Name
	start := time.Now()
	sn.Clear(p.Name)

	defer func() {
		if rec := recover(); rec != nil {
			sn.Clear(p.Name)
			out.OK, out.Rows = false, 0
			out.Err = &QueryError{Probe: p.Name, Err: errors.Errorf("panic: %v", rec)}
		}
		out.Duration = time.Since(start)
		if r.durations != nil {
			r.durations.WithLabelValues(p.Name).Observe(out.Duration.Seconds())
		}

		if out.Err != nil {
			log.WithFields(log.Fields{"probe": p.Name, "error": out.Err}).Error("Probe failed")
			return
		}
		log.WithFields(log.Fields{"probe": p.Name, "rows": out.Rows, "duration": out.Duration}).Debug("Probe done")
	}()

	log.WithFields(log.Fields{"probe": p.Name}).Info("collect " + p.Metric)

	qctx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	rows, err := q.FetchRowsWithContext(qctx, p.Query)
	if err == nil && qctx.Err() != nil {
		err = qctx.Err()
	}
	if err != nil {
		if errors.Is(qctx.Err(), context.DeadlineExceeded) {
			err = errors.Wrapf(err, "query timed out after %s", r.Timeout)
		}
		out.Err = &QueryError{Probe: p.Name, Err: err}
		return
	}

	series, err := p.samples(rows)
	if err != nil {
		out.Err = &QueryError{Probe: p.Name, Err: err}
		return
	}
	if err := sn.Replace(p.Name, series); err != nil {
		out.Err = &QueryError{Probe: p.Name, Err: err}
		return
	}

	out.OK = true
	out.Rows = len(series)
	return
}
