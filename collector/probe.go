package collector

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"yunche.pro/dtsre/oracledb_exporter/dbutil"
)

const (
	namespace = "oracledb"
	exporter  = "exporter"
)

// RowMapper turns one result row into label values, in the order of
// Probe.Labels.
type RowMapper func(r dbutil.Row) ([]string, error)

// ValueMapper extracts the sample value from a result row.
type ValueMapper func(r dbutil.Row) (float64, error)

// Probe is one query and the gauge family its rows are mapped to.
type Probe struct {
	// Name of the probe. Should be unique; it also names the
	// --collect.<name> flag.
	Name string

	// Help describes the role of the probe.
	Help string

	// Metric is the fully qualified name of the exposed gauge.
	Metric string

	Query  string
	Labels []string

	RowToLabels RowMapper

	// RowToValue is nil for presence probes: every observed row is
	// exposed with value 1.
	RowToValue ValueMapper
}

// Series is one label-tuple of a gauge family and its value.
type Series struct {
	Labels []string
	Value  float64
}

func (p Probe) desc() *prometheus.Desc {
	return prometheus.NewDesc(p.Metric, p.Help, p.Labels, nil)
}

// samples maps every row. Any bad row fails the whole probe so nothing
// half-mapped is ever stored.
func (p Probe) samples(rows []dbutil.Row) ([]Series, error) {
	out := make([]Series, 0, len(rows))
	for i, r := range rows {
		labels, err := p.RowToLabels(r)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		if len(labels) != len(p.Labels) {
			return nil, errors.Errorf("row %d: got %d label values, want %d", i, len(labels), len(p.Labels))
		}

		value := 1.0
		if p.RowToValue != nil {
			if value, err = p.RowToValue(r); err != nil {
				return nil, errors.Wrapf(err, "row %d", i)
			}
		}
		out = append(out, Series{Labels: labels, Value: value})
	}
	return out, nil
}
