package collector

import (
	"github.com/pkg/errors"
	"github.com/prometheus/common/model"
)

// Registry is the ordered, immutable list of probes run by every cycle.
type Registry struct {
	probes []Probe
}

func NewRegistry(probes ...Probe) (*Registry, error) {
	seen := make(map[string]bool, len(probes))
	metrics := make(map[string]bool, len(probes))
	for _, p := range probes {
		switch {
		case p.Name == "":
			return nil, errors.New("probe without name")
		case seen[p.Name]:
			return nil, errors.Errorf("duplicate probe %q", p.Name)
		case p.Query == "":
			return nil, errors.Errorf("probe %q has no query", p.Name)
		case p.RowToLabels == nil:
			return nil, errors.Errorf("probe %q has no row mapper", p.Name)
		case !model.IsValidMetricName(model.LabelValue(p.Metric)):
			return nil, errors.Errorf("probe %q: invalid metric name %q", p.Name, p.Metric)
		case metrics[p.Metric]:
			return nil, errors.Errorf("probe %q: metric %q already exposed by another probe", p.Name, p.Metric)
		}
		for _, l := range p.Labels {
			if !model.LabelName(l).IsValid() {
				return nil, errors.Errorf("probe %q: invalid label name %q", p.Name, l)
			}
		}
		seen[p.Name] = true
		metrics[p.Metric] = true
	}

	r := &Registry{probes: make([]Probe, len(probes))}
	copy(r.probes, probes)
	return r, nil
}

// Probes returns the probes in declared order.
func (r *Registry) Probes() []Probe {
	out := make([]Probe, len(r.probes))
	copy(out, r.probes)
	return out
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.probes))
	for i, p := range r.probes {
		names[i] = p.Name
	}
	return names
}

func (r *Registry) Len() int {
	return len(r.probes)
}

// Filter returns a registry holding the probes for which enabled returns
// true, keeping their order.
func (r *Registry) Filter(enabled func(Probe) bool) *Registry {
	out := &Registry{}
	for _, p := range r.probes {
		if enabled(p) {
			out.probes = append(out.probes, p)
		}
	}
	return out
}

// DefaultProbes is the probe table of the exporter, in execution order.
func DefaultProbes() []Probe {
	return []Probe{
		versionProbe,
		databaseRegistryProbe,
		highWaterMarkStatisticsProbe,
		instanceOverviewProbe,
		databaseOverviewProbe,
		initializationParametersProbe,
		controlFilesProbe,
		onlineRedoLogsProbe,
		redoLogSwitchesProbe,
		tablespaceStatusProbe,
		invalidObjectsProbe,
		invalidIndexesProbe,
		activeSQLProbe,
		dataguardMasterStatusProbe,
		dataguardSlaveStatusProbe,
	}
}
