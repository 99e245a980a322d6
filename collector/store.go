package collector

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// labelSep joins label values into a map key. It cannot appear in valid
// UTF-8 text.
const labelSep = "\xff"

type familySchema struct {
	desc  *prometheus.Desc
	arity int
}

// GaugeStore holds the gauge families of all probes. Writers build a
// private Snapshot and Publish it in one swap; readers only ever see
// published snapshots, which are never mutated again.
type GaugeStore struct {
	schema map[string]familySchema
	order  []string

	// retain makes every snapshot start from the previous one, so
	// label-tuples accumulate across cycles.
	retain bool

	mu      sync.RWMutex
	current *Snapshot
}

func NewGaugeStore(r *Registry, retainSeries bool) *GaugeStore {
	s := &GaugeStore{
		schema: make(map[string]familySchema, r.Len()),
		retain: retainSeries,
	}
	for _, p := range r.Probes() {
		s.schema[p.Name] = familySchema{desc: p.desc(), arity: len(p.Labels)}
		s.order = append(s.order, p.Name)
	}
	s.current = s.NewSnapshot()
	return s
}

// Snapshot is the set of gauge families built by one scrape cycle.
type Snapshot struct {
	store    *GaugeStore
	families map[string]map[string]Series
}

// NewSnapshot returns an empty snapshot, or a deep copy of the published
// one when the store retains series.
func (s *GaugeStore) NewSnapshot() *Snapshot {
	sn := &Snapshot{
		store:    s,
		families: make(map[string]map[string]Series, len(s.order)),
	}
	for _, name := range s.order {
		sn.families[name] = map[string]Series{}
	}

	if !s.retain {
		return sn
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return sn
	}
	for name, fam := range s.current.families {
		for k, v := range fam {
			sn.families[name][k] = v
		}
	}
	return sn
}

// Publish makes sn the snapshot seen by readers. sn must not be modified
// afterwards.
func (s *GaugeStore) Publish(sn *Snapshot) {
	if sn.store != s {
		panic("collector: snapshot published to a foreign store")
	}
	s.mu.Lock()
	s.current = sn
	s.mu.Unlock()
}

func (s *GaugeStore) snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Family returns the published series of one probe sorted by label values.
func (s *GaugeStore) Family(name string) []Series {
	return s.snapshot().Family(name)
}

func (s *GaugeStore) Describe(ch chan<- *prometheus.Desc) {
	s.describe(ch, nil)
}

// Collect sends the published snapshot. Families are sent in registry
// order.
func (s *GaugeStore) Collect(ch chan<- prometheus.Metric) {
	s.collect(ch, nil)
}

// collect sends the families for which keep returns true, all of them
// when keep is nil.
func (s *GaugeStore) collect(ch chan<- prometheus.Metric, keep func(name string) bool) {
	sn := s.snapshot()
	for _, name := range s.order {
		if keep != nil && !keep(name) {
			continue
		}
		desc := s.schema[name].desc
		for _, series := range sn.Family(name) {
			m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, series.Value, series.Labels...)
			if err != nil {
				m = prometheus.NewInvalidMetric(desc, err)
			}
			ch <- m
		}
	}
}

func (s *GaugeStore) describe(ch chan<- *prometheus.Desc, keep func(name string) bool) {
	for _, name := range s.order {
		if keep == nil || keep(name) {
			ch <- s.schema[name].desc
		}
	}
}

// set stores one label-tuple of a family.
func (sn *Snapshot) set(name string, labels []string, value float64) error {
	fam, err := sn.family(name)
	if err != nil {
		return err
	}
	if err := sn.checkArity(name, labels); err != nil {
		return err
	}
	fam[strings.Join(labels, labelSep)] = Series{Labels: append([]string(nil), labels...), Value: value}
	return nil
}

// Replace swaps the content of a family. Either all series are stored or,
// on error, the family is left untouched.
func (sn *Snapshot) Replace(name string, series []Series) error {
	if _, err := sn.family(name); err != nil {
		return err
	}
	for _, s := range series {
		if err := sn.checkArity(name, s.Labels); err != nil {
			return err
		}
	}

	if !sn.store.retain {
		sn.families[name] = make(map[string]Series, len(series))
	}
	for _, s := range series {
		if err := sn.set(name, s.Labels, s.Value); err != nil {
			return err
		}
	}
	return nil
}

// Clear drops every label-tuple of a family. It does nothing when the
// store retains series.
func (sn *Snapshot) Clear(name string) {
	if sn.store.retain {
		return
	}
	if _, ok := sn.families[name]; ok {
		sn.families[name] = map[string]Series{}
	}
}

func (sn *Snapshot) ClearAll() {
	for name := range sn.families {
		sn.Clear(name)
	}
}

func (sn *Snapshot) Family(name string) []Series {
	fam := sn.families[name]
	keys := make([]string, 0, len(fam))
	for k := range fam {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Series, 0, len(keys))
	for _, k := range keys {
		out = append(out, fam[k])
	}
	return out
}

func (sn *Snapshot) family(name string) (map[string]Series, error) {
	fam, ok := sn.families[name]
	if !ok {
		return nil, errors.Errorf("unknown gauge family %q", name)
	}
	return fam, nil
}

func (sn *Snapshot) checkArity(name string, labels []string) error {
	if want := sn.store.schema[name].arity; len(labels) != want {
		return errors.Errorf("family %q: got %d label values, want %d", name, len(labels), want)
	}
	return nil
}
