package collector

import (
	"context"
	"regexp"
	"sync"
	"testing"

	"github.com/percona/exporter_shared/helpers"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	. "github.com/smartystreets/goconvey/convey"
	"yunche.pro/dtsre/oracledb_exporter/dbutil"
)

func scrapeCount(e *Exporter) uint64 {
	var m dto.Metric
	if err := e.Metrics().CollectSeconds.Write(&m); err != nil {
		panic(err)
	}
	return m.GetSummary().GetSampleCount()
}

func newTestExporter(leaser Leaser, probes ...Probe) *Exporter {
	return New(leaser, mustRegistry(probes...))
}

func TestScrapeIsolation(t *testing.T) {
	Convey("Given three probes where the middle one fails", t, func() {
		p1, p2, p3 := testProbe("a", "q1", "x"), testProbe("b", "q2", "x"), testProbe("c", "q3", "x")
		q := newFakeQuerier().
			on("q1", dbutil.Row{"1"}).
			fail("q2", errors.New("ORA-01031: insufficient privileges")).
			on("q3", dbutil.Row{"3"})
		lease := &fakeLease{fakeQuerier: q}
		e := newTestExporter(&fakeLeaser{lease: lease}, p1, p2, p3)

		res := e.Scrape(context.Background())

		Convey("Every probe runs in registry order", func() {
			So(q.Calls(), ShouldResemble, []string{"q1", "q2", "q3"})
			So(res.Outcomes, ShouldHaveLength, 3)
		})

		Convey("Only the failing probe loses its data", func() {
			So(labelSets(e.Store().Family("a")), ShouldResemble, [][]string{{"1"}})
			So(e.Store().Family("b"), ShouldBeEmpty)
			So(labelSets(e.Store().Family("c")), ShouldResemble, [][]string{{"3"}})
		})

		Convey("The failure is counted against the probe", func() {
			failed := res.Failed()
			So(failed, ShouldHaveLength, 1)
			So(failed[0].Probe, ShouldEqual, "b")
			So(testutil.ToFloat64(e.Metrics().ScrapeErrors.WithLabelValues("b")), ShouldEqual, 1)
			So(testutil.ToFloat64(e.Metrics().Error), ShouldEqual, 1)
			So(testutil.ToFloat64(e.Metrics().Up), ShouldEqual, 1)
		})

		Convey("The connection is released exactly once", func() {
			So(lease.Releases(), ShouldEqual, 1)
			So(res.ReleaseErr, ShouldBeNil)
		})
	})
}

func TestScrapeReleaseAlways(t *testing.T) {
	Convey("Release is called exactly once", t, func() {
		p1, p2 := testProbe("a", "q1", "x"), testProbe("b", "q2", "x")

		Convey("when all probes succeed", func() {
			lease := &fakeLease{fakeQuerier: newFakeQuerier().on("q1", dbutil.Row{"1"}).on("q2", dbutil.Row{"2"})}
			res := newTestExporter(&fakeLeaser{lease: lease}, p1, p2).Scrape(context.Background())
			So(res.Failed(), ShouldBeEmpty)
			So(lease.Releases(), ShouldEqual, 1)
		})

		Convey("when all probes fail", func() {
			lease := &fakeLease{fakeQuerier: newFakeQuerier().fail("q1", errors.New("x")).fail("q2", errors.New("y"))}
			res := newTestExporter(&fakeLeaser{lease: lease}, p1, p2).Scrape(context.Background())
			So(res.Failed(), ShouldHaveLength, 2)
			So(lease.Releases(), ShouldEqual, 1)
		})

		Convey("when a probe panics", func() {
			bad := p1
			bad.RowToLabels = func(dbutil.Row) ([]string, error) { panic("boom") }
			lease := &fakeLease{fakeQuerier: newFakeQuerier().on("q1", dbutil.Row{"1"}).on("q2", dbutil.Row{"2"})}
			e := newTestExporter(&fakeLeaser{lease: lease}, bad, p2)
			res := e.Scrape(context.Background())
			So(res.Failed(), ShouldHaveLength, 1)
			So(labelSets(e.Store().Family("b")), ShouldResemble, [][]string{{"2"}})
			So(lease.Releases(), ShouldEqual, 1)
		})

		Convey("and a release error does not fail the probes", func() {
			lease := &fakeLease{
				fakeQuerier: newFakeQuerier().on("q1", dbutil.Row{"1"}).on("q2", dbutil.Row{"2"}),
				releaseErr:  errors.New("ORA-03113: end-of-file on communication channel"),
			}
			e := newTestExporter(&fakeLeaser{lease: lease}, p1, p2)
			res := e.Scrape(context.Background())
			So(lease.Releases(), ShouldEqual, 1)
			So(res.ReleaseErr, ShouldHaveSameTypeAs, &ReleaseError{})
			So(res.Failed(), ShouldBeEmpty)
			So(testutil.ToFloat64(e.Metrics().Error), ShouldEqual, 0)
			So(labelSets(e.Store().Family("a")), ShouldResemble, [][]string{{"1"}})
		})
	})
}

func TestScrapeAcquireFailure(t *testing.T) {
	Convey("Given a database that can not be reached", t, func() {
		lease := &fakeLease{fakeQuerier: newFakeQuerier()}
		leaser := &fakeLeaser{lease: lease, err: errors.New("dial tcp 10.0.0.1:1521: connect: connection refused")}
		e := newTestExporter(leaser, testProbe("a", "q1", "x"))

		res := e.Scrape(context.Background())

		Convey("No probe is attempted and nothing is released", func() {
			So(res.Outcomes, ShouldBeEmpty)
			So(lease.Calls(), ShouldBeEmpty)
			So(lease.Releases(), ShouldEqual, 0)
		})

		Convey("The cycle reports a connection error", func() {
			So(res.ConnErr, ShouldHaveSameTypeAs, &ConnectionError{})
			So(testutil.ToFloat64(e.Metrics().Up), ShouldEqual, 0)
			So(testutil.ToFloat64(e.Metrics().ScrapeErrors.WithLabelValues("connection")), ShouldEqual, 1)
		})

		Convey("The duration is still recorded", func() {
			So(scrapeCount(e), ShouldEqual, 1)
			So(testutil.ToFloat64(e.Metrics().TotalScrapes), ShouldEqual, 1)
		})
	})
}

func TestScrapeClearsStaleResults(t *testing.T) {
	Convey("Given a cycle where both probes return data", t, func() {
		version := testProbe("version", "q1", "version")
		registry := testProbe("database_registry", "q2", "comp_id")
		q := newFakeQuerier().
			on("q1", dbutil.Row{"19.3.0.0.0"}).on("q1").
			on("q2", dbutil.Row{"CATALOG"})
		q.fail("q2", errors.New("ORA-03114: not connected to ORACLE"))
		e := newTestExporter(&fakeLeaser{lease: &fakeLease{fakeQuerier: q}}, version, registry)

		e.Scrape(context.Background())
		So(labelSets(e.Store().Family("version")), ShouldResemble, [][]string{{"19.3.0.0.0"}})

		Convey("the next cycle drops rows that are no longer returned", func() {
			res := e.Scrape(context.Background())

			So(e.Store().Family("version"), ShouldBeEmpty)
			So(e.Store().Family("database_registry"), ShouldBeEmpty)
			So(res.Failed(), ShouldHaveLength, 1)
			So(scrapeCount(e), ShouldEqual, 2)
		})
	})
}

func TestScrapeReplaceSemantics(t *testing.T) {
	Convey("Label-tuples {A,B} followed by {B,C} leave exactly {B,C}", t, func() {
		q := newFakeQuerier().
			on("q1", dbutil.Row{"A"}, dbutil.Row{"B"}).
			on("q1", dbutil.Row{"B"}, dbutil.Row{"C"})
		e := newTestExporter(&fakeLeaser{lease: &fakeLease{fakeQuerier: q}}, testProbe("a", "q1", "x"))

		e.Scrape(context.Background())
		e.Scrape(context.Background())

		So(e.Store().Family("a"), ShouldResemble, []Series{
			{Labels: []string{"B"}, Value: 1},
			{Labels: []string{"C"}, Value: 1},
		})
	})

	Convey("With retained series A stays exposed", t, func() {
		q := newFakeQuerier().
			on("q1", dbutil.Row{"A"}, dbutil.Row{"B"}).
			on("q1", dbutil.Row{"B"}, dbutil.Row{"C"})
		e := New(&fakeLeaser{lease: &fakeLease{fakeQuerier: q}}, mustRegistry(testProbe("a", "q1", "x")), WithRetainSeries(true))

		e.Scrape(context.Background())
		e.Scrape(context.Background())

		So(labelSets(e.Store().Family("a")), ShouldResemble, [][]string{{"A"}, {"B"}, {"C"}})
	})
}

func TestScrapeIdempotent(t *testing.T) {
	Convey("Identical rows in consecutive cycles give identical families", t, func() {
		q := newFakeQuerier().on(tablespaceStatusProbe.Query,
			dbutil.Row{"SYSTEM", "  1,024.00", "  900.00", "  124.00", " 87.89%"},
			dbutil.Row{"USERS", "  5.00", "  1.00", "  4.00", " 20.00%"},
		)
		e := newTestExporter(&fakeLeaser{lease: &fakeLease{fakeQuerier: q}}, tablespaceStatusProbe)

		e.Scrape(context.Background())
		first := e.Store().Family("tablespace_status")
		e.Scrape(context.Background())
		second := e.Store().Family("tablespace_status")

		So(first, ShouldHaveLength, 2)
		So(second, ShouldResemble, first)
		So(first[0].Labels, ShouldResemble, []string{"SYSTEM", "1,024.00", "900.00", "124.00", "87.89%"})
		for _, s := range second {
			So(s.Value, ShouldEqual, 1)
		}
	})
}

func TestScrapeConcurrentRead(t *testing.T) {
	Convey("A read during a cycle sees the complete previous snapshot", t, func() {
		q := newFakeQuerier().
			on("q1", dbutil.Row{"old-a"}).on("q1", dbutil.Row{"new-a"}).
			on("q2", dbutil.Row{"old-b"}).on("q2", dbutil.Row{"new-b"})
		e := newTestExporter(&fakeLeaser{lease: &fakeLease{fakeQuerier: q}}, testProbe("a", "q1", "x"), testProbe("b", "q2", "x"))
		e.Scrape(context.Background())

		release := make(chan struct{})
		started := make(chan string, 4)
		q.mu.Lock()
		q.block["q2"] = release
		q.started = started
		q.mu.Unlock()

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Scrape(context.Background())
		}()

		So(<-started, ShouldEqual, "q1")
		So(<-started, ShouldEqual, "q2")

		// probe a already finished in the running cycle
		So(labelSets(e.Store().Family("a")), ShouldResemble, [][]string{{"old-a"}})
		So(labelSets(e.Store().Family("b")), ShouldResemble, [][]string{{"old-b"}})

		close(release)
		wg.Wait()

		So(labelSets(e.Store().Family("a")), ShouldResemble, [][]string{{"new-a"}})
		So(labelSets(e.Store().Family("b")), ShouldResemble, [][]string{{"new-b"}})
	})
}

func TestScrapeDurationAdvancesEveryCycle(t *testing.T) {
	q := newFakeQuerier().on("q1", dbutil.Row{"1"}).fail("q1", errors.New("failed"))
	e := newTestExporter(&fakeLeaser{lease: &fakeLease{fakeQuerier: q}}, testProbe("a", "q1", "x"))

	for i := 1; i <= 3; i++ {
		e.Scrape(context.Background())
		if got := scrapeCount(e); got != uint64(i) {
			t.Fatalf("after %d cycles: got %d observations", i, got)
		}
	}
}

func TestScrapeAcquireFailureLogsOnce(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	e := newTestExporter(&fakeLeaser{err: errors.New("ORA-12541: TNS:no listener")}, testProbe("a", "q1", "x"))
	e.Scrape(context.Background())

	var failures []*logrus.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Level <= logrus.WarnLevel {
			failures = append(failures, entry)
		}
	}
	if len(failures) != 1 {
		t.Fatalf("got %d warning or error entries, want 1", len(failures))
	}
	if failures[0].Message != "Can not acquire DB connection" {
		t.Errorf("unexpected entry %q", failures[0].Message)
	}
}

var fqNameRE = regexp.MustCompile(`fqName: "([^"]+)"`)

func fqName(d *prometheus.Desc) string {
	if m := fqNameRE.FindStringSubmatch(d.String()); m != nil {
		return m[1]
	}
	return ""
}

func TestFilteredCollect(t *testing.T) {
	Convey("Given a scraped exporter with two families", t, func() {
		q := newFakeQuerier().on("q1", dbutil.Row{"1"}).on("q2", dbutil.Row{"2"})
		e := newTestExporter(&fakeLeaser{lease: &fakeLease{fakeQuerier: q}}, testProbe("a", "q1", "x"), testProbe("b", "q2", "x"))
		e.Scrape(context.Background())

		names := func(c prometheus.Collector) map[string]int {
			out := map[string]int{}
			for _, m := range helpers.CollectMetrics(c) {
				out[fqName(m.Desc())]++
			}
			return out
		}

		Convey("only the selected families are collected", func() {
			got := names(e.Filtered("b", "unknown"))
			So(got["test_b_info"], ShouldEqual, 1)
			So(got, ShouldNotContainKey, "test_a_info")
			So(got["oracledb_up"], ShouldEqual, 1)
		})

		Convey("the unfiltered exporter collects every family", func() {
			got := names(e)
			So(got["test_a_info"], ShouldEqual, 1)
			So(got["test_b_info"], ShouldEqual, 1)
		})

		Convey("descriptions follow the selection", func() {
			ch := make(chan *prometheus.Desc, 32)
			e.Filtered("a").Describe(ch)
			close(ch)
			var descs []string
			for d := range ch {
				descs = append(descs, fqName(d))
			}
			So(descs, ShouldContain, "test_a_info")
			So(descs, ShouldNotContain, "test_b_info")
		})
	})
}
