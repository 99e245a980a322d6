package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/version"
	"github.com/prometheus/exporter-toolkit/web"
	"github.com/prometheus/exporter-toolkit/web/kingpinflag"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/alecthomas/kingpin.v2"

	"yunche.pro/dtsre/oracledb_exporter/collector"
	"yunche.pro/dtsre/oracledb_exporter/config"
	"yunche.pro/dtsre/oracledb_exporter/dbutil"
	"yunche.pro/dtsre/oracledb_exporter/logutil"
)

const program = "oracledb_exporter"

const shutdownTimeout = 5 * time.Second

func main() {
	if err := config.LoadDotEnv(config.DotEnvPaths()...); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flags := config.Register(kingpin.CommandLine)
	webConfig := kingpinflag.AddFlags(kingpin.CommandLine)

	// Generate ON/OFF flags for all probes.
	probes := collector.DefaultProbes()
	probeFlags := make(map[string]*bool, len(probes))
	for _, p := range probes {
		probeFlags[p.Name] = kingpin.Flag(
			"collect."+p.Name,
			p.Help,
		).Default("true").Bool()
	}

	kingpin.Version(version.Print(program))
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()

	cfg, err := flags.Config()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := logutil.InitLog(cfg.LogFile, cfg.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log.WithFields(log.Fields{"version": version.Info(), "build": version.BuildContext()}).Info("Starting " + program)

	all, err := collector.NewRegistry(probes...)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Fatal("Invalid probe table")
	}
	registry := all.Filter(func(p collector.Probe) bool {
		return *probeFlags[p.Name]
	})
	log.WithFields(log.Fields{"probes": registry.Names()}).Info("Probes Enabled")

	exporter := collector.New(
		collector.NewOracleLeaser(dbutil.NewOracleClient(cfg.DSN)),
		registry,
		collector.WithQueryTimeout(cfg.QueryTimeout),
		collector.WithRetainSeries(cfg.RetainSeries),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		version.NewCollector(program),
	)

	srv := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: newMux(reg, exporter, cfg.TelemetryPath),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := collector.NewScheduler(exporter, cfg.ScrapeInterval).Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		log.WithFields(log.Fields{"address": cfg.ListenAddress}).Info("Listening on address")
		err := web.ListenAndServe(srv, *webConfig, logutil.NewKitLogger(log.StandardLogger()))
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "serve http")
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithFields(log.Fields{"err": err}).Error("Exporter stopped")
		os.Exit(1)
	}
	log.Info("Exporter stopped")
}

func newMux(base prometheus.Gatherer, exporter *collector.Exporter, metricPath string) *http.ServeMux {
	// landingPage contains the HTML served at '/'.
	var landingPage = []byte(`<html>
<head><title>Oracle Database exporter</title></head>
<body>
<h1>Oracle Database exporter</h1>
<p><a href='` + metricPath + `'>Metrics</a></p>
</body>
</html>
`)

	mux := http.NewServeMux()
	mux.Handle(metricPath, newHandler(base, exporter))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write(landingPage)
	})
	return mux
}

// newHandler serves the last published snapshot. Repeated "collect[]"
// query parameters restrict the output to the named probes.
func newHandler(base prometheus.Gatherer, exporter *collector.Exporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c prometheus.Collector = exporter
		if params := r.URL.Query()["collect[]"]; len(params) > 0 {
			log.WithFields(log.Fields{"collect": params}).Debug("Filter probes")
			c = exporter.Filtered(params...)
		}

		registry := prometheus.NewRegistry()
		registry.MustRegister(c)

		gatherers := prometheus.Gatherers{
			base,
			registry,
		}
		h := promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{
			ErrorLog:      log.StandardLogger(),
			ErrorHandling: promhttp.ContinueOnError,
		})
		h.ServeHTTP(w, r)
	}
}
