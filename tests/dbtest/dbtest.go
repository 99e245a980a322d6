// dbtest runs one scrape cycle against a real database and prints what
// every probe returned.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"yunche.pro/dtsre/oracledb_exporter/collector"
	"yunche.pro/dtsre/oracledb_exporter/dbutil"
)

var (
	configFile = "oracledb_exporter.yaml"
)

func main() {
	dsn := os.Getenv("DATA_SOURCE_NAME")
	if dsn == "" {
		c, err := dbutil.LoadOracleConfig(configFile)
		if err != nil {
			fmt.Println("error:", err)
			os.Exit(1)
		}
		if dsn, err = c.Datasource(); err != nil {
			fmt.Println("error:", err)
			os.Exit(1)
		}
	}
	querydb(dsn)
}

func querydb(dsn string) {
	registry, err := collector.NewRegistry(collector.DefaultProbes()...)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	e := collector.New(
		collector.NewOracleLeaser(dbutil.NewOracleClient(dsn)),
		registry,
		collector.WithQueryTimeout(30*time.Second),
	)
	res := e.Scrape(context.Background())
	if res.ConnErr != nil {
		fmt.Println("connect error:", res.ConnErr)
		return
	}

	for _, o := range res.Outcomes {
		fmt.Printf("PROBE: %s ok=%v rows=%d took=%s\n", o.Probe, o.OK, o.Rows, o.Duration)
		if o.Err != nil {
			fmt.Println("  error:", o.Err)
			continue
		}
		for _, s := range e.Store().Family(o.Probe) {
			fmt.Printf("  ROW: %s = %g\n", strings.Join(s.Labels, " | "), s.Value)
		}
	}
	if res.ReleaseErr != nil {
		fmt.Println("release error:", res.ReleaseErr)
	}
}
