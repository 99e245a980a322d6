package dbutil

import (
	"context"
	"database/sql"
	"io/ioutil"
	"sync"

	"github.com/pkg/errors"
	go_ora "github.com/sijms/go-ora/v2"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const driverName = "oracle"

// OracleConfig is the optional YAML connection file. It is only consulted
// when no DSN is given on the command line or in the environment.
type OracleConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Service  string `yaml:"service"`
}

type Row []interface{}

func LoadOracleConfig(configFile string) (*OracleConfig, error) {
	buf, err := ioutil.ReadFile(configFile)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", configFile)
	}

	var c OracleConfig
	if err := yaml.Unmarshal(buf, &c); err != nil {
		return nil, errors.Wrapf(err, "parse %s", configFile)
	}
	return &c, nil
}

// Datasource builds an oracle:// url for the go-ora driver.
func (c OracleConfig) Datasource() (string, error) {
	if c.Host == "" {
		return "", errors.New("host is empty")
	}
	if c.Service == "" {
		return "", errors.New("service is empty")
	}
	port := c.Port
	if port == 0 {
		port = 1521
	}
	return go_ora.BuildUrl(c.Host, port, c.Service, c.Username, c.Password, nil), nil
}

type OracleClient struct {
	dsn  string
	open func(driverName, dsn string) (*sql.DB, error)
}

func NewOracleClient(dsn string) *OracleClient {
	return NewOracleClientWithOpener(dsn, sql.Open)
}

// NewOracleClientWithOpener uses open instead of sql.Open to create the
// pool of every lease.
func NewOracleClientWithOpener(dsn string, open func(driverName, dsn string) (*sql.DB, error)) *OracleClient {
	return &OracleClient{dsn: dsn, open: open}
}

// Acquire opens a dedicated connection for one scrape cycle. On failure
// everything built so far is torn down here, so the returned lease is
// either usable or nil.
func (c *OracleClient) Acquire(ctx context.Context) (*Lease, error) {
	log.WithFields(log.Fields{"driver": driverName}).Debug("Connect to Oracle")

	db, err := c.open(driverName, c.dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		closeQuietly(db)
		return nil, errors.Wrap(err, "get connection")
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		closeQuietly(db)
		return nil, errors.Wrap(err, "ping database")
	}

	return &Lease{db: db, conn: conn}, nil
}

func closeQuietly(db *sql.DB) {
	if err := db.Close(); err != nil {
		log.WithFields(log.Fields{"error": err}).Debug("Close partially opened database")
	}
}

// Lease pins one connection. It is not safe for concurrent queries.
type Lease struct {
	db   *sql.DB
	conn *sql.Conn

	once sync.Once
	err  error
}

// Release closes the connection and its pool. Only the first call does any
// work; later calls return nil.
func (l *Lease) Release() error {
	released := false
	l.once.Do(func() {
		released = true
		var connErr error
		if l.conn != nil {
			connErr = l.conn.Close()
		}
		dbErr := l.db.Close()
		switch {
		case connErr != nil:
			l.err = errors.Wrap(connErr, "close connection")
		case dbErr != nil:
			l.err = errors.Wrap(dbErr, "close database")
		}
	})
	if !released {
		return nil
	}
	return l.err
}

func (l *Lease) FetchRowsWithContext(ctx context.Context, querytext string, params ...interface{}) ([]Row, error) {
	rs, err := l.ExecuteQueryWithContext(ctx, querytext, params...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	return fetchRows(rs)
}

func (l *Lease) ExecuteQueryWithContext(ctx context.Context, querytext string, params ...interface{}) (*sql.Rows, error) {
	if l.conn == nil {
		return nil, errors.New("DB Connection is Nil")
	}

	rows, err := l.conn.QueryContext(ctx, querytext, params...)
	if err != nil {
		log.WithFields(log.Fields{"error": err, "query": querytext}).Debug("Execute Query")
	}
	return rows, err
}

func fetchRows(rows *sql.Rows) ([]Row, error) {
	var ret []Row

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	for rows.Next() {
		n := make([]interface{}, len(columns))
		for i := range n {
			n[i] = new(interface{})
		}

		if err := rows.Scan(n...); err != nil {
			log.WithFields(log.Fields{"error": err}).Error("Scan Row Error")
			return nil, err
		}

		r := make(Row, 0, len(columns))
		for i := range columns {
			vv := getFieldValue(n[i])
			log.WithFields(log.Fields{"column": columns[i], "value": vv}).Debug("Got Field")
			r = append(r, vv)
		}
		ret = append(ret, r)
	}
	return ret, rows.Err()
}

// getFieldValue copies driver-owned byte slices, they are only valid until
// the next Scan.
func getFieldValue(val interface{}) interface{} {
	v := *val.(*interface{})
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
