package collector

// ConnectionError means a scrape cycle could not obtain its connection.
// The cycle ends without running any probe.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string { return "acquire connection: " + e.Err.Error() }
func (e *ConnectionError) Unwrap() error { return e.Err }
func (e *ConnectionError) Cause() error  { return e.Err }

// QueryError is a failure of a single probe: the query itself, a timeout,
// or a row that could not be mapped.
type QueryError struct {
	Probe string
	Err   error
}

func (e *QueryError) Error() string { return "probe " + e.Probe + ": " + e.Err.Error() }
func (e *QueryError) Unwrap() error { return e.Err }
func (e *QueryError) Cause() error  { return e.Err }

// ReleaseError is a failure closing the cycle's connection. It is logged
// and never changes the outcome of the probes that already ran.
type ReleaseError struct {
	Err error
}

func (e *ReleaseError) Error() string { return "release connection: " + e.Err.Error() }
func (e *ReleaseError) Unwrap() error { return e.Err }
func (e *ReleaseError) Cause() error  { return e.Err }
