package registry

import "time"

// Defaults per §4.2: timeouts default to 10-30s per request.
const (
	DefaultHTTPTimeout  = 20 * time.Second
	DefaultPageCap      = 1000
	DefaultPageSize     = 100
	DefaultRateInterval = 100 * time.Millisecond
)
