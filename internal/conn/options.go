package conn

import "time"

// Options configures a Manager.
type Options struct {
	URL          string
	MaxAttempts  int           // attempts per connect cycle
	RetryDelay   time.Duration // fixed delay between attempts
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultOptions returns the reference retry policy: five attempts one
// second apart.
func DefaultOptions(url string) Options {
	return Options{
		URL:          url,
		MaxAttempts:  5,
		RetryDelay:   time.Second,
		DialTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions(o.URL)
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = d.RetryDelay
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = d.DialTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	return o
}
