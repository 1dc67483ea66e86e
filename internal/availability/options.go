package availability

import "time"

// Options controls a single Check. Zero values are not meaningful; start from
// DefaultOptions or the Checker's configured defaults.
type Options struct {
	UseCache            bool
	CacheTTL            time.Duration
	FallbackOnError     bool
	IncludeUserDetails  bool
	Timeout             time.Duration
	ValidateEmailFormat bool
}

// DefaultOptions returns the documented defaults: cache on for 5m, fallback on,
// details off, 5s lookup timeout, format validation on.
func DefaultOptions() Options {
	return Options{
		UseCache:            true,
		CacheTTL:            5 * time.Minute,
		FallbackOnError:     true,
		Timeout:             5 * time.Second,
		ValidateEmailFormat: true,
	}
}

// Option overrides one field of Options for a single Check.
type Option func(*Options)

// WithoutCache bypasses the cache for both read and write.
func WithoutCache() Option { return func(o *Options) { o.UseCache = false } }

func WithCacheTTL(ttl time.Duration) Option {
	return func(o *Options) {
		if ttl > 0 {
			o.CacheTTL = ttl
		}
	}
}

// WithoutFallback surfaces lookup failures instead of degrading.
func WithoutFallback() Option { return func(o *Options) { o.FallbackOnError = false } }

// WithUserDetails includes UserType and Status in the result.
func WithUserDetails() Option { return func(o *Options) { o.IncludeUserDetails = true } }

func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.Timeout = d
		}
	}
}

func WithoutFormatValidation() Option { return func(o *Options) { o.ValidateEmailFormat = false } }
