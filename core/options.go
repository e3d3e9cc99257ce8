package core

import "github.com/pixelforge/imgcore/codecs"

// Option configures a Context at Create time.
type Option func(*Context)

// WithLogger attaches a structured logger; the default is a no-op logger.
func WithLogger(l Logger) Option {
	return func(c *Context) { c.logger = l }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return func(c *Context) { c.metrics = m }
}

// WithEnabledCodecs overrides the default enabled-codecs policy.
func WithEnabledCodecs(e codecs.EnabledCodecs) Option {
	return func(c *Context) { c.enabledCodecs = e }
}

// WithSecurityPolicy overrides the default security policy wholesale
// (unlike ConfigureSecurity, this does not merge with a prior policy —
// there is no prior policy yet at construction time).
func WithSecurityPolicy(p SecurityPolicy) Option {
	return func(c *Context) { c.security = p }
}

// WithBitmapCapacityHint sizes the bitmaps container's initial map.
func WithBitmapCapacityHint(n int) Option {
	return func(c *Context) { c.bitmapCapHint = n }
}

// WithCodecCapacityHint sizes the codec instance map's initial capacity.
func WithCodecCapacityHint(n int) Option {
	return func(c *Context) { c.codecCapHint = n }
}

// WithRegistry overrides the default codec registry, mainly for tests that
// want to register a fake decoder/encoder without touching the real one.
func WithRegistry(r *codecs.Registry) Option {
	return func(c *Context) { c.registry = r }
}
