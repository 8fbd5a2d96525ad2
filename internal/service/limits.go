package service

import "time"

// Limits holds every tunable bound the service enforces. It is an immutable
// value handed in at construction so tests can vary limits per case instead
// of fighting package-level constants.
type Limits struct {
	MaxKeyLength      int           `mapstructure:"maxkeylength"`
	MaxValueSize      int64         `mapstructure:"maxvaluesize"`
	NamespaceQuota    int64         `mapstructure:"namespacequota"`
	MinTTL            time.Duration `mapstructure:"minttl"`
	MaxTTL            time.Duration `mapstructure:"maxttl"`
	CreateWindow      time.Duration `mapstructure:"createwindow"`
	GlobalCreateLimit int           `mapstructure:"globalcreatelimit"`
	OriginCreateLimit int           `mapstructure:"origincreatelimit"`
	PageSize          int           `mapstructure:"pagesize"`
}

// DefaultLimits returns the production limits.
func DefaultLimits() Limits {
	return Limits{
		MaxKeyLength:      2048,
		MaxValueSize:      25 << 20,  // 25 MB
		NamespaceQuota:    200 << 20, // 200 MB per namespace
		MinTTL:            time.Minute,
		MaxTTL:            10 * 365 * 24 * time.Hour, // 10 years
		CreateWindow:      24 * time.Hour,
		GlobalCreateLimit: 1000,
		OriginCreateLimit: 20,
		PageSize:          1000,
	}
}

// clampTTL resolves an optional request-supplied TTL in seconds into the
// allowed range. Unspecified means the maximum. Bounds are compared in
// seconds before converting to a Duration: a huge request would overflow
// int64 nanoseconds and flip negative.
func (l Limits) clampTTL(seconds *int64) time.Duration {
	if seconds == nil {
		return l.MaxTTL
	}
	if *seconds >= int64(l.MaxTTL/time.Second) {
		return l.MaxTTL
	}
	if *seconds <= int64(l.MinTTL/time.Second) {
		return l.MinTTL
	}
	return time.Duration(*seconds) * time.Second
}
