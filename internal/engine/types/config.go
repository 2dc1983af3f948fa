package types

import "time"

// Size constants
const (
	KB = 1024
	MB = 1024 * KB
)

// Pipeline defaults. Every value can be overridden through RuntimeConfig.
const (
	DefaultHTTPTimeout      = 15 * time.Second
	DefaultMergeTimeout     = 10 * time.Minute
	DefaultMaxRetries       = 3
	DefaultRetryBackoff     = 500 * time.Millisecond
	DefaultBatchWorkers     = 3
	DefaultFrameParallelism = 4
	DefaultProgressChunk    = 64 * KB

	// IncompleteSuffix marks files still being written.
	IncompleteSuffix = ".part"

	// ProgressChannelBuffer sizes the event sink channel.
	ProgressChannelBuffer = 100
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/131.0.0.0 Safari/537.36"

// RuntimeConfig holds dynamic settings that can override pipeline defaults.
// A nil RuntimeConfig is valid and yields defaults from every getter.
type RuntimeConfig struct {
	UserAgent           string
	RefererOrigin       string // Origin/Referer presented to the site
	ProxyURL            string
	SkipTLSVerification bool
	FFmpegPath          string

	HTTPTimeout      time.Duration
	MergeTimeout     time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
	BatchWorkers     int
	FrameParallelism int
	ProgressChunk    int64
}

// GetUserAgent returns the configured user agent or the default.
func (r *RuntimeConfig) GetUserAgent() string {
	if r == nil || r.UserAgent == "" {
		return defaultUserAgent
	}
	return r.UserAgent
}

// GetRefererOrigin returns the configured site origin or the default.
func (r *RuntimeConfig) GetRefererOrigin() string {
	if r == nil || r.RefererOrigin == "" {
		return "https://kr.linkkf.net/"
	}
	return r.RefererOrigin
}

// GetFFmpegPath returns the configured merge tool path or the bare command
// name, leaving resolution to the system PATH.
func (r *RuntimeConfig) GetFFmpegPath() string {
	if r == nil || r.FFmpegPath == "" {
		return "ffmpeg"
	}
	return r.FFmpegPath
}

// GetHTTPTimeout returns configured value or default.
func (r *RuntimeConfig) GetHTTPTimeout() time.Duration {
	if r == nil || r.HTTPTimeout <= 0 {
		return DefaultHTTPTimeout
	}
	return r.HTTPTimeout
}

// GetMergeTimeout returns configured value or default.
func (r *RuntimeConfig) GetMergeTimeout() time.Duration {
	if r == nil || r.MergeTimeout <= 0 {
		return DefaultMergeTimeout
	}
	return r.MergeTimeout
}

// GetMaxRetries returns configured value or default.
func (r *RuntimeConfig) GetMaxRetries() int {
	if r == nil || r.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return r.MaxRetries
}

// GetRetryBackoff returns configured value or default.
func (r *RuntimeConfig) GetRetryBackoff() time.Duration {
	if r == nil || r.RetryBackoff <= 0 {
		return DefaultRetryBackoff
	}
	return r.RetryBackoff
}

// GetBatchWorkers returns configured value or default.
func (r *RuntimeConfig) GetBatchWorkers() int {
	if r == nil || r.BatchWorkers <= 0 {
		return DefaultBatchWorkers
	}
	return r.BatchWorkers
}

// GetFrameParallelism returns configured value or default.
func (r *RuntimeConfig) GetFrameParallelism() int {
	if r == nil || r.FrameParallelism <= 0 {
		return DefaultFrameParallelism
	}
	return r.FrameParallelism
}

// GetProgressChunk returns configured value or default.
func (r *RuntimeConfig) GetProgressChunk() int64 {
	if r == nil || r.ProgressChunk <= 0 {
		return DefaultProgressChunk
	}
	return r.ProgressChunk
}
