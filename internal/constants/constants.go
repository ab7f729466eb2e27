// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Engine constants
const (
	// DefaultTickInterval is the render loop period used when none is configured
	DefaultTickInterval = 16 * time.Millisecond

	// MaxCachedInfluenceMaps bounds the per-renderer influence map cache
	MaxCachedInfluenceMaps = 8

	// DefaultBenchIterations is the number of solves timed by the bench command
	DefaultBenchIterations = 500
)

// HTTP constants
const (
	// OwnerHeader carries the owner reference supplied by the upstream gateway
	OwnerHeader = "X-Owner-Ref"

	// MaxJSONBodySize limits JSON request bodies (landmark sets are the largest)
	MaxJSONBodySize = 2 << 20

	// MaxUploadSize limits reference image uploads
	MaxUploadSize = 20 << 20

	// EventChannelBuffer is the buffer size for SSE mesh listeners
	EventChannelBuffer = 4

	// EditorIdleTimeout is how long an editor may go untouched before it is closed
	EditorIdleTimeout = 30 * time.Minute

	// EditorSweepInterval is how often idle editors are looked for
	EditorSweepInterval = time.Minute

	// CompareTimeout bounds a session comparison request
	CompareTimeout = 30 * time.Second
)
