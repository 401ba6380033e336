// Package buildinfo carries the version identifiers stamped into the
// bankfeed binary at link time.
package buildinfo

// Set through -ldflags by the release build. The defaults identify a
// plain source build.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
