package valueobjects

// Version is the server-assigned monotonic version of a vault. Higher wins;
// the zero value means the version is unknown (deletions arrive unversioned).
type Version int64

// NewerThan reports whether v strictly supersedes other. Equal versions are
// not newer, so replaying the same update is a no-op.
func (v Version) NewerThan(other Version) bool {
	return v > other
}

// IsZero checks if the version is unset
func (v Version) IsZero() bool {
	return v == 0
}

// Int64 returns the raw version counter
func (v Version) Int64() int64 {
	return int64(v)
}
