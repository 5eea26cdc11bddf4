package sync

// Cursor is the pair of watermarks a coordinator keeps per collection:
// applied is the last revision folded into the replica, target the last
// revision the coordinator has been told to reach.
type Cursor struct {
	applied int64
	target  int64
}

// NeedsSync reports whether the collection has unfolded history.
func (c Cursor) NeedsSync() bool {
	return c.applied != c.target
}

// Applied returns the applied watermark.
func (c Cursor) Applied() int64 { return c.applied }

// Target returns the requested watermark.
func (c Cursor) Target() int64 { return c.target }
