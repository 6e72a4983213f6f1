package mapper

import "fmt"

// MergeFlags controls a merge invocation.
type MergeFlags struct {
	// Simulate computes the conflict set without committing any mutation.
	// The conflicts reported must be identical to a real merge.
	Simulate bool
}

// MergeContext accumulates conflicts across one merge call. Conflicts are
// reported, never thrown mid-merge; the caller decides whether any of
// them is fatal.
type MergeContext struct {
	doc       *DocumentMapper
	flags     MergeFlags
	conflicts []string
}

// NewMergeContext creates a merge context targeting doc.
func NewMergeContext(doc *DocumentMapper, flags MergeFlags) *MergeContext {
	return &MergeContext{doc: doc, flags: flags}
}

// Simulate reports whether this merge is a dry run.
func (c *MergeContext) Simulate() bool { return c.flags.Simulate }

// DocMapper returns the document mapper receiving field registrations.
func (c *MergeContext) DocMapper() *DocumentMapper { return c.doc }

// AddConflict records one merge conflict.
func (c *MergeContext) AddConflict(format string, args ...any) {
	c.conflicts = append(c.conflicts, fmt.Sprintf(format, args...))
}

// Conflicts returns every conflict recorded so far.
func (c *MergeContext) Conflicts() []string { return c.conflicts }

// HasConflicts reports whether any conflict was recorded.
func (c *MergeContext) HasConflicts() bool { return len(c.conflicts) > 0 }
