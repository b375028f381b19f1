package project

import "github.com/inkwell-md/inkwell/internal/doc"

// CompileStatus tags a file's derived output.
type CompileStatus int

const (
	// Never compiled; no artifact exists.
	CompileAbsent CompileStatus = iota

	// Source edited since the artifact was produced; the artifact is still
	// displayable but due for recompilation.
	CompileStale

	// Artifact matches the current source.
	CompileFresh
)

// Compiled is the single state machine for derived output. Invariant: the
// tree is nil exactly when the status is CompileAbsent.
type Compiled struct {
	status CompileStatus
	tree   *doc.Tree
}

func (c *Compiled) Status() CompileStatus { return c.status }

// Tree returns the current artifact, stale or fresh, if one exists.
func (c *Compiled) Tree() (*doc.Tree, bool) {
	return c.tree, c.tree != nil
}

// MarkStale records a source edit: Fresh demotes to Stale, Stale and Absent
// are unchanged.
func (c *Compiled) MarkStale() {
	if c.status == CompileFresh {
		c.status = CompileStale
	}
}

// SetFresh installs a new artifact matching the current source.
func (c *Compiled) SetFresh(tree *doc.Tree) {
	c.status = CompileFresh
	c.tree = tree
}
