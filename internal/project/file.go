package project

import (
	"fmt"
	"time"

	"github.com/inkwell-md/inkwell/internal/doc"
	"github.com/inkwell-md/inkwell/internal/protocol"
	"github.com/inkwell-md/inkwell/internal/registry"
)

// ListenKind selects which of a file's two views a subscriber watches.
type ListenKind int

const (
	// The raw markdown source
	ListenSource ListenKind = iota

	// The compiled document tree
	ListenCompiled
)

// Change records the provenance of the most recent source edit. It exists
// for sync comparison only, never for content storage.
type Change struct {
	By protocol.EditorID `json:"by"`
	At time.Time         `json:"at"`
}

// File is one editable document: source text, derived tree, edit lock, and
// change timestamps. Files are owned exclusively by their project and only
// ever touched under the project's mutex, so they carry no lock of their own.
type File struct {
	id        protocol.FileID
	projectID protocol.ProjectID
	name      string
	src       string

	compiled         Compiled
	lock             *Lock
	lastSourceChange *Change
	lastCompiledAt   *time.Time

	srcListeners registry.Registry
	docListeners registry.Registry

	pipeline *doc.Pipeline
	workdir  string
}

func newFile(id protocol.FileID, projectID protocol.ProjectID, name, src string, pipeline *doc.Pipeline, workdir string) *File {
	return &File{
		id:        id,
		projectID: projectID,
		name:      name,
		src:       src,
		pipeline:  pipeline,
		workdir:   workdir,
	}
}

func (f *File) ID() protocol.FileID { return f.id }
func (f *File) Name() string        { return f.name }
func (f *File) Source() string      { return f.src }

func (f *File) Info() protocol.FileInfo {
	return protocol.FileInfo{ID: f.id, Name: f.name}
}

// Index projects the file's sync-relevant metadata, excluding all content.
func (f *File) Index() FileIndex {
	idx := FileIndex{}
	if f.lock != nil {
		l := *f.lock
		idx.Lock = &l
	}
	if f.lastSourceChange != nil {
		c := *f.lastSourceChange
		idx.LastSourceChange = &c
	}
	if f.lastCompiledAt != nil {
		t := *f.lastCompiledAt
		idx.LastCompiledAt = &t
	}
	return idx
}

// AcquireOrRenew claims the edit lock for editor. It succeeds when the file
// is unlocked, already held by editor, or held by an expired lock; a live
// lock held by someone else yields a *LockedError.
func (f *File) AcquireOrRenew(editor protocol.EditorID, now time.Time, ttl time.Duration) error {
	if f.lock != nil && f.lock.By != editor && f.lock.Live(now) {
		return &LockedError{Lock: *f.lock}
	}
	f.lock = &Lock{By: editor, AcquiredAt: now, TTL: ttl}
	return nil
}

// Edit commits new source under the edit lock, notifies source-view
// subscribers, and recompiles synchronously so callers observe a consistent
// (source, compiled) pair.
//
// A *LockedError means nothing was committed. Any other error reports a
// failed recompile: the source commit stands, the previous artifact (if
// any) stays displayable as stale, and the returned time is valid.
func (f *File) Edit(editor protocol.EditorID, now time.Time, src string, ttl time.Duration) (time.Time, error) {
	if err := f.AcquireOrRenew(editor, now, ttl); err != nil {
		return time.Time{}, err
	}

	f.src = src
	f.lastSourceChange = &Change{By: editor, At: now}
	f.compiled.MarkStale()

	f.srcListeners.Broadcast(protocol.FileSource(f.projectID, f.id, f.src), editor)

	if err := f.compile(now); err != nil {
		return now, fmt.Errorf("file %q: %w", f.name, err)
	}

	tree, _ := f.compiled.Tree()
	f.docListeners.Broadcast(protocol.FileCompiled(f.projectID, f.id, tree.Blocks), editor)

	return now, nil
}

// compile re-derives the tree unless it is already fresh.
func (f *File) compile(now time.Time) error {
	if f.compiled.Status() == CompileFresh {
		return nil
	}
	tree, err := f.pipeline.Compile(f.src, f.workdir)
	if err != nil {
		return err
	}
	f.compiled.SetFresh(tree)
	at := now
	f.lastCompiledAt = &at
	return nil
}

// Compiled returns the document tree, compiling on demand. On a compile
// failure it falls back to the previous artifact when one exists: a stale
// view beats a blank one.
func (f *File) Compiled(now time.Time) (*doc.Tree, error) {
	err := f.compile(now)
	if tree, ok := f.compiled.Tree(); ok {
		return tree, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file %q: %w", f.name, err)
	}
	return nil, fmt.Errorf("file %q: no compiled output", f.name)
}

// Join subscribes conn to one of the file's views. Only a new subscriber
// receives the initial snapshot push.
func (f *File) Join(kind ListenKind, id protocol.EditorID, conn registry.Conn) {
	switch kind {
	case ListenSource:
		if f.srcListeners.Subscribe(id, conn) {
			conn.Send(protocol.FileSource(f.projectID, f.id, f.src))
		}
	case ListenCompiled:
		if f.docListeners.Subscribe(id, conn) {
			var blocks []doc.Block
			if tree, ok := f.compiled.Tree(); ok {
				blocks = tree.Blocks
			}
			conn.Send(protocol.FileCompiled(f.projectID, f.id, blocks))
		}
	}
}

// Leave drops conn's subscription to one of the file's views.
func (f *File) Leave(kind ListenKind, id protocol.EditorID) {
	switch kind {
	case ListenSource:
		f.srcListeners.Unsubscribe(id)
	case ListenCompiled:
		f.docListeners.Unsubscribe(id)
	}
}
