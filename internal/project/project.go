// Package project implements the per-project synchronization core: files
// with expiring edit locks, push notification of subscribers, and the
// index/delta reconciliation used by polling clients.
package project

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/inkwell-md/inkwell/internal/doc"
	"github.com/inkwell-md/inkwell/internal/protocol"
	"github.com/inkwell-md/inkwell/internal/registry"
)

// ErrNotFound rejects operations naming an unknown project or file id.
var ErrNotFound = errors.New("not found")

// FileRecord is the persisted form of one file.
type FileRecord struct {
	Name   string
	Source string
}

// Record is the persisted form of a project: the name plus the ordered file
// names and raw sources. Everything else is derived.
type Record struct {
	ID    protocol.ProjectID
	Name  string
	Files []FileRecord
}

// Saver persists a project after each committed change. The engine treats
// it as a black box.
type Saver interface {
	SaveProject(rec Record) error
}

// Options configures a new project.
type Options struct {
	Pipeline *doc.Pipeline
	Workdir  string
	LockTTL  time.Duration
	Saver    Saver
}

// Project owns an ordered collection of files sharing one editing session
// namespace. Every mutation of a project is serialized behind its mutex:
// files never need locks of their own, and the lock and index invariants
// hold without finer-grained coordination. Different projects proceed fully
// in parallel.
type Project struct {
	mu sync.Mutex

	id          protocol.ProjectID
	name        string
	lastChanged time.Time

	order []protocol.FileID
	files map[protocol.FileID]*File

	listeners registry.Registry

	pipeline *doc.Pipeline
	workdir  string
	lockTTL  time.Duration
	saver    Saver
}

// New creates an empty project. The working directory receives diagram
// images and is where embedded code executes.
func New(id protocol.ProjectID, name string, opts Options) (*Project, error) {
	if opts.Workdir != "" {
		if err := os.MkdirAll(opts.Workdir, 0755); err != nil {
			return nil, fmt.Errorf("project workdir: %w", err)
		}
	}
	ttl := opts.LockTTL
	if ttl == 0 {
		ttl = DefaultLockTTL
	}
	return &Project{
		id:          id,
		name:        name,
		lastChanged: time.Now(),
		files:       make(map[protocol.FileID]*File),
		pipeline:    opts.Pipeline,
		workdir:     opts.Workdir,
		lockTTL:     ttl,
		saver:       opts.Saver,
	}, nil
}

// Seed populates a fresh project with the starter documents.
func (p *Project) Seed() {
	p.NewFile("index", "# Index")
	p.NewFile("abstract", "# Abstract")
}

func (p *Project) ID() protocol.ProjectID { return p.id }

func (p *Project) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

// NewFile appends a file and returns its id. File ids are count-derived and
// never reused; files are never removed while the project lives.
func (p *Project) NewFile(name, src string) protocol.FileID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.newFileLocked(name, src)
}

func (p *Project) newFileLocked(name, src string) protocol.FileID {
	id := protocol.FileID(len(p.files))
	f := newFile(id, p.id, name, src, p.pipeline, p.workdir)
	p.files[id] = f
	p.order = append(p.order, id)
	return id
}

// Info snapshots the project's display metadata.
func (p *Project) Info() protocol.ProjectInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.infoLocked()
}

func (p *Project) infoLocked() protocol.ProjectInfo {
	order := make([]protocol.FileID, len(p.order))
	copy(order, p.order)
	return protocol.ProjectInfo{
		ID:          p.id,
		Name:        p.name,
		LastChanged: p.lastChanged,
		Files:       order,
	}
}

// FileInfos lists the files in display order.
func (p *Project) FileInfos() []protocol.FileInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	infos := make([]protocol.FileInfo, 0, len(p.order))
	for _, id := range p.order {
		infos = append(infos, p.files[id].Info())
	}
	return infos
}

// Join subscribes a client to project-level updates. A new subscriber gets
// the current file list pushed immediately; re-joining is a no-op.
func (p *Project) Join(id protocol.EditorID, conn registry.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.listeners.Subscribe(id, conn) {
		return
	}
	infos := make([]protocol.FileInfo, 0, len(p.order))
	for _, fid := range p.order {
		infos = append(infos, p.files[fid].Info())
	}
	conn.Send(protocol.Files(p.id, infos))
}

// Leave drops a client's project-level subscription.
func (p *Project) Leave(id protocol.EditorID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners.Unsubscribe(id)
}

// JoinFile subscribes a client to one of a file's views.
func (p *Project) JoinFile(fileID protocol.FileID, kind ListenKind, id protocol.EditorID, conn registry.Conn) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, ok := p.files[fileID]
	if !ok {
		return fmt.Errorf("file %d: %w", fileID, ErrNotFound)
	}
	f.Join(kind, id, conn)
	return nil
}

// LeaveFile drops a client's subscription to one of a file's views.
func (p *Project) LeaveFile(fileID protocol.FileID, kind ListenKind, id protocol.EditorID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, ok := p.files[fileID]
	if !ok {
		return fmt.Errorf("file %d: %w", fileID, ErrNotFound)
	}
	f.Leave(kind, id)
	return nil
}

// Snapshot builds the current index: the file order plus every file's
// sync metadata. Read-only, O(files).
func (p *Project) Snapshot() ProjectIndex {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Project) snapshotLocked() ProjectIndex {
	idx := ProjectIndex{
		Order: make([]protocol.FileID, len(p.order)),
		Files: make(map[protocol.FileID]FileIndex, len(p.files)),
	}
	copy(idx.Order, p.order)
	for id, f := range p.files {
		idx.Files[id] = f.Index()
	}
	return idx
}

// Diff compares a requester-held baseline against a fresh snapshot and
// returns only what the requester has not yet observed, with the
// requester's own source edits suppressed.
func (p *Project) Diff(requester protocol.EditorID, baseline ProjectIndex) ProjectIndexDelta {
	p.mu.Lock()
	defer p.mu.Unlock()
	return diffIndex(requester, baseline, p.snapshotLocked())
}

// EditFile commits new source for a file under its edit lock, recompiles,
// notifies all subscribers except the editor, and persists the project.
//
// A *LockedError or ErrNotFound means nothing changed. Any other error is
// reported alongside a valid commit time: the keystrokes are committed even
// when recompilation or persistence fails.
func (p *Project) EditFile(editor protocol.EditorID, fileID protocol.FileID, src string) (time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, ok := p.files[fileID]
	if !ok {
		return time.Time{}, fmt.Errorf("file %d: %w", fileID, ErrNotFound)
	}

	now := time.Now()
	at, err := f.Edit(editor, now, src, p.lockTTL)
	var locked *LockedError
	if errors.As(err, &locked) {
		return time.Time{}, err
	}
	if err != nil {
		log.Printf("project %d: recompile after edit failed: %v", p.id, err)
	}

	p.changedLocked(editor)
	return at, err
}

// changedLocked refreshes the change timestamp, notifies project listeners
// (except the acting editor, which already knows), and persists.
func (p *Project) changedLocked(by protocol.EditorID) {
	p.lastChanged = time.Now()
	p.listeners.Broadcast(protocol.ProjectUpdate(p.id, p.infoLocked()), by)

	if p.saver == nil {
		return
	}
	if err := p.saver.SaveProject(p.recordLocked()); err != nil {
		log.Printf("project %d: save failed: %v", p.id, err)
	}
}

// Source returns a file's current source text.
func (p *Project) Source(fileID protocol.FileID) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, ok := p.files[fileID]
	if !ok {
		return "", fmt.Errorf("file %d: %w", fileID, ErrNotFound)
	}
	return f.Source(), nil
}

// Compiled returns a file's document tree, compiling on demand. Compilation
// is skipped entirely when the tree is already fresh.
func (p *Project) Compiled(fileID protocol.FileID) (*doc.Tree, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, ok := p.files[fileID]
	if !ok {
		return nil, fmt.Errorf("file %d: %w", fileID, ErrNotFound)
	}
	return f.Compiled(time.Now())
}

// Reorder moves a file to a new position in the display order. The order
// always stays a permutation of the file set; moving a file onto its
// current position is a no-op.
func (p *Project) Reorder(by protocol.EditorID, fileID protocol.FileID, newIndex int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	oldIndex := -1
	for i, id := range p.order {
		if id == fileID {
			oldIndex = i
			break
		}
	}
	if oldIndex == -1 {
		return fmt.Errorf("file %d: %w", fileID, ErrNotFound)
	}
	if newIndex < 0 || newIndex >= len(p.order) {
		return fmt.Errorf("reorder index %d out of range", newIndex)
	}
	if oldIndex == newIndex {
		return nil
	}

	p.order = append(p.order[:oldIndex], p.order[oldIndex+1:]...)
	p.order = append(p.order[:newIndex], append([]protocol.FileID{fileID}, p.order[newIndex:]...)...)

	p.changedLocked(by)
	return nil
}

// CreatePDF assembles every file's tree in display order into a single PDF
// at outPath. Files compile on demand; a file with no artifact at all fails
// the assembly.
func (p *Project) CreatePDF(outPath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	trees := make([]*doc.Tree, 0, len(p.order))
	for _, id := range p.order {
		tree, err := p.files[id].Compiled(time.Now())
		if err != nil {
			return err
		}
		trees = append(trees, tree)
	}
	return p.pipeline.ToPDF(trees, p.workdir, outPath)
}

// Record snapshots the project's persisted form.
func (p *Project) Record() Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recordLocked()
}

func (p *Project) recordLocked() Record {
	rec := Record{ID: p.id, Name: p.name}
	for _, id := range p.order {
		f := p.files[id]
		rec.Files = append(rec.Files, FileRecord{Name: f.Name(), Source: f.Source()})
	}
	return rec
}

// Restore recreates a project's files from a persisted record. Sources
// compile lazily on first read.
func (p *Project) Restore(rec Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, fr := range rec.Files {
		p.newFileLocked(fr.Name, fr.Source)
	}
}
