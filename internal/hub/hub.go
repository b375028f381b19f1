// Package hub is the top-level directory of projects: it issues editor and
// project identities, routes lookups, and delivers the initial project list
// to newly connected clients.
package hub

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/inkwell-md/inkwell/internal/doc"
	"github.com/inkwell-md/inkwell/internal/project"
	"github.com/inkwell-md/inkwell/internal/protocol"
	"github.com/inkwell-md/inkwell/internal/registry"
)

// Store is the persistence contract the hub needs: save on change, load on
// boot.
type Store interface {
	project.Saver
	LoadProjects() ([]project.Record, error)
}

// Options configures a hub.
type Options struct {
	Pipeline *doc.Pipeline

	// WorkRoot holds one working directory per project.
	WorkRoot string

	LockTTL time.Duration

	// Store may be nil; the hub then runs purely in memory.
	Store Store
}

type Hub struct {
	mu       sync.RWMutex
	projects map[protocol.ProjectID]*project.Project
	conns    registry.Registry

	editorCount atomic.Uint64

	pipeline *doc.Pipeline
	workRoot string
	lockTTL  time.Duration
	store    Store
}

// New builds a hub and restores any stored projects. Restored projects get
// fresh count-derived ids in load order; stored ids are never reused.
func New(opts Options) (*Hub, error) {
	h := &Hub{
		projects: make(map[protocol.ProjectID]*project.Project),
		pipeline: opts.Pipeline,
		workRoot: opts.WorkRoot,
		lockTTL:  opts.LockTTL,
		store:    opts.Store,
	}

	if h.store != nil {
		recs, err := h.store.LoadProjects()
		if err != nil {
			return nil, fmt.Errorf("load projects: %w", err)
		}
		for _, rec := range recs {
			p, err := h.addProject(rec.Name)
			if err != nil {
				return nil, err
			}
			p.Restore(rec)
			log.Printf("Loaded project %d (%q, %d files)", p.ID(), rec.Name, len(rec.Files))
		}
	}

	return h, nil
}

// NewEditor issues a process-unique editor id. Ids start at 1 and grow
// monotonically; 0 is reserved as the no-editor sentinel.
func (h *Hub) NewEditor() protocol.EditorID {
	return protocol.EditorID(h.editorCount.Add(1))
}

// Connect registers a client handle and pushes the full project list to it.
// Reconnecting under the same id is a no-op.
func (h *Hub) Connect(id protocol.EditorID, conn registry.Conn) {
	h.mu.Lock()
	isNew := h.conns.Subscribe(id, conn)
	h.mu.Unlock()

	if isNew {
		conn.Send(protocol.Projects(h.ProjectInfos()))
	}
}

// Disconnect drops a client handle. Subscriptions held on individual
// projects and files are pruned lazily at their next broadcast.
func (h *Hub) Disconnect(id protocol.EditorID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns.Unsubscribe(id)
}

// CreateProject creates, seeds, and persists a new project, then announces
// the updated project list to every connected client except the creator.
func (h *Hub) CreateProject(name string, by protocol.EditorID) (*project.Project, error) {
	h.mu.Lock()
	p, err := h.addProject(name)
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}

	p.Seed()
	if h.store != nil {
		if err := h.store.SaveProject(p.Record()); err != nil {
			return nil, fmt.Errorf("save project: %w", err)
		}
	}

	h.mu.Lock()
	h.conns.Broadcast(protocol.Projects(h.projectInfosLocked()), by)
	h.mu.Unlock()

	log.Printf("Created project %d (%q)", p.ID(), name)
	return p, nil
}

// addProject allocates the next count-derived project id. Ids are never
// reused for the process lifetime.
func (h *Hub) addProject(name string) (*project.Project, error) {
	id := protocol.ProjectID(len(h.projects))
	workdir := ""
	if h.workRoot != "" {
		workdir = filepath.Join(h.workRoot, fmt.Sprintf("%d", id))
	}
	p, err := project.New(id, name, project.Options{
		Pipeline: h.pipeline,
		Workdir:  workdir,
		LockTTL:  h.lockTTL,
		Saver:    h.store,
	})
	if err != nil {
		return nil, err
	}
	h.projects[id] = p
	return p, nil
}

// Project looks up a project by id.
func (h *Hub) Project(id protocol.ProjectID) (*project.Project, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	p, ok := h.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %d: %w", id, project.ErrNotFound)
	}
	return p, nil
}

// ProjectInfos lists every project's info in id order.
func (h *Hub) ProjectInfos() []protocol.ProjectInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.projectInfosLocked()
}

func (h *Hub) projectInfosLocked() []protocol.ProjectInfo {
	infos := make([]protocol.ProjectInfo, 0, len(h.projects))
	for id := protocol.ProjectID(0); int(id) < len(h.projects); id++ {
		infos = append(infos, h.projects[id].Info())
	}
	return infos
}

// ProjectCount reports how many projects the hub holds.
func (h *Hub) ProjectCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.projects)
}

// ClientCount reports how many client handles are connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns.Len()
}
