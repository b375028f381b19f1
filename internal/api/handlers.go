// Package api is the HTTP pull surface: editor identity, project listing,
// index/delta reconciliation, source/compiled reads, edits, and PDF export.
// It mirrors the push path for clients that cannot hold an open socket.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/inkwell-md/inkwell/internal/hub"
	"github.com/inkwell-md/inkwell/internal/project"
	"github.com/inkwell-md/inkwell/internal/protocol"
)

type API struct {
	hub    *hub.Hub
	pdfDir string
}

func New(h *hub.Hub, pdfDir string) *API {
	return &API{hub: h, pdfDir: pdfDir}
}

// Register wires every route onto the router.
func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/health", a.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", a.StatsHandler).Methods(http.MethodGet)

	r.HandleFunc("/api/get-editor-id", a.GetEditorIDHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/projects", a.ListProjectsHandler).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/api/new-project", a.NewProjectHandler).Methods(http.MethodPost)

	p := r.PathPrefix("/api/projects/{id:[0-9]+}").Subrouter()
	p.HandleFunc("/new-file", a.NewFileHandler).Methods(http.MethodPost)
	p.HandleFunc("/index", a.IndexHandler).Methods(http.MethodPost)
	p.HandleFunc("/index-delta", a.IndexDeltaHandler).Methods(http.MethodPost)
	p.HandleFunc("/file-src", a.FileSrcHandler).Methods(http.MethodPost)
	p.HandleFunc("/file-compiled", a.FileCompiledHandler).Methods(http.MethodPost)
	p.HandleFunc("/edit-src", a.EditSrcHandler).Methods(http.MethodPost)
	p.HandleFunc("/reorder-file", a.ReorderFileHandler).Methods(http.MethodPost)
	p.HandleFunc("/pdf", a.PDFHandler).Methods(http.MethodPost)
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// rejected maps engine errors onto status codes. A live lock is reported
// with its holder and remaining TTL so the client can show who is editing.
func rejected(w http.ResponseWriter, err error) {
	var locked *project.LockedError
	if errors.As(err, &locked) {
		jsonResponse(w, http.StatusLocked, map[string]any{
			"error":        "locked",
			"lock":         locked.Lock,
			"remaining_ms": locked.Lock.Remaining(time.Now()).Milliseconds(),
		})
		return
	}
	if errors.Is(err, project.ErrNotFound) {
		errorResponse(w, http.StatusNotFound, err.Error())
		return
	}
	errorResponse(w, http.StatusInternalServerError, err.Error())
}

func (a *API) projectFrom(r *http.Request) (*project.Project, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("project id: %w", project.ErrNotFound)
	}
	return a.hub.Project(protocol.ProjectID(id))
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"projects":       a.hub.ProjectCount(),
		"active_clients": a.hub.ClientCount(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) GetEditorIDHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{"editor_id": a.hub.NewEditor()})
}

func (a *API) ListProjectsHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, a.hub.ProjectInfos())
}

type newProjectRequest struct {
	Name string `json:"name"`
}

func (a *API) NewProjectHandler(w http.ResponseWriter, r *http.Request) {
	var req newProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		errorResponse(w, http.StatusBadRequest, "Project name is required")
		return
	}

	p, err := a.hub.CreateProject(req.Name, protocol.NoEditor)
	if err != nil {
		rejected(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, p.Info())
}

type newFileRequest struct {
	Name string `json:"name"`
	Src  string `json:"src"`
}

func (a *API) NewFileHandler(w http.ResponseWriter, r *http.Request) {
	p, err := a.projectFrom(r)
	if err != nil {
		rejected(w, err)
		return
	}

	var req newFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		errorResponse(w, http.StatusBadRequest, "File name is required")
		return
	}

	id := p.NewFile(req.Name, req.Src)
	jsonResponse(w, http.StatusCreated, map[string]any{"file_id": id})
}

func (a *API) IndexHandler(w http.ResponseWriter, r *http.Request) {
	p, err := a.projectFrom(r)
	if err != nil {
		rejected(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, p.Snapshot())
}

type indexDeltaRequest struct {
	EditorID protocol.EditorID    `json:"editor_id"`
	Index    project.ProjectIndex `json:"index"`
}

func (a *API) IndexDeltaHandler(w http.ResponseWriter, r *http.Request) {
	p, err := a.projectFrom(r)
	if err != nil {
		rejected(w, err)
		return
	}

	var req indexDeltaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	jsonResponse(w, http.StatusOK, p.Diff(req.EditorID, req.Index))
}

type fileRequest struct {
	FileID protocol.FileID `json:"file_id"`
}

func (a *API) FileSrcHandler(w http.ResponseWriter, r *http.Request) {
	p, err := a.projectFrom(r)
	if err != nil {
		rejected(w, err)
		return
	}

	var req fileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	src, err := p.Source(req.FileID)
	if err != nil {
		rejected(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"src": src})
}

func (a *API) FileCompiledHandler(w http.ResponseWriter, r *http.Request) {
	p, err := a.projectFrom(r)
	if err != nil {
		rejected(w, err)
		return
	}

	var req fileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tree, err := p.Compiled(req.FileID)
	if err != nil {
		rejected(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, tree)
}

type editSrcRequest struct {
	FileID   protocol.FileID   `json:"file_id"`
	EditorID protocol.EditorID `json:"editor_id"`
	Value    string            `json:"value"`
}

func (a *API) EditSrcHandler(w http.ResponseWriter, r *http.Request) {
	p, err := a.projectFrom(r)
	if err != nil {
		rejected(w, err)
		return
	}

	var req editSrcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	at, err := p.EditFile(req.EditorID, req.FileID, req.Value)
	var locked *project.LockedError
	if errors.As(err, &locked) || errors.Is(err, project.ErrNotFound) {
		rejected(w, err)
		return
	}

	// The source commit stands even when the recompile failed; report the
	// commit time either way.
	resp := map[string]any{"at": at}
	if err != nil {
		resp["compile_error"] = err.Error()
	}
	jsonResponse(w, http.StatusOK, resp)
}

type reorderRequest struct {
	FileID   protocol.FileID   `json:"file_id"`
	EditorID protocol.EditorID `json:"editor_id"`
	NewIndex int               `json:"new_index"`
}

func (a *API) ReorderFileHandler(w http.ResponseWriter, r *http.Request) {
	p, err := a.projectFrom(r)
	if err != nil {
		rejected(w, err)
		return
	}

	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := p.Reorder(req.EditorID, req.FileID, req.NewIndex); err != nil {
		rejected(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "reordered"})
}

func (a *API) PDFHandler(w http.ResponseWriter, r *http.Request) {
	p, err := a.projectFrom(r)
	if err != nil {
		rejected(w, err)
		return
	}

	outPath := filepath.Join(a.pdfDir, fmt.Sprintf("project-%d.pdf", p.ID()))
	if err := p.CreatePDF(outPath); err != nil {
		rejected(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"path": outPath})
}
