package protocol

import (
	"time"

	"github.com/inkwell-md/inkwell/internal/doc"
)

// EditorID identifies a connected editing session. Assigned monotonically
// for the process lifetime, starting at 1.
type EditorID uint64

// NoEditor is the zero EditorID, used where a broadcast excludes nobody.
const NoEditor EditorID = 0

// ProjectID identifies a project within the hub.
type ProjectID uint64

// FileID identifies a file within its project.
type FileID uint64

// Server-to-client message types.
const (
	// Full list of projects, sent once to a newly connected client
	MsgProjects = "projects"

	// A project's info changed (order, timestamps)
	MsgProjectInfo = "project_info"

	// Full file list of a project, sent once to a new project subscriber
	MsgFiles = "files"

	// A file's source text
	MsgFileSource = "file_source"

	// A file's compiled document
	MsgFileCompiled = "file_compiled"

	// A rejected operation
	MsgError = "error"
)

type ProjectInfo struct {
	ID          ProjectID `json:"id"`
	Name        string    `json:"name"`
	LastChanged time.Time `json:"last_changed"`
	Files       []FileID  `json:"files"`
}

type FileInfo struct {
	ID   FileID `json:"id"`
	Name string `json:"name"`
}

// ServerMessage is the envelope for everything the engine pushes to a
// client. Consumers dispatch on Type; unused fields stay empty.
type ServerMessage struct {
	Type      string        `json:"type"`
	ProjectID ProjectID     `json:"project_id,omitempty"`
	FileID    FileID        `json:"file_id,omitempty"`
	Projects  []ProjectInfo `json:"projects,omitempty"`
	Files     []FileInfo    `json:"files,omitempty"`
	Info      *ProjectInfo  `json:"info,omitempty"`
	Src       *string       `json:"src,omitempty"`
	Doc       []doc.Block   `json:"doc,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func Projects(list []ProjectInfo) ServerMessage {
	return ServerMessage{Type: MsgProjects, Projects: list}
}

func ProjectUpdate(id ProjectID, info ProjectInfo) ServerMessage {
	return ServerMessage{Type: MsgProjectInfo, ProjectID: id, Info: &info}
}

func Files(id ProjectID, list []FileInfo) ServerMessage {
	return ServerMessage{Type: MsgFiles, ProjectID: id, Files: list}
}

func FileSource(pid ProjectID, fid FileID, src string) ServerMessage {
	return ServerMessage{Type: MsgFileSource, ProjectID: pid, FileID: fid, Src: &src}
}

func FileCompiled(pid ProjectID, fid FileID, blocks []doc.Block) ServerMessage {
	return ServerMessage{Type: MsgFileCompiled, ProjectID: pid, FileID: fid, Doc: blocks}
}

func Error(msg string) ServerMessage {
	return ServerMessage{Type: MsgError, Error: msg}
}
