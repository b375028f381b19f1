package project

import (
	"time"

	"github.com/inkwell-md/inkwell/internal/protocol"
)

// FileIndex is a file's synchronization-relevant metadata: no source, no
// compiled content, so a whole project's index is cheap to transmit.
type FileIndex struct {
	Lock             *Lock      `json:"lock"`
	LastSourceChange *Change    `json:"last_source_change"`
	LastCompiledAt   *time.Time `json:"last_compiled_at"`
}

// ProjectIndex is a full metadata snapshot a client can cache and later
// present back to request a delta.
type ProjectIndex struct {
	Order []protocol.FileID              `json:"order"`
	Files map[protocol.FileID]FileIndex  `json:"files"`
}

// DeltaItem pairs a file id with its fresh index entry.
type DeltaItem struct {
	ID    protocol.FileID `json:"id"`
	Index FileIndex       `json:"index"`
}

// ProjectIndexDelta is the minimal set of index entries whose side effects
// the requesting client has not yet observed.
type ProjectIndexDelta struct {
	NewFiles             []DeltaItem       `json:"new_files"`
	RemovedFiles         []protocol.FileID `json:"removed_files"`
	ChangedSourceFiles   []DeltaItem       `json:"changed_source_files"`
	ChangedCompiledFiles []DeltaItem       `json:"changed_compiled_files"`
}

// diffIndex compares a requester-held baseline against a fresh snapshot.
// Source changes authored by the requester are suppressed: this is the
// pull-path mirror of broadcast echo suppression. Compiled changes carry no
// author, so they are reported to everyone.
func diffIndex(requester protocol.EditorID, baseline, fresh ProjectIndex) ProjectIndexDelta {
	delta := ProjectIndexDelta{
		NewFiles:             []DeltaItem{},
		RemovedFiles:         []protocol.FileID{},
		ChangedSourceFiles:   []DeltaItem{},
		ChangedCompiledFiles: []DeltaItem{},
	}

	for _, id := range fresh.Order {
		fi := fresh.Files[id]
		bi, inBaseline := baseline.Files[id]
		if !inBaseline {
			delta.NewFiles = append(delta.NewFiles, DeltaItem{ID: id, Index: fi})
			continue
		}

		if c := fi.LastSourceChange; c != nil && c.By != requester {
			if bi.LastSourceChange == nil || c.At.After(bi.LastSourceChange.At) {
				delta.ChangedSourceFiles = append(delta.ChangedSourceFiles, DeltaItem{ID: id, Index: fi})
			}
		}

		if t := fi.LastCompiledAt; t != nil {
			if bi.LastCompiledAt == nil || t.After(*bi.LastCompiledAt) {
				// An artifact produced by the requester's own edit is the one
				// compiled change the requester has already observed; any
				// later recompile is reported to everyone.
				c := fi.LastSourceChange
				selfArtifact := c != nil && c.By == requester && !t.After(c.At)
				if !selfArtifact {
					delta.ChangedCompiledFiles = append(delta.ChangedCompiledFiles, DeltaItem{ID: id, Index: fi})
				}
			}
		}
	}

	for _, id := range baseline.Order {
		if _, ok := fresh.Files[id]; !ok {
			delta.RemovedFiles = append(delta.RemovedFiles, id)
		}
	}

	return delta
}
