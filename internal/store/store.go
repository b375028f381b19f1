// Package store persists projects in an embedded sqlite database: the
// project name plus each file's name and raw source, keyed by display
// position. The engine treats it as a black box behind the Saver contract.
package store

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/inkwell-md/inkwell/internal/project"
	"github.com/inkwell-md/inkwell/internal/protocol"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// WAL for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	log.Printf("Store initialized at %s", dbPath)
	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS files (
		project_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (project_id, position),
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_files_project_id ON files(project_id);
	`

	_, err := db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveProject writes a project's full current state, replacing whatever was
// stored for it before. The write is transactional: a failure leaves the
// previous state intact.
func (s *Store) SaveProject(rec project.Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO projects (id, name, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			updated_at = CURRENT_TIMESTAMP
	`, int64(rec.ID), rec.Name)
	if err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM files WHERE project_id = ?", int64(rec.ID)); err != nil {
		return err
	}

	for pos, f := range rec.Files {
		_, err := tx.Exec(
			"INSERT INTO files (project_id, position, name, source) VALUES (?, ?, ?, ?)",
			int64(rec.ID), pos, f.Name, f.Source,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadProjects reads every stored project with its files in display order.
func (s *Store) LoadProjects() ([]project.Record, error) {
	rows, err := s.db.Query("SELECT id, name FROM projects ORDER BY id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []project.Record
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		recs = append(recs, project.Record{ID: protocol.ProjectID(id), Name: name})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range recs {
		files, err := s.loadFiles(recs[i].ID)
		if err != nil {
			return nil, err
		}
		recs[i].Files = files
	}
	return recs, nil
}

func (s *Store) loadFiles(id protocol.ProjectID) ([]project.FileRecord, error) {
	rows, err := s.db.Query(
		"SELECT name, source FROM files WHERE project_id = ? ORDER BY position ASC",
		int64(id),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []project.FileRecord
	for rows.Next() {
		var f project.FileRecord
		if err := rows.Scan(&f.Name, &f.Source); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// GetProject reads one stored project, nil when absent.
func (s *Store) GetProject(id protocol.ProjectID) (*project.Record, error) {
	row := s.db.QueryRow("SELECT id, name FROM projects WHERE id = ?", int64(id))

	var dbID int64
	var name string
	err := row.Scan(&dbID, &name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec := project.Record{ID: protocol.ProjectID(dbID), Name: name}
	rec.Files, err = s.loadFiles(rec.ID)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Stats reports stored project and file counts.
func (s *Store) Stats() (map[string]any, error) {
	stats := make(map[string]any)

	var projectCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM projects").Scan(&projectCount); err != nil {
		return nil, err
	}
	stats["project_count"] = projectCount

	var fileCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&fileCount); err != nil {
		return nil, err
	}
	stats["file_count"] = fileCount

	return stats, nil
}

var _ project.Saver = (*Store)(nil)
