package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/geongi-im/yolo-traffic-monitor/internal/dto"
	"github.com/geongi-im/yolo-traffic-monitor/internal/model"
)

// ArtifactRepository implements repository.ArtifactRepository for SQLite.
type ArtifactRepository struct {
	db *DB
}

func NewArtifactRepository(db *DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

const artifactColumns = `id, filename, camera, timestamp, filepath, filesize`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanArtifact(s scanner) (model.Artifact, error) {
	var a model.Artifact
	err := s.Scan(&a.ID, &a.Filename, &a.Camera, &a.Timestamp, &a.FilePath, &a.FileSize)
	return a, err
}

// Insert adds a new artifact record, replacing one with the same filename.
func (r *ArtifactRepository) Insert(a *model.Artifact) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO artifacts (filename, camera, timestamp, filepath, filesize)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			camera = excluded.camera,
			timestamp = excluded.timestamp,
			filepath = excluded.filepath,
			filesize = excluded.filesize
	`, a.Filename, a.Camera, a.Timestamp.UTC(), a.FilePath, a.FileSize)
	if err != nil {
		return 0, fmt.Errorf("failed to insert artifact: %w", err)
	}

	return result.LastInsertId()
}

// GetByFilename returns nil, nil when no artifact has that name.
func (r *ArtifactRepository) GetByFilename(filename string) (*model.Artifact, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	a, err := scanArtifact(r.db.Conn().QueryRow(`
		SELECT `+artifactColumns+` FROM artifacts WHERE filename = ?
	`, filename))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	return &a, nil
}

// GetLatest returns the newest artifact, optionally for one camera (0 = any).
func (r *ArtifactRepository) GetLatest(camera int) (*model.Artifact, error) {
	list, err := r.GetAll(&dto.ArtifactFilter{Camera: camera, Limit: 1})
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func whereClause(filter *dto.ArtifactFilter) (string, []interface{}) {
	query := " WHERE 1=1"
	args := []interface{}{}
	if filter != nil && filter.Camera != 0 {
		query += " AND camera = ?"
		args = append(args, filter.Camera)
	}
	return query, args
}

// GetAll lists artifacts newest first.
func (r *ArtifactRepository) GetAll(filter *dto.ArtifactFilter) ([]model.Artifact, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	query := `SELECT ` + artifactColumns + ` FROM artifacts` + where + ` ORDER BY timestamp DESC, id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else if filter != nil && filter.Offset > 0 {
		query += " LIMIT -1"
	}
	if filter != nil && filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []model.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// GetTotalCount returns the number of artifacts matching the filter.
func (r *ArtifactRepository) GetTotalCount(filter *dto.ArtifactFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM artifacts`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count artifacts: %w", err)
	}
	return count, nil
}

// GetTotalSize returns the summed size of all catalogued files in bytes.
func (r *ArtifactRepository) GetTotalSize() (int64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var size int64
	if err := r.db.Conn().QueryRow(`SELECT COALESCE(SUM(filesize), 0) FROM artifacts`).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to sum artifact sizes: %w", err)
	}
	return size, nil
}

// DeleteByFilename removes an artifact record. A missing record is not an error.
func (r *ArtifactRepository) DeleteByFilename(filename string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM artifacts WHERE filename = ?`, filename); err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}

// DeleteAll removes every artifact record.
func (r *ArtifactRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM artifacts`); err != nil {
		return fmt.Errorf("failed to delete artifacts: %w", err)
	}
	return nil
}
