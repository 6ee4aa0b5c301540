package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// MetadataDB handles SQLite database operations
type MetadataDB struct {
	db *sql.DB
}

// NewMetadataDB creates a new metadata database
func NewMetadataDB(dbPath string) (*MetadataDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	// Create table if not exists
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS recordings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL UNIQUE,
		request_name TEXT NOT NULL,
		source_type TEXT NOT NULL,
		gdrive_url TEXT,
		local_path TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		duration REAL,
		chunk_count INTEGER,
		speaker_count INTEGER,
		word_count INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_created_at ON recordings(created_at);
	CREATE INDEX IF NOT EXISTS idx_request_name ON recordings(request_name);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create table: %v", err)
	}

	return &MetadataDB{db: db}, nil
}

// SaveRecording saves recording metadata to the database
func (mdb *MetadataDB) SaveRecording(
	jobID, requestName, sourceType, gdriveURL, localPath string,
	duration float64, chunkCount, speakerCount, wordCount int,
) error {
	query := `
	INSERT INTO recordings (job_id, request_name, source_type, gdrive_url, local_path, created_at, duration, chunk_count, speaker_count, word_count)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := mdb.db.Exec(query, jobID, requestName, sourceType, gdriveURL, localPath,
		time.Now(), duration, chunkCount, speakerCount, wordCount)
	if err != nil {
		return fmt.Errorf("failed to save recording metadata: %v", err)
	}

	return nil
}

// GetRecording retrieves recording metadata by job ID
func (mdb *MetadataDB) GetRecording(jobID string) (map[string]interface{}, error) {
	query := `
	SELECT job_id, request_name, source_type, gdrive_url, local_path, created_at, duration, chunk_count, speaker_count, word_count
	FROM recordings WHERE job_id = ?
	`

	row := mdb.db.QueryRow(query, jobID)

	var (
		jid, name, source, gdrive, local    string
		createdAt                           time.Time
		duration                            float64
		chunkCount, speakerCount, wordCount int
	)

	err := row.Scan(&jid, &name, &source, &gdrive, &local, &createdAt,
		&duration, &chunkCount, &speakerCount, &wordCount)
	if err != nil {
		return nil, fmt.Errorf("failed to get recording: %v", err)
	}

	return map[string]interface{}{
		"job_id":        jid,
		"request_name":  name,
		"source_type":   source,
		"gdrive_url":    gdrive,
		"local_path":    local,
		"created_at":    createdAt,
		"duration":      duration,
		"chunk_count":   chunkCount,
		"speaker_count": speakerCount,
		"word_count":    wordCount,
	}, nil
}

// ListRecordings returns the most recent recordings
func (mdb *MetadataDB) ListRecordings(limit int) ([]map[string]interface{}, error) {
	query := `
	SELECT job_id, request_name, source_type, gdrive_url, local_path, created_at, duration, chunk_count, speaker_count, word_count
	FROM recordings ORDER BY created_at DESC LIMIT ?
	`

	rows, err := mdb.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %v", err)
	}
	defer rows.Close()

	var recordings []map[string]interface{}

	for rows.Next() {
		var (
			jid, name, source, gdrive, local    string
			createdAt                           time.Time
			duration                            float64
			chunkCount, speakerCount, wordCount int
		)

		if err := rows.Scan(&jid, &name, &source, &gdrive, &local, &createdAt,
			&duration, &chunkCount, &speakerCount, &wordCount); err != nil {
			continue
		}

		recordings = append(recordings, map[string]interface{}{
			"job_id":        jid,
			"request_name":  name,
			"source_type":   source,
			"gdrive_url":    gdrive,
			"local_path":    local,
			"created_at":    createdAt,
			"duration":      duration,
			"chunk_count":   chunkCount,
			"speaker_count": speakerCount,
			"word_count":    wordCount,
		})
	}

	return recordings, nil
}

// Close closes the database connection
func (mdb *MetadataDB) Close() error {
	return mdb.db.Close()
}
