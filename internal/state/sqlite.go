package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/teamcutter/apkx/internal/domain"
	"github.com/teamcutter/apkx/internal/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
    archive      TEXT PRIMARY KEY,
    output_dir   TEXT NOT NULL,
    sha256       TEXT NOT NULL DEFAULT '',
    package      TEXT NOT NULL DEFAULT '',
    version_name TEXT NOT NULL DEFAULT '',
    libs         TEXT NOT NULL DEFAULT '{}',
    status       TEXT NOT NULL DEFAULT 'pending',
    unpacked_at  TEXT NOT NULL
);
`

// Fixed width so that ORDER BY on the text column is chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const selectColumns = `archive, output_dir, sha256, package, version_name, libs, status, unpacked_at`

type SQLiteState struct {
	mu           sync.RWMutex
	db           *sql.DB
	dbPath       string
	manifestPath string
	log          *logger.Logger
}

// NewSQLite opens the history database. A nil log writes to stderr.
func NewSQLite(dbPath, manifestPath string, log *logger.Logger) (*SQLiteState, error) {
	if log == nil {
		log = logger.Default()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &SQLiteState{
		db:           db,
		dbPath:       dbPath,
		manifestPath: manifestPath,
		log:          log,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	if err := s.recover(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to recover: %w", err)
	}

	return s, nil
}

// migrate seeds an empty database from an exported JSON manifest.
func (s *SQLiteState) migrate() error {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM records").Scan(&count); err != nil {
		return err
	}
	if count > 0 || s.manifestPath == "" {
		return nil
	}

	data, err := os.ReadFile(s.manifestPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest domain.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("failed to parse manifest: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, rec := range manifest.Records {
		if err := insertRecord(tx, rec); err != nil {
			return fmt.Errorf("failed to insert %s: %w", rec.Archive, err)
		}
	}

	return tx.Commit()
}

// recover marks runs that never completed. Extracted files are left alone:
// extraction is additive and the output directory may hold unrelated content.
func (s *SQLiteState) recover() error {
	res, err := s.db.Exec("UPDATE records SET status = ? WHERE status = ?",
		domain.StatusInterrupted, domain.StatusPending)
	if err != nil {
		return err
	}

	if n, _ := res.RowsAffected(); n > 0 {
		s.log.Warnf("%d interrupted unpack(s) found", n)
	}
	return nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertRecord(db execer, rec *domain.UnpackRecord) error {
	libs, err := json.Marshal(rec.Libs)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT OR REPLACE INTO records
		(archive, output_dir, sha256, package, version_name, libs, status, unpacked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Archive, rec.OutputDir, rec.SHA256, rec.Package, rec.VersionName,
		string(libs), rec.Status, rec.UnpackedAt.UTC().Format(timeLayout))
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*domain.UnpackRecord, error) {
	var rec domain.UnpackRecord
	var libs, unpackedAt string

	if err := row.Scan(&rec.Archive, &rec.OutputDir, &rec.SHA256, &rec.Package,
		&rec.VersionName, &libs, &rec.Status, &unpackedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(libs), &rec.Libs); err != nil {
		return nil, fmt.Errorf("libs for %s: %w", rec.Archive, err)
	}
	rec.UnpackedAt, _ = time.Parse(timeLayout, unpackedAt)

	return &rec, nil
}

func (s *SQLiteState) Begin(rec *domain.UnpackRecord) error {
	rec.Status = domain.StatusPending
	return s.write(rec)
}

func (s *SQLiteState) Complete(rec *domain.UnpackRecord) error {
	rec.Status = domain.StatusDone
	return s.write(rec)
}

func (s *SQLiteState) Fail(rec *domain.UnpackRecord) error {
	rec.Status = domain.StatusFailed
	return s.write(rec)
}

func (s *SQLiteState) write(rec *domain.UnpackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertRecord(tx, rec); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return s.exportJSON()
}

func (s *SQLiteState) Get(archive string) (*domain.UnpackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow("SELECT "+selectColumns+" FROM records WHERE archive = ?", archive)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrRecordNotFound, archive)
	}
	return rec, err
}

func (s *SQLiteState) List() ([]*domain.UnpackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list()
}

func (s *SQLiteState) list() ([]*domain.UnpackRecord, error) {
	rows, err := s.db.Query("SELECT " + selectColumns + " FROM records ORDER BY unpacked_at DESC, archive")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.UnpackRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (s *SQLiteState) Remove(archive string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM records WHERE archive = ?", archive)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrRecordNotFound, archive)
	}

	return s.exportJSON()
}

func (s *SQLiteState) exportJSON() error {
	if s.manifestPath == "" {
		return nil
	}

	records, err := s.list()
	if err != nil {
		return err
	}

	manifest := domain.NewManifest()
	for _, rec := range records {
		manifest.Records[rec.Archive] = rec
	}

	return writeManifest(s.manifestPath, manifest)
}

func (s *SQLiteState) Close() error {
	return s.db.Close()
}
