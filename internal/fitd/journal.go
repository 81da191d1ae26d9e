package fitd

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"fmt"

	"github.com/GoSim-25-26J-441/mcfit-core/pkg/models"
	_ "modernc.org/sqlite"
)

// Journal keeps fit records in SQLite so a restarted daemon still serves earlier fits.
// Request and summary are stored as gob blobs since both may carry NaN values.
type Journal struct {
	db *sql.DB
}

const journalSchema = `
CREATE TABLE IF NOT EXISTS fits(
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	created_ms INTEGER NOT NULL,
	started_ms INTEGER NOT NULL,
	ended_ms   INTEGER NOT NULL,
	error      TEXT NOT NULL,
	request    BLOB,
	summary    BLOB
)`

// OpenJournal opens or creates the journal database at path; ":memory:" gives a
// throwaway journal
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open journal: %w", models.ErrPersistence, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create journal schema: %w", models.ErrPersistence, err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func encodeBlob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeBlob(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// Save inserts or replaces the record
func (j *Journal) Save(rec *FitRecord) error {
	var request, summary []byte
	var err error
	if rec.Request != nil {
		if request, err = encodeBlob(rec.Request); err != nil {
			return fmt.Errorf("%w: encode request of %s: %w", models.ErrPersistence, rec.ID, err)
		}
	}
	if rec.Summary != nil {
		if summary, err = encodeBlob(rec.Summary); err != nil {
			return fmt.Errorf("%w: encode summary of %s: %w", models.ErrPersistence, rec.ID, err)
		}
	}
	_, err = j.db.Exec(`
		INSERT INTO fits(id, status, created_ms, started_ms, ended_ms, error, request, summary)
		VALUES(?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			started_ms = excluded.started_ms,
			ended_ms = excluded.ended_ms,
			error = excluded.error,
			request = excluded.request,
			summary = excluded.summary`,
		rec.ID, string(rec.Status), rec.CreatedAtUnixMs, rec.StartedAtUnixMs, rec.EndedAtUnixMs, rec.Error, request, summary)
	if err != nil {
		return fmt.Errorf("%w: save fit %s: %w", models.ErrPersistence, rec.ID, err)
	}
	return nil
}

// Load returns every journaled record, oldest first
func (j *Journal) Load() ([]*FitRecord, error) {
	rows, err := j.db.Query(`
		SELECT id, status, created_ms, started_ms, ended_ms, error, request, summary
		FROM fits ORDER BY created_ms, id`)
	if err != nil {
		return nil, fmt.Errorf("%w: query journal: %w", models.ErrPersistence, err)
	}
	defer rows.Close()

	var records []*FitRecord
	for rows.Next() {
		var (
			rec              FitRecord
			status           string
			request, summary []byte
		)
		if err := rows.Scan(&rec.ID, &status, &rec.CreatedAtUnixMs, &rec.StartedAtUnixMs, &rec.EndedAtUnixMs,
			&rec.Error, &request, &summary); err != nil {
			return nil, fmt.Errorf("%w: scan journal: %w", models.ErrPersistence, err)
		}
		rec.Status = FitStatus(status)
		if len(request) > 0 {
			rec.Request = &FitRequest{}
			if err := decodeBlob(request, rec.Request); err != nil {
				return nil, fmt.Errorf("%w: decode request of %s: %w", models.ErrPersistence, rec.ID, err)
			}
		}
		if len(summary) > 0 {
			rec.Summary = &FitSummary{}
			if err := decodeBlob(summary, rec.Summary); err != nil {
				return nil, fmt.Errorf("%w: decode summary of %s: %w", models.ErrPersistence, rec.ID, err)
			}
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read journal: %w", models.ErrPersistence, err)
	}
	return records, nil
}
