package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"exointel/features"
)

// SQLiteStore persists predictions in an embedded SQLite database. It is the
// opt-in alternative to MemoryStore when history must survive restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        task_type TEXT NOT NULL,
        input_features TEXT NOT NULL,
        output_result TEXT NOT NULL,
        model_name TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append stores a record and returns the assigned id. AUTOINCREMENT
// guarantees the sequence is strictly increasing and never reused.
func (s *SQLiteStore) Append(record PredictionRecord) (int64, error) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	inputJSON, err := json.Marshal(record.InputFeatures)
	if err != nil {
		return 0, fmt.Errorf("encode input features: %w", err)
	}
	outputJSON, err := json.Marshal(record.OutputResult)
	if err != nil {
		return 0, fmt.Errorf("encode output result: %w", err)
	}

	result, err := s.db.Exec(`
        INSERT INTO predictions (task_type, input_features, output_result, model_name, created_at)
        VALUES (?, ?, ?, ?, ?)`,
		record.TaskType, string(inputJSON), string(outputJSON), record.ModelName, record.CreatedAt)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// Get returns the record with the given id or ErrNotFound.
func (s *SQLiteStore) Get(id int64) (PredictionRecord, error) {
	row := s.db.QueryRow(`
        SELECT id, task_type, input_features, output_result, model_name, created_at
        FROM predictions WHERE id = ?`, id)

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return PredictionRecord{}, ErrNotFound
	}
	return record, err
}

// List returns up to limit records, newest first, skipping offset.
func (s *SQLiteStore) List(limit, offset int) ([]PredictionRecord, error) {
	limit, offset = normalizePage(limit, offset)

	rows, err := s.db.Query(`
        SELECT id, task_type, input_features, output_result, model_name, created_at
        FROM predictions
        ORDER BY created_at DESC, id DESC
        LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ListByTask returns up to limit records of one task type, newest first,
// scanning only the most recent taskScanWindow records.
func (s *SQLiteStore) ListByTask(taskType string, limit int) ([]PredictionRecord, error) {
	limit, _ = normalizePage(limit, 0)

	rows, err := s.db.Query(`
        SELECT id, task_type, input_features, output_result, model_name, created_at
        FROM (
            SELECT id, task_type, input_features, output_result, model_name, created_at
            FROM predictions
            ORDER BY created_at DESC, id DESC
            LIMIT ?
        )
        WHERE task_type = ?
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, taskScanWindow, taskType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRecords(rows)
}

// Delete always reports that deletion is unsupported.
func (s *SQLiteStore) Delete(id int64) error {
	return ErrDeleteUnsupported
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (PredictionRecord, error) {
	var record PredictionRecord
	var inputJSON, outputJSON string
	err := row.Scan(&record.ID, &record.TaskType, &inputJSON, &outputJSON, &record.ModelName, &record.CreatedAt)
	if err != nil {
		return PredictionRecord{}, err
	}

	record.InputFeatures = make(features.Vector)
	if err := json.Unmarshal([]byte(inputJSON), &record.InputFeatures); err != nil {
		return PredictionRecord{}, fmt.Errorf("decode input features: %w", err)
	}
	record.OutputResult = json.RawMessage(outputJSON)
	return record, nil
}

func collectRecords(rows *sql.Rows) ([]PredictionRecord, error) {
	records := make([]PredictionRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
