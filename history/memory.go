package history

import (
	"sync"
	"time"
)

// MemoryStore keeps predictions in process memory. State is lost on restart;
// there is no persistence guarantee. All methods are safe for concurrent use
// and callers always receive copies.
type MemoryStore struct {
	mu      sync.Mutex
	records []PredictionRecord
	nextID  int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Append stores a record and returns its assigned id. The id sequence is
// strictly increasing and never reused.
func (s *MemoryStore) Append(record PredictionRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.ID = s.nextID
	s.nextID++
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	record.InputFeatures = record.InputFeatures.Clone()

	s.records = append(s.records, record)
	return record.ID, nil
}

// Get returns the record with the given id or ErrNotFound.
func (s *MemoryStore) Get(id int64) (PredictionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID == id {
			return copyRecord(s.records[i]), nil
		}
	}
	return PredictionRecord{}, ErrNotFound
}

// List returns up to limit records, newest created_at first, skipping offset.
func (s *MemoryStore) List(limit, offset int) ([]PredictionRecord, error) {
	limit, offset = normalizePage(limit, offset)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Records are appended in creation order under the lock, so reverse
	// iteration yields newest first.
	out := make([]PredictionRecord, 0, limit)
	for i := len(s.records) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, copyRecord(s.records[i]))
	}
	return out, nil
}

// ListByTask returns up to limit records of one task type, newest first. Only
// the most recent taskScanWindow records are scanned.
func (s *MemoryStore) ListByTask(taskType string, limit int) ([]PredictionRecord, error) {
	limit, _ = normalizePage(limit, 0)

	s.mu.Lock()
	defer s.mu.Unlock()

	floor := len(s.records) - taskScanWindow
	if floor < 0 {
		floor = 0
	}
	out := make([]PredictionRecord, 0, limit)
	for i := len(s.records) - 1; i >= floor && len(out) < limit; i-- {
		if s.records[i].TaskType == taskType {
			out = append(out, copyRecord(s.records[i]))
		}
	}
	return out, nil
}

// Delete always reports that deletion is unsupported.
func (s *MemoryStore) Delete(id int64) error {
	return ErrDeleteUnsupported
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStore) Close() error {
	return nil
}

func copyRecord(record PredictionRecord) PredictionRecord {
	record.InputFeatures = record.InputFeatures.Clone()
	return record
}
