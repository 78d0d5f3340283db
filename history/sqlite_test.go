package history

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "predictions.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreAppendGet(t *testing.T) {
	store := newTestSQLiteStore(t)

	record := sampleRecord(TaskClassification)
	record.CreatedAt = time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)

	id, err := store.Append(record)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 1 {
		t.Fatalf("first id must be 1, got %d", id)
	}

	got, err := store.Get(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TaskType != TaskClassification || got.ModelName != record.ModelName {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.InputFeatures["koi_prad"] != 2.0 {
		t.Fatalf("features not preserved: %+v", got.InputFeatures)
	}

	raw, ok := got.OutputResult.(json.RawMessage)
	if !ok {
		t.Fatalf("expected raw JSON output, got %T", got.OutputResult)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	if payload["prediction"] != "CONFIRMED" {
		t.Fatalf("unexpected output payload: %+v", payload)
	}
}

func TestSQLiteStoreGetNotFound(t *testing.T) {
	store := newTestSQLiteStore(t)
	if _, err := store.Get(5); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStoreListNewestFirst(t *testing.T) {
	store := newTestSQLiteStore(t)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		record := sampleRecord(TaskClassification)
		record.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if _, err := store.Append(record); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	records, err := store.List(2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != 3 || records[1].ID != 2 {
		t.Fatalf("expected newest first, got ids %d, %d", records[0].ID, records[1].ID)
	}

	records, err = store.List(10, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].ID != 1 {
		t.Fatalf("offset paging wrong: %+v", records)
	}
}

func TestSQLiteStoreListByTask(t *testing.T) {
	store := newTestSQLiteStore(t)

	store.Append(sampleRecord(TaskClassification))
	store.Append(sampleRecord(TaskRegression))
	store.Append(sampleRecord(TaskClassification))

	records, err := store.ListByTask(TaskRegression, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].TaskType != TaskRegression {
		t.Fatalf("unexpected task filter result: %+v", records)
	}

	records, err = store.ListByTask(TaskClassification, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].ID != 3 {
		t.Fatalf("expected newest classification record, got %+v", records)
	}
}

func TestSQLiteStoreDeleteUnsupported(t *testing.T) {
	store := newTestSQLiteStore(t)
	id, _ := store.Append(sampleRecord(TaskClassification))

	if err := store.Delete(id); err != ErrDeleteUnsupported {
		t.Fatalf("expected ErrDeleteUnsupported, got %v", err)
	}
	if _, err := store.Get(id); err != nil {
		t.Fatalf("record lost after delete attempt: %v", err)
	}
}
