package history

import (
	"sync"
	"testing"
	"time"

	"exointel/features"
)

func sampleRecord(task string) PredictionRecord {
	return PredictionRecord{
		TaskType:      task,
		InputFeatures: features.Vector{"koi_prad": 2.0, "koi_period": 15.0},
		OutputResult:  map[string]any{"prediction": "CONFIRMED"},
		ModelName:     "classification_pipeline.json",
	}
}

func TestMemoryStoreAppendGet(t *testing.T) {
	store := NewMemoryStore()

	id, err := store.Append(sampleRecord(TaskClassification))
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
	if got.ID != id || got.TaskType != TaskClassification {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.InputFeatures["koi_prad"] != 2.0 {
		t.Fatalf("features not preserved: %+v", got.InputFeatures)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be assigned")
	}

	// Mutating the returned copy must not affect the stored record.
	got.InputFeatures["koi_prad"] = 99
	again, _ := store.Get(id)
	if again.InputFeatures["koi_prad"] != 2.0 {
		t.Fatal("stored record was mutated through a returned copy")
	}
}

func TestMemoryStoreGetNotFound(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(42); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreListNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	for i := 0; i < 3; i++ {
		if _, err := store.Append(sampleRecord(TaskClassification)); err != nil {
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

func TestMemoryStoreListByTask(t *testing.T) {
	store := NewMemoryStore()
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
}

func TestMemoryStoreListByTaskScanWindow(t *testing.T) {
	store := NewMemoryStore()

	// One old regression record, then enough classification records to push
	// it out of the scan window.
	store.Append(sampleRecord(TaskRegression))
	for i := 0; i < taskScanWindow; i++ {
		store.Append(sampleRecord(TaskClassification))
	}

	records, err := store.ListByTask(TaskRegression, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("record outside the scan window must not be returned, got %d", len(records))
	}
}

func TestMemoryStoreDeleteUnsupported(t *testing.T) {
	store := NewMemoryStore()
	id, _ := store.Append(sampleRecord(TaskClassification))

	if err := store.Delete(id); err != ErrDeleteUnsupported {
		t.Fatalf("expected ErrDeleteUnsupported, got %v", err)
	}

	// The record must survive the failed delete.
	if _, err := store.Get(id); err != nil {
		t.Fatalf("record lost after delete attempt: %v", err)
	}
}

func TestMemoryStoreConcurrentAppend(t *testing.T) {
	store := NewMemoryStore()

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	ids := make(chan int64, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id, err := store.Append(sampleRecord(TaskClassification))
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != workers*perWorker {
		t.Fatalf("expected %d unique ids, got %d", workers*perWorker, len(seen))
	}
}

func TestMemoryStorePreservesCreatedAt(t *testing.T) {
	store := NewMemoryStore()

	at := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	record := sampleRecord(TaskRegression)
	record.CreatedAt = at

	id, _ := store.Append(record)
	got, err := store.Get(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.CreatedAt.Equal(at) {
		t.Fatalf("explicit CreatedAt overwritten: %v", got.CreatedAt)
	}
}
