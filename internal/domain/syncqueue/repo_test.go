package syncqueue_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/Spok95/gelato-pos/internal/domain/syncqueue"
	"github.com/Spok95/gelato-pos/internal/infra/db"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	sqlDB, err := db.Open(filepath.Join(t.TempDir(), "pos.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.Migrate(sqlDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return sqlDB
}

func enqueue(t *testing.T, sqlDB *sql.DB, table, recordID string, payload any) {
	t.Helper()
	tx, err := sqlDB.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := syncqueue.Enqueue(context.Background(), tx, table, recordID, syncqueue.OpCreate, payload); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestList_CreationOrder(t *testing.T) {
	sqlDB := openTestDB(t)
	repo := syncqueue.NewRepo(sqlDB)
	ctx := context.Background()

	enqueue(t, sqlDB, "sales", "s1", map[string]string{"n": "first"})
	enqueue(t, sqlDB, "stock_movements", "m1", map[string]string{"n": "second"})
	enqueue(t, sqlDB, "sales", "s2", map[string]string{"n": "third"})

	items, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	wantRecords := []string{"s1", "m1", "s2"}
	for i, it := range items {
		if it.RecordID != wantRecords[i] {
			t.Errorf("[%d] = %s, want %s", i, it.RecordID, wantRecords[i])
		}
	}

	// снапшот читается обратно как есть
	var payload map[string]string
	if err := json.Unmarshal(items[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if payload["n"] != "first" {
		t.Errorf("snapshot = %v", payload)
	}
}

func TestRemove_Idempotent(t *testing.T) {
	sqlDB := openTestDB(t)
	repo := syncqueue.NewRepo(sqlDB)
	ctx := context.Background()

	enqueue(t, sqlDB, "sales", "s1", struct{}{})
	items, err := repo.List(ctx)
	if err != nil || len(items) != 1 {
		t.Fatalf("list: %v, %d", err, len(items))
	}

	if err := repo.Remove(ctx, items[0].ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// повтор по тому же id не ошибка
	if err := repo.Remove(ctx, items[0].ID); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	n, err := repo.Count(ctx)
	if err != nil || n != 0 {
		t.Fatalf("count = %d (%v), want 0", n, err)
	}
}

func TestRemoveForRecord_DropsAllSnapshots(t *testing.T) {
	sqlDB := openTestDB(t)
	repo := syncqueue.NewRepo(sqlDB)
	ctx := context.Background()

	enqueue(t, sqlDB, "products", "p1", map[string]int{"v": 1})
	enqueue(t, sqlDB, "products", "p1", map[string]int{"v": 2})
	enqueue(t, sqlDB, "products", "p2", map[string]int{"v": 1})

	if err := repo.RemoveForRecord(ctx, "products", "p1"); err != nil {
		t.Fatalf("remove for record: %v", err)
	}
	items, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].RecordID != "p2" {
		t.Errorf("items = %+v, want only p2", items)
	}
}

func TestBumpRetry(t *testing.T) {
	sqlDB := openTestDB(t)
	repo := syncqueue.NewRepo(sqlDB)
	ctx := context.Background()

	enqueue(t, sqlDB, "stock_movements", "m1", struct{}{})
	items, _ := repo.List(ctx)

	if err := repo.BumpRetry(ctx, items[0].ID, "server said no"); err != nil {
		t.Fatalf("bump: %v", err)
	}
	if err := repo.BumpRetry(ctx, items[0].ID, "still no"); err != nil {
		t.Fatalf("bump: %v", err)
	}

	items, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if items[0].RetryCount != 2 {
		t.Errorf("retry_count = %d, want 2", items[0].RetryCount)
	}
	if items[0].LastError != "still no" {
		t.Errorf("last_error = %q", items[0].LastError)
	}
}
