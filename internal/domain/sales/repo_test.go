package sales_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Spok95/gelato-pos/internal/domain/catalog"
	"github.com/Spok95/gelato-pos/internal/domain/sales"
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

func seedProduct(t *testing.T, sqlDB *sql.DB, id string, stock int) {
	t.Helper()
	now := time.Now().UTC()
	repo := catalog.NewRepo(sqlDB)
	err := repo.SaveProduct(context.Background(), &catalog.Product{
		ID: id, Name: "Vanilla 1kg", CategoryID: "cat-1", Unit: "pcs",
		SellingPrice: 5, IsActive: true,
		CurrentStock: stock, AvailableStock: stock,
		CreatedAt: now, UpdatedAt: now,
		SyncStatus: syncqueue.StatusSynced,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
}

func availableStock(t *testing.T, sqlDB *sql.DB, id string) int {
	t.Helper()
	var n int
	if err := sqlDB.QueryRow(`SELECT available_stock FROM products WHERE id = ?`, id).Scan(&n); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return n
}

func queueLen(t *testing.T, sqlDB *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := sqlDB.QueryRow(`SELECT COUNT(*) FROM sync_queue WHERE table_name = ?`, table).Scan(&n); err != nil {
		t.Fatalf("count queue: %v", err)
	}
	return n
}

func testSale(num string, createdAt time.Time) *sales.Sale {
	return &sales.Sale{
		ID:            sales.NewID(),
		SaleNumber:    num,
		Subtotal:      10.00,
		TaxAmount:     0.80,
		TotalAmount:   10.80,
		PaymentMethod: "cash",
		PaymentStatus: "completed",
		CashierID:     "cashier-1",
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
		SyncStatus:    syncqueue.StatusPending,
	}
}

func testItems(saleID, productID string, qty int) []sales.SaleItem {
	return []sales.SaleItem{{
		ID: sales.NewID(), SaleID: saleID, ProductID: productID,
		ProductName: "Vanilla 1kg", Quantity: qty, UnitPrice: 5,
		TotalPrice: float64(qty) * 5, CreatedAt: time.Now().UTC(),
	}}
}

func TestSaveSale_DualWrite(t *testing.T) {
	sqlDB := openTestDB(t)
	repo := sales.NewRepo(sqlDB)
	ctx := context.Background()
	seedProduct(t, sqlDB, "p1", 10)

	sale := testSale("SALE-1", time.Now().UTC())
	if err := repo.SaveSale(ctx, sale, testItems(sale.ID, "p1", 2)); err != nil {
		t.Fatalf("save sale: %v", err)
	}

	got, err := repo.GetSale(ctx, sale.ID)
	if err != nil || got == nil {
		t.Fatalf("get sale: %v, %v", got, err)
	}
	if got.SyncStatus != syncqueue.StatusPending {
		t.Errorf("sync_status = %s, want pending", got.SyncStatus)
	}
	if n := queueLen(t, sqlDB, "sales"); n != 1 {
		t.Errorf("queue entries = %d, want 1", n)
	}
	if n := availableStock(t, sqlDB, "p1"); n != 8 {
		t.Errorf("available_stock = %d, want 8", n)
	}
	items, err := repo.GetSaleItems(ctx, sale.ID)
	if err != nil {
		t.Fatalf("get items: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
}

func TestSaveSale_InsufficientStock(t *testing.T) {
	sqlDB := openTestDB(t)
	repo := sales.NewRepo(sqlDB)
	ctx := context.Background()
	seedProduct(t, sqlDB, "p1", 1)

	sale := testSale("SALE-1", time.Now().UTC())
	err := repo.SaveSale(ctx, sale, testItems(sale.ID, "p1", 5))
	if !errors.Is(err, sales.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}

	// ни чека, ни элемента очереди, резерв не тронут
	if got, _ := repo.GetSale(ctx, sale.ID); got != nil {
		t.Error("sale must not be written")
	}
	if n := queueLen(t, sqlDB, "sales"); n != 0 {
		t.Errorf("queue entries = %d, want 0", n)
	}
	if n := availableStock(t, sqlDB, "p1"); n != 1 {
		t.Errorf("available_stock = %d, want 1", n)
	}
}

func TestSaveSale_DuplicateNumberRollsBack(t *testing.T) {
	sqlDB := openTestDB(t)
	repo := sales.NewRepo(sqlDB)
	ctx := context.Background()
	seedProduct(t, sqlDB, "p1", 10)

	first := testSale("SALE-DUP", time.Now().UTC())
	if err := repo.SaveSale(ctx, first, testItems(first.ID, "p1", 2)); err != nil {
		t.Fatalf("save first: %v", err)
	}

	second := testSale("SALE-DUP", time.Now().UTC())
	err := repo.SaveSale(ctx, second, testItems(second.ID, "p1", 2))
	if !errors.Is(err, sales.ErrDuplicateSaleNumber) {
		t.Fatalf("err = %v, want ErrDuplicateSaleNumber", err)
	}

	// откат вернул резерв второй попытки
	if n := availableStock(t, sqlDB, "p1"); n != 8 {
		t.Errorf("available_stock = %d, want 8", n)
	}
	if n := queueLen(t, sqlDB, "sales"); n != 1 {
		t.Errorf("queue entries = %d, want 1", n)
	}
}

func TestSaveSale_NoItemsForbidden(t *testing.T) {
	sqlDB := openTestDB(t)
	repo := sales.NewRepo(sqlDB)

	sale := testSale("SALE-EMPTY", time.Now().UTC())
	if err := repo.SaveSale(context.Background(), sale, nil); err == nil {
		t.Fatal("sale without items must be rejected")
	}
}

func TestGetPendingSales_Order(t *testing.T) {
	sqlDB := openTestDB(t)
	repo := sales.NewRepo(sqlDB)
	ctx := context.Background()
	seedProduct(t, sqlDB, "p1", 100)

	base := time.Now().UTC().Add(-time.Hour)
	for i, num := range []string{"SALE-B", "SALE-C", "SALE-A"} {
		s := testSale(num, base.Add(time.Duration(i)*time.Minute))
		if err := repo.SaveSale(ctx, s, testItems(s.ID, "p1", 1)); err != nil {
			t.Fatalf("save %s: %v", num, err)
		}
	}

	pending, err := repo.GetPendingSales(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("pending = %d, want 3", len(pending))
	}
	// порядок создания, не алфавит
	want := []string{"SALE-B", "SALE-C", "SALE-A"}
	for i, s := range pending {
		if s.SaleNumber != want[i] {
			t.Errorf("pending[%d] = %s, want %s", i, s.SaleNumber, want[i])
		}
	}
}

func TestMarkSynced_SetsLastSynced(t *testing.T) {
	sqlDB := openTestDB(t)
	repo := sales.NewRepo(sqlDB)
	ctx := context.Background()
	seedProduct(t, sqlDB, "p1", 10)

	sale := testSale("SALE-1", time.Now().UTC())
	if err := repo.SaveSale(ctx, sale, testItems(sale.ID, "p1", 1)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.MarkSynced(ctx, sale.ID, syncqueue.StatusSynced); err != nil {
		t.Fatalf("mark synced: %v", err)
	}

	got, err := repo.GetSale(ctx, sale.ID)
	if err != nil || got == nil {
		t.Fatalf("get: %v, %v", got, err)
	}
	if got.SyncStatus != syncqueue.StatusSynced {
		t.Errorf("sync_status = %s, want synced", got.SyncStatus)
	}
	if got.LastSynced.IsZero() {
		t.Error("last_synced must be set")
	}
}
