package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Spok95/gelato-pos/internal/domain/catalog"
	"github.com/Spok95/gelato-pos/internal/domain/inventory"
	"github.com/Spok95/gelato-pos/internal/domain/sales"
	"github.com/Spok95/gelato-pos/internal/domain/syncqueue"
	"github.com/Spok95/gelato-pos/internal/infra/db"
	"github.com/Spok95/gelato-pos/internal/infra/remote"
	"github.com/Spok95/gelato-pos/internal/netmon"
	syncsvc "github.com/Spok95/gelato-pos/internal/sync"
)

type okRemote struct{}

func (okRemote) PushSale(_ context.Context, s sales.Sale, _ []sales.SaleItem) (*remote.PushAck, error) {
	return &remote.PushAck{ID: s.ID, SaleNumber: s.SaleNumber, Status: "created"}, nil
}

func (okRemote) PushStockMovement(_ context.Context, m inventory.Movement) (*remote.PushAck, error) {
	return &remote.PushAck{ID: m.ID, Status: "created"}, nil
}

func (okRemote) PullProducts(context.Context) ([]remote.ProductRecord, error) { return nil, nil }

func (okRemote) PullDeltasSince(context.Context, time.Time) (*remote.Deltas, error) {
	return &remote.Deltas{}, nil
}

func newTestAPI(t *testing.T) (*API, *netmon.Monitor) {
	t.Helper()
	sqlDB, err := db.Open(filepath.Join(t.TempDir(), "pos.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.Migrate(sqlDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	monitor := netmon.New(func(context.Context) bool { return true }, time.Minute, log)
	monitor.Check(context.Background())

	catRepo := catalog.NewRepo(sqlDB)
	salesRepo := sales.NewRepo(sqlDB)
	invRepo := inventory.NewRepo(sqlDB)
	queueRepo := syncqueue.NewRepo(sqlDB)
	svc := syncsvc.NewService(log, catRepo, salesRepo, invRepo, queueRepo, okRemote{}, monitor)
	return NewAPI(log, svc, monitor, queueRepo, salesRepo, catRepo), monitor
}

func TestHandleStatus(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := httptest.NewRecorder()
	api.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/sync/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["online"] != true {
		t.Errorf("online = %v, want true", body["online"])
	}
	if body["syncing"] != false {
		t.Errorf("syncing = %v, want false", body["syncing"])
	}
	if body["queueDepth"] != float64(0) {
		t.Errorf("queueDepth = %v, want 0", body["queueDepth"])
	}
}

func TestHandleSync(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := httptest.NewRecorder()
	api.handleSync(rec, httptest.NewRequest(http.MethodPost, "/sync", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var res syncsvc.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Success {
		t.Errorf("result = %+v", res)
	}
	if res.LastSyncTime == "" {
		t.Error("lastSyncTime empty")
	}
}

func TestHandleSalesReport(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := httptest.NewRecorder()
	api.handleSalesReport(rec, httptest.NewRequest(http.MethodGet, "/reports/sales.xlsx", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("content-type = %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty workbook")
	}
}

func TestHandleSalesReport_BadRange(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := httptest.NewRecorder()
	api.handleSalesReport(rec, httptest.NewRequest(http.MethodGet, "/reports/sales.xlsx?from=yesterday", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestServerRoutes(t *testing.T) {
	api, _ := newTestAPI(t)
	srv := New(":0", false, api)

	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("health = %d %q", rec.Code, rec.Body.String())
	}

	// метрики выключены конфигом
	rec = httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("metrics = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sync", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /sync = %d, want 405", rec.Code)
	}
}
