package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Spok95/gelato-pos/internal/domain/catalog"
	"github.com/Spok95/gelato-pos/internal/domain/sales"
	"github.com/Spok95/gelato-pos/internal/domain/syncqueue"
	"github.com/Spok95/gelato-pos/internal/netmon"
	"github.com/Spok95/gelato-pos/internal/report"
	syncsvc "github.com/Spok95/gelato-pos/internal/sync"
)

type API struct {
	log     *slog.Logger
	sync    *syncsvc.Service
	monitor *netmon.Monitor
	queue   *syncqueue.Repo
	sales   *sales.Repo
	catalog *catalog.Repo
}

func NewAPI(
	log *slog.Logger,
	svc *syncsvc.Service,
	monitor *netmon.Monitor,
	queue *syncqueue.Repo,
	sl *sales.Repo,
	cat *catalog.Repo,
) *API {
	return &API{log: log, sync: svc, monitor: monitor, queue: queue, sales: sl, catalog: cat}
}

// handleSync — ручной запуск цикла (кнопка "синхронизировать сейчас").
func (a *API) handleSync(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "1"
	res := a.sync.Sync(r.Context(), syncsvc.Options{Force: force})
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	depth, err := a.queue.Count(r.Context())
	if err != nil {
		a.log.Error("queue count failed", "err", err)
		depth = -1
	}
	last := ""
	if t := a.sync.LastSyncTime(); !t.IsZero() {
		last = t.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"online":       a.monitor.IsConnected(),
		"syncing":      a.sync.IsSyncing(),
		"lastSyncTime": last,
		"queueDepth":   depth,
	})
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			http.Error(w, "invalid from parameter", http.StatusBadRequest)
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			http.Error(w, "invalid to parameter", http.StatusBadRequest)
			return
		}
		// включительно до конца дня
		to = t.AddDate(0, 0, 1)
	}

	saleRows, err := a.sales.ListSales(ctx, from, to)
	if err != nil {
		a.log.Error("list sales failed", "err", err)
		http.Error(w, "failed to load sales", http.StatusInternalServerError)
		return
	}
	products, err := a.catalog.GetProducts(ctx, catalog.Filter{ActiveOnly: true})
	if err != nil {
		a.log.Error("list products failed", "err", err)
		http.Error(w, "failed to load products", http.StatusInternalServerError)
		return
	}

	f, err := report.BuildSalesReport(saleRows, products)
	if err != nil {
		a.log.Error("report build failed", "err", err)
		http.Error(w, "failed to build report", http.StatusInternalServerError)
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="sales.xlsx"`)
	if err := f.Write(w); err != nil {
		a.log.Error("report write failed", "err", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
