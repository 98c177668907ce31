package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Spok95/gelato-pos/internal/domain/catalog"
	"github.com/Spok95/gelato-pos/internal/domain/inventory"
	"github.com/Spok95/gelato-pos/internal/domain/sales"
	"github.com/Spok95/gelato-pos/internal/domain/syncqueue"
	"github.com/Spok95/gelato-pos/internal/infra/metrics"
	"github.com/Spok95/gelato-pos/internal/infra/remote"
)

// RemoteClient — серверный sync-эндпоинт глазами оркестратора.
type RemoteClient interface {
	PushSale(ctx context.Context, sale sales.Sale, items []sales.SaleItem) (*remote.PushAck, error)
	PushStockMovement(ctx context.Context, m inventory.Movement) (*remote.PushAck, error)
	PullProducts(ctx context.Context) ([]remote.ProductRecord, error)
	PullDeltasSince(ctx context.Context, since time.Time) (*remote.Deltas, error)
}

// Connectivity — текущее состояние сети (netmon.Monitor в проде).
type Connectivity interface {
	IsConnected() bool
}

// Result — итог одного цикла. success только при нуле ошибок по всем
// фазам; ошибки копятся по одной на каждую неудачную запись.
type Result struct {
	Success      bool     `json:"success"`
	SyncedItems  int      `json:"syncedItems"`
	Errors       []string `json:"errors"`
	LastSyncTime string   `json:"lastSyncTime"`
}

type Options struct {
	// Force пробивает single-flight, но не офлайн: без сети форс
	// всё равно мгновенно вернёт ошибку, а не повиснет на таймаутах.
	Force bool
}

// Service — конечный автомат {idle, syncing}. Флаг живёт только в
// памяти: после падения процесс стартует в idle, протухший
// "syncing" на диске не заклинит синк навсегда.
type Service struct {
	log      *slog.Logger
	catalog  *catalog.Repo
	sales    *sales.Repo
	movement *inventory.Repo
	queue    *syncqueue.Repo
	remote   RemoteClient
	network  Connectivity

	mu           sync.Mutex
	syncing      bool
	lastSyncTime time.Time
}

func NewService(
	log *slog.Logger,
	cat *catalog.Repo,
	sl *sales.Repo,
	inv *inventory.Repo,
	queue *syncqueue.Repo,
	rc RemoteClient,
	network Connectivity,
) *Service {
	return &Service{
		log:      log,
		catalog:  cat,
		sales:    sl,
		movement: inv,
		queue:    queue,
		remote:   rc,
		network:  network,
	}
}

func (s *Service) IsSyncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

func (s *Service) LastSyncTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSyncTime
}

func (s *Service) lastSyncISO() string {
	if s.lastSyncTime.IsZero() {
		return time.Now().UTC().Format(time.RFC3339)
	}
	return s.lastSyncTime.UTC().Format(time.RFC3339)
}

// Sync выполняет один цикл pull-then-push. Ошибки отдельных записей не
// прерывают цикл и не вылетают наружу — всё собирается в Result.
func (s *Service) Sync(ctx context.Context, opts Options) Result {
	s.mu.Lock()
	if s.syncing && !opts.Force {
		res := Result{Errors: []string{"Sync already in progress"}, LastSyncTime: s.lastSyncISO()}
		s.mu.Unlock()
		metrics.SyncCycles.WithLabelValues("skipped").Inc()
		return res
	}
	if !s.network.IsConnected() {
		// офлайн — ожидаемое состояние, падаем быстро даже при Force
		res := Result{Errors: []string{"No network connection"}, LastSyncTime: s.lastSyncISO()}
		s.mu.Unlock()
		metrics.SyncCycles.WithLabelValues("skipped").Inc()
		return res
	}
	s.syncing = true
	prevCheckpoint := s.lastSyncTime
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.syncing = false
		s.mu.Unlock()
	}()

	start := time.Now().UTC()
	res := Result{Success: true, LastSyncTime: start.Format(time.RFC3339)}

	s.log.Info("sync started")
	s.pullProducts(ctx, &res)
	s.pushSales(ctx, &res)
	s.pushMovements(ctx, &res)
	s.applyDeltas(ctx, prevCheckpoint, &res)

	if len(res.Errors) > 0 {
		res.Success = false
	}

	s.mu.Lock()
	s.lastSyncTime = start
	s.mu.Unlock()

	if n, err := s.queue.Count(ctx); err == nil {
		metrics.QueueDepth.Set(float64(n))
	}
	metrics.SyncedItems.Add(float64(res.SyncedItems))
	metrics.SyncErrors.Add(float64(len(res.Errors)))
	if res.Success {
		metrics.SyncCycles.WithLabelValues("success").Inc()
	} else {
		metrics.SyncCycles.WithLabelValues("failure").Inc()
	}

	s.log.Info("sync finished",
		"synced", res.SyncedItems,
		"errors", len(res.Errors),
		"duration", time.Since(start).String(),
	)
	return res
}

// pullProducts забирает весь каталог. Без чекпоинта: полный refresh
// прост и не ловит багов протухшего каталога, трафик на наших объёмах
// терпим.
func (s *Service) pullProducts(ctx context.Context, res *Result) {
	records, err := s.remote.PullProducts(ctx)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("Failed to fetch products: %v", err))
		return
	}

	now := time.Now().UTC()
	for _, rec := range records {
		p := &catalog.Product{
			ID:             rec.ID,
			Name:           rec.Name,
			Description:    rec.Description,
			CategoryID:     rec.CategoryID,
			SupplierID:     rec.SupplierID,
			SKU:            rec.SKU,
			Barcode:        rec.Barcode,
			Unit:           rec.Unit,
			CostPrice:      rec.CostPrice,
			SellingPrice:   rec.SellingPrice,
			MinStockLevel:  rec.MinStockLevel,
			MaxStockLevel:  rec.MaxStockLevel,
			ReorderPoint:   rec.ReorderPoint,
			IsActive:       rec.IsActive,
			CurrentStock:   rec.CurrentStock,
			AvailableStock: rec.AvailableStock,
			CreatedAt:      parseTS(rec.CreatedAt),
			UpdatedAt:      parseTS(rec.UpdatedAt),
			SyncStatus:     syncqueue.StatusSynced,
			LastSynced:     now,
		}
		if err := s.catalog.SaveProduct(ctx, p); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Failed to save product %s: %v", rec.ID, err))
			continue
		}
		// каталог авторитетен на сервере: локальные pending-правки товара
		// перекрыты свежей серверной версией, их снапшоты в очереди закрываем
		_ = s.queue.RemoveForRecord(ctx, "products", rec.ID)
		// имена категорий/поставщиков приезжают джойном — пополняем справочники
		if rec.CategoryID != "" && rec.CategoryName != "" {
			_ = s.catalog.SaveCategory(ctx, &catalog.Category{
				ID: rec.CategoryID, Name: rec.CategoryName, IsActive: true,
				CreatedAt: now, UpdatedAt: now,
			})
		}
		if rec.SupplierID != "" && rec.SupplierName != "" {
			_ = s.catalog.SaveSupplier(ctx, &catalog.Supplier{
				ID: rec.SupplierID, Name: rec.SupplierName, IsActive: true,
				CreatedAt: now, UpdatedAt: now,
			})
		}
		res.SyncedItems++
	}
	s.log.Debug("products pulled", "count", len(records))
}

// pushSales отправляет pending-чеки в порядке создания. Ошибка одного
// чека не блокирует остальные.
func (s *Service) pushSales(ctx context.Context, res *Result) {
	pending, err := s.sales.GetPendingSales(ctx)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("Failed to load pending sales: %v", err))
		return
	}

	for _, sale := range pending {
		items, err := s.sales.GetSaleItems(ctx, sale.ID)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Failed to load items for sale %s: %v", sale.SaleNumber, err))
			continue
		}
		ack, err := s.remote.PushSale(ctx, sale, items)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Failed to sync sale %s: %v", sale.SaleNumber, err))
			continue
		}
		if ack.ConflictResolved() {
			// сервер уже видел этот номер чека — повтор, не ошибка
			s.log.Debug("sale conflict resolved", "sale_number", sale.SaleNumber)
		}
		if err := s.sales.MarkSynced(ctx, sale.ID, syncqueue.StatusSynced); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Failed to mark sale %s synced: %v", sale.SaleNumber, err))
			continue
		}
		_ = s.queue.RemoveForRecord(ctx, "sales", sale.ID)
		res.SyncedItems++
	}
}

// pushMovements гонит движения из очереди. Элемент снимается только
// после явного подтверждения; упавший остаётся до следующего цикла.
func (s *Service) pushMovements(ctx context.Context, res *Result) {
	queue, err := s.queue.List(ctx)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("Failed to read sync queue: %v", err))
		return
	}

	for _, item := range queue {
		if item.TableName != "stock_movements" {
			continue
		}
		var m inventory.Movement
		if err := json.Unmarshal(item.Data, &m); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Bad queue payload %s: %v", item.ID, err))
			continue
		}
		ack, err := s.remote.PushStockMovement(ctx, m)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Failed to sync stock movement %s: %v", m.ID, err))
			_ = s.queue.BumpRetry(ctx, item.ID, err.Error())
			continue
		}
		if ack.ConflictResolved() {
			s.log.Debug("movement conflict resolved", "movement_id", m.ID)
		}
		if err := s.movement.MarkSynced(ctx, m.ID, syncqueue.StatusSynced); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Failed to mark movement %s synced: %v", m.ID, err))
			continue
		}
		_ = s.queue.Remove(ctx, item.ID)
		res.SyncedItems++
	}
}

// applyDeltas подтягивает серверные изменения остатков с прошлого
// чекпоинта. На первом цикле чекпоинта ещё нет — фаза пропускается,
// полный pull каталога уже всё принёс.
func (s *Service) applyDeltas(ctx context.Context, since time.Time, res *Result) {
	if since.IsZero() {
		return
	}
	deltas, err := s.remote.PullDeltasSince(ctx, since)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("Failed to fetch deltas: %v", err))
		return
	}
	for _, lvl := range deltas.InventoryLevels {
		if err := s.catalog.UpdateStockLevels(ctx, lvl.ProductID, lvl.CurrentStock, lvl.AvailableStock); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Failed to apply stock level for %s: %v", lvl.ProductID, err))
		}
	}
}

func parseTS(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
