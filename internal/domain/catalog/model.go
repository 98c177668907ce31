package catalog

import (
	"time"

	"github.com/Spok95/gelato-pos/internal/domain/syncqueue"
)

// Product — локальное зеркало каталожной позиции. Авторитетный источник —
// сервер; current/available_stock обновляются при pull и при локальных
// продажах/движениях.
type Product struct {
	ID            string
	Name          string
	Description   string
	CategoryID    string
	SupplierID    string
	SKU           string
	Barcode       string
	Unit          string
	CostPrice     float64
	SellingPrice  float64
	MinStockLevel int
	MaxStockLevel int
	ReorderPoint  int
	IsActive      bool
	CurrentStock  int
	// current минус зарезервированное под неоплаченные продажи
	AvailableStock int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	SyncStatus     syncqueue.Status
	LastSynced     time.Time
}

type Category struct {
	ID        string
	Name      string
	Color     string
	Icon      string
	SortOrder int
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Supplier struct {
	ID        string
	Name      string
	Contact   string
	Phone     string
	Email     string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filter — условия выборки товаров. Пустые поля не участвуют в запросе.
type Filter struct {
	CategoryID string
	Search     string
	ActiveOnly bool
}
