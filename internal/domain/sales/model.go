package sales

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Spok95/gelato-pos/internal/domain/syncqueue"
)

type Sale struct {
	ID             string
	SaleNumber     string
	CustomerName   string
	CustomerPhone  string
	CustomerEmail  string
	Subtotal       float64
	TaxAmount      float64
	DiscountAmount float64
	TotalAmount    float64
	PaymentMethod  string
	PaymentStatus  string
	CashierID      string
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	SyncStatus     syncqueue.Status
	LastSynced     time.Time
}

// SaleItem — снапшот позиции на момент чека. Имя и цена копируются из
// товара: исторический чек не должен меняться задним числом при
// редактировании каталога.
type SaleItem struct {
	ID          string
	SaleID      string
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   float64
	TotalPrice  float64
	Discount    float64
	CreatedAt   time.Time
}

// Bundle — то, что уходит на сервер одним запросом: чек целиком.
type Bundle struct {
	Sale  Sale
	Items []SaleItem
}

func NewID() string { return uuid.NewString() }

// NewSaleNumber генерирует локальный номер чека для офлайн-продажи.
// Сервер при конфликте оставляет свою версию номера.
func NewSaleNumber(at time.Time) string {
	return fmt.Sprintf("SALE-%s-%s", at.Format("20060102"), uuid.NewString()[:8])
}
