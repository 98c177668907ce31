package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Spok95/gelato-pos/internal/domain/inventory"
	"github.com/Spok95/gelato-pos/internal/domain/sales"
)

// Client ходит в серверный sync-эндпоинт. Каждый вызов ограничен
// собственным дедлайном, чтобы завис один запрос — не завис весь цикл.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *http.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
		http:    &http.Client{},
	}
}

// PushAck — ответ сервера на отправку чека или движения.
type PushAck struct {
	ID         string `json:"id"`
	SaleNumber string `json:"sale_number,omitempty"`
	Status     string `json:"status"`
}

// ConflictResolved: запись уже есть на сервере, повтор принят как no-op.
func (a *PushAck) ConflictResolved() bool { return a.Status == "conflict_resolved" }

type saleUpload struct {
	ID             string           `json:"id"`
	SaleNumber     string           `json:"sale_number"`
	CustomerName   string           `json:"customer_name,omitempty"`
	CustomerPhone  string           `json:"customer_phone,omitempty"`
	CustomerEmail  string           `json:"customer_email,omitempty"`
	Subtotal       float64          `json:"subtotal"`
	TaxAmount      float64          `json:"tax_amount"`
	DiscountAmount float64          `json:"discount_amount"`
	TotalAmount    float64          `json:"total_amount"`
	PaymentMethod  string           `json:"payment_method"`
	PaymentStatus  string           `json:"payment_status"`
	CashierID      string           `json:"cashier_id"`
	Notes          string           `json:"notes,omitempty"`
	CreatedAt      string           `json:"created_at"`
	Items          []saleItemUpload `json:"items"`
}

type saleItemUpload struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalPrice  float64 `json:"total_price"`
	Discount    float64 `json:"discount,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

type MovementRecord struct {
	ID              string `json:"id"`
	ProductID       string `json:"product_id"`
	MovementType    string `json:"movement_type"`
	Quantity        int    `json:"quantity"`
	ReferenceNumber string `json:"reference_number,omitempty"`
	ReferenceType   string `json:"reference_type,omitempty"`
	ReferenceID     string `json:"reference_id,omitempty"`
	Notes           string `json:"notes,omitempty"`
	UserID          string `json:"user_id,omitempty"`
	CreatedAt       string `json:"created_at"`
}

// ProductRecord — каталожная позиция с уже приджойненными на сервере
// категорией, поставщиком и остатками.
type ProductRecord struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Description    string  `json:"description,omitempty"`
	CategoryID     string  `json:"category_id"`
	CategoryName   string  `json:"category_name,omitempty"`
	SupplierID     string  `json:"supplier_id,omitempty"`
	SupplierName   string  `json:"supplier_name,omitempty"`
	SKU            string  `json:"sku,omitempty"`
	Barcode        string  `json:"barcode,omitempty"`
	Unit           string  `json:"unit"`
	CostPrice      float64 `json:"cost_price"`
	SellingPrice   float64 `json:"selling_price"`
	MinStockLevel  int     `json:"min_stock_level"`
	MaxStockLevel  int     `json:"max_stock_level,omitempty"`
	ReorderPoint   int     `json:"reorder_point"`
	IsActive       bool    `json:"is_active"`
	CurrentStock   int     `json:"current_stock"`
	AvailableStock int     `json:"available_stock"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

type InventoryLevel struct {
	ProductID      string `json:"product_id"`
	CurrentStock   int    `json:"current_stock"`
	AvailableStock int    `json:"available_stock"`
	UpdatedAt      string `json:"updated_at"`
}

// Deltas — изменения на сервере с момента чекпоинта.
type Deltas struct {
	Products        []ProductRecord  `json:"products"`
	InventoryLevels []InventoryLevel `json:"inventory_levels"`
	StockMovements  []MovementRecord `json:"stock_movements"`
}

func (c *Client) PushSale(ctx context.Context, sale sales.Sale, items []sales.SaleItem) (*PushAck, error) {
	up := saleUpload{
		ID:             sale.ID,
		SaleNumber:     sale.SaleNumber,
		CustomerName:   sale.CustomerName,
		CustomerPhone:  sale.CustomerPhone,
		CustomerEmail:  sale.CustomerEmail,
		Subtotal:       sale.Subtotal,
		TaxAmount:      sale.TaxAmount,
		DiscountAmount: sale.DiscountAmount,
		TotalAmount:    sale.TotalAmount,
		PaymentMethod:  sale.PaymentMethod,
		PaymentStatus:  sale.PaymentStatus,
		CashierID:      sale.CashierID,
		Notes:          sale.Notes,
		CreatedAt:      sale.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	for _, it := range items {
		up.Items = append(up.Items, saleItemUpload{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
			Discount:    it.Discount,
			CreatedAt:   it.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	var ack PushAck
	if err := c.do(ctx, http.MethodPost, "/sync/sales", up, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

func (c *Client) PushStockMovement(ctx context.Context, m inventory.Movement) (*PushAck, error) {
	up := MovementRecord{
		ID:              m.ID,
		ProductID:       m.ProductID,
		MovementType:    string(m.Type),
		Quantity:        m.Quantity,
		ReferenceNumber: m.ReferenceNumber,
		ReferenceType:   m.ReferenceType,
		ReferenceID:     m.ReferenceID,
		Notes:           m.Notes,
		UserID:          m.UserID,
		CreatedAt:       m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	var ack PushAck
	if err := c.do(ctx, http.MethodPost, "/sync/movements", up, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

func (c *Client) PullProducts(ctx context.Context) ([]ProductRecord, error) {
	var out []ProductRecord
	if err := c.do(ctx, http.MethodGet, "/sync/products", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PullDeltasSince(ctx context.Context, since time.Time) (*Deltas, error) {
	path := "/sync/deltas?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	var out Deltas
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote call %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// 409 — конфликт, разрешённый в пользу сервера: это успех-no-op
	if resp.StatusCode == http.StatusConflict {
		if ack, ok := out.(*PushAck); ok {
			_ = json.NewDecoder(resp.Body).Decode(ack)
			ack.Status = "conflict_resolved"
			return nil
		}
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("remote %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}
