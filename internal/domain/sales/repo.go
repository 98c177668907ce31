package sales

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Spok95/gelato-pos/internal/domain/syncqueue"
)

var (
	// ErrInsufficientStock — по товару нет свободного остатка под чек
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrDuplicateSaleNumber — номер чека уже занят
	ErrDuplicateSaleNumber = errors.New("duplicate sale number")
)

type Repo struct{ db *sql.DB }

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

// SaveSale пишет чек с позициями одной транзакцией: резерв остатков,
// сам чек, позиции и элемент очереди. Частичная вставка (чек без
// позиций или наоборот) невозможна.
func (r *Repo) SaveSale(ctx context.Context, sale *Sale, items []SaleItem) error {
	if len(items) == 0 {
		return fmt.Errorf("sale %s has no items", sale.SaleNumber)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Резерв: available_stock не должен уйти в минус
	for _, it := range items {
		res, err := tx.ExecContext(ctx, `
			UPDATE products
			SET available_stock = available_stock - ?
			WHERE id = ? AND available_stock >= ?
		`, it.Quantity, it.ProductID, it.Quantity)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: product %s", ErrInsufficientStock, it.ProductID)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, sale_number, customer_name, customer_phone, customer_email,
			subtotal, tax_amount, discount_amount, total_amount,
			payment_method, payment_status, cashier_id, notes,
			created_at, updated_at, sync_status, last_synced
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`,
		sale.ID, sale.SaleNumber, nullStr(sale.CustomerName), nullStr(sale.CustomerPhone), nullStr(sale.CustomerEmail),
		sale.Subtotal, sale.TaxAmount, sale.DiscountAmount, sale.TotalAmount,
		sale.PaymentMethod, sale.PaymentStatus, sale.CashierID, nullStr(sale.Notes),
		ts(sale.CreatedAt), ts(sale.UpdatedAt), string(sale.SyncStatus), nullStr(ts(sale.LastSynced)),
	); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: sales.sale_number") {
			return fmt.Errorf("%w: %s", ErrDuplicateSaleNumber, sale.SaleNumber)
		}
		return err
	}

	for _, it := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, product_id, product_name, quantity, unit_price, total_price, discount, created_at)
			VALUES (?,?,?,?,?,?,?,?,?)
		`, it.ID, it.SaleID, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice, it.TotalPrice, it.Discount, ts(it.CreatedAt)); err != nil {
			return err
		}
	}

	// Один элемент очереди на весь чек
	if err := syncqueue.Enqueue(ctx, tx, "sales", sale.ID, syncqueue.OpCreate, Bundle{Sale: *sale, Items: items}); err != nil {
		return err
	}
	return tx.Commit()
}

const saleCols = `id, sale_number, COALESCE(customer_name,''), COALESCE(customer_phone,''), COALESCE(customer_email,''),
	subtotal, tax_amount, discount_amount, total_amount, payment_method, payment_status,
	cashier_id, COALESCE(notes,''), created_at, updated_at, sync_status, COALESCE(last_synced,'')`

func scanSale(row interface{ Scan(...any) error }) (*Sale, error) {
	var s Sale
	var createdAt, updatedAt, lastSynced, status string
	err := row.Scan(&s.ID, &s.SaleNumber, &s.CustomerName, &s.CustomerPhone, &s.CustomerEmail,
		&s.Subtotal, &s.TaxAmount, &s.DiscountAmount, &s.TotalAmount, &s.PaymentMethod, &s.PaymentStatus,
		&s.CashierID, &s.Notes, &createdAt, &updatedAt, &status, &lastSynced)
	if err != nil {
		return nil, err
	}
	s.SyncStatus = syncqueue.Status(status)
	s.CreatedAt = parseTS(createdAt)
	s.UpdatedAt = parseTS(updatedAt)
	s.LastSynced = parseTS(lastSynced)
	return &s, nil
}

// GetPendingSales — несинхронизированные чеки, старые первыми: порядок
// отправки сохраняет причинность между чеком и его движениями.
func (r *Repo) GetPendingSales(ctx context.Context) ([]Sale, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+saleCols+" FROM sales WHERE sync_status = ? ORDER BY created_at",
		string(syncqueue.StatusPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *Repo) GetSale(ctx context.Context, id string) (*Sale, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+saleCols+" FROM sales WHERE id = ?", id)
	s, err := scanSale(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Repo) GetSaleItems(ctx context.Context, saleID string) ([]SaleItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, product_name, quantity, unit_price, total_price, discount, created_at
		FROM sale_items
		WHERE sale_id = ?
		ORDER BY created_at
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SaleItem
	for rows.Next() {
		var it SaleItem
		var createdAt string
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.TotalPrice, &it.Discount, &createdAt); err != nil {
			return nil, err
		}
		it.CreatedAt = parseTS(createdAt)
		out = append(out, it)
	}
	return out, rows.Err()
}

// ListSales — чеки за период, для отчёта
func (r *Repo) ListSales(ctx context.Context, from, to time.Time) ([]Sale, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+saleCols+" FROM sales WHERE created_at >= ? AND created_at < ? ORDER BY created_at",
		ts(from), ts(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *Repo) MarkSynced(ctx context.Context, id string, status syncqueue.Status) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sales SET sync_status = ?, last_synced = ? WHERE id = ?
	`, string(status), ts(time.Now().UTC()), id)
	return err
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(syncqueue.TimeLayout)
}

func parseTS(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
