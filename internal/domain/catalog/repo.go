package catalog

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/Spok95/gelato-pos/internal/domain/syncqueue"
)

type Repo struct{ db *sql.DB }

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

const productCols = `id, name, COALESCE(description,''), category_id, COALESCE(supplier_id,''),
	COALESCE(sku,''), COALESCE(barcode,''), unit, cost_price, selling_price,
	min_stock_level, COALESCE(max_stock_level, 0), reorder_point, is_active,
	current_stock, available_stock, created_at, updated_at, sync_status, COALESCE(last_synced,'')`

func scanProduct(row interface{ Scan(...any) error }) (*Product, error) {
	var p Product
	var createdAt, updatedAt, lastSynced, status string
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CategoryID, &p.SupplierID,
		&p.SKU, &p.Barcode, &p.Unit, &p.CostPrice, &p.SellingPrice,
		&p.MinStockLevel, &p.MaxStockLevel, &p.ReorderPoint, &p.IsActive,
		&p.CurrentStock, &p.AvailableStock, &createdAt, &updatedAt, &status, &lastSynced)
	if err != nil {
		return nil, err
	}
	p.SyncStatus = syncqueue.Status(status)
	p.CreatedAt = parseTS(createdAt)
	p.UpdatedAt = parseTS(updatedAt)
	p.LastSynced = parseTS(lastSynced)
	return &p, nil
}

// GetProducts возвращает товары по фильтру, по умолчанию сортировка по имени.
// Условия собираются предикатами, а не конкатенацией значений.
func (r *Repo) GetProducts(ctx context.Context, f Filter) ([]Product, error) {
	conds := []string{}
	args := []any{}
	if f.ActiveOnly {
		conds = append(conds, "is_active = 1")
	}
	if f.CategoryID != "" {
		conds = append(conds, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Search != "" {
		conds = append(conds, "(name LIKE ? OR sku LIKE ? OR barcode LIKE ?)")
		like := "%" + f.Search + "%"
		args = append(args, like, like, like)
	}

	query := "SELECT " + productCols + " FROM products"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY name"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *Repo) GetProduct(ctx context.Context, id string) (*Product, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+productCols+" FROM products WHERE id = ?", id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SaveProduct — upsert по id. Если запись не synced, в той же транзакции
// добавляем элемент очереди: обе записи либо есть, либо нет.
func (r *Repo) SaveProduct(ctx context.Context, p *Product) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO products (
			id, name, description, category_id, supplier_id, sku, barcode, unit,
			cost_price, selling_price, min_stock_level, max_stock_level, reorder_point,
			is_active, current_stock, available_stock, created_at, updated_at,
			sync_status, last_synced
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`,
		p.ID, p.Name, p.Description, p.CategoryID, nullStr(p.SupplierID),
		nullStr(p.SKU), nullStr(p.Barcode), p.Unit, p.CostPrice, p.SellingPrice,
		p.MinStockLevel, p.MaxStockLevel, p.ReorderPoint, p.IsActive,
		p.CurrentStock, p.AvailableStock, ts(p.CreatedAt), ts(p.UpdatedAt),
		string(p.SyncStatus), nullStr(ts(p.LastSynced)),
	); err != nil {
		return err
	}

	if p.SyncStatus != syncqueue.StatusSynced {
		if err := syncqueue.Enqueue(ctx, tx, "products", p.ID, syncqueue.OpCreate, p); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// MarkSynced переключает статус записи. last_synced ставится только здесь,
// то есть только по результату синка.
func (r *Repo) MarkSynced(ctx context.Context, id string, status syncqueue.Status) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE products SET sync_status = ?, last_synced = ? WHERE id = ?
	`, string(status), ts(time.Now().UTC()), id)
	return err
}

// UpdateStockLevels — точечная правка остатков по данным сервера,
// остальные колонки не трогаем.
func (r *Repo) UpdateStockLevels(ctx context.Context, id string, current, available int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE products SET current_stock = ?, available_stock = ? WHERE id = ?
	`, current, available, id)
	return err
}

func (r *Repo) SaveCategory(ctx context.Context, c *Category) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO categories (id, name, color, icon, sort_order, is_active, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?)
	`, c.ID, c.Name, c.Color, c.Icon, c.SortOrder, c.IsActive, ts(c.CreatedAt), ts(c.UpdatedAt))
	return err
}

func (r *Repo) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, color, icon, sort_order, is_active, created_at, updated_at
		FROM categories
		ORDER BY sort_order, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &c.Icon, &c.SortOrder, &c.IsActive, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTS(createdAt)
		c.UpdatedAt = parseTS(updatedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) SaveSupplier(ctx context.Context, s *Supplier) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO suppliers (id, name, contact, phone, email, is_active, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?)
	`, s.ID, s.Name, nullStr(s.Contact), nullStr(s.Phone), nullStr(s.Email), s.IsActive, ts(s.CreatedAt), ts(s.UpdatedAt))
	return err
}

func (r *Repo) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(contact,''), COALESCE(phone,''), COALESCE(email,''), is_active, created_at, updated_at
		FROM suppliers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Supplier
	for rows.Next() {
		var s Supplier
		var createdAt, updatedAt string
		if err := rows.Scan(&s.ID, &s.Name, &s.Contact, &s.Phone, &s.Email, &s.IsActive, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		s.CreatedAt = parseTS(createdAt)
		s.UpdatedAt = parseTS(updatedAt)
		out = append(out, s)
	}
	return out, rows.Err()
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
