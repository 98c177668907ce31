package inventory

import (
	"context"
	"database/sql"
	"time"

	"github.com/Spok95/gelato-pos/internal/domain/syncqueue"
)

type Repo struct{ db *sql.DB }

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

// SaveMovement одной транзакцией: правка остатка, само движение и
// элемент очереди. Остаток может уйти в минус — корректирующие движения
// это допускают, блокируем минус только на продажах.
func (r *Repo) SaveMovement(ctx context.Context, m *Movement) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	d := m.delta()
	if _, err := tx.ExecContext(ctx, `
		UPDATE products
		SET current_stock = current_stock + ?, available_stock = available_stock + ?
		WHERE id = ?
	`, d, d, m.ProductID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO stock_movements (
			id, product_id, movement_type, quantity, reference_number,
			reference_type, reference_id, notes, user_id, created_at,
			sync_status, last_synced
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
	`,
		m.ID, m.ProductID, string(m.Type), m.Quantity, nullStr(m.ReferenceNumber),
		nullStr(m.ReferenceType), nullStr(m.ReferenceID), nullStr(m.Notes), nullStr(m.UserID),
		ts(m.CreatedAt), string(m.SyncStatus), nullStr(ts(m.LastSynced)),
	); err != nil {
		return err
	}

	if m.SyncStatus != syncqueue.StatusSynced {
		if err := syncqueue.Enqueue(ctx, tx, "stock_movements", m.ID, syncqueue.OpCreate, m); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const movementCols = `id, product_id, movement_type, quantity, COALESCE(reference_number,''),
	COALESCE(reference_type,''), COALESCE(reference_id,''), COALESCE(notes,''), COALESCE(user_id,''),
	created_at, sync_status, COALESCE(last_synced,'')`

func scanMovement(row interface{ Scan(...any) error }) (*Movement, error) {
	var m Movement
	var mt, createdAt, status, lastSynced string
	err := row.Scan(&m.ID, &m.ProductID, &mt, &m.Quantity, &m.ReferenceNumber,
		&m.ReferenceType, &m.ReferenceID, &m.Notes, &m.UserID,
		&createdAt, &status, &lastSynced)
	if err != nil {
		return nil, err
	}
	m.Type = MoveType(mt)
	m.SyncStatus = syncqueue.Status(status)
	m.CreatedAt = parseTS(createdAt)
	m.LastSynced = parseTS(lastSynced)
	return &m, nil
}

func (r *Repo) GetMovement(ctx context.Context, id string) (*Movement, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+movementCols+" FROM stock_movements WHERE id = ?", id)
	m, err := scanMovement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Repo) ListByProduct(ctx context.Context, productID string) ([]Movement, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+movementCols+" FROM stock_movements WHERE product_id = ? ORDER BY created_at", productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *Repo) MarkSynced(ctx context.Context, id string, status syncqueue.Status) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE stock_movements SET sync_status = ?, last_synced = ? WHERE id = ?
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
