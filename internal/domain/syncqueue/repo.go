package syncqueue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type Repo struct{ db *sql.DB }

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

// Enqueue добавляет элемент очереди внутри уже открытой транзакции.
// Вставка записи и постановка в очередь обязаны быть атомарными:
// упади процесс между ними — получили бы pending-запись, которая
// никогда не уйдёт на сервер.
func Enqueue(ctx context.Context, tx *sql.Tx, table, recordID string, op Operation, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal queue payload: %w", err)
	}
	now := time.Now().UTC()
	id := fmt.Sprintf("%s_%s_%d", table, recordID, now.UnixNano())
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_queue (id, table_name, record_id, operation, data, created_at)
		VALUES (?,?,?,?,?,?)
	`, id, table, recordID, string(op), string(data), now.Format(TimeLayout))
	return err
}

// TimeLayout — фиксированная ширина дробной части, чтобы строки
// сортировались как время. RFC3339Nano срезает нули и ломает порядок.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// List возвращает всю очередь в порядке создания (старые первыми).
func (r *Repo) List(ctx context.Context) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, table_name, record_id, operation, data, created_at, retry_count, COALESCE(last_error, '')
		FROM sync_queue
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		var op, data, createdAt string
		if err := rows.Scan(&it.ID, &it.TableName, &it.RecordID, &op, &data, &createdAt, &it.RetryCount, &it.LastError); err != nil {
			return nil, err
		}
		it.Operation = Operation(op)
		it.Data = json.RawMessage(data)
		it.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, it)
	}
	return out, rows.Err()
}

// Remove убирает подтверждённый сервером элемент. Идемпотентно.
func (r *Repo) Remove(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	return err
}

// RemoveForRecord убирает все элементы очереди по записи. Используется
// после подтверждения сервером: у одной записи может накопиться несколько
// снапшотов, подтверждённый push закрывает их все.
func (r *Repo) RemoveForRecord(ctx context.Context, table, recordID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE table_name = ? AND record_id = ?`, table, recordID)
	return err
}

// BumpRetry фиксирует неудачную попытку: счётчик + текст последней ошибки.
func (r *Repo) BumpRetry(ctx context.Context, id, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sync_queue SET retry_count = retry_count + 1, last_error = ? WHERE id = ?
	`, errMsg, id)
	return err
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&n)
	return n, err
}
