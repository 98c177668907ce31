package syncqueue

import (
	"encoding/json"
	"time"
)

type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Item — одно отложенное намерение среплицировать запись на сервер.
// data — снапшот записи на момент постановки в очередь; последующие
// локальные правки этой же записи добавляют новый элемент, а не меняют старый.
type Item struct {
	ID         string
	TableName  string
	RecordID   string
	Operation  Operation
	Data       json.RawMessage
	CreatedAt  time.Time
	RetryCount int
	LastError  string
}
