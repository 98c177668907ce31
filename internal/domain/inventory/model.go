package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/Spok95/gelato-pos/internal/domain/syncqueue"
)

type MoveType string

const (
	MoveIn         MoveType = "in"
	MoveOut        MoveType = "out"
	MoveAdjustment MoveType = "adjustment"
	MoveTransfer   MoveType = "transfer"
)

// Movement — движение остатка. id генерируется на клиенте (uuid) и
// служит ключом дедупликации при повторной отправке на сервер.
type Movement struct {
	ID              string
	ProductID       string
	Type            MoveType
	Quantity        int
	ReferenceNumber string
	ReferenceType   string
	ReferenceID     string
	Notes           string
	UserID          string
	CreatedAt       time.Time
	SyncStatus      syncqueue.Status
	LastSynced      time.Time
}

func NewID() string { return uuid.NewString() }

// delta — знак изменения остатка по типу движения.
// adjustment несёт знак в самом количестве, transfer — уход с точки.
func (m *Movement) delta() int {
	switch m.Type {
	case MoveIn:
		return m.Quantity
	case MoveOut, MoveTransfer:
		return -m.Quantity
	default:
		return m.Quantity
	}
}
