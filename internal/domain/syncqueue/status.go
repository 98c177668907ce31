package syncqueue

// Status — состояние репликации записи. synced терминально до следующей
// локальной правки, после неё запись снова становится pending.
type Status string

const (
	StatusSynced  Status = "synced"
	StatusPending Status = "pending"
	StatusError   Status = "error"
)
