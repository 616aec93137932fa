package model

// SyncOperation names one of the idempotent operations exposed by the
// external profile-sync service.
type SyncOperation string

const (
	SyncAddReserved    SyncOperation = "addReservedSession"
	SyncRemoveReserved SyncOperation = "removeReservedSession"
	SyncAddWaitlisted  SyncOperation = "addWaitlistedSession"
)

// Valid reports whether op is one of the known operations.
func (op SyncOperation) Valid() bool {
	switch op {
	case SyncAddReserved, SyncRemoveReserved, SyncAddWaitlisted:
		return true
	}
	return false
}

// Notification is a committed reservation change to be relayed to the
// profile-sync service.  Timestamp is epoch millis.
type Notification struct {
	Operation SyncOperation `json:"operation"`
	UserID    string        `json:"user_id"`
	SessionID string        `json:"session_id"`
	Timestamp int64         `json:"timestamp"`
}
