package models

import (
	"encoding/json"
	"time"
)

const (
	SyncOpCreate = "create"
	SyncOpUpdate = "update"
	SyncOpDelete = "delete"
)

const (
	SyncModelOrder         = "order"
	SyncModelReview        = "review"
	SyncModelMenuItem      = "menu_item"
	SyncModelVendorProfile = "vendor_profile"
)

const (
	SyncPending    = "pending"
	SyncProcessing = "processing"
	SyncCompleted  = "completed"
	SyncFailed     = "failed"
	SyncConflicted = "conflict"
)

// SyncOperation is one queued offline mutation. ClientOpID is generated by
// the client and deduplicates re-submitted batches.
type SyncOperation struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	ClientOpID    string          `json:"client_op_id"`
	Operation     string          `json:"operation"`
	ModelType     string          `json:"model_type"`
	RecordID      string          `json:"record_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	BaseVersion   *time.Time      `json:"base_version,omitempty"`
	Status        string          `json:"status"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	RetryCount    int             `json:"retry_count"`
	MaxRetries    int             `json:"max_retries"`
	NextAttemptAt time.Time       `json:"next_attempt_at"`
	CreatedAt     time.Time       `json:"created_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
}

func (op *SyncOperation) CanRetry() bool {
	return op.RetryCount < op.MaxRetries
}

const (
	ConflictServerWins = "server_wins"
	ConflictClientWins = "client_wins"
	ConflictManual     = "manual"
)

type SyncConflict struct {
	ID         string          `json:"id"`
	OpID       string          `json:"op_id"`
	UserID     string          `json:"user_id"`
	ModelType  string          `json:"model_type"`
	RecordID   string          `json:"record_id"`
	LocalData  json.RawMessage `json:"local_data"`
	ServerData json.RawMessage `json:"server_data"`
	Strategy   string          `json:"strategy"`
	Resolved   bool            `json:"resolved"`
	CreatedAt  time.Time       `json:"created_at"`
}

type SyncSession struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	Total       int        `json:"total_operations"`
	Succeeded   int        `json:"successful_operations"`
	Failed      int        `json:"failed_operations"`
	Conflicts   int        `json:"conflicts"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type SyncStatus struct {
	QueueLength   int        `json:"queue_length"`
	Pending       int        `json:"pending_operations"`
	Failed        int        `json:"failed_operations"`
	Conflicts     int        `json:"conflicts"`
	LastProcessed *time.Time `json:"last_processed_at,omitempty"`
}
