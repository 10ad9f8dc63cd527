package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Entry is one audit event. Webhook lifecycle changes and processed
// deliveries are recorded against the store's organization.
type Entry struct {
	OrganizationID string
	ActorID        string
	Action         string
	ResourceType   string
	ResourceID     string
	Metadata       map[string]interface{}
	IPAddress      string
	UserAgent      string
}

type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

type AuditLog struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organization_id"`
	UserID         string                 `json:"user_id"`
	Action         string                 `json:"action"`
	ResourceType   string                 `json:"resource_type"`
	ResourceID     string                 `json:"resource_id"`
	Metadata       map[string]interface{} `json:"metadata"`
	IPAddress      string                 `json:"ip_address"`
	UserAgent      string                 `json:"user_agent"`
	CreatedAt      int64                  `json:"created_at"`
}

// Logger writes audit entries to the global database in the background.
// Failures are logged and never reach the caller.
type Logger struct {
	globalDB *sql.DB
	wg       sync.WaitGroup
}

func NewLogger(db *sql.DB) *Logger {
	return &Logger{globalDB: db}
}

func (l *Logger) Record(ctx context.Context, entry Entry) {
	logEntry := &AuditLog{
		ID:             "audit_" + uuid.New().String(),
		OrganizationID: entry.OrganizationID,
		UserID:         entry.ActorID,
		Action:         entry.Action,
		ResourceType:   entry.ResourceType,
		ResourceID:     entry.ResourceID,
		Metadata:       entry.Metadata,
		IPAddress:      entry.IPAddress,
		UserAgent:      entry.UserAgent,
		CreatedAt:      time.Now().Unix(),
	}
	metaJSON, _ := json.Marshal(entry.Metadata)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		query := `
			INSERT INTO audit_logs (id, organization_id, user_id, action, resource_type, resource_id, metadata, ip_address, user_agent, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := l.globalDB.Exec(query, logEntry.ID, logEntry.OrganizationID, logEntry.UserID, logEntry.Action, logEntry.ResourceType,
			logEntry.ResourceID, string(metaJSON), logEntry.IPAddress, logEntry.UserAgent, logEntry.CreatedAt)
		if err != nil {
			log.Warn().Err(err).Str("action", logEntry.Action).Str("resource_id", logEntry.ResourceID).Msg("failed to write audit log")
		}
	}()
}

// Wait blocks until queued entries are written. Called on shutdown.
func (l *Logger) Wait() {
	l.wg.Wait()
}

// List returns an organization's most recent entries.
func (l *Logger) List(ctx context.Context, orgID string, limit int) ([]*AuditLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	rows, err := l.globalDB.QueryContext(ctx, `
		SELECT id, organization_id, user_id, action, resource_type, resource_id, metadata, ip_address, user_agent, created_at
		FROM audit_logs WHERE organization_id = ? ORDER BY created_at DESC LIMIT ?
	`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []*AuditLog{}
	for rows.Next() {
		var a AuditLog
		var meta sql.NullString
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.UserID, &a.Action, &a.ResourceType, &a.ResourceID, &meta, &a.IPAddress, &a.UserAgent, &a.CreatedAt); err != nil {
			return nil, err
		}
		if meta.Valid {
			json.Unmarshal([]byte(meta.String), &a.Metadata)
		}
		logs = append(logs, &a)
	}
	return logs, rows.Err()
}
