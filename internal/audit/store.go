// Package audit хранит неизменяемый журнал действий над заявками.
package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/senyabanana/procurement-service/internal/models"

	"github.com/lib/pq"
)

// Sink принимает записи журнала. Записи только добавляются.
type Sink interface {
	Append(ctx context.Context, entries ...models.AuditLogEntry) error
}

// Reader выбирает записи журнала по заявке или транзакции.
type Reader interface {
	ListByRequisition(ctx context.Context, requisitionId string, actions []models.AuditAction, limit, offset int) ([]models.AuditLogEntry, error)
	ListByTx(ctx context.Context, txId string) ([]models.AuditLogEntry, error)
}

// PostgresStore - реализация Sink и Reader поверх database/sql.
type PostgresStore struct {
	DB *sql.DB
}

// Open открывает соединение с базой журнала через драйвер lib/pq.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open audit database: %w", err)
	}
	return db, nil
}

// NewPostgresStore создает новый экземпляр PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

// Append записывает пачку записей одной транзакцией.
func (s *PostgresStore) Append(ctx context.Context, entries ...models.AuditLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	insertQuery := `INSERT INTO audit_log (id, actor, created_at, action, target_type, target_id, requisition_id, detail, tx_id)
	                VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	for _, e := range entries {
		_, err := tx.ExecContext(ctx, insertQuery,
			e.ID, e.Actor, e.Timestamp, string(e.Action), e.TargetType, e.TargetID, e.RequisitionID, e.Detail, nullable(e.TxID))
		if err != nil {
			return fmt.Errorf("insert audit entry %s: %w", e.Action, err)
		}
	}
	return tx.Commit()
}

// ListByRequisition возвращает записи заявки в хронологическом порядке.
func (s *PostgresStore) ListByRequisition(ctx context.Context, requisitionId string, actions []models.AuditAction, limit, offset int) ([]models.AuditLogEntry, error) {
	filter := make([]string, 0, len(actions))
	for _, a := range actions {
		filter = append(filter, string(a))
	}
	query := `
		SELECT id, actor, created_at, action, target_type, target_id, requisition_id, detail, COALESCE(tx_id, '')
		FROM audit_log
		WHERE requisition_id = $1 AND (cardinality($2::text[]) = 0 OR action = ANY($2))
		ORDER BY created_at, id
		LIMIT $3 OFFSET $4`
	return s.list(ctx, query, requisitionId, pq.Array(filter), limit, offset)
}

// ListByTx возвращает записи, созданные в рамках одной операции.
func (s *PostgresStore) ListByTx(ctx context.Context, txId string) ([]models.AuditLogEntry, error) {
	query := `
		SELECT id, actor, created_at, action, target_type, target_id, requisition_id, detail, COALESCE(tx_id, '')
		FROM audit_log
		WHERE tx_id = $1
		ORDER BY created_at, id`
	return s.list(ctx, query, txId)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]models.AuditLogEntry, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditLogEntry
	for rows.Next() {
		var (
			e      models.AuditLogEntry
			action string
		)
		if err := rows.Scan(&e.ID, &e.Actor, &e.Timestamp, &action, &e.TargetType, &e.TargetID, &e.RequisitionID, &e.Detail, &e.TxID); err != nil {
			return nil, err
		}
		e.Action = models.AuditAction(action)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
