package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/senyabanana/procurement-service/internal/models"

	"github.com/jackc/pgx/v5"
)

const requisitionColumns = `id, title, description, status, previous_status, quote_deadline, scoring_deadline,
	masked, unseal_threshold, opening_roles, quorum_round, financial_committee, technical_committee,
	award_deadline, award_exhausted, created_by, created_at, updated_at`

func scanRequisition(row pgx.Row) (*models.Requisition, error) {
	var (
		req          models.Requisition
		previous     *string
		openingRoles []string
	)
	err := row.Scan(
		&req.ID,
		&req.Title,
		&req.Description,
		&req.Status,
		&previous,
		&req.QuoteDeadline,
		&req.ScoringDeadline,
		&req.Masked,
		&req.UnsealThreshold,
		&openingRoles,
		&req.QuorumRound,
		&req.FinancialCommittee,
		&req.TechnicalCommittee,
		&req.AwardDeadline,
		&req.AwardExhausted,
		&req.CreatedBy,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if previous != nil {
		req.PreviousStatus = models.RequisitionStatus(*previous)
	}
	req.OpeningRoles = stringsToRoles(openingRoles)
	return &req, nil
}

// CreateRequisition создает новую заявку.
func (r *PostgresRepository) CreateRequisition(ctx context.Context, req *models.Requisition) error {
	insertQuery := `INSERT INTO requisition (id, title, description, status, quote_deadline, scoring_deadline,
	                masked, unseal_threshold, opening_roles, quorum_round, financial_committee, technical_committee,
	                created_by, created_at, updated_at)
	                VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := r.q.Exec(
		ctx,
		insertQuery,
		req.ID,
		req.Title,
		req.Description,
		req.Status,
		req.QuoteDeadline,
		req.ScoringDeadline,
		req.Masked,
		req.UnsealThreshold,
		textArray(rolesToStrings(req.OpeningRoles)),
		req.QuorumRound,
		textArray(req.FinancialCommittee),
		textArray(req.TechnicalCommittee),
		req.CreatedBy,
		req.CreatedAt,
		req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert requisition: %w", err)
	}
	return nil
}

// GetRequisition возвращает заявку без блокировки.
func (r *PostgresRepository) GetRequisition(ctx context.Context, requisitionId string) (*models.Requisition, error) {
	query := `SELECT ` + requisitionColumns + ` FROM requisition WHERE id = $1`
	req, err := scanRequisition(r.q.QueryRow(ctx, query, requisitionId))
	if err != nil {
		return nil, notFound(err, "requisition")
	}
	return req, nil
}

// LockRequisition возвращает заявку и блокирует строку до конца транзакции.
func (r *PostgresRepository) LockRequisition(ctx context.Context, requisitionId string) (*models.Requisition, error) {
	query := `SELECT ` + requisitionColumns + ` FROM requisition WHERE id = $1 FOR UPDATE`
	req, err := scanRequisition(r.q.QueryRow(ctx, query, requisitionId))
	if err != nil {
		return nil, notFound(err, "requisition")
	}
	return req, nil
}

// UpdateRequisition сохраняет изменяемые поля заявки.
func (r *PostgresRepository) UpdateRequisition(ctx context.Context, req *models.Requisition) error {
	var previous *string
	if req.PreviousStatus != "" {
		p := string(req.PreviousStatus)
		previous = &p
	}
	updateQuery := `
		UPDATE requisition SET status = $2, previous_status = $3, quote_deadline = $4, scoring_deadline = $5,
		       masked = $6, unseal_threshold = $7, opening_roles = $8, quorum_round = $9,
		       financial_committee = $10, technical_committee = $11, award_deadline = $12,
		       award_exhausted = $13, updated_at = $14
		WHERE id = $1`
	tag, err := r.q.Exec(
		ctx,
		updateQuery,
		req.ID,
		req.Status,
		previous,
		req.QuoteDeadline,
		req.ScoringDeadline,
		req.Masked,
		req.UnsealThreshold,
		textArray(rolesToStrings(req.OpeningRoles)),
		req.QuorumRound,
		textArray(req.FinancialCommittee),
		textArray(req.TechnicalCommittee),
		req.AwardDeadline,
		req.AwardExhausted,
		req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update requisition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.NewErrorResponse(models.KindNotFound, "requisition not found")
	}
	return nil
}

// TransitionRequisition меняет статус только если текущий статус равен from.
func (r *PostgresRepository) TransitionRequisition(ctx context.Context, requisitionId string, from, to models.RequisitionStatus) (bool, error) {
	updateQuery := `UPDATE requisition SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`
	tag, err := r.q.Exec(ctx, updateQuery, requisitionId, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to transition requisition: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListDueQuoteWindows возвращает заявки, у которых истёк срок подачи предложений.
func (r *PostgresRepository) ListDueQuoteWindows(ctx context.Context, now time.Time, limit int) ([]string, error) {
	query := `
		SELECT id FROM requisition
		WHERE status = $1 AND quote_deadline IS NOT NULL AND quote_deadline < $2
		ORDER BY quote_deadline
		LIMIT $3`
	return r.listIds(ctx, query, models.AcceptingQuotesRequisition, now, limit)
}

// ListExpiredAwards возвращает заявки, победитель которых не ответил вовремя.
func (r *PostgresRepository) ListExpiredAwards(ctx context.Context, now time.Time, limit int) ([]string, error) {
	query := `
		SELECT id FROM requisition
		WHERE status = $1 AND NOT award_exhausted AND award_deadline IS NOT NULL AND award_deadline < $2
		ORDER BY award_deadline
		LIMIT $3`
	return r.listIds(ctx, query, models.AwardedRequisition, now, limit)
}

func (r *PostgresRepository) listIds(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
