package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/senyabanana/procurement-service/internal/models"

	"github.com/jackc/pgx/v5"
)

// UpsertAssignment создает назначение или объединяет признаки комиссий с существующим.
func (r *PostgresRepository) UpsertAssignment(ctx context.Context, a models.CommitteeAssignment) error {
	upsertQuery := `
		INSERT INTO committee_assignment (member_id, requisition_id, financial, technical, scores_submitted)
		VALUES ($1, $2, $3, $4, false)
		ON CONFLICT (member_id, requisition_id) DO UPDATE
		SET financial = committee_assignment.financial OR EXCLUDED.financial,
		    technical = committee_assignment.technical OR EXCLUDED.technical`
	_, err := r.q.Exec(ctx, upsertQuery, a.MemberID, a.RequisitionID, a.Financial, a.Technical)
	if err != nil {
		return fmt.Errorf("failed to upsert committee assignment: %w", err)
	}
	return nil
}

func scanAssignment(row pgx.Row) (*models.CommitteeAssignment, error) {
	var a models.CommitteeAssignment
	err := row.Scan(
		&a.MemberID,
		&a.RequisitionID,
		&a.Financial,
		&a.Technical,
		&a.ScoresSubmitted,
		&a.SubmittedAt,
		&a.ExtendedDeadline,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAssignment возвращает назначение члена комиссии.
func (r *PostgresRepository) GetAssignment(ctx context.Context, requisitionId, memberId string) (*models.CommitteeAssignment, error) {
	query := `
		SELECT member_id, requisition_id, financial, technical, scores_submitted, submitted_at, extended_deadline
		FROM committee_assignment WHERE requisition_id = $1 AND member_id = $2`
	a, err := scanAssignment(r.q.QueryRow(ctx, query, requisitionId, memberId))
	if err != nil {
		return nil, notFound(err, "committee assignment")
	}
	return a, nil
}

// ListAssignments возвращает все назначения заявки.
func (r *PostgresRepository) ListAssignments(ctx context.Context, requisitionId string) ([]models.CommitteeAssignment, error) {
	query := `
		SELECT member_id, requisition_id, financial, technical, scores_submitted, submitted_at, extended_deadline
		FROM committee_assignment WHERE requisition_id = $1 ORDER BY member_id`
	rows, err := r.q.Query(ctx, query, requisitionId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []models.CommitteeAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

// MarkScoresSubmitted отмечает выставленные оценки. Возвращает true только при первом вызове.
func (r *PostgresRepository) MarkScoresSubmitted(ctx context.Context, requisitionId, memberId string, at time.Time) (bool, error) {
	upsertQuery := `
		INSERT INTO committee_assignment (member_id, requisition_id, financial, technical, scores_submitted, submitted_at)
		VALUES ($1, $2, false, false, true, $3)
		ON CONFLICT (member_id, requisition_id) DO UPDATE
		SET scores_submitted = true, submitted_at = $3
		WHERE committee_assignment.scores_submitted = false`
	tag, err := r.q.Exec(ctx, upsertQuery, memberId, requisitionId, at)
	if err != nil {
		return false, fmt.Errorf("failed to record scores submission: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetExtendedDeadline продлевает срок оценки для одного члена комиссии.
func (r *PostgresRepository) SetExtendedDeadline(ctx context.Context, requisitionId, memberId string, deadline time.Time) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE committee_assignment SET extended_deadline = $3 WHERE requisition_id = $1 AND member_id = $2`,
		requisitionId, memberId, deadline)
	if err != nil {
		return fmt.Errorf("failed to extend deadline: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.NewErrorResponse(models.KindNotFound, "committee assignment not found")
	}
	return nil
}
