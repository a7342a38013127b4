package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/senyabanana/procurement-service/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// CreateQuotation сохраняет предложение поставщика.
func (r *PostgresRepository) CreateQuotation(ctx context.Context, quotation *models.Quotation) error {
	insertQuery := `INSERT INTO quotation (id, requisition_id, vendor_id, amount, currency, details, status, rank, submitted_at)
	                VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(
		ctx,
		insertQuery,
		quotation.ID,
		quotation.RequisitionID,
		quotation.VendorID,
		quotation.Amount,
		quotation.Currency,
		quotation.Details,
		quotation.Status,
		quotation.Rank,
		quotation.SubmittedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.NewErrorResponse(models.KindInvalidState, "vendor has already submitted a quotation for this requisition")
		}
		return fmt.Errorf("failed to insert quotation: %w", err)
	}
	return nil
}

// ListQuotations возвращает предложения заявки: сначала ранжированные по возрастанию ранга.
func (r *PostgresRepository) ListQuotations(ctx context.Context, requisitionId string) ([]models.Quotation, error) {
	query := `
		SELECT id, requisition_id, vendor_id, amount::text, currency, details, status, rank, submitted_at
		FROM quotation
		WHERE requisition_id = $1
		ORDER BY rank ASC NULLS LAST, id ASC`
	rows, err := r.q.Query(ctx, query, requisitionId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quotations []models.Quotation
	for rows.Next() {
		var q models.Quotation
		if err := rows.Scan(
			&q.ID,
			&q.RequisitionID,
			&q.VendorID,
			&q.Amount,
			&q.Currency,
			&q.Details,
			&q.Status,
			&q.Rank,
			&q.SubmittedAt); err != nil {
			return nil, err
		}
		quotations = append(quotations, q)
	}
	return quotations, rows.Err()
}

// UpdateQuotationStatus меняет статус предложения.
func (r *PostgresRepository) UpdateQuotationStatus(ctx context.Context, quotationId string, status models.QuotationStatus) error {
	tag, err := r.q.Exec(ctx, `UPDATE quotation SET status = $1 WHERE id = $2`, status, quotationId)
	if err != nil {
		return fmt.Errorf("failed to update quotation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.NewErrorResponse(models.KindNotFound, "quotation not found")
	}
	return nil
}

// UpdateQuotationRank записывает ранг, полученный от системы оценки.
func (r *PostgresRepository) UpdateQuotationRank(ctx context.Context, quotationId string, rank *int) error {
	tag, err := r.q.Exec(ctx, `UPDATE quotation SET rank = $1 WHERE id = $2`, rank, quotationId)
	if err != nil {
		return fmt.Errorf("failed to update quotation rank: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.NewErrorResponse(models.KindNotFound, "quotation not found")
	}
	return nil
}
