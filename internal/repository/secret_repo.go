package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/senyabanana/procurement-service/internal/models"
)

// InsertSecret сохраняет хэш PIN и его метаданные.
func (r *PostgresRepository) InsertSecret(ctx context.Context, secret *models.Secret) error {
	insertQuery := `INSERT INTO requisition_secret (id, requisition_id, role_name, recipient_id, secret_hash,
	                quorum_round, generated_at, expires_at, used)
	                VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false)`
	_, err := r.q.Exec(
		ctx,
		insertQuery,
		secret.ID,
		secret.RequisitionID,
		secret.RoleName,
		secret.RecipientID,
		secret.Hash,
		secret.Round,
		secret.GeneratedAt,
		secret.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert secret: %w", err)
	}
	return nil
}

// InvalidateOutstandingSecrets отзывает неиспользованные PIN. Строки не удаляются.
// Пустая роль в фильтре означает все роли, RecipientID сравнивается точно, включая NULL.
func (r *PostgresRepository) InvalidateOutstandingSecrets(ctx context.Context, filter SecretFilter, at time.Time) (int64, error) {
	var role *string
	if filter.Role != nil {
		s := string(*filter.Role)
		role = &s
	}
	updateQuery := `
		UPDATE requisition_secret SET invalidated_at = $1
		WHERE requisition_id = $2
		AND ($3::text IS NULL OR role_name = $3)
		AND ($4 OR recipient_id IS NOT DISTINCT FROM $5)
		AND used = false AND invalidated_at IS NULL`
	tag, err := r.q.Exec(ctx, updateQuery, at, filter.RequisitionID, role, filter.AnyRecipient, filter.RecipientID)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate secrets: %w", err)
	}
	return tag.RowsAffected(), nil
}

// FindActiveSecret возвращает самый свежий неиспользованный и неотозванный PIN.
// Срок действия не проверяется, чтобы вызывающий мог отличить Expired от NotFound.
func (r *PostgresRepository) FindActiveSecret(ctx context.Context, filter SecretFilter) (*models.Secret, error) {
	if filter.Role == nil {
		return nil, models.NewErrorResponse(models.KindInvalid, "role is required")
	}
	query := `
		SELECT id, requisition_id, role_name, recipient_id, secret_hash, quorum_round,
		       generated_at, expires_at, used, used_by_id, used_at, invalidated_at
		FROM requisition_secret
		WHERE requisition_id = $1 AND role_name = $2 AND quorum_round = $3
		AND used = false AND invalidated_at IS NULL
		AND ($4 OR recipient_id IS NULL OR recipient_id = $5)
		ORDER BY generated_at DESC, id DESC
		LIMIT 1`
	var secret models.Secret
	err := r.q.QueryRow(ctx, query, filter.RequisitionID, *filter.Role, filter.Round, filter.AnyRecipient, filter.RecipientID).Scan(
		&secret.ID,
		&secret.RequisitionID,
		&secret.RoleName,
		&secret.RecipientID,
		&secret.Hash,
		&secret.Round,
		&secret.GeneratedAt,
		&secret.ExpiresAt,
		&secret.Used,
		&secret.UsedByID,
		&secret.UsedAt,
		&secret.InvalidatedAt,
	)
	if err != nil {
		return nil, notFound(err, "secret")
	}
	return &secret, nil
}

// HasVerified проверяет, подтверждал ли пользователь роль в текущем раунде.
func (r *PostgresRepository) HasVerified(ctx context.Context, requisitionId string, role models.Role, round int, actorId string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS(
			SELECT 1 FROM requisition_secret
			WHERE requisition_id = $1 AND role_name = $2 AND quorum_round = $3
			AND used = true AND used_by_id = $4
		)`
	err := r.q.QueryRow(ctx, query, requisitionId, role, round, actorId).Scan(&exists)
	return exists, err
}

// MarkSecretUsed помечает PIN использованным, если его ещё никто не использовал.
func (r *PostgresRepository) MarkSecretUsed(ctx context.Context, secretId, actorId string, at time.Time) (bool, error) {
	updateQuery := `
		UPDATE requisition_secret SET used = true, used_by_id = $2, used_at = $3
		WHERE id = $1 AND used = false AND invalidated_at IS NULL`
	tag, err := r.q.Exec(ctx, updateQuery, secretId, actorId, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark secret used: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// VerifiedRoles возвращает различные роли, подтвердившие PIN в раунде.
func (r *PostgresRepository) VerifiedRoles(ctx context.Context, requisitionId string, round int) ([]models.Role, error) {
	query := `
		SELECT DISTINCT role_name FROM requisition_secret
		WHERE requisition_id = $1 AND quorum_round = $2 AND used = true
		ORDER BY role_name`
	rows, err := r.q.Query(ctx, query, requisitionId, round)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
