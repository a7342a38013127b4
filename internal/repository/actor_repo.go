package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/senyabanana/procurement-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresActorResolver определяет пользователя и его роли по таблицам сотрудников.
type PostgresActorResolver struct {
	DB querier
}

// NewPostgresActorResolver создает новый экземпляр PostgresActorResolver.
func NewPostgresActorResolver(db *pgxpool.Pool) *PostgresActorResolver {
	return &PostgresActorResolver{DB: db}
}

// Resolve возвращает пользователя по username. Неизвестные роли отбрасываются.
func (r *PostgresActorResolver) Resolve(ctx context.Context, username string) (models.Actor, error) {
	if username == "" {
		return models.Actor{}, models.NewErrorResponse(models.KindUnauthenticated, "username is required")
	}

	var id, firstName, lastName string
	query := `SELECT id, COALESCE(first_name, ''), COALESCE(last_name, '') FROM employee WHERE username = $1`
	err := r.DB.QueryRow(ctx, query, username).Scan(&id, &firstName, &lastName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Actor{}, models.NewErrorResponse(models.KindUnauthenticated, "user does not exist")
		}
		return models.Actor{}, err
	}

	rows, err := r.DB.Query(ctx, `SELECT role FROM employee_role WHERE user_id = $1`, id)
	if err != nil {
		return models.Actor{}, err
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return models.Actor{}, err
		}
		if role, ok := models.ParseRole(raw); ok {
			roles = append(roles, role)
		}
	}
	if err := rows.Err(); err != nil {
		return models.Actor{}, err
	}

	name := strings.TrimSpace(firstName + " " + lastName)
	if name == "" {
		name = username
	}
	return models.NewActor(id, name, roles), nil
}
