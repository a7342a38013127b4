package repository

import (
	"context"
	"errors"
	"time"

	"github.com/senyabanana/procurement-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// RequisitionRepository - интерфейс для работы с заявками.
type RequisitionRepository interface {
	CreateRequisition(ctx context.Context, req *models.Requisition) error
	GetRequisition(ctx context.Context, requisitionId string) (*models.Requisition, error)
	LockRequisition(ctx context.Context, requisitionId string) (*models.Requisition, error)
	UpdateRequisition(ctx context.Context, req *models.Requisition) error
	TransitionRequisition(ctx context.Context, requisitionId string, from, to models.RequisitionStatus) (bool, error)
	ListDueQuoteWindows(ctx context.Context, now time.Time, limit int) ([]string, error)
	ListExpiredAwards(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// SecretRepository - интерфейс хранилища одноразовых PIN.
type SecretRepository interface {
	InsertSecret(ctx context.Context, secret *models.Secret) error
	InvalidateOutstandingSecrets(ctx context.Context, filter SecretFilter, at time.Time) (int64, error)
	FindActiveSecret(ctx context.Context, filter SecretFilter) (*models.Secret, error)
	HasVerified(ctx context.Context, requisitionId string, role models.Role, round int, actorId string) (bool, error)
	MarkSecretUsed(ctx context.Context, secretId, actorId string, at time.Time) (bool, error)
	VerifiedRoles(ctx context.Context, requisitionId string, round int) ([]models.Role, error)
}

// QuotationRepository - интерфейс для работы с предложениями поставщиков.
type QuotationRepository interface {
	CreateQuotation(ctx context.Context, quotation *models.Quotation) error
	ListQuotations(ctx context.Context, requisitionId string) ([]models.Quotation, error)
	UpdateQuotationStatus(ctx context.Context, quotationId string, status models.QuotationStatus) error
	UpdateQuotationRank(ctx context.Context, quotationId string, rank *int) error
}

// CommitteeRepository - интерфейс для работы с назначениями комиссии.
type CommitteeRepository interface {
	UpsertAssignment(ctx context.Context, assignment models.CommitteeAssignment) error
	GetAssignment(ctx context.Context, requisitionId, memberId string) (*models.CommitteeAssignment, error)
	ListAssignments(ctx context.Context, requisitionId string) ([]models.CommitteeAssignment, error)
	MarkScoresSubmitted(ctx context.Context, requisitionId, memberId string, at time.Time) (bool, error)
	SetExtendedDeadline(ctx context.Context, requisitionId, memberId string, deadline time.Time) error
}

// Repository объединяет все операции, доступные внутри транзакции.
type Repository interface {
	RequisitionRepository
	SecretRepository
	QuotationRepository
	CommitteeRepository
}

// Store выполняет функцию в одной транзакции. Ошибка fn откатывает все записи.
type Store interface {
	InTx(ctx context.Context, fn func(repo Repository) error) error
}

// SecretFilter задаёт выборку PIN по заявке, роли, получателю и раунду.
type SecretFilter struct {
	RequisitionID string
	Role          *models.Role
	RecipientID   *string
	Round         int
	// AnyRecipient снимает ограничение по получателю при поиске.
	AnyRecipient bool
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore - реализация Store поверх пула соединений.
type PostgresStore struct {
	DB *pgxpool.Pool
}

// NewPostgresStore создает новый экземпляр PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{DB: db}
}

// InTx открывает транзакцию и передаёт fn репозиторий, работающий в ней.
func (s *PostgresStore) InTx(ctx context.Context, fn func(repo Repository) error) error {
	return pgx.BeginFunc(ctx, s.DB, func(tx pgx.Tx) error {
		return fn(&PostgresRepository{q: tx})
	})
}

// PostgresRepository - реализация Repository для базы данных.
type PostgresRepository struct {
	q querier
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return models.NewErrorResponse(models.KindNotFound, what+" not found")
	}
	return err
}

func rolesToStrings(roles []models.Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}

// textArray привязывает срез к колонке TEXT[] NOT NULL: nil уходит пустым массивом, а не NULL.
func textArray(values []string) any {
	if values == nil {
		values = []string{}
	}
	return pq.Array(values)
}

func stringsToRoles(values []string) []models.Role {
	out := make([]models.Role, 0, len(values))
	for _, v := range values {
		out = append(out, models.Role(v))
	}
	return out
}
