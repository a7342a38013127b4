package services

import (
	"context"

	"github.com/senyabanana/procurement-service/internal/audit"
	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/utils"
)

// ActorResolver определяет пользователя и его роли по учётным данным запроса.
type ActorResolver interface {
	Resolve(ctx context.Context, username string) (models.Actor, error)
}

// AuditService отдаёт журнал аудита по заявке или транзакции.
type AuditService struct {
	Reader audit.Reader
}

// NewAuditService создает новый экземпляр AuditService.
func NewAuditService(reader audit.Reader) *AuditService {
	return &AuditService{Reader: reader}
}

func canReadAudit(actor models.Actor) error {
	if actor.HasCapability(models.CapManageLifecycle) || actor.HasCapability(models.CapVerifySeal) {
		return nil
	}
	return models.NewErrorResponse(models.KindForbidden, "user is not allowed to read the audit log")
}

// ListByRequisition возвращает записи журнала заявки с фильтром по кодам действий.
func (s *AuditService) ListByRequisition(ctx context.Context, requisitionId string, actions []string, limitStr, offsetStr string, actor models.Actor) ([]models.AuditLogEntry, error) {
	if err := canReadAudit(actor); err != nil {
		return nil, err
	}
	limit, offset, err := utils.ParseLimitOffset(limitStr, offsetStr)
	if err != nil {
		return nil, models.NewErrorResponse(models.KindInvalid, err.Error())
	}
	filter := make([]models.AuditAction, 0, len(actions))
	for _, a := range actions {
		if a != "" {
			filter = append(filter, models.AuditAction(a))
		}
	}
	return s.Reader.ListByRequisition(ctx, requisitionId, filter, limit, offset)
}

// ListByTx возвращает записи одной операции.
func (s *AuditService) ListByTx(ctx context.Context, txId string, actor models.Actor) ([]models.AuditLogEntry, error) {
	if err := canReadAudit(actor); err != nil {
		return nil, err
	}
	if txId == "" {
		return nil, models.NewErrorResponse(models.KindInvalid, "txId is required")
	}
	return s.Reader.ListByTx(ctx, txId)
}
