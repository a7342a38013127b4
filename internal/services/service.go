package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/senyabanana/procurement-service/internal/audit"
	"github.com/senyabanana/procurement-service/internal/metrics"
	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/notify"
	"github.com/senyabanana/procurement-service/internal/repository"

	"github.com/google/uuid"
)

// Deps - общие зависимости сервисов.
type Deps struct {
	Store    repository.Store
	Audit    audit.Sink
	Notifier *notify.Dispatcher
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

// operation накапливает побочные эффекты одной транзакции.
// Журнал и уведомления отправляются только после фиксации.
type operation struct {
	name          string
	txID          string
	requisitionID string
	actor         string
	logger        *slog.Logger
	entries       []models.AuditLogEntry
	messages      []notify.Message
	onCommit      []func()
}

func (d *Deps) begin(name, requisitionId string, actor models.Actor) *operation {
	txID := uuid.New().String()
	return &operation{
		name:          name,
		txID:          txID,
		requisitionID: requisitionId,
		actor:         actor.ID,
		logger:        d.Logger.With("op", name, "txId", txID, "requisitionId", requisitionId, "actor", actor.ID),
	}
}

func (op *operation) record(at time.Time, action models.AuditAction, targetType, targetId, detail string) {
	op.entries = append(op.entries, models.AuditLogEntry{
		ID:            uuid.New().String(),
		Actor:         op.actor,
		Timestamp:     at,
		Action:        action,
		TargetType:    targetType,
		TargetID:      targetId,
		RequisitionID: op.requisitionID,
		Detail:        detail,
		TxID:          op.txID,
	})
}

func (op *operation) notify(msg notify.Message) {
	op.messages = append(op.messages, msg)
}

func (op *operation) afterCommit(fn func()) {
	op.onCommit = append(op.onCommit, fn)
}

// run выполняет fn в транзакции и после фиксации пишет журнал и рассылает уведомления.
func (d *Deps) run(ctx context.Context, op *operation, fn func(repo repository.Repository) error) error {
	err := d.Store.InTx(ctx, fn)
	if err != nil {
		kind := models.KindInternal
		var errResp *models.ErrorResponse
		if errors.As(err, &errResp) {
			kind = errResp.Kind
			op.logger.Info("operation rejected", "kind", kind, "reason", errResp.Message)
		} else {
			op.logger.Error("operation failed", "error", err)
		}
		d.Metrics.OperationErrors.WithLabelValues(op.name, string(kind)).Inc()
		return err
	}

	if len(op.entries) > 0 {
		if err := d.Audit.Append(context.WithoutCancel(ctx), op.entries...); err != nil {
			d.Metrics.AuditFailures.Add(float64(len(op.entries)))
			op.logger.Error("audit append failed", "entries", len(op.entries), "error", err)
		}
	}
	if d.Notifier != nil {
		for _, msg := range op.messages {
			d.Notifier.Dispatch(msg)
		}
	}
	for _, fn := range op.onCommit {
		fn()
	}
	op.logger.Debug("operation committed", "auditEntries", len(op.entries))
	return nil
}

func requireCapability(actor models.Actor, c models.Capability) error {
	if !actor.HasCapability(c) {
		return models.Errorf(models.KindForbidden, "user %s lacks capability %s", actor.ID, c)
	}
	return nil
}

func requireStatus(req *models.Requisition, allowed ...models.RequisitionStatus) error {
	for _, s := range allowed {
		if req.Status == s {
			return nil
		}
	}
	return models.Errorf(models.KindInvalidState, "requisition %s is %s", req.ID, req.Status)
}
