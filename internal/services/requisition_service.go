package services

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/repository"

	"github.com/google/uuid"
)

// RequisitionService ведёт заявку по жизненному циклу.
type RequisitionService struct {
	deps *Deps
}

// NewRequisitionService создает новый экземпляр RequisitionService.
func NewRequisitionService(deps *Deps) *RequisitionService {
	return &RequisitionService{deps: deps}
}

// moveStatus проверяет переход по таблице жизненного цикла и сохраняет его без записи в журнал.
func (d *Deps) moveStatus(ctx context.Context, repo repository.Repository, op *operation, req *models.Requisition, to models.RequisitionStatus) (models.RequisitionStatus, error) {
	if !models.CanTransition(req.Status, to) {
		return "", models.Errorf(models.KindInvalidState, "requisition %s cannot move from %s to %s", req.ID, req.Status, to)
	}
	from := req.Status
	req.Status = to
	req.UpdatedAt = d.now()
	if err := repo.UpdateRequisition(ctx, req); err != nil {
		return "", err
	}
	op.afterCommit(func() { d.Metrics.Transitions.WithLabelValues(string(to)).Inc() })
	return from, nil
}

// changeStatus выполняет переход и пишет CHANGE_STATUS.
func (d *Deps) changeStatus(ctx context.Context, repo repository.Repository, op *operation, req *models.Requisition, to models.RequisitionStatus, reason string) error {
	from, err := d.moveStatus(ctx, repo, op, req, to)
	if err != nil {
		return err
	}
	detail := fmt.Sprintf("%s -> %s", from, to)
	if reason != "" {
		detail += ": " + reason
	}
	op.record(req.UpdatedAt, models.ActionChangeStatus, "requisition", req.ID, detail)
	return nil
}

// Create создает заявку в статусе Draft с настройками кворума по умолчанию.
func (s *RequisitionService) Create(ctx context.Context, reqReq models.RequisitionRequest, actor models.Actor) (*models.Requisition, error) {
	if err := requireCapability(actor, models.CapManageLifecycle); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reqReq.Title) == "" {
		return nil, models.NewErrorResponse(models.KindInvalid, "title is required")
	}

	now := s.deps.now()
	settings := models.DefaultQuorumSettings()
	req := &models.Requisition{
		ID:                 uuid.New().String(),
		Title:              reqReq.Title,
		Description:        reqReq.Description,
		Status:             models.DraftRequisition,
		ScoringDeadline:    reqReq.ScoringDeadline,
		Masked:             true,
		UnsealThreshold:    int(settings.UnsealThreshold),
		OpeningRoles:       settings.RequiredRolesForOpening,
		QuorumRound:        1,
		FinancialCommittee: []string{},
		TechnicalCommittee: []string{},
		CreatedBy:          actor.ID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	op := s.deps.begin("create_requisition", req.ID, actor)
	err := s.deps.run(ctx, op, func(repo repository.Repository) error {
		if err := repo.CreateRequisition(ctx, req); err != nil {
			return err
		}
		op.record(now, models.ActionCreateRequisition, "requisition", req.ID, req.Title)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Get возвращает заявку.
func (s *RequisitionService) Get(ctx context.Context, requisitionId string) (*models.Requisition, error) {
	var req *models.Requisition
	err := s.deps.Store.InTx(ctx, func(repo repository.Repository) error {
		var err error
		req, err = repo.GetRequisition(ctx, requisitionId)
		return err
	})
	return req, err
}

func (s *RequisitionService) simpleTransition(ctx context.Context, name, requisitionId string, to models.RequisitionStatus, actor models.Actor, prepare func(req *models.Requisition) error) (*models.Requisition, error) {
	if err := requireCapability(actor, models.CapManageLifecycle); err != nil {
		return nil, err
	}
	op := s.deps.begin(name, requisitionId, actor)
	var updated *models.Requisition
	err := s.deps.run(ctx, op, func(repo repository.Repository) error {
		req, err := repo.LockRequisition(ctx, requisitionId)
		if err != nil {
			return err
		}
		if prepare != nil {
			if err := prepare(req); err != nil {
				return err
			}
		}
		if err := s.deps.changeStatus(ctx, repo, op, req, to, ""); err != nil {
			return err
		}
		updated = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SubmitForApproval отправляет черновик на согласование.
func (s *RequisitionService) SubmitForApproval(ctx context.Context, requisitionId string, actor models.Actor) (*models.Requisition, error) {
	return s.simpleTransition(ctx, "submit_for_approval", requisitionId, models.PendingApprovalRequisition, actor, nil)
}

// Approve согласует заявку для поиска поставщиков.
func (s *RequisitionService) Approve(ctx context.Context, requisitionId string, actor models.Actor) (*models.Requisition, error) {
	return s.simpleTransition(ctx, "approve", requisitionId, models.ApprovedRequisition, actor, func(req *models.Requisition) error {
		if req.CreatedBy == actor.ID && !actor.IsAdmin() {
			return models.NewErrorResponse(models.KindForbidden, "requisition cannot be approved by its author")
		}
		return nil
	})
}

// StartSourcing открывает приём предложений до quoteDeadline.
func (s *RequisitionService) StartSourcing(ctx context.Context, requisitionId string, quoteDeadline time.Time, actor models.Actor) (*models.Requisition, error) {
	if !quoteDeadline.After(s.deps.now()) {
		return nil, models.NewErrorResponse(models.KindInvalid, "quote deadline must be in the future")
	}
	return s.simpleTransition(ctx, "start_sourcing", requisitionId, models.AcceptingQuotesRequisition, actor, func(req *models.Requisition) error {
		deadline := quoteDeadline.UTC()
		req.QuoteDeadline = &deadline
		return nil
	})
}

// CloseQuoteWindow закрывает приём предложений после срока.
// Вызов вне статуса Accepting_Quotes или до срока - успешный no-op: планировщик может дублировать вызовы.
func (s *RequisitionService) CloseQuoteWindow(ctx context.Context, requisitionId string, now time.Time) (bool, error) {
	op := s.deps.begin("close_quote_window", requisitionId, models.SystemActor)
	transitioned := false
	err := s.deps.run(ctx, op, func(repo repository.Repository) error {
		req, err := repo.LockRequisition(ctx, requisitionId)
		if err != nil {
			return err
		}
		if req.Status != models.AcceptingQuotesRequisition || req.QuoteDeadline == nil || !now.After(*req.QuoteDeadline) {
			op.logger.Debug("quote window close skipped", "status", req.Status)
			return nil
		}
		if err := s.deps.changeStatus(ctx, repo, op, req, models.ReadyForOpeningRequisition, "quote deadline passed"); err != nil {
			return err
		}
		op.record(s.deps.now(), models.ActionCloseQuotes, "requisition", req.ID,
			fmt.Sprintf("deadline %s", req.QuoteDeadline.Format(time.RFC3339)))
		transitioned = true
		return nil
	})
	return transitioned, err
}

// CloseDueQuoteWindows закрывает все заявки с истёкшим сроком подачи. Возвращает число закрытых.
func (s *RequisitionService) CloseDueQuoteWindows(ctx context.Context, now time.Time, limit int) (int, error) {
	var ids []string
	err := s.deps.Store.InTx(ctx, func(repo repository.Repository) error {
		var err error
		ids, err = repo.ListDueQuoteWindows(ctx, now, limit)
		return err
	})
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, id := range ids {
		ok, err := s.CloseQuoteWindow(ctx, id, now)
		if err != nil {
			s.deps.Logger.Warn("failed to close quote window", "requisitionId", id, "error", err)
			continue
		}
		if ok {
			closed++
		}
	}
	return closed, nil
}

// SubmitQuotation принимает предложение поставщика, пока открыт приём.
func (s *RequisitionService) SubmitQuotation(ctx context.Context, requisitionId string, qReq models.QuotationRequest, actor models.Actor) (*models.Quotation, error) {
	if err := requireCapability(actor, models.CapSubmitQuotation); err != nil {
		return nil, err
	}
	amount, ok := new(big.Rat).SetString(strings.TrimSpace(qReq.Amount))
	if !ok || amount.Sign() <= 0 {
		return nil, models.NewErrorResponse(models.KindInvalid, "amount must be a positive decimal number")
	}
	if len(qReq.Currency) != 3 {
		return nil, models.NewErrorResponse(models.KindInvalid, "currency must be a 3-letter code")
	}
	normalized := amount.FloatString(2)

	op := s.deps.begin("submit_quotation", requisitionId, actor)
	var quotation *models.Quotation
	err := s.deps.run(ctx, op, func(repo repository.Repository) error {
		now := s.deps.now()
		req, err := repo.LockRequisition(ctx, requisitionId)
		if err != nil {
			return err
		}
		if err := requireStatus(req, models.AcceptingQuotesRequisition); err != nil {
			return err
		}
		if req.QuoteDeadline != nil && now.After(*req.QuoteDeadline) {
			return models.NewErrorResponse(models.KindInvalidState, "quote window is closed")
		}
		quotation = &models.Quotation{
			ID:            uuid.New().String(),
			RequisitionID: req.ID,
			VendorID:      actor.ID,
			Amount:        &normalized,
			Currency:      strings.ToUpper(qReq.Currency),
			Details:       qReq.Details,
			Status:        models.SubmittedQuotation,
			SubmittedAt:   now,
		}
		if err := repo.CreateQuotation(ctx, quotation); err != nil {
			return err
		}
		op.record(now, models.ActionSubmitQuotation, "quotation", quotation.ID, "sealed quotation received")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quotation, nil
}

// ListQuotations возвращает предложения заявки. Пока заявка запечатана, суммы и детали скрыты.
// Поставщик видит только своё предложение.
func (s *RequisitionService) ListQuotations(ctx context.Context, requisitionId string, actor models.Actor) ([]models.Quotation, error) {
	var out []models.Quotation
	err := s.deps.Store.InTx(ctx, func(repo repository.Repository) error {
		req, err := repo.GetRequisition(ctx, requisitionId)
		if err != nil {
			return err
		}
		quotations, err := repo.ListQuotations(ctx, req.ID)
		if err != nil {
			return err
		}
		vendorOnly := actor.HasRole(models.RoleVendor) && !actor.HasCapability(models.CapManageLifecycle)
		for _, q := range quotations {
			if vendorOnly && q.VendorID != actor.ID {
				continue
			}
			if req.Masked && !(vendorOnly && q.VendorID == actor.ID) {
				q = q.MaskedCopy()
			}
			out = append(out, q)
		}
		return nil
	})
	return out, err
}

// OpenBids переводит раскрытую заявку к оценке. Требуются все роли для вскрытия, а не только порог.
func (s *RequisitionService) OpenBids(ctx context.Context, requisitionId string, actor models.Actor) (*models.Requisition, error) {
	if err := requireCapability(actor, models.CapOpenBids); err != nil {
		return nil, err
	}
	op := s.deps.begin("open_bids", requisitionId, actor)
	var updated *models.Requisition
	err := s.deps.run(ctx, op, func(repo repository.Repository) error {
		req, err := repo.LockRequisition(ctx, requisitionId)
		if err != nil {
			return err
		}
		if err := requireStatus(req, models.UnsealedRequisition); err != nil {
			return err
		}
		verified, err := verifiedDirectorRoles(ctx, repo, req)
		if err != nil {
			return err
		}
		if missing := missingOpeningRoles(req, verified); len(missing) > 0 {
			return models.Errorf(models.KindInvalidState, "opening requires verification by %v", missing)
		}
		if err := s.deps.changeStatus(ctx, repo, op, req, models.ScoringInProgressRequisition, "bids opened"); err != nil {
			return err
		}
		op.record(s.deps.now(), models.ActionOpenBids, "requisition", req.ID,
			fmt.Sprintf("opened with roles %v", verified))
		updated = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Dispute переводит заявку в спор из любого нетерминального статуса.
func (s *RequisitionService) Dispute(ctx context.Context, requisitionId, reason string, actor models.Actor) (*models.Requisition, error) {
	if err := requireCapability(actor, models.CapManageLifecycle); err != nil {
		return nil, err
	}
	op := s.deps.begin("dispute", requisitionId, actor)
	var updated *models.Requisition
	err := s.deps.run(ctx, op, func(repo repository.Repository) error {
		req, err := repo.LockRequisition(ctx, requisitionId)
		if err != nil {
			return err
		}
		previous := req.Status
		req.PreviousStatus = previous
		if err := s.deps.changeStatus(ctx, repo, op, req, models.DisputedRequisition, reason); err != nil {
			return err
		}
		op.record(s.deps.now(), models.ActionDispute, "requisition", req.ID, reason)
		updated = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ReopenDispute вручную возвращает заявку в статус, из которого она ушла в спор.
func (s *RequisitionService) ReopenDispute(ctx context.Context, requisitionId string, actor models.Actor) (*models.Requisition, error) {
	if !actor.IsAdmin() {
		return nil, models.NewErrorResponse(models.KindForbidden, "only administrators can reopen a disputed requisition")
	}
	op := s.deps.begin("reopen", requisitionId, actor)
	var updated *models.Requisition
	err := s.deps.run(ctx, op, func(repo repository.Repository) error {
		now := s.deps.now()
		req, err := repo.LockRequisition(ctx, requisitionId)
		if err != nil {
			return err
		}
		if err := requireStatus(req, models.DisputedRequisition); err != nil {
			return err
		}
		if req.PreviousStatus == "" {
			return models.NewErrorResponse(models.KindInvalidState, "disputed requisition has no recorded prior status")
		}
		restored := req.PreviousStatus
		req.Status = restored
		req.PreviousStatus = ""
		req.UpdatedAt = now
		if err := repo.UpdateRequisition(ctx, req); err != nil {
			return err
		}
		op.record(now, models.ActionReopen, "requisition", req.ID, fmt.Sprintf("restored to %s", restored))
		op.afterCommit(func() { s.deps.Metrics.Transitions.WithLabelValues(string(restored)).Inc() })
		updated = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
