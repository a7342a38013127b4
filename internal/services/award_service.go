package services

import (
	"context"
	"fmt"
	"time"

	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/notify"
	"github.com/senyabanana/procurement-service/internal/repository"
)

// AwardService определяет победителя и продвигает резервных поставщиков.
type AwardService struct {
	deps *Deps
}

// NewAwardService создает новый экземпляр AwardService.
func NewAwardService(deps *Deps) *AwardService {
	return &AwardService{deps: deps}
}

// RankQuotations записывает ранги от внешней системы оценки до определения победителя.
func (s *AwardService) RankQuotations(ctx context.Context, requisitionId string, ranks []models.RankAssignment, actor models.Actor) ([]models.Quotation, error) {
	if err := requireCapability(actor, models.CapFinalizeAward); err != nil {
		return nil, err
	}
	if len(ranks) == 0 {
		return nil, models.NewErrorResponse(models.KindInvalid, "no ranks given")
	}
	seenRank := make(map[int]bool, len(ranks))
	seenQuote := make(map[string]bool, len(ranks))
	for _, r := range ranks {
		if r.Rank < 1 {
			return nil, models.Errorf(models.KindInvalid, "rank of quotation %s must be at least 1", r.QuotationID)
		}
		if seenRank[r.Rank] || seenQuote[r.QuotationID] {
			return nil, models.Errorf(models.KindInvalid, "duplicate rank %d or quotation %s", r.Rank, r.QuotationID)
		}
		seenRank[r.Rank] = true
		seenQuote[r.QuotationID] = true
	}

	op := s.deps.begin("rank_quotations", requisitionId, actor)
	var ranked []models.Quotation
	err := s.deps.run(ctx, op, func(repo repository.Repository) error {
		req, err := repo.LockRequisition(ctx, requisitionId)
		if err != nil {
			return err
		}
		if err := requireStatus(req, models.ScoringInProgressRequisition, models.ScoringCompleteRequisition); err != nil {
			return err
		}
		quotations, err := repo.ListQuotations(ctx, req.ID)
		if err != nil {
			return err
		}
		byID := make(map[string]models.Quotation, len(quotations))
		for _, q := range quotations {
			byID[q.ID] = q
		}
		for _, r := range ranks {
			q, ok := byID[r.QuotationID]
			if !ok {
				return models.Errorf(models.KindNotFound, "quotation %s not found in requisition", r.QuotationID)
			}
			if q.Status == models.RejectedQuotation {
				return models.Errorf(models.KindInvalidState, "quotation %s is rejected", q.ID)
			}
			rank := r.Rank
			if err := repo.UpdateQuotationRank(ctx, q.ID, &rank); err != nil {
				return err
			}
		}
		op.record(s.deps.now(), models.ActionRankQuotations, "requisition", req.ID,
			fmt.Sprintf("%d quotation(s) ranked", len(ranks)))
		ranked, err = repo.ListQuotations(ctx, req.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ranked, nil
}

// Finalize присуждает победу предложению с лучшим рангом, остальные поданные уходят в резерв.
func (s *AwardService) Finalize(ctx context.Context, requisitionId string, actor models.Actor) (*models.Quotation, error) {
	if err := requireCapability(actor, models.CapFinalizeAward); err != nil {
		return nil, err
	}
	op := s.deps.begin("finalize_award", requisitionId, actor)
	var winner models.Quotation
	err := s.deps.run(ctx, op, func(repo repository.Repository) error {
		now := s.deps.now()
		req, err := repo.LockRequisition(ctx, requisitionId)
		if err != nil {
			return err
		}
		if err := requireStatus(req, models.ScoringCompleteRequisition); err != nil {
			return err
		}
		quotations, err := repo.ListQuotations(ctx, req.ID)
		if err != nil {
			return err
		}
		plan, ok := PlanAward(quotations)
		if !ok {
			return models.NewErrorResponse(models.KindExhausted, "no ranked quotation to award")
		}

		for _, q := range plan.Standby {
			if err := repo.UpdateQuotationStatus(ctx, q.ID, models.StandbyQuotation); err != nil {
				return err
			}
		}
		if err := repo.UpdateQuotationStatus(ctx, plan.Winner.ID, models.AwardedQuotation); err != nil {
			return err
		}
		// Смена статуса входит в единственную запись FINALIZE_AWARD.
		from, err := s.deps.moveStatus(ctx, repo, op, req, models.AwardedRequisition)
		if err != nil {
			return err
		}
		op.record(now, models.ActionFinalizeAward, "quotation", plan.Winner.ID,
			fmt.Sprintf("%s -> %s: vendor %s awarded with rank %d, %d standby",
				from, req.Status, plan.Winner.VendorID, *plan.Winner.Rank, len(plan.Standby)))
		winner = plan.Winner
		winner.Status = models.AwardedQuotation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &winner, nil
}

func findAwarded(quotations []models.Quotation) *models.Quotation {
	for i := range quotations {
		if quotations[i].Status == models.AwardedQuotation {
			q := quotations[i]
			return &q
		}
	}
	return nil
}

// NotifyVendor сохраняет срок ответа и уведомляет победителя. Ошибка доставки не влияет на результат.
func (s *AwardService) NotifyVendor(ctx context.Context, requisitionId string, deadline time.Time, actor models.Actor) (*models.Requisition, error) {
	if err := requireCapability(actor, models.CapFinalizeAward); err != nil {
		return nil, err
	}
	if !deadline.After(s.deps.now()) {
		return nil, models.NewErrorResponse(models.KindInvalid, "acceptance deadline must be in the future")
	}
	op := s.deps.begin("notify_vendor", requisitionId, actor)
	var updated *models.Requisition
	err := s.deps.run(ctx, op, func(repo repository.Repository) error {
		now := s.deps.now()
		req, err := repo.LockRequisition(ctx, requisitionId)
		if err != nil {
			return err
		}
		if err := requireStatus(req, models.AwardedRequisition); err != nil {
			return err
		}
		quotations, err := repo.ListQuotations(ctx, req.ID)
		if err != nil {
			return err
		}
		awarded := findAwarded(quotations)
		if awarded == nil {
			return models.NewErrorResponse(models.KindNotFound, "requisition has no awarded quotation")
		}
		d := deadline.UTC()
		req.AwardDeadline = &d
		req.UpdatedAt = now
		if err := repo.UpdateRequisition(ctx, req); err != nil {
			return err
		}
		op.record(now, models.ActionNotifyVendor, "quotation", awarded.ID,
			fmt.Sprintf("vendor %s notified, accept by %s", awarded.VendorID, d.Format(time.RFC3339)))
		op.notify(notify.Message{
			To:      awarded.VendorID,
			Subject: fmt.Sprintf("Award for requisition %s", req.Title),
			Body:    fmt.Sprintf("Your quotation %s has been selected. Please accept before %s.", awarded.ID, d.Format(time.RFC3339)),
		})
		updated = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// promote применяет AwardTransition внутри уже открытой транзакции с заблокированной заявкой.
func (s *AwardService) promote(ctx context.Context, repo repository.Repository, op *operation, req *models.Requisition, reason string) (*models.PromotionResult, error) {
	now := s.deps.now()
	quotations, err := repo.ListQuotations(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	t := Advance(quotations)
	if t.Step == StepNone {
		return nil, models.NewErrorResponse(models.KindExhausted, "no standby vendor remains to promote")
	}

	result := &models.PromotionResult{}
	for _, q := range t.Reject {
		if err := repo.UpdateQuotationStatus(ctx, q.ID, models.RejectedQuotation); err != nil {
			return nil, err
		}
		result.RejectedQuotationID = q.ID
		op.record(now, models.ActionPromoteStandby, "quotation", q.ID,
			fmt.Sprintf("award to vendor %s rejected: %s", q.VendorID, reason))
	}

	req.AwardDeadline = nil
	req.UpdatedAt = now
	if t.Step == StepExhaust {
		req.AwardExhausted = true
		if err := repo.UpdateRequisition(ctx, req); err != nil {
			return nil, err
		}
		op.record(now, models.ActionAwardExhausted, "requisition", req.ID, "no standby vendor remains")
		op.logger.Warn("standby vendors exhausted")
		result.Outcome = models.OutcomeExhausted
		return result, nil
	}

	if err := repo.UpdateQuotationStatus(ctx, t.Promote.ID, models.AwardedQuotation); err != nil {
		return nil, err
	}
	if err := repo.UpdateRequisition(ctx, req); err != nil {
		return nil, err
	}
	op.record(now, models.ActionPromoteStandby, "quotation", t.Promote.ID,
		fmt.Sprintf("standby vendor %s promoted with rank %d", t.Promote.VendorID, *t.Promote.Rank))
	op.notify(notify.Message{
		To:      t.Promote.VendorID,
		Subject: fmt.Sprintf("Award for requisition %s", req.Title),
		Body:    fmt.Sprintf("Your standby quotation %s has been promoted to awarded. An acceptance deadline will follow.", t.Promote.ID),
	})
	result.Outcome = models.OutcomePromoted
	result.PromotedQuotationID = t.Promote.ID
	result.PromotedVendorID = t.Promote.VendorID
	return result, nil
}

// PromoteStandby отклоняет текущего победителя и присуждает победу следующему по рангу резервному.
// Чтение рангов, отклонение и продвижение выполняются в одной транзакции под блокировкой заявки.
func (s *AwardService) PromoteStandby(ctx context.Context, requisitionId string, actor models.Actor) (*models.PromotionResult, error) {
	if err := requireCapability(actor, models.CapPromoteStandby); err != nil {
		return nil, err
	}
	return s.promoteWith(ctx, "promote_standby", requisitionId, actor, "promoted by "+actor.ID, nil)
}

func (s *AwardService) promoteWith(ctx context.Context, name, requisitionId string, actor models.Actor, reason string, check func(req *models.Requisition, quotations []models.Quotation) error) (*models.PromotionResult, error) {
	op := s.deps.begin(name, requisitionId, actor)
	var result *models.PromotionResult
	err := s.deps.run(ctx, op, func(repo repository.Repository) error {
		req, err := repo.LockRequisition(ctx, requisitionId)
		if err != nil {
			return err
		}
		if err := requireStatus(req, models.AwardedRequisition); err != nil {
			return err
		}
		if check != nil {
			quotations, err := repo.ListQuotations(ctx, req.ID)
			if err != nil {
				return err
			}
			if err := check(req, quotations); err != nil {
				return err
			}
		}
		result, err = s.promote(ctx, repo, op, req, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.deps.Metrics.Promotions.WithLabelValues(string(result.Outcome)).Inc()
	return result, nil
}

func requireAwardee(actor models.Actor, quotations []models.Quotation) (*models.Quotation, error) {
	awarded := findAwarded(quotations)
	if awarded == nil {
		return nil, models.NewErrorResponse(models.KindNotFound, "requisition has no awarded quotation")
	}
	if awarded.VendorID != actor.ID {
		return nil, models.NewErrorResponse(models.KindForbidden, "only the awarded vendor can respond to the award")
	}
	return awarded, nil
}

// AcceptAward фиксирует согласие победителя и закрывает заявку.
func (s *AwardService) AcceptAward(ctx context.Context, requisitionId string, actor models.Actor) (*models.Requisition, error) {
	op := s.deps.begin("accept_award", requisitionId, actor)
	var updated *models.Requisition
	err := s.deps.run(ctx, op, func(repo repository.Repository) error {
		now := s.deps.now()
		req, err := repo.LockRequisition(ctx, requisitionId)
		if err != nil {
			return err
		}
		if err := requireStatus(req, models.AwardedRequisition); err != nil {
			return err
		}
		quotations, err := repo.ListQuotations(ctx, req.ID)
		if err != nil {
			return err
		}
		awarded, err := requireAwardee(actor, quotations)
		if err != nil {
			return err
		}
		if req.AwardDeadline != nil && now.After(*req.AwardDeadline) {
			return models.Errorf(models.KindExpired, "acceptance deadline passed at %s", req.AwardDeadline.Format(time.RFC3339))
		}
		if err := s.deps.changeStatus(ctx, repo, op, req, models.ClosedRequisition, "award accepted"); err != nil {
			return err
		}
		op.record(now, models.ActionAcceptAward, "quotation", awarded.ID, fmt.Sprintf("vendor %s accepted", awarded.VendorID))
		updated = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeclineAward обрабатывает отказ победителя как продвижение резервного поставщика.
func (s *AwardService) DeclineAward(ctx context.Context, requisitionId string, actor models.Actor) (*models.PromotionResult, error) {
	return s.promoteWith(ctx, "decline_award", requisitionId, actor, "declined by vendor", func(_ *models.Requisition, quotations []models.Quotation) error {
		_, err := requireAwardee(actor, quotations)
		return err
	})
}

// ExpireAwards продвигает резервных поставщиков там, где победитель не ответил до срока.
func (s *AwardService) ExpireAwards(ctx context.Context, now time.Time, limit int) (int, error) {
	var ids []string
	err := s.deps.Store.InTx(ctx, func(repo repository.Repository) error {
		var err error
		ids, err = repo.ListExpiredAwards(ctx, now, limit)
		return err
	})
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, id := range ids {
		_, err := s.promoteWith(ctx, "expire_award", id, models.SystemActor, "acceptance deadline passed",
			func(req *models.Requisition, _ []models.Quotation) error {
				if req.AwardExhausted || req.AwardDeadline == nil || !now.After(*req.AwardDeadline) {
					return models.NewErrorResponse(models.KindInvalidState, "award is not overdue")
				}
				return nil
			})
		if err != nil {
			s.deps.Logger.Warn("failed to expire award", "requisitionId", id, "error", err)
			continue
		}
		processed++
	}
	return processed, nil
}
