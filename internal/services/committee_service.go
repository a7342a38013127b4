package services

import (
	"context"
	"fmt"
	"time"

	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/repository"
)

// CommitteeService отслеживает выставление оценок членами комиссии.
type CommitteeService struct {
	deps *Deps
}

// NewCommitteeService создает новый экземпляр CommitteeService.
func NewCommitteeService(deps *Deps) *CommitteeService {
	return &CommitteeService{deps: deps}
}

func uniqueIds(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// AssignCommittee назначает финансовую и техническую комиссии. Составы могут пересекаться.
// Ранее назначенные члены не снимаются.
func (s *CommitteeService) AssignCommittee(ctx context.Context, requisitionId string, cReq models.CommitteeRequest, actor models.Actor) (*models.Requisition, error) {
	if err := requireCapability(actor, models.CapManageLifecycle); err != nil {
		return nil, err
	}
	financial := uniqueIds(cReq.Financial)
	technical := uniqueIds(cReq.Technical)
	if len(financial)+len(technical) == 0 {
		return nil, models.NewErrorResponse(models.KindInvalid, "at least one committee member is required")
	}

	op := s.deps.begin("assign_committee", requisitionId, actor)
	var updated *models.Requisition
	err := s.deps.run(ctx, op, func(repo repository.Repository) error {
		now := s.deps.now()
		req, err := repo.LockRequisition(ctx, requisitionId)
		if err != nil {
			return err
		}
		if models.IsTerminal(req.Status) || req.Status == models.ScoringCompleteRequisition || req.Status == models.AwardedRequisition {
			return models.Errorf(models.KindInvalidState, "committee cannot be changed while requisition is %s", req.Status)
		}

		for _, id := range financial {
			if err := repo.UpsertAssignment(ctx, models.CommitteeAssignment{MemberID: id, RequisitionID: req.ID, Financial: true}); err != nil {
				return err
			}
		}
		for _, id := range technical {
			if err := repo.UpsertAssignment(ctx, models.CommitteeAssignment{MemberID: id, RequisitionID: req.ID, Technical: true}); err != nil {
				return err
			}
		}
		req.FinancialCommittee = uniqueIds(append(req.FinancialCommittee, financial...))
		req.TechnicalCommittee = uniqueIds(append(req.TechnicalCommittee, technical...))
		req.UpdatedAt = now
		if err := repo.UpdateRequisition(ctx, req); err != nil {
			return err
		}
		op.record(now, models.ActionAssignCommittee, "requisition", req.ID,
			fmt.Sprintf("financial %v, technical %v", financial, technical))
		updated = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// scoringComplete истинно, если объединение комиссий непусто и все его члены выставили оценки.
func scoringComplete(members []string, assignments []models.CommitteeAssignment) bool {
	if len(members) == 0 {
		return false
	}
	submitted := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		if a.ScoresSubmitted {
			submitted[a.MemberID] = true
		}
	}
	for _, m := range members {
		if !submitted[m] {
			return false
		}
	}
	return true
}

// RecordSubmission отмечает, что член комиссии выставил оценки. Повторный вызов - no-op.
// Когда оценки выставили все, заявка однократно переходит в Scoring_Complete.
func (s *CommitteeService) RecordSubmission(ctx context.Context, requisitionId, memberId string) (*models.SubmissionResult, error) {
	actor := models.NewActor(memberId, memberId, []models.Role{models.RoleCommitteeMember})
	op := s.deps.begin("record_submission", requisitionId, actor)
	result := &models.SubmissionResult{}
	err := s.deps.run(ctx, op, func(repo repository.Repository) error {
		now := s.deps.now()
		req, err := repo.LockRequisition(ctx, requisitionId)
		if err != nil {
			return err
		}
		if _, err := repo.GetAssignment(ctx, req.ID, memberId); err != nil {
			return err
		}
		if err := requireStatus(req, models.ScoringInProgressRequisition, models.ScoringCompleteRequisition); err != nil {
			return err
		}

		first, err := repo.MarkScoresSubmitted(ctx, req.ID, memberId, now)
		if err != nil {
			return err
		}
		if first {
			op.record(now, models.ActionSubmitScores, "committee_assignment", memberId, "scores submitted")
		}

		assignments, err := repo.ListAssignments(ctx, req.ID)
		if err != nil {
			return err
		}
		result.ScoringComplete = scoringComplete(req.CommitteeMembers(), assignments)
		if !result.ScoringComplete || req.Status != models.ScoringInProgressRequisition {
			return nil
		}

		ok, err := repo.TransitionRequisition(ctx, req.ID, models.ScoringInProgressRequisition, models.ScoringCompleteRequisition)
		if err != nil {
			return err
		}
		if ok {
			result.Transitioned = true
			op.record(now, models.ActionScoringComplete, "requisition", req.ID,
				fmt.Sprintf("%d committee member(s) submitted", len(req.CommitteeMembers())))
			op.afterCommit(func() {
				s.deps.Metrics.Transitions.WithLabelValues(string(models.ScoringCompleteRequisition)).Inc()
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// IsScoringComplete сообщает, выставили ли оценки все назначенные члены комиссии.
func (s *CommitteeService) IsScoringComplete(ctx context.Context, requisitionId string) (bool, error) {
	complete := false
	err := s.deps.Store.InTx(ctx, func(repo repository.Repository) error {
		req, err := repo.GetRequisition(ctx, requisitionId)
		if err != nil {
			return err
		}
		assignments, err := repo.ListAssignments(ctx, req.ID)
		if err != nil {
			return err
		}
		complete = scoringComplete(req.CommitteeMembers(), assignments)
		return nil
	})
	return complete, err
}

// ListAssignments возвращает назначения комиссии заявки.
func (s *CommitteeService) ListAssignments(ctx context.Context, requisitionId string) ([]models.CommitteeAssignment, error) {
	var assignments []models.CommitteeAssignment
	err := s.deps.Store.InTx(ctx, func(repo repository.Repository) error {
		if _, err := repo.GetRequisition(ctx, requisitionId); err != nil {
			return err
		}
		var err error
		assignments, err = repo.ListAssignments(ctx, requisitionId)
		return err
	})
	return assignments, err
}

// ExtendMemberDeadline продлевает срок оценки одному члену комиссии.
func (s *CommitteeService) ExtendMemberDeadline(ctx context.Context, requisitionId, memberId string, deadline time.Time, actor models.Actor) error {
	if err := requireCapability(actor, models.CapManageLifecycle); err != nil {
		return err
	}
	if !deadline.After(s.deps.now()) {
		return models.NewErrorResponse(models.KindInvalid, "extended deadline must be in the future")
	}
	op := s.deps.begin("extend_member_deadline", requisitionId, actor)
	return s.deps.run(ctx, op, func(repo repository.Repository) error {
		req, err := repo.LockRequisition(ctx, requisitionId)
		if err != nil {
			return err
		}
		if err := requireStatus(req, models.UnsealedRequisition, models.ScoringInProgressRequisition); err != nil {
			return err
		}
		if err := repo.SetExtendedDeadline(ctx, req.ID, memberId, deadline.UTC()); err != nil {
			return err
		}
		op.record(s.deps.now(), models.ActionExtendDeadline, "committee_assignment", memberId,
			fmt.Sprintf("scoring deadline extended to %s", deadline.UTC().Format(time.RFC3339)))
		return nil
	})
}
