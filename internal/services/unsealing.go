package services

import (
	"context"
	"fmt"

	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/repository"
)

// verifiedDirectorRoles пересчитывает подтверждённые роли текущего раунда из строк PIN.
// Отдельного счётчика нет, значение всегда выводится из хранилища.
func verifiedDirectorRoles(ctx context.Context, repo repository.Repository, req *models.Requisition) ([]models.Role, error) {
	roles, err := repo.VerifiedRoles(ctx, req.ID, req.QuorumRound)
	if err != nil {
		return nil, err
	}
	out := roles[:0]
	for _, r := range roles {
		if models.IsDirectorRole(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// missingOpeningRoles возвращает роли для вскрытия, ещё не подтвердившие PIN.
func missingOpeningRoles(req *models.Requisition, verified []models.Role) []models.Role {
	have := make(map[models.Role]bool, len(verified))
	for _, r := range verified {
		have[r] = true
	}
	var missing []models.Role
	for _, r := range req.OpeningRoles {
		if !have[r] {
			missing = append(missing, r)
		}
	}
	return missing
}

// applyUnseal раскрывает предложения, если кворум набран. Повторный вызов ничего не меняет.
func (d *Deps) applyUnseal(ctx context.Context, repo repository.Repository, op *operation, req *models.Requisition, verified int) (bool, error) {
	if !models.ShouldUnseal(req.Masked, verified, req.UnsealThreshold) {
		return false, nil
	}
	now := d.now()
	req.Masked = false
	if req.Status == models.SealedRequisition {
		req.Status = models.UnsealedRequisition
	}
	req.UpdatedAt = now
	if err := repo.UpdateRequisition(ctx, req); err != nil {
		return false, err
	}
	op.record(now, models.ActionUnmaskRFQ, "requisition", req.ID,
		fmt.Sprintf("quorum reached: %d of %d roles verified", verified, req.UnsealThreshold))
	op.afterCommit(func() {
		d.Metrics.Unseals.Inc()
		d.Metrics.Transitions.WithLabelValues(string(models.UnsealedRequisition)).Inc()
	})
	op.logger.Info("requisition unsealed", "verifiedRoles", verified, "threshold", req.UnsealThreshold)
	return true, nil
}

func quorumStatus(req *models.Requisition, verified []models.Role) *models.QuorumStatus {
	missing := missingOpeningRoles(req, verified)
	if verified == nil {
		verified = []models.Role{}
	}
	if missing == nil {
		missing = []models.Role{}
	}
	return &models.QuorumStatus{
		RequisitionID: req.ID,
		Round:         req.QuorumRound,
		VerifiedRoles: verified,
		Threshold:     req.UnsealThreshold,
		SealState:     models.SealStateOf(req.Masked, len(verified)),
		OpeningReady:  !req.Masked && len(missing) == 0,
		MissingRoles:  missing,
	}
}
