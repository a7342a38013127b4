package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/notify"
	"github.com/senyabanana/procurement-service/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// QuorumConfig - параметры выпуска PIN.
type QuorumConfig struct {
	SecretTTL  time.Duration
	PINLength  int
	BcryptCost int
}

// QuorumService выпускает и проверяет одноразовые PIN директоров.
type QuorumService struct {
	deps *Deps
	cfg  QuorumConfig
}

// NewQuorumService создает новый экземпляр QuorumService.
func NewQuorumService(deps *Deps, cfg QuorumConfig) *QuorumService {
	if cfg.PINLength <= 0 {
		cfg.PINLength = 6
	}
	if cfg.SecretTTL <= 0 {
		cfg.SecretTTL = 30 * time.Minute
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &QuorumService{deps: deps, cfg: cfg}
}

// generatePIN возвращает равномерно распределённое число из length цифр с ведущими нулями.
func generatePIN(length int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("failed to generate pin: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n), nil
}

type pendingSecret struct {
	secret    models.Secret
	plaintext string
}

func (s *QuorumService) newSecret(requisitionId string, role models.Role, recipientId string, round int, now time.Time) (*pendingSecret, error) {
	plaintext, err := generatePIN(s.cfg.PINLength)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash pin: %w", err)
	}
	secret := models.Secret{
		ID:            uuid.New().String(),
		RequisitionID: requisitionId,
		RoleName:      role,
		Hash:          string(hash),
		Round:         round,
		GeneratedAt:   now,
		ExpiresAt:     now.Add(s.cfg.SecretTTL),
	}
	if recipientId != "" {
		secret.RecipientID = &recipientId
	}
	return &pendingSecret{secret: secret, plaintext: plaintext}, nil
}

func (p *pendingSecret) issued() models.IssuedSecret {
	out := models.IssuedSecret{
		SecretID:  p.secret.ID,
		Role:      p.secret.RoleName,
		Plaintext: p.plaintext,
		ExpiresAt: p.secret.ExpiresAt,
	}
	if p.secret.RecipientID != nil {
		out.RecipientID = *p.secret.RecipientID
	}
	return out
}

// Issue выпускает PIN для роли. Открытый текст возвращается один раз и нигде не сохраняется.
func (s *QuorumService) Issue(ctx context.Context, requisitionId string, issueReq models.IssueRequest, actor models.Actor) (*models.IssuedSecret, error) {
	if err := requireCapability(actor, models.CapIssueSecret); err != nil {
		return nil, err
	}
	if !models.IsDirectorRole(issueReq.Role) {
		return nil, models.Errorf(models.KindInvalid, "role %q cannot take part in the quorum", issueReq.Role)
	}

	now := s.deps.now()
	op := s.deps.begin("issue_secret", requisitionId, actor)
	var issued models.IssuedSecret
	err := s.deps.run(ctx, op, func(repo repository.Repository) error {
		req, err := repo.LockRequisition(ctx, requisitionId)
		if err != nil {
			return err
		}
		if err := requireStatus(req, models.ReadyForOpeningRequisition, models.SealedRequisition, models.UnsealedRequisition); err != nil {
			return err
		}

		pending, err := s.newSecret(req.ID, issueReq.Role, issueReq.RecipientID, req.QuorumRound, now)
		if err != nil {
			return err
		}
		role := issueReq.Role
		invalidated, err := repo.InvalidateOutstandingSecrets(ctx, repository.SecretFilter{
			RequisitionID: req.ID,
			Role:          &role,
			RecipientID:   pending.secret.RecipientID,
		}, now)
		if err != nil {
			return err
		}
		if err := repo.InsertSecret(ctx, &pending.secret); err != nil {
			return err
		}

		if req.Status == models.ReadyForOpeningRequisition {
			if err := s.deps.changeStatus(ctx, repo, op, req, models.SealedRequisition, "first PIN issued"); err != nil {
				return err
			}
		}

		detail := fmt.Sprintf("PIN issued for role %s, expires %s", role, pending.secret.ExpiresAt.Format(time.RFC3339))
		if invalidated > 0 {
			detail += fmt.Sprintf(", %d earlier PIN(s) invalidated", invalidated)
		}
		op.record(now, models.ActionGeneratePIN, "secret", pending.secret.ID, detail)
		if issueReq.RecipientID != "" {
			op.notify(notify.Message{
				To:      issueReq.RecipientID,
				Subject: fmt.Sprintf("Verification PIN issued for requisition %s", req.ID),
				Body:    fmt.Sprintf("A one-time PIN for role %s was issued and will be delivered separately. It expires at %s.", role, pending.secret.ExpiresAt.Format(time.RFC3339)),
			})
		}
		op.afterCommit(func() { s.deps.Metrics.SecretsIssued.WithLabelValues(string(role)).Inc() })
		issued = pending.issued()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &issued, nil
}

// Verify проверяет PIN роли и пересчитывает кворум в той же транзакции.
func (s *QuorumService) Verify(ctx context.Context, requisitionId string, verifyReq models.VerifyRequest, actor models.Actor) (result *models.VerifyResult, err error) {
	defer func() {
		label := "verified"
		var errResp *models.ErrorResponse
		if errors.As(err, &errResp) {
			label = string(errResp.Kind)
		} else if err != nil {
			label = string(models.KindInternal)
		}
		s.deps.Metrics.Verifications.WithLabelValues(label).Inc()
	}()

	if !actor.HasRole(verifyReq.Role) && !actor.IsAdmin() {
		return nil, models.Errorf(models.KindForbidden, "user %s does not hold role %s", actor.ID, verifyReq.Role)
	}
	if !models.IsDirectorRole(verifyReq.Role) {
		return nil, models.Errorf(models.KindInvalid, "role %q cannot take part in the quorum", verifyReq.Role)
	}

	op := s.deps.begin("verify_secret", requisitionId, actor)
	err = s.deps.run(ctx, op, func(repo repository.Repository) error {
		now := s.deps.now()
		req, err := repo.LockRequisition(ctx, requisitionId)
		if err != nil {
			return err
		}
		if err := requireStatus(req, models.SealedRequisition, models.UnsealedRequisition); err != nil {
			return err
		}

		already, err := repo.HasVerified(ctx, req.ID, verifyReq.Role, req.QuorumRound, actor.ID)
		if err != nil {
			return err
		}
		if already {
			return models.Errorf(models.KindAlreadyVerified, "role %s already verified by %s", verifyReq.Role, actor.ID)
		}

		role := verifyReq.Role
		recipient := actor.ID
		secret, err := repo.FindActiveSecret(ctx, repository.SecretFilter{
			RequisitionID: req.ID,
			Role:          &role,
			RecipientID:   &recipient,
			Round:         req.QuorumRound,
			AnyRecipient:  actor.IsAdmin(),
		})
		if err != nil {
			return err
		}
		if secret.Expired(now) {
			return models.Errorf(models.KindExpired, "PIN for role %s expired at %s", role, secret.ExpiresAt.Format(time.RFC3339))
		}
		if bcrypt.CompareHashAndPassword([]byte(secret.Hash), []byte(verifyReq.PIN)) != nil {
			return models.NewErrorResponse(models.KindInvalidSecret, "PIN does not match")
		}

		marked, err := repo.MarkSecretUsed(ctx, secret.ID, actor.ID, now)
		if err != nil {
			return err
		}
		if !marked {
			return models.NewErrorResponse(models.KindNotFound, "secret is no longer active")
		}

		verified, err := verifiedDirectorRoles(ctx, repo, req)
		if err != nil {
			return err
		}
		op.record(now, models.ActionVerifyPIN, "secret", secret.ID,
			fmt.Sprintf("role %s verified (%d of %d)", role, len(verified), req.UnsealThreshold))
		if _, err := s.deps.applyUnseal(ctx, repo, op, req, len(verified)); err != nil {
			return err
		}

		result = &models.VerifyResult{
			Verified:      true,
			QuorumReached: !req.Masked,
			VerifiedRoles: len(verified),
			Threshold:     req.UnsealThreshold,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Tally возвращает состояние кворума заявки.
func (s *QuorumService) Tally(ctx context.Context, requisitionId string) (*models.QuorumStatus, error) {
	var status *models.QuorumStatus
	err := s.deps.Store.InTx(ctx, func(repo repository.Repository) error {
		req, err := repo.GetRequisition(ctx, requisitionId)
		if err != nil {
			return err
		}
		verified, err := verifiedDirectorRoles(ctx, repo, req)
		if err != nil {
			return err
		}
		status = quorumStatus(req, verified)
		return nil
	})
	return status, err
}

// UpdateSettings записывает типизированные настройки кворума.
// Снижение порога ниже уже набранного числа ролей сразу раскрывает предложения.
func (s *QuorumService) UpdateSettings(ctx context.Context, requisitionId string, settings models.QuorumSettings, actor models.Actor) (*models.Requisition, error) {
	if err := requireCapability(actor, models.CapManageSettings); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	op := s.deps.begin("update_settings", requisitionId, actor)
	var updated *models.Requisition
	err := s.deps.run(ctx, op, func(repo repository.Repository) error {
		now := s.deps.now()
		req, err := repo.LockRequisition(ctx, requisitionId)
		if err != nil {
			return err
		}
		if err := requireStatus(req,
			models.DraftRequisition, models.PendingApprovalRequisition, models.ApprovedRequisition,
			models.AcceptingQuotesRequisition, models.ReadyForOpeningRequisition,
			models.SealedRequisition, models.UnsealedRequisition); err != nil {
			return err
		}

		req.UnsealThreshold = int(settings.UnsealThreshold)
		req.OpeningRoles = append([]models.Role(nil), settings.RequiredRolesForOpening...)
		req.UpdatedAt = now
		if err := repo.UpdateRequisition(ctx, req); err != nil {
			return err
		}
		op.record(now, models.ActionUpdateSettings, "requisition", req.ID,
			fmt.Sprintf("unseal threshold %d, opening roles %v", req.UnsealThreshold, req.OpeningRoles))

		verified, err := verifiedDirectorRoles(ctx, repo, req)
		if err != nil {
			return err
		}
		if _, err := s.deps.applyUnseal(ctx, repo, op, req, len(verified)); err != nil {
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

// ResetQuorum отзывает выданные PIN, открывает новый раунд и выпускает PIN всем ролям директоров.
// Раскрытые предложения не запечатываются обратно.
func (s *QuorumService) ResetQuorum(ctx context.Context, requisitionId string, actor models.Actor) ([]models.IssuedSecret, error) {
	if err := requireCapability(actor, models.CapManageSettings); err != nil {
		return nil, err
	}

	op := s.deps.begin("reset_quorum", requisitionId, actor)
	var issued []models.IssuedSecret
	err := s.deps.run(ctx, op, func(repo repository.Repository) error {
		now := s.deps.now()
		req, err := repo.LockRequisition(ctx, requisitionId)
		if err != nil {
			return err
		}
		if err := requireStatus(req, models.SealedRequisition, models.UnsealedRequisition); err != nil {
			return err
		}

		invalidated, err := repo.InvalidateOutstandingSecrets(ctx, repository.SecretFilter{
			RequisitionID: req.ID,
			AnyRecipient:  true,
		}, now)
		if err != nil {
			return err
		}
		req.QuorumRound++
		req.UpdatedAt = now
		if err := repo.UpdateRequisition(ctx, req); err != nil {
			return err
		}

		issued = issued[:0]
		for _, role := range models.DirectorRoles {
			pending, err := s.newSecret(req.ID, role, "", req.QuorumRound, now)
			if err != nil {
				return err
			}
			if err := repo.InsertSecret(ctx, &pending.secret); err != nil {
				return err
			}
			op.record(now, models.ActionGeneratePIN, "secret", pending.secret.ID,
				fmt.Sprintf("PIN re-issued for role %s in round %d", role, req.QuorumRound))
			issued = append(issued, pending.issued())
		}
		op.record(now, models.ActionResetQuorum, "requisition", req.ID,
			fmt.Sprintf("round %d started, %d outstanding PIN(s) invalidated", req.QuorumRound, invalidated))
		op.afterCommit(func() {
			for _, role := range models.DirectorRoles {
				s.deps.Metrics.SecretsIssued.WithLabelValues(string(role)).Inc()
			}
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}
