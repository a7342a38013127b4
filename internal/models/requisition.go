package models

import "time"

type (
	RequisitionStatus string // Статус заявки
	SealState         string // Состояние запечатывания предложений
)

const (
	DraftRequisition             RequisitionStatus = "Draft"
	PendingApprovalRequisition   RequisitionStatus = "PendingApproval"
	ApprovedRequisition          RequisitionStatus = "Approved"
	AcceptingQuotesRequisition   RequisitionStatus = "Accepting_Quotes"
	ReadyForOpeningRequisition   RequisitionStatus = "Ready_for_Opening"
	SealedRequisition            RequisitionStatus = "Sealed"
	UnsealedRequisition          RequisitionStatus = "Unsealed"
	ScoringInProgressRequisition RequisitionStatus = "Scoring_In_Progress"
	ScoringCompleteRequisition   RequisitionStatus = "Scoring_Complete"
	AwardedRequisition           RequisitionStatus = "Awarded"
	ClosedRequisition            RequisitionStatus = "Closed"
	DisputedRequisition          RequisitionStatus = "Disputed"

	Sealed    SealState = "Sealed"    // Ни одна роль ещё не подтвердила PIN
	Unsealing SealState = "Unsealing" // Кворум набран частично
	Unsealed  SealState = "Unsealed"  // Предложения раскрыты
)

// Requisition представляет модель заявки на закупку.
type Requisition struct {
	ID                 string            `json:"id"`
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	Status             RequisitionStatus `json:"status"`
	PreviousStatus     RequisitionStatus `json:"-"`
	QuoteDeadline      *time.Time        `json:"quoteDeadline,omitempty"`
	ScoringDeadline    *time.Time        `json:"scoringDeadline,omitempty"`
	Masked             bool              `json:"masked"`
	UnsealThreshold    int               `json:"unsealThreshold"`
	OpeningRoles       []Role            `json:"openingRoles"`
	QuorumRound        int               `json:"quorumRound"`
	FinancialCommittee []string          `json:"financialCommittee"`
	TechnicalCommittee []string          `json:"technicalCommittee"`
	AwardDeadline      *time.Time        `json:"awardDeadline,omitempty"`
	AwardExhausted     bool              `json:"awardExhausted"`
	CreatedBy          string            `json:"createdBy"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

// RequisitionRequest представляет структуру запроса для создания заявки.
type RequisitionRequest struct {
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	ScoringDeadline *time.Time `json:"scoringDeadline,omitempty"`
}

// CommitteeMembers возвращает объединение финансовой и технической комиссий.
func (r *Requisition) CommitteeMembers() []string {
	seen := make(map[string]bool)
	var members []string
	for _, list := range [][]string{r.FinancialCommittee, r.TechnicalCommittee} {
		for _, id := range list {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			members = append(members, id)
		}
	}
	return members
}

// QuorumSettings - типизированные настройки кворума заявки.
type QuorumSettings struct {
	UnsealThreshold         uint   `json:"unsealThreshold"`
	RequiredRolesForOpening []Role `json:"requiredRolesForOpening"`
}

// DefaultQuorumSettings требует подтверждения всех ролей директоров.
func DefaultQuorumSettings() QuorumSettings {
	roles := make([]Role, len(DirectorRoles))
	copy(roles, DirectorRoles)
	return QuorumSettings{
		UnsealThreshold:         uint(len(DirectorRoles)),
		RequiredRolesForOpening: roles,
	}
}

// Validate проверяет настройки при записи.
func (s QuorumSettings) Validate() error {
	if s.UnsealThreshold < 1 {
		return NewErrorResponse(KindInvalid, "unseal threshold must be at least 1")
	}
	if s.UnsealThreshold > uint(len(DirectorRoles)) {
		return Errorf(KindInvalid, "unseal threshold %d exceeds the number of director roles (%d)",
			s.UnsealThreshold, len(DirectorRoles))
	}
	if len(s.RequiredRolesForOpening) == 0 {
		return NewErrorResponse(KindInvalid, "at least one role is required for opening bids")
	}
	seen := make(map[Role]bool)
	for _, r := range s.RequiredRolesForOpening {
		if !IsDirectorRole(r) {
			return Errorf(KindInvalid, "role %s cannot take part in bid opening", r)
		}
		if seen[r] {
			return Errorf(KindInvalid, "duplicate opening role %s", r)
		}
		seen[r] = true
	}
	return nil
}

// QuorumStatus - текущее состояние кворума заявки.
type QuorumStatus struct {
	RequisitionID string    `json:"requisitionId"`
	Round         int       `json:"round"`
	VerifiedRoles []Role    `json:"verifiedRoles"`
	Threshold     int       `json:"threshold"`
	SealState     SealState `json:"sealState"`
	OpeningReady  bool      `json:"openingReady"`
	MissingRoles  []Role    `json:"missingRoles"`
}

